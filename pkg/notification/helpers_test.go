package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/telekom/autofix-notifier/pkg/autofix"
	"github.com/telekom/autofix-notifier/pkg/config"
)

func TestCloudType(t *testing.T) {
	tests := []struct {
		assetGroup string
		expected   string
	}{
		{"aws", "AWS"},
		{"", "AWS"},
		{"azure", "AZURE"},
		{"Gcp", "GCP"},
	}
	for _, tt := range tests {
		t.Run(tt.assetGroup, func(t *testing.T) {
			params := autofix.PolicyParams{autofix.ParamAssetGroup: tt.assetGroup}
			assert.Equal(t, tt.expected, CloudType(params))
		})
	}
	assert.Equal(t, "AWS", CloudType(nil))
}

func TestPolicyKnowledgeBaseURL(t *testing.T) {
	p := config.NewProperties(map[string]string{
		string(config.PolicyURLPath): "https://kb/${POLICY_ID}?ref=${SOURCE}",
	})
	url := PolicyKnowledgeBaseURL(p, autofix.PolicyParams{autofix.ParamPolicyID: "p1"})
	assert.Equal(t, "https://kb/p1?ref=${SOURCE}", url)

	assert.Equal(t, "", PolicyKnowledgeBaseURL(config.NewProperties(nil), autofix.PolicyParams{}))
}

func TestJoinResourceIDs(t *testing.T) {
	assert.Equal(t, "", joinResourceIDs(nil))
	assert.Equal(t, "a, ", joinResourceIDs([]autofix.Transaction{{ResourceID: "a"}}))
	assert.Equal(t, "a, b, c, ", joinResourceIDs([]autofix.Transaction{{ResourceID: "a"}, {ResourceID: "b"}, {ResourceID: "c"}}))
}

func TestResolveRecipients(t *testing.T) {
	p := config.NewProperties(map[string]string{
		string(config.OrphanResourceOwnerEmail): "orphans@example.com",
		string(config.SendEmailCC):              " cc@example.com ,owner@example.com,, ",
	})

	assert.Equal(t, []string{"owner@example.com", "cc@example.com"},
		ResolveRecipients(p, &autofix.ResourceOwner{EmailID: "owner@example.com"}))
	assert.Equal(t, []string{"orphans@example.com", "cc@example.com", "owner@example.com"},
		ResolveRecipients(p, nil))
	assert.Empty(t, ResolveRecipients(config.NewProperties(nil), nil))
}

func TestSelectTemplate(t *testing.T) {
	p := config.NewProperties(baseProperties())

	tpl, subject := SelectTemplate(p, autofix.Action("UNKNOWN"), testPolicy, "Sandbox")
	assert.Equal(t, "", tpl)
	assert.Equal(t, DefaultSubject, subject)

	_, subject = SelectTemplate(p, autofix.ActionEmail, "other-policy", "sandbox")
	assert.Equal(t, "(Sandbox) : ", subject)
}

func TestWarningMessage(t *testing.T) {
	p := config.NewProperties(baseProperties())
	assert.Equal(t, "Autofix runs in {days} days", WarningMessage(p, nil, testPolicy))

	tests := []struct {
		hours    string
		expected string
	}{
		{"50", "Autofix runs in 2 days"},
		{"24", "Autofix runs in 1 days"},
		{"23", "Autofix runs in 0 days"},
		{"not-a-number", "Autofix runs in {days} days"},
	}
	for _, tt := range tests {
		t.Run(tt.hours, func(t *testing.T) {
			p.Set(string(config.FragmentAutoFixDelay)+testPolicy, tt.hours)
			assert.Equal(t, tt.expected, WarningMessage(p, p, testPolicy))
		})
	}
}
