package notification

import (
	"strings"

	"github.com/telekom/autofix-notifier/pkg/autofix"
	"github.com/telekom/autofix-notifier/pkg/config"
	"github.com/telekom/autofix-notifier/pkg/mail"
)

const defaultCloudType = "AWS"

// PolicyKnowledgeBaseURL substitutes the policy id into the configured
// knowledge base URL template.
func PolicyKnowledgeBaseURL(r config.Resolver, params autofix.PolicyParams) string {
	return mail.Substitute(config.Lookup(r, config.PolicyURLPath), map[string]string{
		"POLICY_ID": params.PolicyID(),
	})
}

// CloudType derives the cloud label from the asset group.
func CloudType(params autofix.PolicyParams) string {
	if ag := params.AssetGroup(); ag != "" {
		return strings.ToUpper(ag)
	}
	return defaultCloudType
}

// IsSandboxAccount reports whether the account name marks a sandbox account.
func IsSandboxAccount(accountName string) bool {
	return strings.EqualFold(accountName, "Sandbox")
}

// joinResourceIDs lists every resource id followed by ", ", keeping the
// trailing separator the digest has always shown.
func joinResourceIDs(batch []autofix.Transaction) string {
	var b strings.Builder
	for _, t := range batch {
		b.WriteString(t.ResourceID)
		b.WriteString(", ")
	}
	return b.String()
}

// appendUnique appends values that are non-empty and not yet present.
func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		if v == "" {
			continue
		}
		dup := false
		for _, existing := range list {
			if existing == v {
				dup = true
				break
			}
		}
		if !dup {
			list = append(list, v)
		}
	}
	return list
}
