package notification

import (
	"strconv"
	"strings"

	"github.com/telekom/autofix-notifier/pkg/autofix"
	"github.com/telekom/autofix-notifier/pkg/config"
	"github.com/telekom/autofix-notifier/pkg/mail"
)

// Placeholder keys filled into plain notification templates.
const (
	PlaceholderName             = "NAME"
	PlaceholderPolicyURL        = "POLICY_URL"
	PlaceholderResourceID       = "RESOURCE_ID"
	PlaceholderAccountID        = "ACCOUNT_ID"
	PlaceholderRegion           = "REGION"
	PlaceholderTime             = "TIME"
	PlaceholderViolationMessage = "POLICY_VIOLATION_MESSAGE"
	PlaceholderWarningMessage   = "AUTOFIX_WARNING_MESSAGE"
	PlaceholderPostFixMessage   = "AUTOFIX_POST_FIX_MESSAGE"
	PlaceholderExpiryTime       = "AUTOFIX_EXPIRY_TIME"
	PlaceholderEmailBanner      = "EMAIL_BANNER"
)

const daysToken = "{days}"

// AutoFixRequest describes a single violation or fix to notify about.
type AutoFixRequest struct {
	PolicyParams autofix.PolicyParams   `json:"policyParams"`
	Owner        *autofix.ResourceOwner `json:"owner,omitempty"`
	TargetType   string                 `json:"targetType"`
	ResourceID   string                 `json:"resourceId"`
	ExpiringTime string                 `json:"expiringTime"`
	Action       autofix.Action         `json:"action"`
	// Transactions is the batch of applied fixes; only the common fix digest uses it.
	Transactions []autofix.Transaction `json:"transactions,omitempty"`
	// Annotations carry accountid, accountname and region.
	Annotations map[string]string `json:"annotations"`
}

// Message is a notification ready for delivery.
type Message struct {
	Subject      string
	TemplateName string
	Recipients   []string
	Placeholders map[string]string
}

// ResolveRecipients returns the owner's address, or the orphan owner address
// when the owner has none, followed by the configured CC list. Duplicates and
// empty entries are dropped.
func ResolveRecipients(r config.Resolver, owner *autofix.ResourceOwner) []string {
	var recipients []string
	if owner.HasValidEmail() {
		recipients = appendUnique(recipients, owner.EmailID)
	} else {
		recipients = appendUnique(recipients, config.Lookup(r, config.OrphanResourceOwnerEmail))
	}
	return appendUnique(recipients, ccList(r)...)
}

func ccList(r config.Resolver) []string {
	return config.SplitList(config.Lookup(r, config.SendEmailCC))
}

// WarningMessage returns the policy's warning text with {days} replaced by the
// autofix delay in whole days, when a delay is configured.
func WarningMessage(r config.Resolver, delays autofix.DelayProvider, policyID string) string {
	warning := config.LookupPolicy(r, policyID, config.FragmentWarningMessage)
	if delays == nil {
		return warning
	}
	if hours, ok := delays.AutoFixDelay(policyID); ok {
		warning = strings.ReplaceAll(warning, daysToken, strconv.Itoa(hours/24))
	}
	return warning
}

// BuildAutoFixMessage assembles recipients, subject, template and placeholder
// values for a plain autofix notification.
func BuildAutoFixMessage(r config.Resolver, delays autofix.DelayProvider, req AutoFixRequest) Message {
	policyID := req.PolicyParams.PolicyID()
	accountID, hasAccount := req.Annotations[autofix.AnnotationAccountID]
	accountName := req.Annotations[autofix.AnnotationAccountName]
	region, hasRegion := req.Annotations[autofix.AnnotationRegion]

	violation := config.LookupPolicy(r, policyID, config.FragmentViolationMessage)
	postFix := config.LookupPolicy(r, policyID, config.FragmentFixMessage)
	if violation != "" {
		// Absent annotations keep their ${...} token literal.
		data := map[string]string{PlaceholderResourceID: req.ResourceID}
		if hasAccount {
			data[PlaceholderAccountID] = accountID
		}
		if hasRegion {
			data[PlaceholderRegion] = region
		}
		violation = mail.Substitute(violation, data)
		postFix = mail.Substitute(postFix, data)
	}

	template, subject := SelectTemplate(r, req.Action, policyID, accountName)

	return Message{
		Subject:      subject,
		TemplateName: template,
		Recipients:   ResolveRecipients(r, req.Owner),
		Placeholders: map[string]string{
			PlaceholderName:             req.Owner.DisplayName(),
			PlaceholderPolicyURL:        PolicyKnowledgeBaseURL(r, req.PolicyParams),
			PlaceholderResourceID:       req.ResourceID,
			PlaceholderAccountID:        accountID,
			PlaceholderRegion:           region,
			PlaceholderTime:             req.ExpiringTime,
			PlaceholderViolationMessage: violation,
			PlaceholderWarningMessage:   WarningMessage(r, delays, policyID),
			PlaceholderPostFixMessage:   postFix,
			PlaceholderExpiryTime:       req.ExpiringTime,
			PlaceholderEmailBanner:      config.Lookup(r, config.EmailBanner),
		},
	}
}

// usesCommonTemplate reports whether FIX notifications for the policy go out
// as a batch digest.
func usesCommonTemplate(r config.Resolver, policyID string) bool {
	mode, ok := r.PolicyValue(policyID, config.FragmentNotificationMode)
	return ok && mode == config.CommonTemplateMode
}
