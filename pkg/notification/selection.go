package notification

import (
	"github.com/telekom/autofix-notifier/pkg/autofix"
	"github.com/telekom/autofix-notifier/pkg/config"
	"github.com/telekom/autofix-notifier/pkg/mail"
)

// DefaultSubject is used when an action has no configured subject.
const DefaultSubject = "Pacman AutoFix Reminder"

const sandboxSubjectPrefix = "(Sandbox) : "

// templateDescriptor says which template and subject an action renders with.
type templateDescriptor struct {
	template string
	// subject resolves the subject; nil keeps DefaultSubject.
	subject func(r config.Resolver, policyID string) string
	// sandboxPrefix marks subjects that get the sandbox prefix for sandbox accounts.
	sandboxPrefix bool
}

var actionTemplates = map[autofix.Action]templateDescriptor{
	autofix.ActionEmail: {
		template:      mail.TemplateWarning,
		subject:       policySubject(config.FragmentWarningSubject),
		sandboxPrefix: true,
	},
	autofix.ActionFix: {
		template: mail.TemplateFixApplied,
		subject:  policySubject(config.FragmentFixSubject),
	},
	autofix.ActionRemindExceptionExpiry: {
		template: mail.TemplateExceptionExpiry,
	},
	autofix.ActionExempted: {
		template: mail.TemplateExemptionGranted,
		subject: func(r config.Resolver, _ string) string {
			return config.Lookup(r, config.SendEmailExemptedSubject)
		},
	},
}

func policySubject(f config.Fragment) func(config.Resolver, string) string {
	return func(r config.Resolver, policyID string) string {
		return config.LookupPolicy(r, policyID, f)
	}
}

// SelectTemplate returns the template name and subject for an action. Unknown
// actions yield an empty template name and the default subject.
func SelectTemplate(r config.Resolver, action autofix.Action, policyID, accountName string) (template, subject string) {
	d, ok := actionTemplates[action]
	if !ok {
		return "", DefaultSubject
	}
	subject = DefaultSubject
	if d.subject != nil {
		subject = d.subject(r, policyID)
	}
	if d.sandboxPrefix && IsSandboxAccount(accountName) {
		subject = sandboxSubjectPrefix + subject
	}
	return d.template, subject
}
