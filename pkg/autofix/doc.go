// Package autofix holds the auto-remediation domain types shared by the
// notification dispatcher, the HTTP API and the CLI: the action kinds a policy
// engine reports, resource owners, applied-fix transactions and the policy
// parameter keys used to look up per-policy configuration.
package autofix
