// Package notification turns policy violations and applied autofixes into mail
// envelopes. The Dispatcher resolves recipients, selects the template and
// subject for an autofix action, substitutes per-policy message fragments and
// hands the result to a mail transport. Batch fixes are rendered into a single
// HTML digest.
package notification
