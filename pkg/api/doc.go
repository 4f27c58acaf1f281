// Package api implements the Gin HTTP server of the notifier: notification
// endpoints for autofix, common fix and plain mails, plus health, version and
// Prometheus metrics. Requests carry a correlation id and are rate limited per
// client.
package api
