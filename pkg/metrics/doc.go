// Package metrics defines Prometheus metrics for the notifier, covering
// dispatch outcomes and latency, mail transport results, template failures and
// audit sink writes.
package metrics
