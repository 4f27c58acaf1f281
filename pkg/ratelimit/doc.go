// Package ratelimit provides per-client token-bucket rate limiting middleware
// for the notification API, with stale-entry cleanup.
package ratelimit
