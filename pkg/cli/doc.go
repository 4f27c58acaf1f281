// Package cli implements the autofix-notifier command tree (serve, send,
// render and version) on cobra, with environment variable fallbacks for the
// global flags.
package cli
