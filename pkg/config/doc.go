// Package config handles notifier configuration loading from YAML files and the
// flat property store that per-policy message fragments, subjects and
// notification modes are resolved from.
package config
