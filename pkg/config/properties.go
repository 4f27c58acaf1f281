// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"strconv"
	"strings"
	"sync"
)

// Key names a global notification property.
type Key string

const (
	EmailServiceURL          Key = "pacman.api.sendmail"
	OrphanResourceOwnerEmail Key = "pacman.auto.fix.orphan.resource.owner"
	SendEmailCC              Key = "pacman.auto.fix.mail.cc.to"
	SendEmailFrom            Key = "pacman.auto.fix.mail.from"
	SendEmailExemptedSubject Key = "pacman.autofix.exempted.mail.subject"
	EmailBanner              Key = "pacman.autofix.email.banner"
	PolicyURLPath            Key = "pacman.autofix.policy.url.path"
)

// Fragment names a per-policy property. The stored key is the fragment's
// prefix followed by the policy id.
type Fragment string

const (
	FragmentViolationMessage Fragment = "pacman.autofix.issue.creation.info."
	FragmentFixMessage       Fragment = "pacman.autofix.fix.notify."
	FragmentWarningMessage   Fragment = "pacman.autofix.warning.message."
	FragmentWarningSubject   Fragment = "pacman.auto.warning.mail.subject."
	FragmentFixSubject       Fragment = "pacman.auto.fix.mail.subject."
	FragmentTemplateColumns  Fragment = "pacman.auto.fix.mail.template.columns."
	FragmentSilentFixAdmin   Fragment = "pacman.auto.fix.common.email.notifications.admin."
	FragmentNotificationMode Fragment = "pacman.auto.fix.common.email.notifications."
	FragmentAutoFixDelay     Fragment = "pacman.autofix.policy.wait.time.before.fix."
)

// CommonTemplateMode is the notification mode value that routes FIX
// notifications through the batch digest.
const CommonTemplateMode = "commonTemplate"

// Resolver looks up notification configuration. Absent values report ok=false.
type Resolver interface {
	Value(key Key) (string, bool)
	PolicyValue(policyID string, fragment Fragment) (string, bool)
}

// Properties is a flat key/value property store. It is safe for concurrent use.
type Properties struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewProperties copies values into a new store.
func NewProperties(values map[string]string) *Properties {
	p := &Properties{values: make(map[string]string, len(values))}
	for k, v := range values {
		p.values[k] = v
	}
	return p
}

// Get returns the raw property stored under key.
func (p *Properties) Get(key string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[key]
	return v, ok
}

// Set stores a raw property.
func (p *Properties) Set(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[key] = value
}

// Value implements Resolver.
func (p *Properties) Value(key Key) (string, bool) {
	return p.Get(string(key))
}

// PolicyValue implements Resolver.
func (p *Properties) PolicyValue(policyID string, fragment Fragment) (string, bool) {
	return p.Get(string(fragment) + policyID)
}

// AutoFixDelay reads the autofix delay fragment as whole hours.
func (p *Properties) AutoFixDelay(policyID string) (int, bool) {
	raw, ok := p.PolicyValue(policyID, FragmentAutoFixDelay)
	if !ok {
		return 0, false
	}
	hours, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return hours, true
}

// Lookup returns the value for key or "" when absent.
func Lookup(r Resolver, key Key) string {
	v, _ := r.Value(key)
	return v
}

// LookupPolicy returns the per-policy value or "" when absent.
func LookupPolicy(r Resolver, policyID string, fragment Fragment) string {
	v, _ := r.PolicyValue(policyID, fragment)
	return v
}

// SplitList splits a comma separated property, trimming whitespace around
// each entry and dropping empty entries.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
