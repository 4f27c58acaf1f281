// SPDX-FileCopyrightText: 2024 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of audit event.
type EventType string

const (
	EventNotificationSent    EventType = "notification.sent"
	EventNotificationFailed  EventType = "notification.failed"
	EventNotificationSkipped EventType = "notification.skipped"
)

// Event records the outcome of a single notification dispatch.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// Kind is the dispatch path: plain, autofix or common_fix.
	Kind       string `json:"kind"`
	PolicyID   string `json:"policyId,omitempty"`
	ResourceID string `json:"resourceId,omitempty"`
	Action     string `json:"action,omitempty"`
	Template   string `json:"template,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Recipients int    `json:"recipients"`
	// Resources is the batch size for common fix digests.
	Resources int    `json:"resources,omitempty"`
	Transport string `json:"transport,omitempty"`
	Error     string `json:"error,omitempty"`
	// CorrelationID links the event to the API request that caused it.
	CorrelationID string `json:"correlationId,omitempty"`
	// TraceID is set when the dispatch was traced.
	TraceID string `json:"traceId,omitempty"`
}

// NewEvent creates an event with a fresh id and the current UTC timestamp.
func NewEvent(t EventType, kind string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		Kind:      kind,
	}
}
