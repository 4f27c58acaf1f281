// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package autofix

import (
	"fmt"
	"strings"
)

// Action describes what happened, or will happen, to a violating resource.
type Action string

const (
	// ActionEmail warns the owner that an autofix is pending.
	ActionEmail Action = "EMAIL"
	// ActionFix reports an applied fix.
	ActionFix Action = "FIX"
	// ActionRemindExceptionExpiry reminds the owner that an exception is about to expire.
	ActionRemindExceptionExpiry Action = "REMIND_EXCEPTION_EXPIRY"
	// ActionExempted confirms that an exemption was granted.
	ActionExempted Action = "EXEMPTED"
)

// Actions lists every known action kind.
var Actions = []Action{ActionEmail, ActionFix, ActionRemindExceptionExpiry, ActionExempted}

// ParseAction converts a user supplied string into an Action. Matching is case
// insensitive and accepts the long AUTOFIX_ACTION_ prefixed names used by the
// rule engine.
func ParseAction(s string) (Action, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.TrimPrefix(norm, "AUTOFIX_ACTION_")
	if norm == "EMAIL_REMIND_EXCEPTION_EXPIRY" {
		norm = string(ActionRemindExceptionExpiry)
	}
	for _, a := range Actions {
		if string(a) == norm {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown autofix action %q", s)
}

func (a Action) String() string {
	return string(a)
}

// Policy parameter keys.
const (
	ParamPolicyID   = "policyId"
	ParamTargetType = "targetType"
	ParamAssetGroup = "assetGroup"
)

// Annotation keys carried with a violation.
const (
	AnnotationAccountID   = "accountid"
	AnnotationAccountName = "accountname"
	AnnotationRegion      = "region"
)

// PolicyParams are the parameters of the policy that raised the violation.
type PolicyParams map[string]string

// PolicyID returns the policy identifier, or "" when absent.
func (p PolicyParams) PolicyID() string {
	return p[ParamPolicyID]
}

// TargetType returns the resource type the policy evaluates.
func (p PolicyParams) TargetType() string {
	return p[ParamTargetType]
}

// AssetGroup returns the asset group the policy ran against.
func (p PolicyParams) AssetGroup() string {
	return p[ParamAssetGroup]
}

// ResourceOwner is the party responsible for a cloud resource.
type ResourceOwner struct {
	Name    string `json:"name" yaml:"name"`
	EmailID string `json:"emailId" yaml:"emailId"`
}

// HasValidEmail reports whether the owner carries a usable mail address.
func (o *ResourceOwner) HasValidEmail() bool {
	return o != nil && o.EmailID != "" && strings.Contains(o.EmailID, "@")
}

// DisplayName returns the owner's name, or "" for a nil owner.
func (o *ResourceOwner) DisplayName() string {
	if o == nil {
		return ""
	}
	return o.Name
}

// Transaction records a single applied autofix.
type Transaction struct {
	Action        string            `json:"action,omitempty"`
	ResourceID    string            `json:"resourceId"`
	ExecutionID   string            `json:"executionId,omitempty"`
	TransactionID string            `json:"transactionId,omitempty"`
	Description   string            `json:"desc,omitempty"`
	TargetType    string            `json:"type,omitempty"`
	PolicyID      string            `json:"policyId,omitempty"`
	AccountID     string            `json:"accountId,omitempty"`
	AccountName   string            `json:"accountName,omitempty"`
	Region        string            `json:"region,omitempty"`
	Time          string            `json:"transactionTime,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

// Field returns the value of a report column. Column names are matched
// ignoring case, spaces, dashes and underscores, so "Resource Id",
// "resource_id" and "resourceId" all resolve to ResourceID. Unknown columns
// fall back to Attributes.
func (t Transaction) Field(column string) string {
	switch normalizeColumn(column) {
	case "action":
		return t.Action
	case "resourceid":
		return t.ResourceID
	case "executionid":
		return t.ExecutionID
	case "transactionid":
		return t.TransactionID
	case "desc", "description":
		return t.Description
	case "type", "targettype":
		return t.TargetType
	case "policyid":
		return t.PolicyID
	case "accountid":
		return t.AccountID
	case "accountname":
		return t.AccountName
	case "region":
		return t.Region
	case "time", "transactiontime":
		return t.Time
	}
	if v, ok := t.Attributes[column]; ok {
		return v
	}
	for k, v := range t.Attributes {
		if normalizeColumn(k) == normalizeColumn(column) {
			return v
		}
	}
	return ""
}

func normalizeColumn(s string) string {
	return strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s))
}

// DelayProvider reports the configured delay, in hours, between the warning
// notification and the autofix for a policy.
type DelayProvider interface {
	AutoFixDelay(policyID string) (hours int, ok bool)
}
