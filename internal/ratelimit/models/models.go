// Package models defines the shared types of the ratelimit module.
package models

import (
	"strings"
	"time"

	dErrors "linkage/pkg/domain-errors"
)

// Class categorizes endpoints for differentiated budgeting.
type Class string

const (
	// ClassDetect covers detection runs. Cost scales with pool size, so the
	// budget is counted in candidate evaluations per window.
	ClassDetect Class = "detect"
	// ClassRead covers threshold and profile reads.
	ClassRead Class = "read"
	// ClassWrite covers threshold updates.
	ClassWrite Class = "write"
)

// IsValid checks if the class is one of the supported enum values.
func (c Class) IsValid() bool {
	switch c {
	case ClassDetect, ClassRead, ClassWrite:
		return true
	}
	return false
}

// ParseClass creates a Class from a string, validating it.
func ParseClass(s string) (Class, error) {
	c := Class(s)
	if !c.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid rate limit class: must be 'detect', 'read' or 'write'")
	}
	return c, nil
}

// Scope identifies what a budget key is counted against.
type Scope string

const (
	ScopeTenant Scope = "tenant"
	ScopeIP     Scope = "ip"
)

// IsValid checks if the scope is one of the supported values.
func (s Scope) IsValid() bool {
	return s == ScopeTenant || s == ScopeIP
}

// ParseScope creates a Scope from a string, validating it.
func ParseScope(s string) (Scope, error) {
	sc := Scope(s)
	if !sc.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid rate limit scope: must be 'tenant' or 'ip'")
	}
	return sc, nil
}

// Result represents the outcome of a budget check.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Bypassed   bool      `json:"bypassed,omitempty"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when denied
}

// Key addresses one sliding window in a bucket store.
type Key string

// NewKey builds a bucket key from class, scope, and identifier.
func NewKey(class Class, scope Scope, identifier string) Key {
	return Key("ratelimit:" + string(class) + ":" + string(scope) + ":" + SanitizeKeySegment(identifier))
}

// String returns the string form used by bucket stores.
func (k Key) String() string { return string(k) }

// SanitizeKeySegment escapes delimiter characters in budget key segments to
// prevent key collision attacks where caller-controlled identifiers
// containing ':' could manipulate adjacent windows.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// UsageSnapshot is the admin view of one budget window.
type UsageSnapshot struct {
	Class      Class  `json:"class"`
	Scope      Scope  `json:"scope"`
	Identifier string `json:"identifier"`
	Used       int    `json:"used"`
	Budget     int    `json:"budget"`
	Remaining  int    `json:"remaining"`
	WindowSecs int    `json:"window_seconds"`
}

// BudgetExceededResponse is the API response when a budget is exhausted.
type BudgetExceededResponse struct {
	Error      string    `json:"error"`
	Message    string    `json:"message"`
	RetryAfter int       `json:"retry_after"` // seconds
	ResetAt    time.Time `json:"reset_at"`
}

// ResetResponse is the API response for an admin budget reset.
type ResetResponse struct {
	Class      Class  `json:"class"`
	Scope      Scope  `json:"scope"`
	Identifier string `json:"identifier"`
	Reset      bool   `json:"reset"`
}
