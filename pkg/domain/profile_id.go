package domain

import dErrors "linkage/pkg/domain-errors"

// ProfileID identifies a matching profile by slug, e.g. "bank-transactions".
// Invariant: lowercase letters, digits, and single interior hyphens only,
// between 2 and 64 characters.
//
// Usage: construct via ParseProfileID at trust boundaries to enforce the
// format; direct casting bypasses validation.
type ProfileID string

const maxProfileIDLen = 64

// ParseProfileID constructs a ProfileID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, too long, or
// violates the slug format; no other errors are expected.
func ParseProfileID(s string) (ProfileID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "profile cannot be empty")
	}
	if len(s) > maxProfileIDLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "profile exceeds maximum length")
	}
	p := ProfileID(s)
	if !p.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "profile must be a lowercase slug")
	}
	return p, nil
}

// IsValid checks the slug format without allocating.
func (p ProfileID) IsValid() bool {
	if len(p) < 2 || len(p) > maxProfileIDLen {
		return false
	}
	if p[0] == '-' || p[len(p)-1] == '-' {
		return false
	}
	prevHyphen := false
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			prevHyphen = false
		case c == '-':
			if prevHyphen {
				return false
			}
			prevHyphen = true
		default:
			return false
		}
	}
	return true
}

// String returns the string representation of the profile ID.
func (p ProfileID) String() string {
	return string(p)
}

// IsNil returns true if the profile ID is empty.
func (p ProfileID) IsNil() bool {
	return p == ""
}
