package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and registries return
// these (optionally wrapped) so callers can branch with errors.Is without
// depending on the layer that produced them.
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	// ErrConflict marks a write rejected to protect existing state, such as
	// registering a profile id that is already taken.
	ErrConflict = errors.New("conflict")
)
