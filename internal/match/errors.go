package match

import "fmt"

// ConfigurationError reports an invalid engine construction: bad weights,
// empty factor sets, nonsensical worker counts. Construction failures are
// fatal; a misconfigured engine must never serve traffic.
type ConfigurationError struct {
	Component string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s configuration: %s", e.Component, e.Reason)
}

// DetectionError reports a request the engine cannot process at all: a nil
// or unidentified anchor, a malformed pool, or a blocking predicate failure.
// Per-candidate scoring failures are never DetectionErrors; they degrade to
// DroppedCandidate metadata so one bad candidate cannot sink the run.
type DetectionError struct {
	// CandidateID names the offending candidate when one is identifiable.
	CandidateID string
	Reason      string
}

func (e *DetectionError) Error() string {
	if e.CandidateID != "" {
		return fmt.Sprintf("detection: candidate %s: %s", e.CandidateID, e.Reason)
	}
	return "detection: " + e.Reason
}
