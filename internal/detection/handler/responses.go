package handler

import (
	"time"

	"linkage/internal/detection/service"
	"linkage/internal/explain"
	"linkage/internal/match"
	"linkage/internal/policy"
	"linkage/internal/profile"
	id "linkage/pkg/domain"
)

// ThresholdsResponse is the wire form of one threshold snapshot.
type ThresholdsResponse struct {
	AutoLink    float64   `json:"auto_link"`
	AutoSuggest float64   `json:"auto_suggest"`
	Manual      float64   `json:"manual"`
	Version     uint64    `json:"version"`
	UpdatedAt   time.Time `json:"updated_at"`
	UpdatedBy   string    `json:"updated_by,omitempty"`
}

// FromSnapshot converts a policy snapshot to its response form.
func FromSnapshot(s policy.Snapshot) ThresholdsResponse {
	return ThresholdsResponse{
		AutoLink:    s.Thresholds.AutoLink,
		AutoSuggest: s.Thresholds.AutoSuggest,
		Manual:      s.Thresholds.Manual,
		Version:     s.Version,
		UpdatedAt:   s.UpdatedAt,
		UpdatedBy:   s.UpdatedBy,
	}
}

// SuggestionResponse is one ranked suggestion in a detection response. The
// factor breakdown rides once at the suggestion level; the nested
// explanation carries the narrative fields.
type SuggestionResponse struct {
	CandidateID  string                `json:"candidate_id"`
	PoolPosition int                   `json:"pool_position"`
	Confidence   float64               `json:"confidence"`
	Decision     policy.Decision       `json:"decision"`
	Factors      []match.FactorOutcome `json:"factors"`
	Explanation  explain.Explanation   `json:"explanation"`
}

// DroppedResponse reports one candidate abandoned for cause.
type DroppedResponse struct {
	CandidateID  string `json:"candidate_id"`
	PoolPosition int    `json:"pool_position"`
	Stage        string `json:"stage"`
	Reason       string `json:"reason"`
}

// DetectResponse is the HTTP response for POST /v1/detect.
type DetectResponse struct {
	DetectionID string               `json:"detection_id"`
	Profile     string               `json:"profile"`
	Thresholds  ThresholdsResponse   `json:"thresholds"`
	Suggestions []SuggestionResponse `json:"suggestions"`
	Dropped     []DroppedResponse    `json:"dropped,omitempty"`
	Evaluated   int                  `json:"evaluated"`
	Partial     bool                 `json:"partial"`
}

// FromDetectOutcome converts a detection outcome to its response form.
func FromDetectOutcome(out *service.DetectOutcome) DetectResponse {
	suggestions := make([]SuggestionResponse, 0, len(out.Suggestions))
	for _, s := range out.Suggestions {
		exp := s.Explanation
		exp.Factors = nil
		suggestions = append(suggestions, SuggestionResponse{
			CandidateID:  s.CandidateID,
			PoolPosition: s.PoolPosition,
			Confidence:   s.Confidence,
			Decision:     s.Decision,
			Factors:      s.Factors,
			Explanation:  exp,
		})
	}

	var dropped []DroppedResponse
	for _, d := range out.Dropped {
		dropped = append(dropped, DroppedResponse{
			CandidateID:  d.CandidateID,
			PoolPosition: d.PoolPosition,
			Stage:        string(d.Stage),
			Reason:       d.Reason,
		})
	}

	return DetectResponse{
		DetectionID: out.DetectionID.String(),
		Profile:     out.ProfileID.String(),
		Thresholds:  FromSnapshot(out.Thresholds),
		Suggestions: suggestions,
		Dropped:     dropped,
		Evaluated:   out.Evaluated,
		Partial:     out.Partial,
	}
}

// ClassifyResponse is the HTTP response for POST /v1/classify.
type ClassifyResponse struct {
	Decision    policy.Decision     `json:"decision"`
	Explanation explain.Explanation `json:"explanation"`
	Thresholds  ThresholdsResponse  `json:"thresholds"`
}

// FromClassifyOutcome converts a classification outcome to its response form.
func FromClassifyOutcome(out *service.ClassifyOutcome) ClassifyResponse {
	return ClassifyResponse{
		Decision:    out.Decision,
		Explanation: out.Explanation,
		Thresholds:  FromSnapshot(out.Thresholds),
	}
}

// ThresholdsViewResponse is the HTTP response for
// GET /v1/tenants/{tenant}/profiles/{profile}/thresholds.
type ThresholdsViewResponse struct {
	TenantID      string                  `json:"tenant_id"`
	Profile       string                  `json:"profile"`
	Thresholds    ThresholdsResponse      `json:"thresholds"`
	RecentChanges []policy.ChangeLogEntry `json:"recent_changes,omitempty"`
}

// FromThresholdsView converts a thresholds view to its response form.
func FromThresholdsView(tenantID id.TenantID, profileID id.ProfileID, view *service.ThresholdsView) ThresholdsViewResponse {
	return ThresholdsViewResponse{
		TenantID:      tenantID.String(),
		Profile:       profileID.String(),
		Thresholds:    FromSnapshot(view.Snapshot),
		RecentChanges: view.RecentChanges,
	}
}

// UpdateThresholdsResponse is the HTTP response for
// PUT /v1/tenants/{tenant}/profiles/{profile}/thresholds.
type UpdateThresholdsResponse struct {
	TenantID string                `json:"tenant_id"`
	Profile  string                `json:"profile"`
	Change   policy.ChangeLogEntry `json:"change"`
}

// FromChangeLogEntry converts an applied change to its response form.
func FromChangeLogEntry(tenantID id.TenantID, profileID id.ProfileID, entry *policy.ChangeLogEntry) UpdateThresholdsResponse {
	return UpdateThresholdsResponse{
		TenantID: tenantID.String(),
		Profile:  profileID.String(),
		Change:   *entry,
	}
}

// FactorResponse describes one configured factor of a profile.
type FactorResponse struct {
	Name     string  `json:"name"`
	Kind     string  `json:"kind"`
	Field    string  `json:"field,omitempty"`
	Weight   float64 `json:"weight"`
	Blocking bool    `json:"blocking,omitempty"`
}

// ProfileResponse describes one detection profile.
type ProfileResponse struct {
	ID                string                  `json:"id"`
	Name              string                  `json:"name"`
	EntityKind        string                  `json:"entity_kind,omitempty"`
	MinSuggest        float64                 `json:"min_suggest"`
	DefaultThresholds policy.ThresholdSet     `json:"default_thresholds"`
	Factors           []FactorResponse        `json:"factors"`
	BlockingBounds    []profile.BlockingBound `json:"blocking_bounds,omitempty"`
}

// ProfileListResponse is the HTTP response for GET /v1/profiles.
type ProfileListResponse struct {
	Profiles []ProfileResponse `json:"profiles"`
}

// FromDescriptor converts a profile descriptor to its response form.
func FromDescriptor(d service.ProfileDescriptor) ProfileResponse {
	factors := make([]FactorResponse, 0, len(d.Factors))
	for _, f := range d.Factors {
		factors = append(factors, FactorResponse{
			Name:     f.Name,
			Kind:     f.Kind,
			Field:    f.Field,
			Weight:   f.Weight,
			Blocking: f.Blocking,
		})
	}
	return ProfileResponse{
		ID:                d.ID,
		Name:              d.Name,
		EntityKind:        d.EntityKind,
		MinSuggest:        d.MinSuggest,
		DefaultThresholds: d.Defaults,
		Factors:           factors,
		BlockingBounds:    d.BlockingBounds,
	}
}

// FromDescriptors converts a descriptor list to its response form.
func FromDescriptors(ds []service.ProfileDescriptor) ProfileListResponse {
	profiles := make([]ProfileResponse, 0, len(ds))
	for _, d := range ds {
		profiles = append(profiles, FromDescriptor(d))
	}
	return ProfileListResponse{Profiles: profiles}
}
