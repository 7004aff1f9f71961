package service

import (
	"linkage/internal/policy"
	"linkage/internal/profile"
	id "linkage/pkg/domain"
)

// FactorDescriptor is the read-only view of one factor spec.
type FactorDescriptor struct {
	Name     string
	Kind     string
	Field    string
	Weight   float64
	Blocking bool
}

// ProfileDescriptor is the read-only view of one registered profile.
type ProfileDescriptor struct {
	ID             string
	Name           string
	EntityKind     string
	MinSuggest     float64
	Defaults       policy.ThresholdSet
	Factors        []FactorDescriptor
	BlockingBounds []profile.BlockingBound
}

// Profiles lists descriptors for every registered profile, ordered by id.
func (s *Service) Profiles() []ProfileDescriptor {
	ids := s.profiles.IDs()
	descriptors := make([]ProfileDescriptor, 0, len(ids))
	for _, profileID := range ids {
		engine, ok := s.profiles.Get(profileID)
		if !ok {
			continue
		}
		descriptors = append(descriptors, describe(engine.Profile))
	}
	return descriptors
}

// Profile returns the descriptor for one registered profile.
func (s *Service) Profile(profileID id.ProfileID) (*ProfileDescriptor, error) {
	engine, err := s.engineFor(profileID)
	if err != nil {
		return nil, err
	}
	descriptor := describe(engine.Profile)
	return &descriptor, nil
}

func describe(p *profile.Profile) ProfileDescriptor {
	factors := make([]FactorDescriptor, 0, len(p.Factors))
	for _, spec := range p.Factors {
		factors = append(factors, FactorDescriptor{
			Name:     spec.Label(),
			Kind:     spec.Kind,
			Field:    spec.Field,
			Weight:   spec.Weight,
			Blocking: spec.Blocking,
		})
	}
	return ProfileDescriptor{
		ID:             p.Meta.ID,
		Name:           p.Meta.Name,
		EntityKind:     p.Meta.EntityKind,
		MinSuggest:     p.Meta.MinSuggest,
		Defaults:       p.Thresholds.Set(),
		Factors:        factors,
		BlockingBounds: p.BlockingBounds(),
	}
}
