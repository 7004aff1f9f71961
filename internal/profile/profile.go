// Package profile turns declarative linkage profiles into runnable detection
// engines. A profile document names the entity kind, the weighted factor
// composition, the decision thresholds, and which factors may block.
package profile

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"linkage/internal/match"
	"linkage/internal/match/metrics"
	"linkage/internal/policy"
	id "linkage/pkg/domain"

	"linkage/internal/profile/factors"
)

// Defaults applied by normalize.
const (
	DefaultFactorTimeoutMS = 50
	DefaultWorkers         = 8
)

// Profile is one linkage profile document.
type Profile struct {
	Meta       Meta           `toml:"profile" json:"profile"`
	Thresholds Thresholds     `toml:"thresholds" json:"thresholds"`
	Factors    []factors.Spec `toml:"factors" json:"factors"`
}

// Meta is the [profile] section.
type Meta struct {
	// ID is the profile slug, unique within the registry.
	ID string `toml:"id" json:"id"`
	// Name is the human-readable label. Defaults to ID.
	Name string `toml:"name" json:"name"`
	// EntityKind documents what the records are. Informational.
	EntityKind string `toml:"entity_kind" json:"entity_kind,omitempty"`
	// MinSuggest is the confidence floor below which candidates are not
	// suggested. Zero means the manual threshold. The blocking recall bound
	// is derived from this floor.
	MinSuggest float64 `toml:"min_suggest" json:"min_suggest"`
	// FactorTimeoutMS bounds a single factor evaluation.
	FactorTimeoutMS int `toml:"factor_timeout_ms" json:"factor_timeout_ms"`
	// Workers bounds concurrent candidate scoring.
	Workers int `toml:"workers" json:"workers"`
}

// Thresholds is the [thresholds] section.
type Thresholds struct {
	AutoLink    float64 `toml:"auto_link" json:"auto_link"`
	AutoSuggest float64 `toml:"auto_suggest" json:"auto_suggest"`
	Manual      float64 `toml:"manual" json:"manual"`
}

// Set converts to the policy value type.
func (t Thresholds) Set() policy.ThresholdSet {
	return policy.ThresholdSet{AutoLink: t.AutoLink, AutoSuggest: t.AutoSuggest, Manual: t.Manual}
}

// Load reads, normalizes, and validates a profile document from a file.
func Load(path string) (*Profile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open profile: %w", err)
	}
	defer file.Close()
	return Read(file)
}

// Read decodes a profile document from a reader.
func Read(r io.Reader) (*Profile, error) {
	var p Profile
	decoder := toml.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	p.normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// normalize fills defaults in place.
func (p *Profile) normalize() {
	if p.Meta.Name == "" {
		p.Meta.Name = p.Meta.ID
	}
	if p.Meta.MinSuggest == 0 {
		p.Meta.MinSuggest = p.Thresholds.Manual
	}
	if p.Meta.FactorTimeoutMS == 0 {
		p.Meta.FactorTimeoutMS = DefaultFactorTimeoutMS
	}
	if p.Meta.Workers == 0 {
		p.Meta.Workers = DefaultWorkers
	}
	for i := range p.Factors {
		if p.Factors[i].Name == "" {
			p.Factors[i].Name = p.Factors[i].Kind
		}
	}
}

// Validate checks everything Build cannot express profile-first: the slug,
// the threshold ordering, factor parameters, and the blocking recall bound.
// Weight composition is left to the scorer, which owns that invariant.
func (p *Profile) Validate() error {
	if _, err := id.ParseProfileID(p.Meta.ID); err != nil {
		return &match.ConfigurationError{Component: "profile", Reason: fmt.Sprintf("id %q: %v", p.Meta.ID, err)}
	}
	if p.Meta.MinSuggest < 0 || p.Meta.MinSuggest > 1 {
		return p.configErr("min_suggest %v outside [0,1]", p.Meta.MinSuggest)
	}
	if p.Meta.FactorTimeoutMS < 0 {
		return p.configErr("factor_timeout_ms must not be negative")
	}
	if p.Meta.Workers < 0 {
		return p.configErr("workers must not be negative")
	}
	if len(p.Factors) == 0 {
		return p.configErr("at least one factor is required")
	}
	if err := p.Thresholds.Set().Validate(); err != nil {
		return p.configErr("%v", err)
	}

	for _, spec := range p.Factors {
		if err := spec.Validate(); err != nil {
			return p.configErr("%v", err)
		}
		if !spec.Blocking {
			continue
		}
		if !spec.HasSupportBound() {
			return p.configErr("factor %q cannot block: its kind has no hard support bound", spec.Label())
		}
		// A candidate rejected on this factor scores 0 there and at most
		// 1 - weight overall. Blocking stays recall-safe only when that
		// ceiling is below the suggestion floor.
		if best := 1 - spec.Weight; best >= p.Meta.MinSuggest {
			return p.configErr(
				"factor %q cannot block: a rejected candidate could still reach confidence %.4f, at or above the suggestion floor %.4f",
				spec.Label(), best, p.Meta.MinSuggest)
		}
	}
	return nil
}

func (p *Profile) configErr(format string, args ...any) error {
	return &match.ConfigurationError{
		Component: "profile " + p.Meta.ID,
		Reason:    fmt.Sprintf(format, args...),
	}
}

// BlockingBound documents the recall guarantee behind one blocking factor.
type BlockingBound struct {
	Factor string  `json:"factor"`
	Weight float64 `json:"weight"`
	// BestWithout is the highest confidence a candidate rejected on this
	// factor could still have reached.
	BestWithout float64 `json:"best_without"`
	// Floor is the profile's suggestion floor the bound is held against.
	Floor float64 `json:"floor"`
}

// BlockingBounds lists the derived bounds for every blocking factor.
func (p *Profile) BlockingBounds() []BlockingBound {
	var bounds []BlockingBound
	for _, spec := range p.Factors {
		if !spec.Blocking {
			continue
		}
		bounds = append(bounds, BlockingBound{
			Factor:      spec.Label(),
			Weight:      spec.Weight,
			BestWithout: 1 - spec.Weight,
			Floor:       p.Meta.MinSuggest,
		})
	}
	return bounds
}

// Engine is a profile compiled into a runnable detector.
type Engine struct {
	Profile  *Profile
	Detector *match.Detector
}

// DefaultThresholds returns the profile's threshold set.
func (e *Engine) DefaultThresholds() policy.ThresholdSet {
	return e.Profile.Thresholds.Set()
}

// MinSuggest returns the profile's suggestion floor.
func (e *Engine) MinSuggest() float64 {
	return e.Profile.Meta.MinSuggest
}

type buildConfig struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// BuildOption configures optional engine dependencies.
type BuildOption func(*buildConfig)

// WithLogger attaches a logger to the scorer and detector.
func WithLogger(logger *slog.Logger) BuildOption {
	return func(c *buildConfig) { c.logger = logger }
}

// WithMetrics attaches detection metrics.
func WithMetrics(m *metrics.Metrics) BuildOption {
	return func(c *buildConfig) { c.metrics = m }
}

// Build compiles the profile into an Engine. The profile is re-validated so
// hand-constructed values get the same guarantees as loaded documents.
func (p *Profile) Build(opts ...BuildOption) (*Engine, error) {
	var cfg buildConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	p.normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	factorFns := make([]match.Factor, 0, len(p.Factors))
	var predicates []match.Predicate
	for _, spec := range p.Factors {
		built, err := factors.Build(spec)
		if err != nil {
			return nil, p.configErr("%v", err)
		}
		factorFns = append(factorFns, built.Factor)
		if spec.Blocking && built.Predicate != nil {
			predicates = append(predicates, *built.Predicate)
		}
	}

	scorer, err := match.NewScorer(factorFns,
		match.WithFactorTimeout(time.Duration(p.Meta.FactorTimeoutMS)*time.Millisecond),
		match.WithScorerLogger(cfg.logger),
	)
	if err != nil {
		return nil, err
	}

	detectorOpts := []match.DetectorOption{
		match.WithWorkers(p.Meta.Workers),
		match.WithLogger(cfg.logger),
		match.WithMetrics(cfg.metrics),
	}
	if len(predicates) > 0 {
		detectorOpts = append(detectorOpts, match.WithBlocker(match.NewBlocker(predicates...)))
	}

	detector, err := match.NewDetector(scorer, detectorOpts...)
	if err != nil {
		return nil, err
	}

	return &Engine{Profile: p, Detector: detector}, nil
}
