// Package config holds the budget table for the ratelimit module.
package config

import (
	"time"

	"linkage/internal/ratelimit/models"
)

// Limit is a sliding window budget. For the detect class the budget is
// counted in candidate evaluations rather than requests, so a single call
// with a large pool consumes proportionally more.
type Limit struct {
	Budget int
	Window time.Duration
}

// Config maps each endpoint class to its budget and lists tenants that
// bypass budgeting entirely.
type Config struct {
	Detect Limit
	Read   Limit
	Write  Limit

	BypassTenants []string
}

// DefaultConfig returns budgets suitable for a single-node deployment.
func DefaultConfig() *Config {
	return &Config{
		Detect: Limit{Budget: 5000, Window: time.Minute},
		Read:   Limit{Budget: 300, Window: time.Minute},
		Write:  Limit{Budget: 60, Window: time.Minute},
	}
}

// LimitFor returns the budget for a class. The ok result is false for
// unknown classes so callers can default-deny instead of guessing.
func (c *Config) LimitFor(class models.Class) (Limit, bool) {
	switch class {
	case models.ClassDetect:
		return c.Detect, c.Detect.Budget > 0 && c.Detect.Window > 0
	case models.ClassRead:
		return c.Read, c.Read.Budget > 0 && c.Read.Window > 0
	case models.ClassWrite:
		return c.Write, c.Write.Budget > 0 && c.Write.Window > 0
	}
	return Limit{}, false
}

// IsBypassed reports whether a tenant is exempt from budgeting.
func (c *Config) IsBypassed(tenantID string) bool {
	if tenantID == "" {
		return false
	}
	for _, t := range c.BypassTenants {
		if t == tenantID {
			return true
		}
	}
	return false
}
