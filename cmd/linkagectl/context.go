package main

import (
	"fmt"
	"log/slog"
	"os"

	"linkage/internal/profile"
)

// commandContext shares the lazily built profile registry between commands.
// Flag values are pointers because cobra binds them after construction.
type commandContext struct {
	profilesDir *string
	verbose     *bool

	registry *profile.Registry
}

func newCommandContext(profilesDir *string, verbose *bool) *commandContext {
	return &commandContext{
		profilesDir: profilesDir,
		verbose:     verbose,
	}
}

// logger builds the engine logger. Quiet by default so tables stay clean;
// --verbose surfaces factor timeouts and drop reasons on stderr.
func (c *commandContext) logger() *slog.Logger {
	level := slog.LevelWarn
	if *c.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// ensureRegistry loads the builtins plus the operator directory once.
func (c *commandContext) ensureRegistry() (*profile.Registry, error) {
	if c.registry != nil {
		return c.registry, nil
	}

	registry := profile.NewRegistry(profile.WithLogger(c.logger()))
	if err := registry.LoadBuiltins(); err != nil {
		return nil, fmt.Errorf("load builtin profiles: %w", err)
	}
	if dir := *c.profilesDir; dir != "" {
		if err := registry.LoadDir(dir); err != nil {
			return nil, err
		}
	}

	c.registry = registry
	return registry, nil
}

// engineFor resolves one profile id.
func (c *commandContext) engineFor(profileID string) (*profile.Engine, error) {
	registry, err := c.ensureRegistry()
	if err != nil {
		return nil, err
	}
	engine, ok := registry.Get(profileID)
	if !ok {
		return nil, fmt.Errorf("unknown profile %q (run 'linkagectl profile list')", profileID)
	}
	return engine, nil
}
