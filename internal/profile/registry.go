package profile

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"linkage/pkg/platform/sentinel"
)

//go:embed builtins/*.toml
var builtinFS embed.FS

// Builtins decodes the embedded profile documents, sorted by id.
func Builtins() ([]*Profile, error) {
	entries, err := builtinFS.ReadDir("builtins")
	if err != nil {
		return nil, fmt.Errorf("read builtins: %w", err)
	}
	profiles := make([]*Profile, 0, len(entries))
	for _, entry := range entries {
		raw, err := builtinFS.ReadFile("builtins/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read builtin %s: %w", entry.Name(), err)
		}
		p, err := Read(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("builtin %s: %w", entry.Name(), err)
		}
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Meta.ID < profiles[j].Meta.ID })
	return profiles, nil
}

// Registry holds compiled engines keyed by profile id. Registration happens
// at startup; lookups are concurrent.
type Registry struct {
	buildOpts []BuildOption

	mu      sync.RWMutex
	engines map[string]*Engine
}

// NewRegistry builds an empty registry. The build options are applied to
// every engine registered through it.
func NewRegistry(opts ...BuildOption) *Registry {
	return &Registry{
		buildOpts: opts,
		engines:   make(map[string]*Engine),
	}
}

// Register compiles and stores a profile. Profile ids are unique; a second
// registration under the same id fails with sentinel.ErrConflict.
func (r *Registry) Register(p *Profile) error {
	engine, err := p.Build(r.buildOpts...)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.engines[p.Meta.ID]; exists {
		return fmt.Errorf("profile %q: %w", p.Meta.ID, sentinel.ErrConflict)
	}
	r.engines[p.Meta.ID] = engine
	return nil
}

// LoadBuiltins registers every embedded profile.
func (r *Registry) LoadBuiltins() error {
	profiles, err := Builtins()
	if err != nil {
		return err
	}
	for _, p := range profiles {
		if err := r.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// LoadDir registers every *.toml document in a directory. Operator profiles
// loaded this way may not shadow already registered ids.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read profile dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		p, err := Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("profile %s: %w", entry.Name(), err)
		}
		if err := r.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the engine for a profile id.
func (r *Registry) Get(profileID string) (*Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	engine, ok := r.engines[profileID]
	return engine, ok
}

// IDs returns the registered profile ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.engines))
	for pid := range r.engines {
		ids = append(ids, pid)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered profiles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.engines)
}
