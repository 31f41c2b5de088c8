package config

import (
	"sort"
	"sync"
)

// Registry caches loaded presets by name so repeated runs with the same
// tuning skip the file parse.
type Registry struct {
	mu         sync.RWMutex
	presetsDir string
	presets    map[string]Preset
}

// NewRegistry creates a registry backed by the given presets directory.
func NewRegistry(presetsDir string) *Registry {
	return &Registry{
		presetsDir: presetsDir,
		presets:    make(map[string]Preset),
	}
}

// Get returns the named preset, loading it from disk on first use.
func (r *Registry) Get(name string) (Preset, error) {
	r.mu.RLock()
	p, ok := r.presets[name]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}

	loaded, err := LoadPreset(PresetPath(r.presetsDir, name))
	if err != nil {
		return Preset{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another goroutine may have loaded it while we parsed; keep the
	// first copy so callers see one consistent value.
	if p, ok := r.presets[name]; ok {
		return p, nil
	}
	r.presets[name] = loaded
	return loaded, nil
}

// Put injects a preset under its name, replacing any cached copy.
// Programmatic tunings and tests use this to bypass the file system.
func (r *Registry) Put(p Preset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presets[p.Name] = p
}

// Names returns the cached preset names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.presets))
	for name := range r.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset drops every cached preset.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presets = make(map[string]Preset)
}
