package grid

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Definition describes a grid served by the web backend.
type Definition struct {
	Key         string
	Label       string
	Description string
	Source      DataSource
	Schema      SchemaProvider
	RowID       RowIDFunc
}

// Registry holds grid definitions by key.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds a definition.
// Panics if a grid with the same key is already registered.
func (r *Registry) Register(def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Key]; exists {
		panic(fmt.Sprintf("grid already registered: %s", def.Key))
	}
	if def.RowID == nil {
		def.RowID = DefaultRowID
	}
	if def.Label == "" {
		def.Label = def.Key
	}
	r.defs[def.Key] = def
}

// Lookup returns a definition by key. Unknown keys return ErrUnknownGrid.
func (r *Registry) Lookup(key string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[key]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownGrid, key)
	}
	return def, nil
}

// All returns every definition sorted by key.
func (r *Registry) All() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Definition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Keys returns every registered key, sorted.
func (r *Registry) Keys() []string {
	defs := r.All()
	keys := make([]string, len(defs))
	for i, d := range defs {
		keys[i] = d.Key
	}
	return keys
}

// Clear removes every definition.
// Primarily useful for testing.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs = make(map[string]Definition)
}

// Open builds a Grid for the definition.
func (d Definition) Open(ctx context.Context, cfg Config) (*Grid, error) {
	cfg.Source = d.Source
	cfg.Schema = d.Schema
	if cfg.RowID == nil {
		cfg.RowID = d.RowID
	}
	return New(ctx, cfg)
}

var defaultRegistry = NewRegistry()

// Register adds a definition to the process-wide registry.
func Register(def Definition) { defaultRegistry.Register(def) }

// Lookup finds a definition in the process-wide registry.
func Lookup(key string) (Definition, error) { return defaultRegistry.Lookup(key) }

// Keys lists the process-wide registry's keys.
func Keys() []string { return defaultRegistry.Keys() }

// Default returns the process-wide registry.
func Default() *Registry { return defaultRegistry }
