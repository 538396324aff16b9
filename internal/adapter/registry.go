package adapter

import (
	"fmt"
	"sort"
	"sync"
)

// Factory creates a new, unconnected engine instance.
type Factory func() Engine

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes an engine factory available under the given type name.
// Engines self-register from their init functions.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get returns the factory registered under name.
func Get(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	factory, ok := registry[name]
	return factory, ok
}

// IsRegistered reports whether an engine type is available.
func IsRegistered(name string) bool {
	_, ok := Get(name)
	return ok
}

// ListEngines returns the registered engine type names, sorted.
func ListEngines() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewEngine creates an unconnected engine for the config's type.
func NewEngine(cfg Config) (Engine, error) {
	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("unknown engine type %q (available: %v)", cfg.Type, ListEngines())
	}
	return factory(), nil
}
