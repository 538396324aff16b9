package engine

import (
	"fmt"
	"sort"
	"sync"
)

// ScalarFunc is a user-defined scalar function callable from pipeline
// execution. Names are fully qualified, e.g. "analytics.normalize".
type ScalarFunc func(args ...any) (any, error)

// UDFRegistry holds user-defined functions by fully-qualified name.
// Rewriting of function call sites inside SQL happens outside the
// engine; the registry only resolves and invokes.
type UDFRegistry struct {
	mu    sync.RWMutex
	funcs map[string]ScalarFunc
}

func NewUDFRegistry() *UDFRegistry {
	return &UDFRegistry{funcs: make(map[string]ScalarFunc)}
}

// Register binds fn to name, replacing any previous binding.
func (r *UDFRegistry) Register(name string, fn ScalarFunc) error {
	if name == "" {
		return fmt.Errorf("udf name must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("udf %q must not be nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
	return nil
}

// Call invokes the function registered under name.
func (r *UDFRegistry) Call(name string, args ...any) (any, error) {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown udf %q", name)
	}
	return fn(args...)
}

// Names returns the registered function names in sorted order.
func (r *UDFRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
