package graph

import (
	"fmt"
	"sync"
)

// RelType is a canonical relationship-type token. A registry holds at
// most one token per name for the process lifetime, so tokens compare
// with ==.
type RelType struct {
	name string
}

// Name returns the relationship-type name the token was interned under.
func (t *RelType) Name() string {
	return t.name
}

func (t *RelType) String() string {
	return t.name
}

// TypeRegistry interns relationship-type names into canonical tokens.
// Tokens are created lazily on first use and never removed.
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[string]*RelType
}

// NewTypeRegistry creates an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{types: make(map[string]*RelType)}
}

// Intern returns the canonical token for name, creating it on first use.
// Interning the same name again returns the identical pointer, including
// under concurrent calls. Empty names fail with ErrInvalidArgument.
func (r *TypeRegistry) Intern(name string) (*RelType, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty relationship type", ErrInvalidArgument)
	}

	r.mu.RLock()
	t, ok := r.types[name]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.types[name]; ok {
		return t, nil
	}
	t = &RelType{name: name}
	r.types[name] = t
	return t, nil
}

// Len reports how many distinct types have been interned.
func (r *TypeRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}

var defaultRegistry = NewTypeRegistry()

// InternType interns name in the process-wide default registry.
func InternType(name string) (*RelType, error) {
	return defaultRegistry.Intern(name)
}
