package processor

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/iho/txledger/internal/domain"
)

// Registry maps processor keys to implementations and back.
type Registry struct {
	mu     sync.RWMutex
	byKey  map[string]Processor
	byType map[reflect.Type]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byKey:  make(map[string]Processor),
		byType: make(map[reflect.Type]string),
	}
}

// DefaultRegistry returns a registry with the built-in processors.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for key, p := range Builtins() {
		// Built-in keys are unique.
		_ = r.Register(key, p)
	}

	return r
}

// Register adds p under key.
func (r *Registry) Register(key string, p Processor) error {
	if key == "" || p == nil {
		return fmt.Errorf("register processor: key and implementation required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byKey[key]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateProcessor, key)
	}

	r.byKey[key] = p
	typ := reflect.TypeOf(p)
	if _, exists := r.byType[typ]; !exists {
		r.byType[typ] = key
	}

	return nil
}

// Resolve returns the processor registered under key.
func (r *Registry) Resolve(key string) (Processor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byKey[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProcessor, key)
	}

	return p, nil
}

// KeyOf returns the first key p's type was registered under.
func (r *Registry) KeyOf(p Processor) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key, ok := r.byType[reflect.TypeOf(p)]
	return key, ok
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.byKey))
	for k := range r.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}
