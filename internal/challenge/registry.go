package challenge

import (
	"fmt"
	"slices"
	"sync"

	"calixo/internal/model"
)

// Registry maps challenge types to their rules.
type Registry struct {
	kinds map[model.ChallengeType]Kind
	mu    sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		kinds: make(map[model.ChallengeType]Kind),
	}
}

// NewDefaultRegistry returns a registry with the daily, focus and social kinds.
// maxFocusMinutes bounds custom focus durations.
func NewDefaultRegistry(maxFocusMinutes int) *Registry {
	r := NewRegistry()
	for _, k := range []Kind{dailyKind{}, FocusKind{MaxMinutes: maxFocusMinutes}, socialKind{}} {
		// Built-in kinds always have a valid type.
		_ = r.Register(k)
	}
	return r
}

// Register adds a kind, replacing any kind registered for the same type.
func (r *Registry) Register(k Kind) error {
	if k == nil {
		return fmt.Errorf("cannot register nil kind")
	}
	if !k.Type().Valid() {
		return fmt.Errorf("unknown challenge type %q", k.Type())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[k.Type()] = k
	return nil
}

// Get retrieves the kind for a type.
func (r *Registry) Get(t model.ChallengeType) (Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.kinds[t]
	return k, ok
}

// Types returns the registered types in sorted order.
func (r *Registry) Types() []model.ChallengeType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]model.ChallengeType, 0, len(r.kinds))
	for t := range r.kinds {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
