package modules

import (
	"context"
	"sync"

	"eventspool/internal/events"
)

// Module produces events on each collection cycle.
type Module interface {
	Name() string
	Run(ctx context.Context) ([]events.Event, error)
}

type Registry struct {
	mu   sync.RWMutex
	mods []Module
}

func NewRegistry() *Registry { return &Registry{} }

func (r *Registry) Register(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mods = append(r.mods, m)
}

func (r *Registry) List() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Module, len(r.mods))
	copy(out, r.mods)
	return out
}
