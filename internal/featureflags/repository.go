package featureflags

import (
	"context"
	"sync"
)

// Repository is where switches live between restarts.
type Repository interface {
	// Load returns every stored switch in no particular order.
	Load(ctx context.Context) ([]Flag, error)

	// Save writes all flags or none.
	Save(ctx context.Context, flags ...Flag) error
}

// InMemoryRepository keeps switches for the life of the process.
type InMemoryRepository struct {
	mu    sync.RWMutex
	flags map[string]Flag
}

// NewInMemoryRepository creates an empty repository; every switch reads as off.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{flags: make(map[string]Flag)}
}

func (r *InMemoryRepository) Load(_ context.Context) ([]Flag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Flag, 0, len(r.flags))
	for _, f := range r.flags {
		out = append(out, f)
	}
	return out, nil
}

func (r *InMemoryRepository) Save(_ context.Context, flags ...Flag) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range flags {
		r.flags[f.Key] = f
	}
	return nil
}

var _ Repository = (*InMemoryRepository)(nil)
