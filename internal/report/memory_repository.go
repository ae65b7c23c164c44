package report

import (
	"context"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
type InMemoryRepository struct {
	mu      sync.RWMutex
	reports []*Report
	byID    map[string]int
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{byID: make(map[string]int)}
}

// Append stores a copy of the report.
func (r *InMemoryRepository) Append(_ context.Context, report *Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID[report.ID] = len(r.reports)
	r.reports = append(r.reports, cloneReport(report))
	return nil
}

// Update mutates a copy and swaps it in only if mutate succeeds.
func (r *InMemoryRepository) Update(_ context.Context, id string, mutate func(*Report) error) (*Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.byID[id]
	if !ok {
		return nil, ErrReportNotFound
	}

	working := cloneReport(r.reports[idx])
	if err := mutate(working); err != nil {
		return nil, err
	}
	r.reports[idx] = working
	return cloneReport(working), nil
}

// Get returns a copy of the report.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.byID[id]
	if !ok {
		return nil, ErrReportNotFound
	}
	return cloneReport(r.reports[idx]), nil
}

// List returns copies of every report.
func (r *InMemoryRepository) List(_ context.Context) ([]*Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Report, 0, len(r.reports))
	for _, report := range r.reports {
		out = append(out, cloneReport(report))
	}
	return out, nil
}

var _ Repository = (*InMemoryRepository)(nil)
