package auth

import (
	"context"
	"sync"
)

// AccountRepository stores local credentials.
type AccountRepository interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	Create(ctx context.Context, account *Account) error
}

// InMemoryAccountRepository is an in-memory AccountRepository.
type InMemoryAccountRepository struct {
	mu      sync.RWMutex
	byEmail map[string]*Account
	byID    map[string]*Account
}

// NewInMemoryAccountRepository creates an empty repository.
func NewInMemoryAccountRepository() *InMemoryAccountRepository {
	return &InMemoryAccountRepository{
		byEmail: make(map[string]*Account),
		byID:    make(map[string]*Account),
	}
}

// FindByEmail finds an account by email, case-insensitively.
func (r *InMemoryAccountRepository) FindByEmail(_ context.Context, email string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

// FindByID finds an account by id.
func (r *InMemoryAccountRepository) FindByID(_ context.Context, id string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

// Create stores a new account.
func (r *InMemoryAccountRepository) Create(_ context.Context, account *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := normalizeEmail(account.Email)
	if _, exists := r.byEmail[key]; exists {
		return ErrAccountExists
	}
	cp := *account
	r.byEmail[key] = &cp
	r.byID[cp.ID] = &cp
	return nil
}

var _ AccountRepository = (*InMemoryAccountRepository)(nil)
