package currency

import (
	"context"
	"sync"
	"time"
)

type memoryRepository struct {
	mu         sync.RWMutex
	currencies map[string]Currency
}

// NewMemoryRepository builds an in-memory currency store for testing.
func NewMemoryRepository() Repository {
	return &memoryRepository{currencies: make(map[string]Currency)}
}

func (r *memoryRepository) Create(_ context.Context, c Currency) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currencies[c.ID] = c
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Currency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.currencies[id]
	if !ok {
		return Currency{}, ErrNotFound
	}
	return c, nil
}

func (r *memoryRepository) FindByInviteCode(_ context.Context, code string) (Currency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.currencies {
		if c.InviteCode == code {
			return c, nil
		}
	}
	return Currency{}, ErrNotFound
}

func (r *memoryRepository) UpdateInviteCode(_ context.Context, id, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.currencies[id]
	if !ok {
		return ErrNotFound
	}
	c.InviteCode = code
	c.UpdatedAt = time.Now().UTC()
	r.currencies[id] = c
	return nil
}

func (r *memoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.currencies[id]; !ok {
		return ErrNotFound
	}
	delete(r.currencies, id)
	return nil
}

func (r *memoryRepository) List(_ context.Context) ([]Currency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Currency, 0, len(r.currencies))
	for _, c := range r.currencies {
		out = append(out, c)
	}
	return out, nil
}
