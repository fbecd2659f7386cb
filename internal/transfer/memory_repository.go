package transfer

import (
	"context"
	"sort"
	"sync"
)

type memoryRepository struct {
	mu  sync.RWMutex
	txs map[string]Transaction
}

// NewMemoryRepository builds an in-memory transaction store for testing.
func NewMemoryRepository() Repository {
	return &memoryRepository{txs: make(map[string]Transaction)}
}

func (r *memoryRepository) Create(_ context.Context, tx Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txs[tx.ID] = tx
	return nil
}

func (r *memoryRepository) MarkCommitted(_ context.Context, tx Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.txs[tx.ID]
	if !ok || existing.Status != StatusPending {
		return ErrTransactionNotFound
	}
	existing.AfterSender = tx.AfterSender
	existing.AfterReceiver = tx.AfterReceiver
	existing.Status = StatusCommitted
	r.txs[tx.ID] = existing
	return nil
}

func (r *memoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.txs[id]
	if !ok || existing.Status != StatusPending {
		return ErrTransactionNotFound
	}
	delete(r.txs, id)
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tx, ok := r.txs[id]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return tx, nil
}

func (r *memoryRepository) List(_ context.Context, filter Filter) ([]Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Transaction
	for _, tx := range r.txs {
		if filter.WalletID != "" && tx.SenderID != filter.WalletID && tx.ReceiverID != filter.WalletID {
			continue
		}
		if filter.CurrencyID != "" && tx.CurrencyID != filter.CurrencyID {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
