package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coinage-app/coinage/internal/keys"
)

type memoryStore struct {
	mu      sync.RWMutex
	wallets map[string]Wallet
	keys    keys.Manager
}

// NewMemoryStore creates a concurrency-safe in-memory wallet store useful for unit tests.
func NewMemoryStore(km keys.Manager) Store {
	return &memoryStore{wallets: make(map[string]Wallet), keys: km}
}

func (s *memoryStore) CreateWallet(_ context.Context, userID, currencyID string, initialBalance int64) (Wallet, error) {
	if initialBalance < 0 {
		return Wallet{}, ErrInvalidAmount
	}

	pub, priv, err := s.keys.Generate()
	if err != nil {
		return Wallet{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range s.wallets {
		if w.UserID == userID && w.CurrencyID == currencyID {
			return Wallet{}, ErrDuplicateWallet
		}
	}

	now := time.Now().UTC()
	wallet := Wallet{
		ID:         uuid.New().String(),
		UserID:     userID,
		CurrencyID: currencyID,
		Balance:    initialBalance,
		PublicKey:  pub,
		PrivateKey: priv,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.wallets[wallet.ID] = wallet
	return wallet, nil
}

func (s *memoryStore) Get(_ context.Context, id string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wallet, ok := s.wallets[id]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return wallet, nil
}

func (s *memoryStore) FindByUserAndCurrency(_ context.Context, userID, currencyID string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.wallets {
		if w.UserID == userID && w.CurrencyID == currencyID {
			return w, nil
		}
	}
	return Wallet{}, ErrWalletNotFound
}

func (s *memoryStore) ListByCurrency(_ context.Context, currencyID string) ([]Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Wallet
	for _, w := range s.wallets {
		if w.CurrencyID == currencyID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *memoryStore) Deposit(_ context.Context, walletID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wallet, ok := s.wallets[walletID]
	if !ok {
		return 0, ErrWalletNotFound
	}

	wallet.Balance += amount
	wallet.UpdatedAt = time.Now().UTC()
	s.wallets[walletID] = wallet
	return wallet.Balance, nil
}

func (s *memoryStore) Withdraw(_ context.Context, walletID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wallet, ok := s.wallets[walletID]
	if !ok {
		return 0, ErrWalletNotFound
	}
	if wallet.Balance < amount {
		return 0, ErrInsufficientFunds
	}

	wallet.Balance -= amount
	wallet.UpdatedAt = time.Now().UTC()
	s.wallets[walletID] = wallet
	return wallet.Balance, nil
}

func (s *memoryStore) DeleteWallet(_ context.Context, walletID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wallet, ok := s.wallets[walletID]
	if !ok {
		return ErrWalletNotFound
	}
	if wallet.Balance != 0 {
		return ErrNonZeroBalance
	}

	delete(s.wallets, walletID)
	return nil
}

func (s *memoryStore) SumBalances(_ context.Context, currencyID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, w := range s.wallets {
		if w.CurrencyID == currencyID {
			total += w.Balance
		}
	}
	return total, nil
}
