package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/coinage-app/coinage/internal/currency"
	"github.com/coinage-app/coinage/internal/ledger"
)

// ErrNotOwner indicates the caller does not own the wallet.
var ErrNotOwner = errors.New("not owner of wallet")

// Service manages joining and leaving currencies.
type Service struct {
	registry *currency.Registry
	store    ledger.Store
	logger   *slog.Logger
}

// NewService builds a membership service.
func NewService(registry *currency.Registry, store ledger.Store, logger *slog.Logger) *Service {
	return &Service{registry: registry, store: store, logger: logger}
}

// Join resolves a currency by invite code and provisions a zero-balance
// wallet for the user. Joining never grants an initial balance.
func (s *Service) Join(ctx context.Context, userID, inviteCode string) (ledger.Wallet, error) {
	cur, err := s.registry.ResolveByInvite(ctx, inviteCode)
	if err != nil {
		return ledger.Wallet{}, err
	}

	wallet, err := s.store.CreateWallet(ctx, userID, cur.ID, 0)
	if err != nil {
		return ledger.Wallet{}, err
	}

	s.logger.Info("user joined currency", "user_id", userID, "currency_id", cur.ID, "wallet_id", wallet.ID)
	return wallet, nil
}

// CreateWallet provisions a wallet against a currency directly, granting the
// currency's initial balance. The grant is subject to supply-cap policy,
// though a capped currency always carries a zero initial balance.
func (s *Service) CreateWallet(ctx context.Context, userID, currencyID string) (ledger.Wallet, error) {
	cur, err := s.registry.Get(ctx, currencyID)
	if err != nil {
		return ledger.Wallet{}, err
	}

	if cur.InitialBalance > 0 {
		if err := s.registry.EnforceCapIncrease(ctx, cur, cur.InitialBalance); err != nil {
			return ledger.Wallet{}, err
		}
	}

	wallet, err := s.store.CreateWallet(ctx, userID, cur.ID, cur.InitialBalance)
	if err != nil {
		return ledger.Wallet{}, err
	}

	s.logger.Info("wallet created", "user_id", userID, "currency_id", cur.ID,
		"wallet_id", wallet.ID, "initial_balance", wallet.Balance)
	return wallet, nil
}

// Leave deletes the user's wallet. The wallet must exist, belong to the user
// and hold a zero balance.
func (s *Service) Leave(ctx context.Context, userID, walletID string) error {
	wallet, err := s.store.Get(ctx, walletID)
	if err != nil {
		return err
	}
	if wallet.UserID != userID {
		return ErrNotOwner
	}

	if err := s.store.DeleteWallet(ctx, walletID); err != nil {
		return fmt.Errorf("delete wallet: %w", err)
	}

	s.logger.Info("user left currency", "user_id", userID, "currency_id", wallet.CurrencyID, "wallet_id", walletID)
	return nil
}
