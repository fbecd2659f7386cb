package issuance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/coinage-app/coinage/internal/currency"
	"github.com/coinage-app/coinage/internal/ledger"
	"github.com/coinage-app/coinage/internal/notification"
)

var (
	// ErrNotAdmin indicates the caller does not administer the currency.
	ErrNotAdmin = errors.New("not currency admin")

	// ErrInvalidAmount occurs when the issuance amount is not positive.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Service issues new supply into wallets. Issuance is the only operation
// that increases a currency's total supply, so it is the main subject of
// supply-cap policy.
type Service struct {
	registry *currency.Registry
	store    ledger.Store
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService builds an issuance service. notifier may be nil.
func NewService(registry *currency.Registry, store ledger.Store, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{registry: registry, store: store, notifier: notifier, logger: logger}
}

// Result captures the outcome of an issuance.
type Result struct {
	WalletID string
	Amount   int64
	Balance  int64
}

// Issue deposits newly created supply into a wallet of the admin's currency.
func (s *Service) Issue(ctx context.Context, adminUserID, walletID string, amount int64) (Result, error) {
	if amount <= 0 {
		return Result{}, ErrInvalidAmount
	}

	wallet, err := s.store.Get(ctx, walletID)
	if err != nil {
		return Result{}, err
	}

	cur, err := s.registry.Get(ctx, wallet.CurrencyID)
	if err != nil {
		return Result{}, fmt.Errorf("load currency: %w", err)
	}
	if cur.AdminID != adminUserID {
		return Result{}, ErrNotAdmin
	}

	if err := s.registry.EnforceCapIncrease(ctx, cur, amount); err != nil {
		return Result{}, err
	}

	balance, err := s.store.Deposit(ctx, walletID, amount)
	if err != nil {
		return Result{}, fmt.Errorf("deposit issued supply: %w", err)
	}

	s.logger.Info("supply issued", "currency_id", cur.ID, "wallet_id", walletID, "amount", amount)

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindIssuance,
			Destination: wallet.UserID,
			Body:        fmt.Sprintf("%d %s issued to your wallet", amount, cur.Symbol),
		})
	}

	return Result{WalletID: walletID, Amount: amount, Balance: balance}, nil
}
