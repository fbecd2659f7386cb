package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrWalletNotFound indicates the requested wallet does not exist.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrDuplicateWallet occurs when a (user, currency) pair already has a wallet.
	ErrDuplicateWallet = errors.New("wallet already exists for user and currency")

	// ErrInsufficientFunds occurs when a withdrawal exceeds the wallet balance.
	// Withdraw re-checks this itself so a stale caller-side check can never
	// drive a balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount occurs when a deposit or withdrawal amount is not positive.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrNonZeroBalance occurs when deleting a wallet that still holds funds.
	ErrNonZeroBalance = errors.New("wallet balance must be zero")
)

// Wallet is a user's balance holder for one currency. Exactly one signing
// keypair is generated at creation and never regenerated.
type Wallet struct {
	ID         string
	UserID     string
	CurrencyID string
	Balance    int64
	PublicKey  string
	PrivateKey string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Store defines the contract implemented by wallet storage backends.
type Store interface {
	// CreateWallet provisions a wallet with a fresh keypair. It fails with
	// ErrDuplicateWallet when the (user, currency) pair already has one.
	CreateWallet(ctx context.Context, userID, currencyID string, initialBalance int64) (Wallet, error)
	Get(ctx context.Context, id string) (Wallet, error)
	FindByUserAndCurrency(ctx context.Context, userID, currencyID string) (Wallet, error)
	ListByCurrency(ctx context.Context, currencyID string) ([]Wallet, error)
	// Deposit atomically credits the wallet and returns the new balance.
	Deposit(ctx context.Context, walletID string, amount int64) (int64, error)
	// Withdraw atomically debits the wallet and returns the new balance. It
	// fails with ErrInsufficientFunds when amount exceeds the balance.
	Withdraw(ctx context.Context, walletID string, amount int64) (int64, error)
	// DeleteWallet removes a wallet. It fails with ErrNonZeroBalance unless
	// the balance is exactly zero.
	DeleteWallet(ctx context.Context, walletID string) error
	// SumBalances returns the total supply held across a currency's wallets.
	SumBalances(ctx context.Context, currencyID string) (int64, error)
}
