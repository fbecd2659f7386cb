package transfer

import (
	"errors"
	"time"
)

// Transaction statuses. A record is persisted as pending once snapshots and
// signatures are taken, and marked committed only after both balance
// mutations succeed.
const (
	StatusPending   = "pending"
	StatusCommitted = "committed"
)

var (
	// ErrCurrencyMismatch occurs when the wallets and the requested currency
	// do not all agree.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrInvalidAmount occurs when the transfer amount is not positive.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrSelfTransfer occurs when sender and receiver are the same wallet.
	ErrSelfTransfer = errors.New("sender and receiver must differ")

	// ErrLockTimeout indicates the wallet pair could not be locked within the
	// configured wait. The operation is safe to retry.
	ErrLockTimeout = errors.New("timed out waiting for wallet locks")

	// ErrDuplicateTransfer indicates the client transaction identifier was
	// already used; the original outcome is returned alongside.
	ErrDuplicateTransfer = errors.New("duplicate transfer")

	// ErrTransactionNotFound indicates the requested transaction does not exist.
	ErrTransactionNotFound = errors.New("transaction not found")
)

// Transaction is a signed, immutable record of a committed transfer, stamped
// with balance snapshots taken before and after the balance mutation.
type Transaction struct {
	ID                string
	SenderID          string
	ReceiverID        string
	CurrencyID        string
	Amount            int64
	SenderSignature   string
	ReceiverSignature string
	BeforeSender      int64
	BeforeReceiver    int64
	AfterSender       int64
	AfterReceiver     int64
	Status            string
	CreatedAt         time.Time
}

// Filter narrows transaction list queries. Zero-valued fields match everything.
type Filter struct {
	WalletID   string
	CurrencyID string
}
