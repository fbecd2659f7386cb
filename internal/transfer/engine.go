package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/coinage-app/coinage/internal/currency"
	"github.com/coinage-app/coinage/internal/identity"
	"github.com/coinage-app/coinage/internal/keys"
	"github.com/coinage-app/coinage/internal/ledger"
	"github.com/coinage-app/coinage/internal/notification"
)

// Engine validates and executes transfers, producing signed, snapshot-stamped
// transaction records. A transfer moves through propose, validate, sign and
// commit; a rejection at any validation step leaves both wallets untouched
// and persists nothing.
type Engine struct {
	store    ledger.Store
	txs      Repository
	registry *currency.Registry
	users    identity.Repository
	keys     keys.Manager
	cache    *ResultCache
	notifier notification.Notifier
	locks    *pairLocks
	lockWait time.Duration
	logger   *slog.Logger
}

// NewEngine builds a transaction engine. cache and notifier may be nil.
func NewEngine(store ledger.Store, txs Repository, registry *currency.Registry, users identity.Repository,
	km keys.Manager, cache *ResultCache, notifier notification.Notifier, lockWait time.Duration, logger *slog.Logger) *Engine {
	return &Engine{
		store:    store,
		txs:      txs,
		registry: registry,
		users:    users,
		keys:     km,
		cache:    cache,
		notifier: notifier,
		locks:    newPairLocks(),
		lockWait: lockWait,
		logger:   logger,
	}
}

// TransferInput captures the data needed to move funds between wallets.
type TransferInput struct {
	SenderWalletID   string
	ReceiverWalletID string
	CurrencyID       string
	Amount           int64
	ClientTxID       string
}

// Transfer executes a wallet-to-wallet transfer.
//
// Validation rejects non-positive amounts, wallet/currency mismatches and
// insufficient funds before anything is persisted. Once validated, both
// wallets are locked in ascending ID order, pre-balances are snapshotted, the
// canonical message is signed with each wallet's private key and the record
// is persisted as pending. Only then are the balances mutated; a failure
// mid-commit rolls the mutation and the pending record back. On success the
// post-balances are snapshotted and the record becomes committed and
// immutable.
func (e *Engine) Transfer(ctx context.Context, input TransferInput) (Transaction, error) {
	if input.Amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	if input.SenderWalletID == input.ReceiverWalletID {
		return Transaction{}, ErrSelfTransfer
	}

	reserved := false
	if e.cache != nil && input.ClientTxID != "" {
		cached, found, err := e.cache.Lookup(ctx, input.ClientTxID)
		if err != nil {
			return Transaction{}, err
		}
		if found {
			return cached, ErrDuplicateTransfer
		}
		ok, err := e.cache.Reserve(ctx, input.ClientTxID)
		if err != nil {
			return Transaction{}, err
		}
		if !ok {
			return Transaction{}, ErrDuplicateTransfer
		}
		reserved = true
	}

	tx, err := e.execute(ctx, input)
	if err != nil {
		if reserved {
			e.cache.Release(ctx, input.ClientTxID)
		}
		return Transaction{}, err
	}

	if reserved {
		if err := e.cache.Store(ctx, input.ClientTxID, tx); err != nil {
			e.logger.Warn("cache transfer result", "client_tx_id", input.ClientTxID, "error", err)
		}
	}
	return tx, nil
}

func (e *Engine) execute(ctx context.Context, input TransferInput) (Transaction, error) {
	sender, err := e.store.Get(ctx, input.SenderWalletID)
	if err != nil {
		return Transaction{}, fmt.Errorf("load sender wallet: %w", err)
	}
	receiver, err := e.store.Get(ctx, input.ReceiverWalletID)
	if err != nil {
		return Transaction{}, fmt.Errorf("load receiver wallet: %w", err)
	}

	if sender.CurrencyID != input.CurrencyID || receiver.CurrencyID != input.CurrencyID {
		return Transaction{}, ErrCurrencyMismatch
	}
	if sender.Balance < input.Amount {
		return Transaction{}, ledger.ErrInsufficientFunds
	}

	cur, err := e.registry.Get(ctx, input.CurrencyID)
	if err != nil {
		return Transaction{}, fmt.Errorf("load currency: %w", err)
	}

	release, err := e.locks.acquirePair(ctx, sender.ID, receiver.ID, e.lockWait)
	if err != nil {
		return Transaction{}, err
	}
	defer release()

	// Re-read under the lock; balances may have moved since validation.
	sender, err = e.store.Get(ctx, sender.ID)
	if err != nil {
		return Transaction{}, fmt.Errorf("load sender wallet: %w", err)
	}
	receiver, err = e.store.Get(ctx, receiver.ID)
	if err != nil {
		return Transaction{}, fmt.Errorf("load receiver wallet: %w", err)
	}
	if sender.Balance < input.Amount {
		return Transaction{}, ledger.ErrInsufficientFunds
	}

	senderUser, err := e.users.Get(ctx, sender.UserID)
	if err != nil {
		return Transaction{}, fmt.Errorf("load sender user: %w", err)
	}
	receiverUser, err := e.users.Get(ctx, receiver.UserID)
	if err != nil {
		return Transaction{}, fmt.Errorf("load receiver user: %w", err)
	}

	message := canonicalMessage(senderUser.Username, receiverUser.Username, input.Amount)
	senderSig, err := e.keys.Sign(sender.PrivateKey, message)
	if err != nil {
		return Transaction{}, fmt.Errorf("sign as sender: %w", err)
	}
	receiverSig, err := e.keys.Sign(receiver.PrivateKey, message)
	if err != nil {
		return Transaction{}, fmt.Errorf("sign as receiver: %w", err)
	}

	tx := Transaction{
		ID:                uuid.New().String(),
		SenderID:          sender.ID,
		ReceiverID:        receiver.ID,
		CurrencyID:        cur.ID,
		Amount:            input.Amount,
		SenderSignature:   senderSig,
		ReceiverSignature: receiverSig,
		BeforeSender:      sender.Balance,
		BeforeReceiver:    receiver.Balance,
		Status:            StatusPending,
		CreatedAt:         time.Now().UTC(),
	}

	// Durable intermediate record: auditable but not yet applied.
	if err := e.txs.Create(ctx, tx); err != nil {
		return Transaction{}, fmt.Errorf("persist pending transaction: %w", err)
	}

	if err := e.registry.EnforceCap(ctx, cur); err != nil {
		e.discardPending(ctx, tx.ID)
		return Transaction{}, err
	}

	afterSender, err := e.store.Withdraw(ctx, sender.ID, input.Amount)
	if err != nil {
		e.discardPending(ctx, tx.ID)
		return Transaction{}, fmt.Errorf("debit sender: %w", err)
	}

	afterReceiver, err := e.store.Deposit(ctx, receiver.ID, input.Amount)
	if err != nil {
		// Restore the debit so neither side observes a half-applied transfer.
		if _, depErr := e.store.Deposit(ctx, sender.ID, input.Amount); depErr != nil {
			e.logger.Error("rollback sender debit", "transaction_id", tx.ID, "error", depErr)
		}
		e.discardPending(ctx, tx.ID)
		return Transaction{}, fmt.Errorf("credit receiver: %w", err)
	}

	tx.AfterSender = afterSender
	tx.AfterReceiver = afterReceiver
	tx.Status = StatusCommitted
	if err := e.txs.MarkCommitted(ctx, tx); err != nil {
		// Unwind both mutations so the pending record never outlives an
		// applied transfer, and vice versa.
		if _, wErr := e.store.Withdraw(ctx, receiver.ID, input.Amount); wErr != nil {
			e.logger.Error("rollback receiver credit", "transaction_id", tx.ID, "error", wErr)
		}
		if _, dErr := e.store.Deposit(ctx, sender.ID, input.Amount); dErr != nil {
			e.logger.Error("rollback sender debit", "transaction_id", tx.ID, "error", dErr)
		}
		e.discardPending(ctx, tx.ID)
		return Transaction{}, fmt.Errorf("commit transaction record: %w", err)
	}

	e.logger.Info("transfer committed",
		"transaction_id", tx.ID, "currency_id", cur.ID, "amount", tx.Amount,
		"sender_wallet", sender.ID, "receiver_wallet", receiver.ID)

	if e.notifier != nil {
		_ = e.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransfer,
			Destination: receiver.UserID,
			Body:        message,
		})
	}

	return tx, nil
}

func (e *Engine) discardPending(ctx context.Context, txID string) {
	if err := e.txs.Delete(ctx, txID); err != nil {
		e.logger.Error("discard pending transaction", "transaction_id", txID, "error", err)
	}
}

// Get fetches a transaction record.
func (e *Engine) Get(ctx context.Context, id string) (Transaction, error) {
	return e.txs.Get(ctx, id)
}

// List returns transaction records matching the filter.
func (e *Engine) List(ctx context.Context, filter Filter) ([]Transaction, error) {
	return e.txs.List(ctx, filter)
}

// ValidateSignature recomputes the canonical message and verifies the sender
// signature against the sender wallet's public key. It fails closed on any
// missing wallet or user.
func (e *Engine) ValidateSignature(ctx context.Context, tx Transaction) bool {
	sender, err := e.store.Get(ctx, tx.SenderID)
	if err != nil {
		return false
	}
	receiver, err := e.store.Get(ctx, tx.ReceiverID)
	if err != nil {
		return false
	}
	senderUser, err := e.users.Get(ctx, sender.UserID)
	if err != nil {
		return false
	}
	receiverUser, err := e.users.Get(ctx, receiver.UserID)
	if err != nil {
		return false
	}

	message := canonicalMessage(senderUser.Username, receiverUser.Username, tx.Amount)
	return e.keys.Verify(sender.PublicKey, message, tx.SenderSignature)
}

// ValidateAmount checks the snapshot arithmetic invariants of a record.
func (e *Engine) ValidateAmount(tx Transaction) bool {
	return tx.AfterSender == tx.BeforeSender-tx.Amount &&
		tx.AfterReceiver == tx.BeforeReceiver+tx.Amount
}

// AuditWallet reconciles a wallet's balance against its committed transaction
// history: balance must equal the sum received minus the sum sent, plus any
// supply seeded outside transfer history (initial balance or issuance).
func (e *Engine) AuditWallet(ctx context.Context, walletID string) (bool, error) {
	wallet, err := e.store.Get(ctx, walletID)
	if err != nil {
		return false, err
	}

	txs, err := e.txs.List(ctx, Filter{WalletID: walletID})
	if err != nil {
		return false, err
	}

	var net int64
	for _, tx := range txs {
		if tx.Status != StatusCommitted {
			continue
		}
		if tx.ReceiverID == walletID {
			net += tx.Amount
		}
		if tx.SenderID == walletID {
			net -= tx.Amount
		}
	}

	// balance - net is the supply seeded from outside transfer history: the
	// wallet's initial balance plus any issuance. It can never be negative;
	// for a wallet that was never seeded it is exactly zero.
	return wallet.Balance-net >= 0, nil
}

func canonicalMessage(sender, receiver string, amount int64) string {
	return fmt.Sprintf("%s sent %d to %s", sender, amount, receiver)
}
