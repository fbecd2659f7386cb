package transfer

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/coinage-app/coinage/internal/config"
	"github.com/coinage-app/coinage/internal/currency"
	"github.com/coinage-app/coinage/internal/identity"
	"github.com/coinage-app/coinage/internal/keys"
	"github.com/coinage-app/coinage/internal/ledger"
	"github.com/coinage-app/coinage/internal/logging"
)

type testEnv struct {
	engine   *Engine
	store    ledger.Store
	users    identity.Repository
	registry *currency.Registry
	keys     keys.Manager
	currency currency.Currency
	sender   ledger.Wallet
	receiver ledger.Wallet
}

func newTestEnv(t *testing.T, cache *ResultCache) *testEnv {
	t.Helper()
	ctx := context.Background()

	km := keys.NewRSA()
	store := ledger.NewMemoryStore(km)
	users := identity.NewMemoryRepository()
	signer := currency.NewSigner([]byte("test-invite-secret"))
	registry := currency.NewRegistry(currency.NewMemoryRepository(), store, signer, config.CapPolicyEnforce, logging.Discard())

	alice := identity.User{ID: uuid.NewString(), Username: "alice", CreatedAt: time.Now().UTC()}
	bob := identity.User{ID: uuid.NewString(), Username: "bob", CreatedAt: time.Now().UTC()}
	for _, u := range []identity.User{alice, bob} {
		if err := users.Create(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}

	cur, err := registry.Create(ctx, currency.CreateInput{Name: "Bitcoin", Symbol: "BTC", AdminID: alice.ID})
	if err != nil {
		t.Fatalf("create currency: %v", err)
	}

	sender, err := store.FindByUserAndCurrency(ctx, alice.ID, cur.ID)
	if err != nil {
		t.Fatalf("find sender wallet: %v", err)
	}
	ledger.SeedBalance(store, sender.ID, 1_000)
	sender.Balance = 1_000

	receiver, err := store.CreateWallet(ctx, bob.ID, cur.ID, 1_000)
	if err != nil {
		t.Fatalf("create receiver wallet: %v", err)
	}

	engine := NewEngine(store, NewMemoryRepository(), registry, users, km, cache, nil, time.Second, logging.Discard())
	return &testEnv{engine: engine, store: store, users: users, registry: registry, keys: km, currency: cur, sender: sender, receiver: receiver}
}

func TestTransferCommitsWithSnapshotsAndSignatures(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	tx, err := env.engine.Transfer(ctx, TransferInput{
		SenderWalletID:   env.sender.ID,
		ReceiverWalletID: env.receiver.ID,
		CurrencyID:       env.currency.ID,
		Amount:           100,
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	if tx.Status != StatusCommitted {
		t.Fatalf("expected committed status, got %q", tx.Status)
	}
	if tx.BeforeSender != 1_000 || tx.BeforeReceiver != 1_000 {
		t.Fatalf("unexpected before snapshots: %d/%d", tx.BeforeSender, tx.BeforeReceiver)
	}
	if tx.AfterSender != 900 || tx.AfterReceiver != 1_100 {
		t.Fatalf("unexpected after snapshots: %d/%d", tx.AfterSender, tx.AfterReceiver)
	}

	sender, _ := env.store.Get(ctx, env.sender.ID)
	receiver, _ := env.store.Get(ctx, env.receiver.ID)
	if sender.Balance != 900 || receiver.Balance != 1_100 {
		t.Fatalf("unexpected balances after commit: %d/%d", sender.Balance, receiver.Balance)
	}

	if !env.engine.ValidateSignature(ctx, tx) {
		t.Fatalf("expected sender signature to verify")
	}
	if !env.engine.ValidateAmount(tx) {
		t.Fatalf("expected snapshot arithmetic to hold")
	}

	// Re-validation of a committed record is idempotent.
	if !env.engine.ValidateSignature(ctx, tx) || !env.engine.ValidateAmount(tx) {
		t.Fatalf("re-validation should still pass")
	}
}

func TestTransferInsufficientFundsLeavesStateUntouched(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.engine.Transfer(ctx, TransferInput{
		SenderWalletID:   env.sender.ID,
		ReceiverWalletID: env.receiver.ID,
		CurrencyID:       env.currency.ID,
		Amount:           1_500,
	})
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	sender, _ := env.store.Get(ctx, env.sender.ID)
	receiver, _ := env.store.Get(ctx, env.receiver.ID)
	if sender.Balance != 1_000 || receiver.Balance != 1_000 {
		t.Fatalf("balances changed on rejected transfer: %d/%d", sender.Balance, receiver.Balance)
	}

	txs, err := env.engine.List(ctx, Filter{WalletID: env.sender.ID})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("expected no transaction records, got %d", len(txs))
	}
}

func TestTransferRejectsCurrencyMismatch(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	other, err := env.registry.Create(ctx, currency.CreateInput{Name: "Dogecoin", Symbol: "DOGE", AdminID: env.sender.UserID})
	if err != nil {
		t.Fatalf("create second currency: %v", err)
	}

	if _, err := env.engine.Transfer(ctx, TransferInput{
		SenderWalletID:   env.sender.ID,
		ReceiverWalletID: env.receiver.ID,
		CurrencyID:       other.ID,
		Amount:           100,
	}); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected currency mismatch, got %v", err)
	}
}

func TestTransferRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.engine.Transfer(ctx, TransferInput{
		SenderWalletID:   env.sender.ID,
		ReceiverWalletID: env.receiver.ID,
		CurrencyID:       env.currency.ID,
		Amount:           0,
	}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}

	if _, err := env.engine.Transfer(ctx, TransferInput{
		SenderWalletID:   env.sender.ID,
		ReceiverWalletID: env.sender.ID,
		CurrencyID:       env.currency.ID,
		Amount:           100,
	}); !errors.Is(err, ErrSelfTransfer) {
		t.Fatalf("expected self transfer rejection, got %v", err)
	}

	if _, err := env.engine.Transfer(ctx, TransferInput{
		SenderWalletID:   uuid.NewString(),
		ReceiverWalletID: env.receiver.ID,
		CurrencyID:       env.currency.ID,
		Amount:           100,
	}); !errors.Is(err, ledger.ErrWalletNotFound) {
		t.Fatalf("expected wallet not found, got %v", err)
	}
}

func TestTransferIdempotencyWithClientTxID(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := NewResultCache(client, time.Minute)
	env := newTestEnv(t, cache)
	ctx := context.Background()

	input := TransferInput{
		SenderWalletID:   env.sender.ID,
		ReceiverWalletID: env.receiver.ID,
		CurrencyID:       env.currency.ID,
		Amount:           100,
		ClientTxID:       "client-1",
	}

	first, err := env.engine.Transfer(ctx, input)
	if err != nil {
		t.Fatalf("first transfer: %v", err)
	}

	second, err := env.engine.Transfer(ctx, input)
	if !errors.Is(err, ErrDuplicateTransfer) {
		t.Fatalf("expected duplicate transfer, got %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected original outcome, got transaction %s", second.ID)
	}

	sender, _ := env.store.Get(ctx, env.sender.ID)
	if sender.Balance != 900 {
		t.Fatalf("retry must not re-debit, balance %d", sender.Balance)
	}
}

func TestFailedTransferReleasesIdempotencyReservation(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := NewResultCache(client, time.Minute)
	env := newTestEnv(t, cache)
	ctx := context.Background()

	input := TransferInput{
		SenderWalletID:   env.sender.ID,
		ReceiverWalletID: env.receiver.ID,
		CurrencyID:       env.currency.ID,
		Amount:           5_000,
		ClientTxID:       "client-2",
	}

	if _, err := env.engine.Transfer(ctx, input); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	// The client id must be reusable after the failure.
	input.Amount = 100
	if _, err := env.engine.Transfer(ctx, input); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestAuditWalletReconcilesHistory(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := env.engine.Transfer(ctx, TransferInput{
			SenderWalletID:   env.sender.ID,
			ReceiverWalletID: env.receiver.ID,
			CurrencyID:       env.currency.ID,
			Amount:           50,
		}); err != nil {
			t.Fatalf("transfer %d: %v", i, err)
		}
	}

	for _, walletID := range []string{env.sender.ID, env.receiver.ID} {
		ok, err := env.engine.AuditWallet(ctx, walletID)
		if err != nil {
			t.Fatalf("audit wallet: %v", err)
		}
		if !ok {
			t.Fatalf("wallet %s failed reconciliation", walletID)
		}
	}
}

// brokenDepositStore fails deposits into one wallet, simulating a storage
// outage mid-commit.
type brokenDepositStore struct {
	ledger.Store
	failWalletID string
}

func (s *brokenDepositStore) Deposit(ctx context.Context, walletID string, amount int64) (int64, error) {
	if walletID == s.failWalletID {
		return 0, errors.New("deposit unavailable")
	}
	return s.Store.Deposit(ctx, walletID, amount)
}

// brokenCommitRepository accepts pending records but fails the commit flip.
type brokenCommitRepository struct {
	Repository
}

func (r *brokenCommitRepository) MarkCommitted(ctx context.Context, tx Transaction) error {
	return errors.New("storage unavailable")
}

func TestDepositFailureRestoresDebitAndDiscardsPending(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	repo := NewMemoryRepository()
	store := &brokenDepositStore{Store: env.store, failWalletID: env.receiver.ID}
	engine := NewEngine(store, repo, env.registry, env.users, env.keys, nil, nil, time.Second, logging.Discard())

	if _, err := engine.Transfer(ctx, TransferInput{
		SenderWalletID:   env.sender.ID,
		ReceiverWalletID: env.receiver.ID,
		CurrencyID:       env.currency.ID,
		Amount:           100,
	}); err == nil {
		t.Fatalf("expected transfer to fail on receiver credit")
	}

	sender, _ := env.store.Get(ctx, env.sender.ID)
	receiver, _ := env.store.Get(ctx, env.receiver.ID)
	if sender.Balance != 1_000 || receiver.Balance != 1_000 {
		t.Fatalf("failed credit left balances mutated: %d/%d", sender.Balance, receiver.Balance)
	}

	txs, err := repo.List(ctx, Filter{WalletID: env.sender.ID})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("pending record survived failed credit: %d records", len(txs))
	}
}

func TestCommitFailureUnwindsBalancesAndPendingRecord(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	inner := NewMemoryRepository()
	engine := NewEngine(env.store, &brokenCommitRepository{Repository: inner}, env.registry, env.users, env.keys, nil, nil, time.Second, logging.Discard())

	if _, err := engine.Transfer(ctx, TransferInput{
		SenderWalletID:   env.sender.ID,
		ReceiverWalletID: env.receiver.ID,
		CurrencyID:       env.currency.ID,
		Amount:           100,
	}); err == nil {
		t.Fatalf("expected transfer to fail on commit")
	}

	sender, _ := env.store.Get(ctx, env.sender.ID)
	receiver, _ := env.store.Get(ctx, env.receiver.ID)
	if sender.Balance != 1_000 || receiver.Balance != 1_000 {
		t.Fatalf("failed commit left balances mutated: %d/%d", sender.Balance, receiver.Balance)
	}

	txs, err := inner.List(ctx, Filter{WalletID: env.sender.ID})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("pending record survived failed commit: %d records", len(txs))
	}
}

func TestConcurrentTransfersConserveSupply(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	done := make(chan error, 20)
	for i := 0; i < 10; i++ {
		go func() {
			_, err := env.engine.Transfer(ctx, TransferInput{
				SenderWalletID:   env.sender.ID,
				ReceiverWalletID: env.receiver.ID,
				CurrencyID:       env.currency.ID,
				Amount:           10,
			})
			done <- err
		}()
		go func() {
			_, err := env.engine.Transfer(ctx, TransferInput{
				SenderWalletID:   env.receiver.ID,
				ReceiverWalletID: env.sender.ID,
				CurrencyID:       env.currency.ID,
				Amount:           10,
			})
			done <- err
		}()
	}

	for i := 0; i < 20; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent transfer: %v", err)
		}
	}

	total, err := env.store.SumBalances(ctx, env.currency.ID)
	if err != nil {
		t.Fatalf("sum balances: %v", err)
	}
	if total != 2_000 {
		t.Fatalf("supply not conserved, total=%d", total)
	}
}
