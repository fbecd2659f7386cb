package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/coinage-app/coinage/internal/config"
	"github.com/coinage-app/coinage/internal/currency"
	"github.com/coinage-app/coinage/internal/identity"
	"github.com/coinage-app/coinage/internal/infra"
	"github.com/coinage-app/coinage/internal/keys"
	"github.com/coinage-app/coinage/internal/ledger"
	"github.com/coinage-app/coinage/internal/logging"
	"github.com/coinage-app/coinage/internal/transfer"
)

// audit walks every currency and wallet in the datastore and verifies the
// ledger invariants: per-wallet balance reconciliation, supply-cap
// compliance, snapshot arithmetic and transfer signatures. It exits non-zero
// when any check fails.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// The result cache is optional: without REDIS_URL the engine still runs,
	// it just loses client-id idempotency.
	var cache *transfer.ResultCache
	if cfg.RedisURL != "" {
		rdb, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		cache = transfer.NewResultCache(rdb, cfg.IdempotencyTTL)
	}

	km := keys.NewRSA()
	store := ledger.NewPostgresStore(db, km)
	users := identity.NewPostgresRepository(db)
	signer := currency.NewSigner([]byte(cfg.InviteSigningKey))
	currencyRepo := currency.NewPostgresRepository(db)
	registry := currency.NewRegistry(currencyRepo, store, signer, cfg.CapPolicy, logger)
	engine := transfer.NewEngine(store, transfer.NewPostgresRepository(db), registry, users, km, cache, nil, cfg.LockWait, logger)

	start := time.Now()
	violations := 0

	currencies, err := currencyRepo.List(ctx)
	if err != nil {
		logger.Error("list currencies", "error", err)
		os.Exit(1)
	}

	for _, cur := range currencies {
		ok, err := registry.CheckSupplyCap(ctx, cur.ID)
		if err != nil {
			logger.Error("check supply cap", "currency_id", cur.ID, "error", err)
			os.Exit(1)
		}
		if !ok {
			logger.Error("supply cap violated", "currency_id", cur.ID, "market_cap", cur.MarketCap)
			violations++
		}

		wallets, err := store.ListByCurrency(ctx, cur.ID)
		if err != nil {
			logger.Error("list wallets", "currency_id", cur.ID, "error", err)
			os.Exit(1)
		}
		for _, wallet := range wallets {
			ok, err := engine.AuditWallet(ctx, wallet.ID)
			if err != nil {
				logger.Error("audit wallet", "wallet_id", wallet.ID, "error", err)
				os.Exit(1)
			}
			if !ok {
				logger.Error("wallet failed reconciliation", "wallet_id", wallet.ID, "balance", wallet.Balance)
				violations++
			}
		}

		txs, err := engine.List(ctx, transfer.Filter{CurrencyID: cur.ID})
		if err != nil {
			logger.Error("list transactions", "currency_id", cur.ID, "error", err)
			os.Exit(1)
		}
		for _, tx := range txs {
			if tx.Status != transfer.StatusCommitted {
				logger.Warn("pending transaction found", "transaction_id", tx.ID, "created_at", tx.CreatedAt)
				continue
			}
			if !engine.ValidateAmount(tx) {
				logger.Error("snapshot arithmetic violated", "transaction_id", tx.ID)
				violations++
			}
			if !engine.ValidateSignature(ctx, tx) {
				logger.Error("transfer signature invalid", "transaction_id", tx.ID)
				violations++
			}
		}
	}

	logger.Info("audit complete", "currencies", len(currencies), "violations", violations, "elapsed", time.Since(start).String())
	if violations > 0 {
		os.Exit(1)
	}
}
