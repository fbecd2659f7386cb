package main

import (
	"context"
	"fmt"
	"os"

	"github.com/coinage-app/coinage/internal/infra"
	"github.com/coinage-app/coinage/internal/logging"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS users (
        id UUID PRIMARY KEY,
        username TEXT NOT NULL UNIQUE,
        email TEXT NOT NULL DEFAULT '',
        password_hash BYTEA NOT NULL,
        created_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS currencies (
        id UUID PRIMARY KEY,
        name TEXT NOT NULL,
        symbol TEXT NOT NULL,
        invite_code TEXT NOT NULL DEFAULT '',
        admin_id UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
        market_cap BIGINT NOT NULL DEFAULT -1,
        initial_balance BIGINT NOT NULL DEFAULT 0,
        created_at TIMESTAMPTZ NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE UNIQUE INDEX IF NOT EXISTS currencies_invite_code_idx ON currencies (invite_code)`,
	`CREATE TABLE IF NOT EXISTS wallets (
        id UUID PRIMARY KEY,
        user_id UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
        currency_id UUID NOT NULL REFERENCES currencies (id) ON DELETE CASCADE,
        balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
        public_key TEXT NOT NULL,
        private_key TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL,
        UNIQUE (user_id, currency_id)
    )`,
	`CREATE TABLE IF NOT EXISTS transactions (
        id UUID PRIMARY KEY,
        sender_id UUID NOT NULL REFERENCES wallets (id) ON DELETE CASCADE,
        receiver_id UUID NOT NULL REFERENCES wallets (id) ON DELETE CASCADE,
        currency_id UUID NOT NULL REFERENCES currencies (id) ON DELETE CASCADE,
        amount BIGINT NOT NULL CHECK (amount > 0),
        sender_signature TEXT NOT NULL,
        receiver_signature TEXT NOT NULL,
        before_sender BIGINT NOT NULL,
        before_receiver BIGINT NOT NULL,
        after_sender BIGINT NOT NULL DEFAULT 0,
        after_receiver BIGINT NOT NULL DEFAULT 0,
        status TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS transactions_sender_idx ON transactions (sender_id)`,
	`CREATE INDEX IF NOT EXISTS transactions_receiver_idx ON transactions (receiver_id)`,
	`CREATE INDEX IF NOT EXISTS transactions_currency_idx ON transactions (currency_id)`,
}

func main() {
	logger := logging.New(os.Getenv("LOG_LEVEL"))

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL must be set")
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := infra.NewPostgresPool(ctx, url)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	for _, stmt := range statements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			logger.Error("apply migration", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("schema up to date")
}
