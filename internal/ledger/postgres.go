package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinage-app/coinage/internal/keys"
)

// PostgresStore persists wallets in PostgreSQL.
type PostgresStore struct {
	db   *pgxpool.Pool
	keys keys.Manager
}

// NewPostgresStore constructs a Postgres-backed wallet store.
func NewPostgresStore(db *pgxpool.Pool, km keys.Manager) *PostgresStore {
	return &PostgresStore{db: db, keys: km}
}

const walletColumns = `id, user_id, currency_id, balance, public_key, private_key, created_at, updated_at`

// isUniqueViolation reports whether err is a unique-constraint violation
// (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CreateWallet provisions a wallet row with a fresh keypair. The row-lock
// check catches the common duplicate; a concurrent insert that slips past it
// trips the table's unique (user_id, currency_id) constraint instead, which
// is mapped to the same ErrDuplicateWallet.
func (s *PostgresStore) CreateWallet(ctx context.Context, userID, currencyID string, initialBalance int64) (Wallet, error) {
	if initialBalance < 0 {
		return Wallet{}, ErrInvalidAmount
	}

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return Wallet{}, fmt.Errorf("parse user id: %w", err)
	}
	currencyUUID, err := uuid.Parse(currencyID)
	if err != nil {
		return Wallet{}, fmt.Errorf("parse currency id: %w", err)
	}

	pub, priv, err := s.keys.Generate()
	if err != nil {
		return Wallet{}, err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Wallet{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var existing uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM wallets WHERE user_id = $1 AND currency_id = $2 FOR UPDATE`, userUUID, currencyUUID).Scan(&existing)
	if err == nil {
		return Wallet{}, ErrDuplicateWallet
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, err
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

	if _, err := tx.Exec(ctx, `INSERT INTO wallets (`+walletColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.MustParse(wallet.ID), userUUID, currencyUUID, wallet.Balance, wallet.PublicKey, wallet.PrivateKey, now, now); err != nil {
		if isUniqueViolation(err) {
			return Wallet{}, ErrDuplicateWallet
		}
		return Wallet{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return Wallet{}, ErrDuplicateWallet
		}
		return Wallet{}, err
	}

	return wallet, nil
}

// Get fetches a wallet by identifier.
func (s *PostgresStore) Get(ctx context.Context, id string) (Wallet, error) {
	walletUUID, err := uuid.Parse(id)
	if err != nil {
		return Wallet{}, ErrWalletNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, walletUUID)
	return scanWallet(row)
}

// FindByUserAndCurrency fetches the wallet a user holds in a currency.
func (s *PostgresStore) FindByUserAndCurrency(ctx context.Context, userID, currencyID string) (Wallet, error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return Wallet{}, ErrWalletNotFound
	}
	currencyUUID, err := uuid.Parse(currencyID)
	if err != nil {
		return Wallet{}, ErrWalletNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 AND currency_id = $2`, userUUID, currencyUUID)
	return scanWallet(row)
}

// ListByCurrency returns all wallets scoped to a currency.
func (s *PostgresStore) ListByCurrency(ctx context.Context, currencyID string) ([]Wallet, error) {
	currencyUUID, err := uuid.Parse(currencyID)
	if err != nil {
		return nil, fmt.Errorf("parse currency id: %w", err)
	}
	rows, err := s.db.Query(ctx, `SELECT `+walletColumns+` FROM wallets WHERE currency_id = $1 ORDER BY created_at`, currencyUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Wallet
	for rows.Next() {
		wallet, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, wallet)
	}
	return out, rows.Err()
}

// Deposit credits the wallet in a single conditional statement.
func (s *PostgresStore) Deposit(ctx context.Context, walletID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	walletUUID, err := uuid.Parse(walletID)
	if err != nil {
		return 0, ErrWalletNotFound
	}

	var balance int64
	err = s.db.QueryRow(ctx, `UPDATE wallets SET balance = balance + $1, updated_at = $2
        WHERE id = $3 RETURNING balance`, amount, time.Now().UTC(), walletUUID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrWalletNotFound
		}
		return 0, err
	}
	return balance, nil
}

// Withdraw debits the wallet, re-validating sufficient funds inside the same
// statement so a concurrent debit cannot slip the balance below zero.
func (s *PostgresStore) Withdraw(ctx context.Context, walletID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	walletUUID, err := uuid.Parse(walletID)
	if err != nil {
		return 0, ErrWalletNotFound
	}

	var balance int64
	err = s.db.QueryRow(ctx, `UPDATE wallets SET balance = balance - $1, updated_at = $2
        WHERE id = $3 AND balance >= $1 RETURNING balance`, amount, time.Now().UTC(), walletUUID).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	// No row updated: either the wallet is missing or funds were short.
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wallets WHERE id = $1)`, walletUUID).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrWalletNotFound
	}
	return 0, ErrInsufficientFunds
}

// DeleteWallet removes a wallet only while its balance is zero.
func (s *PostgresStore) DeleteWallet(ctx context.Context, walletID string) error {
	walletUUID, err := uuid.Parse(walletID)
	if err != nil {
		return ErrWalletNotFound
	}

	cmd, err := s.db.Exec(ctx, `DELETE FROM wallets WHERE id = $1 AND balance = 0`, walletUUID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wallets WHERE id = $1)`, walletUUID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrWalletNotFound
	}
	return ErrNonZeroBalance
}

// SumBalances returns the total supply held across a currency's wallets.
func (s *PostgresStore) SumBalances(ctx context.Context, currencyID string) (int64, error) {
	currencyUUID, err := uuid.Parse(currencyID)
	if err != nil {
		return 0, fmt.Errorf("parse currency id: %w", err)
	}
	var total int64
	if err := s.db.QueryRow(ctx, `SELECT COALESCE(SUM(balance), 0) FROM wallets WHERE currency_id = $1`, currencyUUID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		id         uuid.UUID
		userID     uuid.UUID
		currencyID uuid.UUID
		createdAt  time.Time
		updatedAt  time.Time
		wallet     Wallet
	)
	if err := row.Scan(&id, &userID, &currencyID, &wallet.Balance, &wallet.PublicKey, &wallet.PrivateKey, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, err
	}
	wallet.ID = id.String()
	wallet.UserID = userID.String()
	wallet.CurrencyID = currencyID.String()
	wallet.CreatedAt = createdAt.UTC()
	wallet.UpdatedAt = updatedAt.UTC()
	return wallet, nil
}
