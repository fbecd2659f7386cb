package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists transaction records.
type Repository interface {
	Create(ctx context.Context, tx Transaction) error
	// MarkCommitted stores the after-balance snapshots and flips the record
	// to committed.
	MarkCommitted(ctx context.Context, tx Transaction) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (Transaction, error)
	List(ctx context.Context, filter Filter) ([]Transaction, error)
}

const txColumns = `id, sender_id, receiver_id, currency_id, amount, sender_signature, receiver_signature,
        before_sender, before_receiver, after_sender, after_receiver, status, created_at`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed transaction repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a pending transaction record.
func (r *PostgresRepository) Create(ctx context.Context, tx Transaction) error {
	ids, err := parseTxIDs(tx)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO transactions (`+txColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		ids[0], ids[1], ids[2], ids[3], tx.Amount, tx.SenderSignature, tx.ReceiverSignature,
		tx.BeforeSender, tx.BeforeReceiver, tx.AfterSender, tx.AfterReceiver, tx.Status, tx.CreatedAt.UTC())
	return err
}

// MarkCommitted records the post-mutation snapshots.
func (r *PostgresRepository) MarkCommitted(ctx context.Context, tx Transaction) error {
	txID, err := uuid.Parse(tx.ID)
	if err != nil {
		return ErrTransactionNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE transactions
        SET after_sender = $1, after_receiver = $2, status = $3
        WHERE id = $4 AND status = $5`,
		tx.AfterSender, tx.AfterReceiver, StatusCommitted, txID, StatusPending)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// Delete removes a transaction record. Only pending records are ever deleted;
// committed records are immutable.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	txID, err := uuid.Parse(id)
	if err != nil {
		return ErrTransactionNotFound
	}
	cmd, err := r.db.Exec(ctx, `DELETE FROM transactions WHERE id = $1 AND status = $2`, txID, StatusPending)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// Get fetches a transaction by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Transaction, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return Transaction{}, ErrTransactionNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1`, txID)
	return scanTransaction(row)
}

// List returns transactions matching the filter, oldest first.
func (r *PostgresRepository) List(ctx context.Context, filter Filter) ([]Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE 1=1`
	args := []any{}

	if filter.WalletID != "" {
		walletID, err := uuid.Parse(filter.WalletID)
		if err != nil {
			return nil, fmt.Errorf("parse wallet id: %w", err)
		}
		args = append(args, walletID)
		query += fmt.Sprintf(" AND (sender_id = $%d OR receiver_id = $%d)", len(args), len(args))
	}
	if filter.CurrencyID != "" {
		currencyID, err := uuid.Parse(filter.CurrencyID)
		if err != nil {
			return nil, fmt.Errorf("parse currency id: %w", err)
		}
		args = append(args, currencyID)
		query += fmt.Sprintf(" AND currency_id = $%d", len(args))
	}
	query += " ORDER BY created_at"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func parseTxIDs(tx Transaction) ([4]uuid.UUID, error) {
	var out [4]uuid.UUID
	for i, raw := range []string{tx.ID, tx.SenderID, tx.ReceiverID, tx.CurrencyID} {
		id, err := uuid.Parse(raw)
		if err != nil {
			return out, fmt.Errorf("parse transaction id field %d: %w", i, err)
		}
		out[i] = id
	}
	return out, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		id         uuid.UUID
		senderID   uuid.UUID
		receiverID uuid.UUID
		currencyID uuid.UUID
		createdAt  time.Time
		tx         Transaction
	)
	if err := row.Scan(&id, &senderID, &receiverID, &currencyID, &tx.Amount, &tx.SenderSignature, &tx.ReceiverSignature,
		&tx.BeforeSender, &tx.BeforeReceiver, &tx.AfterSender, &tx.AfterReceiver, &tx.Status, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	tx.ID = id.String()
	tx.SenderID = senderID.String()
	tx.ReceiverID = receiverID.String()
	tx.CurrencyID = currencyID.String()
	tx.CreatedAt = createdAt.UTC()
	return tx, nil
}
