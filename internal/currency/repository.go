package currency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists currencies.
type Repository interface {
	Create(ctx context.Context, c Currency) error
	Get(ctx context.Context, id string) (Currency, error)
	FindByInviteCode(ctx context.Context, code string) (Currency, error)
	UpdateInviteCode(ctx context.Context, id, code string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Currency, error)
}

const currencyColumns = `id, name, symbol, invite_code, admin_id, market_cap, initial_balance, created_at, updated_at`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed currency repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a currency record.
func (r *PostgresRepository) Create(ctx context.Context, c Currency) error {
	currencyID, err := uuid.Parse(c.ID)
	if err != nil {
		return fmt.Errorf("parse currency id: %w", err)
	}
	adminID, err := uuid.Parse(c.AdminID)
	if err != nil {
		return fmt.Errorf("parse admin id: %w", err)
	}
	_, err = r.db.Exec(ctx, `INSERT INTO currencies (`+currencyColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		currencyID, c.Name, c.Symbol, c.InviteCode, adminID, c.MarketCap, c.InitialBalance, c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	return err
}

// Get fetches a currency by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Currency, error) {
	currencyID, err := uuid.Parse(id)
	if err != nil {
		return Currency{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+currencyColumns+` FROM currencies WHERE id = $1`, currencyID)
	return scanCurrency(row)
}

// FindByInviteCode fetches the currency holding the given invite code.
func (r *PostgresRepository) FindByInviteCode(ctx context.Context, code string) (Currency, error) {
	row := r.db.QueryRow(ctx, `SELECT `+currencyColumns+` FROM currencies WHERE invite_code = $1`, code)
	return scanCurrency(row)
}

// UpdateInviteCode replaces a currency's invite code.
func (r *PostgresRepository) UpdateInviteCode(ctx context.Context, id, code string) error {
	currencyID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE currencies SET invite_code = $1, updated_at = $2 WHERE id = $3`,
		code, time.Now().UTC(), currencyID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a currency record.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	currencyID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `DELETE FROM currencies WHERE id = $1`, currencyID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns every registered currency.
func (r *PostgresRepository) List(ctx context.Context) ([]Currency, error) {
	rows, err := r.db.Query(ctx, `SELECT `+currencyColumns+` FROM currencies ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Currency
	for rows.Next() {
		c, err := scanCurrency(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCurrency(row pgx.Row) (Currency, error) {
	var (
		id        uuid.UUID
		adminID   uuid.UUID
		createdAt time.Time
		updatedAt time.Time
		c         Currency
	)
	if err := row.Scan(&id, &c.Name, &c.Symbol, &c.InviteCode, &adminID, &c.MarketCap, &c.InitialBalance, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Currency{}, ErrNotFound
		}
		return Currency{}, err
	}
	c.ID = id.String()
	c.AdminID = adminID.String()
	c.CreatedAt = createdAt.UTC()
	c.UpdatedAt = updatedAt.UTC()
	return c, nil
}
