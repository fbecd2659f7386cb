package currency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/coinage-app/coinage/internal/config"
	"github.com/coinage-app/coinage/internal/ledger"
)

// Registry manages currency lifecycle, invite codes and supply-cap policy.
type Registry struct {
	repo      Repository
	store     ledger.Store
	signer    *Signer
	capPolicy string
	logger    *slog.Logger
}

// NewRegistry builds a currency registry.
func NewRegistry(repo Repository, store ledger.Store, signer *Signer, capPolicy string, logger *slog.Logger) *Registry {
	return &Registry{repo: repo, store: store, signer: signer, capPolicy: capPolicy, logger: logger}
}

// CreateInput captures data required to create a currency. A zero or negative
// MarketCap means unlimited supply.
type CreateInput struct {
	Name           string
	Symbol         string
	AdminID        string
	MarketCap      int64
	InitialBalance int64
}

// Create registers a currency and provisions the admin's zero-balance wallet.
// The two writes are all-or-nothing: a failed wallet creation rolls the
// currency back. A capped currency never keeps an initial balance.
func (r *Registry) Create(ctx context.Context, input CreateInput) (Currency, error) {
	if input.Name == "" || input.Symbol == "" {
		return Currency{}, errors.New("name and symbol are required")
	}

	marketCap := input.MarketCap
	if marketCap <= 0 {
		marketCap = UnlimitedCap
	}

	initialBalance := input.InitialBalance
	if marketCap != UnlimitedCap && initialBalance != 0 {
		r.logger.Warn("dropping initial balance on capped currency",
			"name", input.Name, "market_cap", marketCap, "initial_balance", initialBalance)
		initialBalance = 0
	}
	if initialBalance < 0 {
		return Currency{}, errors.New("initial balance must not be negative")
	}

	now := time.Now().UTC()
	c := Currency{
		ID:             uuid.New().String(),
		Name:           input.Name,
		Symbol:         input.Symbol,
		AdminID:        input.AdminID,
		MarketCap:      marketCap,
		InitialBalance: initialBalance,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	code, err := r.signer.Generate(c.ID, c.Name, c.Symbol)
	if err != nil {
		return Currency{}, err
	}
	c.InviteCode = code

	if err := r.repo.Create(ctx, c); err != nil {
		return Currency{}, fmt.Errorf("create currency: %w", err)
	}

	if _, err := r.store.CreateWallet(ctx, c.AdminID, c.ID, 0); err != nil {
		if delErr := r.repo.Delete(ctx, c.ID); delErr != nil {
			r.logger.Error("rollback currency after wallet failure", "currency_id", c.ID, "error", delErr)
		}
		return Currency{}, fmt.Errorf("create admin wallet: %w", err)
	}

	r.logger.Info("currency created", "currency_id", c.ID, "symbol", c.Symbol, "market_cap", c.MarketCap)
	return c, nil
}

// Get fetches a currency by identifier.
func (r *Registry) Get(ctx context.Context, id string) (Currency, error) {
	return r.repo.Get(ctx, id)
}

// RegenerateInvite issues a new invite code, invalidating the previous one.
func (r *Registry) RegenerateInvite(ctx context.Context, id string) (string, error) {
	c, err := r.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}

	code, err := r.signer.Generate(c.ID, c.Name, c.Symbol)
	if err != nil {
		return "", err
	}
	if err := r.repo.UpdateInviteCode(ctx, c.ID, code); err != nil {
		return "", err
	}
	return code, nil
}

// ValidateInvite reports whether code is the currency's current, untampered
// invite code.
func (r *Registry) ValidateInvite(ctx context.Context, id, code string) bool {
	c, err := r.repo.Get(ctx, id)
	if err != nil {
		return false
	}
	return c.InviteCode == code && r.signer.Validate(c.ID, c.Name, c.Symbol, code)
}

// ResolveByInvite returns the currency an invite code grants membership to.
func (r *Registry) ResolveByInvite(ctx context.Context, code string) (Currency, error) {
	c, err := r.repo.FindByInviteCode(ctx, code)
	if err != nil {
		return Currency{}, err
	}
	if !r.signer.Validate(c.ID, c.Name, c.Symbol, code) {
		return Currency{}, ErrInvalidInvite
	}
	return c, nil
}

// CheckSupplyCap reports whether the currency's total supply currently
// respects its market cap.
func (r *Registry) CheckSupplyCap(ctx context.Context, id string) (bool, error) {
	c, err := r.repo.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if !c.Capped() {
		return true, nil
	}
	total, err := r.store.SumBalances(ctx, c.ID)
	if err != nil {
		return false, err
	}
	return total <= c.MarketCap, nil
}

// EnforceCap applies the configured supply-cap policy to the currency's
// current total supply. Transfers conserve supply, so this is an audit gate:
// it only trips when the currency is already over cap.
func (r *Registry) EnforceCap(ctx context.Context, c Currency) error {
	if !c.Capped() {
		return nil
	}

	total, err := r.store.SumBalances(ctx, c.ID)
	if err != nil {
		return err
	}
	if total <= c.MarketCap {
		return nil
	}

	if r.capPolicy == config.CapPolicyAdvisory {
		r.logger.Warn("supply cap exceeded", "currency_id", c.ID, "market_cap", c.MarketCap, "supply", total)
		return nil
	}
	return ErrSupplyCapExceeded
}

// EnforceCapIncrease applies the configured supply-cap policy to a pending
// balance increase. Under the enforce policy an over-cap increase is rejected
// with ErrSupplyCapExceeded; under the advisory policy it is logged and
// allowed through.
func (r *Registry) EnforceCapIncrease(ctx context.Context, c Currency, increase int64) error {
	if !c.Capped() || increase <= 0 {
		return nil
	}

	total, err := r.store.SumBalances(ctx, c.ID)
	if err != nil {
		return err
	}
	if total+increase <= c.MarketCap {
		return nil
	}

	if r.capPolicy == config.CapPolicyAdvisory {
		r.logger.Warn("supply cap exceeded",
			"currency_id", c.ID, "market_cap", c.MarketCap, "supply", total, "increase", increase)
		return nil
	}
	return ErrSupplyCapExceeded
}
