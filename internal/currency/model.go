package currency

import (
	"errors"
	"time"
)

// UnlimitedCap marks a currency without a supply cap.
const UnlimitedCap = int64(-1)

var (
	// ErrNotFound indicates the requested currency does not exist.
	ErrNotFound = errors.New("currency not found")

	// ErrInvalidInvite indicates an invite code that fails signature or
	// payload validation.
	ErrInvalidInvite = errors.New("invalid invite code")

	// ErrSupplyCapExceeded indicates an operation that would push a capped
	// currency's total supply over its market cap.
	ErrSupplyCapExceeded = errors.New("supply cap exceeded")
)

// Currency is an isolated named ledger with its own supply policy and invite
// mechanism. A capped currency never grants an initial balance: MarketCap !=
// UnlimitedCap forces InitialBalance to zero.
type Currency struct {
	ID             string
	Name           string
	Symbol         string
	InviteCode     string
	AdminID        string
	MarketCap      int64
	InitialBalance int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Capped reports whether the currency enforces a supply cap.
func (c Currency) Capped() bool {
	return c.MarketCap != UnlimitedCap
}
