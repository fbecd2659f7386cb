package identity

import "time"

// User represents a registered account holder. A user owns zero or more
// wallets and may administer zero or more currencies.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Credentials request structure.
type Credentials struct {
	Username string
	Email    string
	Password string
}
