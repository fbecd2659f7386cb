package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "wallets_user_id_currency_id_key"}
	if !isUniqueViolation(dup) {
		t.Fatalf("expected 23505 to be a unique violation")
	}
	if !isUniqueViolation(fmt.Errorf("insert wallet: %w", dup)) {
		t.Fatalf("expected wrapped 23505 to be a unique violation")
	}

	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatalf("foreign-key violation must not map to duplicate wallet")
	}
	if isUniqueViolation(errors.New("connection reset")) {
		t.Fatalf("generic error must not map to duplicate wallet")
	}
	if isUniqueViolation(nil) {
		t.Fatalf("nil error must not map to duplicate wallet")
	}
}
