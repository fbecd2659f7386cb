package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	resultPrefix     = "transfer:v1:"
	inProgressMarker = "__in_progress__"
)

// ErrTransferInProgress indicates another request with the same client
// transaction identifier is still being processed.
var ErrTransferInProgress = errors.New("transfer with this client id is in progress")

// ResultCache stores committed transfer outcomes in Redis keyed by the
// client-supplied transaction identifier, making retried requests idempotent.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResultCache builds a Redis-backed transfer result cache.
func NewResultCache(client *redis.Client, ttl time.Duration) *ResultCache {
	return &ResultCache{client: client, ttl: ttl}
}

// Lookup returns the previously committed transaction for a client id, if any.
func (c *ResultCache) Lookup(ctx context.Context, clientTxID string) (Transaction, bool, error) {
	raw, err := c.client.Get(ctx, resultPrefix+clientTxID).Result()
	if errors.Is(err, redis.Nil) {
		return Transaction{}, false, nil
	}
	if err != nil {
		return Transaction{}, false, fmt.Errorf("idempotency lookup: %w", err)
	}
	if raw == inProgressMarker {
		return Transaction{}, false, ErrTransferInProgress
	}

	var tx Transaction
	if err := json.Unmarshal([]byte(raw), &tx); err != nil {
		return Transaction{}, false, fmt.Errorf("decode cached transfer: %w", err)
	}
	return tx, true, nil
}

// Reserve marks a client id as in flight. It reports false when the id is
// already reserved or completed.
func (c *ResultCache) Reserve(ctx context.Context, clientTxID string) (bool, error) {
	ok, err := c.client.SetNX(ctx, resultPrefix+clientTxID, inProgressMarker, c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency reservation: %w", err)
	}
	return ok, nil
}

// Store records the committed outcome under the client id.
func (c *ResultCache) Store(ctx context.Context, clientTxID string, tx Transaction) error {
	payload, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("encode transfer result: %w", err)
	}
	if err := c.client.Set(ctx, resultPrefix+clientTxID, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("persist transfer result: %w", err)
	}
	return nil
}

// Release drops an in-flight reservation after a failed transfer so the
// client may retry.
func (c *ResultCache) Release(ctx context.Context, clientTxID string) {
	c.client.Del(ctx, resultPrefix+clientTxID) // best effort cleanup
}
