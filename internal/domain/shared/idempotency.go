package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers the outcome of requests carrying an
// Idempotency-Key so that client retries do not create a second document.
type IdempotencyStore interface {
	// Claim reserves key for an in-flight request.
	// Returns false if the key is already claimed or completed.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Complete records the resource produced for key.
	Complete(ctx context.Context, key, resourceID string, ttl time.Duration) error

	// Lookup returns the resource recorded for key.
	// An in-flight key is reported as found with an empty resource ID.
	Lookup(ctx context.Context, key string) (resourceID string, found bool, err error)

	// Release drops a claim after a failed request so the client may retry.
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is how long a completed key is remembered
	TTL time.Duration

	// Enabled determines whether the Idempotency-Key header is honoured
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
