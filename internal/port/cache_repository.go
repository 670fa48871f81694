package port

import "context"

type CacheRepository interface {
	// Allow consumes one unit of the caller's fixed-window request
	// quota, returns false once the window is exhausted.
	Allow(ctx context.Context, callerID string) (bool, error)

	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)
}
