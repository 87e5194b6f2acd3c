package core

import (
	"context"
	"time"
)

// RateLimiter counts events per key in fixed windows.
type RateLimiter interface {
	// CheckAndIncrement records one event for key and returns ErrRateLimitExceeded
	// once limit events have already been recorded in the current window.
	CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) error
	// Reset forgets every event recorded for key.
	Reset(ctx context.Context, key string) error
}
