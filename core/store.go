package core

import (
	"context"
	"time"
)

// Store holds at most one pending reset code per account.
type Store interface {
	// Put overwrites any entry for accountID.
	Put(ctx context.Context, accountID, code string, ttl time.Duration) (Entry, error)
	// Get returns ErrNoRequestFound when there is no entry. Expiry is not checked.
	Get(ctx context.Context, accountID string) (*Entry, error)
	// Delete is idempotent.
	Delete(ctx context.Context, accountID string) error
	// Claim removes the entry only if it still holds code and reports whether it did.
	Claim(ctx context.Context, accountID, code string) (bool, error)
}
