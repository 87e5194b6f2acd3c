package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenLedger remembers consumed reset-token IDs until the tokens would have expired anyway.
type TokenLedger interface {
	// Consume marks id as used and reports whether it was unused before.
	Consume(ctx context.Context, id string, ttl time.Duration) (bool, error)
}

// MemoryLedger is the in-process TokenLedger.
type MemoryLedger struct {
	mu   sync.Mutex
	used map[string]time.Time
	now  func() time.Time
}

func NewMemoryLedger(now func() time.Time) *MemoryLedger {
	if now == nil {
		now = time.Now
	}
	return &MemoryLedger{used: make(map[string]time.Time), now: now}
}

func (l *MemoryLedger) Consume(_ context.Context, id string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, until := range l.used {
		if !now.Before(until) {
			delete(l.used, k)
		}
	}
	if _, seen := l.used[id]; seen {
		return false, nil
	}
	l.used[id] = now.Add(ttl)
	return true, nil
}

// RedisLedger records spent token IDs with SET NX so replays fail on every instance.
type RedisLedger struct {
	client    redis.UniversalClient
	keyPrefix string
}

func NewRedisLedger(client redis.UniversalClient, keyPrefix string) *RedisLedger {
	if keyPrefix == "" {
		keyPrefix = "reset-token-used:"
	}
	return &RedisLedger{client: client, keyPrefix: keyPrefix}
}

func (l *RedisLedger) Consume(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.keyPrefix+id, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("token ledger: %w", err)
	}
	return ok, nil
}
