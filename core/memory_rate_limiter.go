package core

import (
	"context"
	"sync"
	"time"
)

// MemoryRateLimiter counts fixed windows in process. Buckets whose window has
// closed are swept on each call.
type MemoryRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	count     int
	windowEnd time.Time
}

func NewMemoryRateLimiter() *MemoryRateLimiter {
	return NewMemoryRateLimiterWithClock(time.Now)
}

func NewMemoryRateLimiterWithClock(now func() time.Time) *MemoryRateLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryRateLimiter{
		buckets: make(map[string]*bucket),
		now:     now,
	}
}

func (r *MemoryRateLimiter) CheckAndIncrement(_ context.Context, key string, limit int, window time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for k, old := range r.buckets {
		if !now.Before(old.windowEnd) {
			delete(r.buckets, k)
		}
	}
	b, exists := r.buckets[key]

	if !exists || !now.Before(b.windowEnd) {
		r.buckets[key] = &bucket{
			count:     1,
			windowEnd: now.Add(window),
		}
		return nil
	}

	if b.count >= limit {
		return ErrRateLimitExceeded
	}

	b.count++
	return nil
}

func (r *MemoryRateLimiter) Reset(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.buckets, key)
	return nil
}

// Len returns the number of buckets held.
func (r *MemoryRateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buckets)
}
