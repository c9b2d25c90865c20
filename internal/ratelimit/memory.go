package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanoseconds
}

// Registry keeps one token bucket per key in process memory. Each bucket
// holds limit tokens and refills them evenly over window. A bucket unused
// for a whole window is full again, so Sweep may drop it without changing
// any decision.
type Registry struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	every   rate.Limit
	burst   int
	window  time.Duration
	now     func() time.Time
}

var _ Limiter = (*Registry)(nil)

func NewRegistry(limit int, window time.Duration) *Registry {
	if limit <= 0 {
		limit = 1
	}
	return &Registry{
		buckets: make(map[string]*bucket),
		every:   rate.Every(window / time.Duration(limit)),
		burst:   limit,
		window:  window,
		now:     time.Now,
	}
}

// GetOrCreate retrieves the bucket of key, creating it on first use, and
// marks it as seen.
func (r *Registry) GetOrCreate(key string) *rate.Limiter {
	now := r.now().UnixNano()

	r.mu.RLock()
	b, exists := r.buckets[key]
	r.mu.RUnlock()

	if !exists {
		r.mu.Lock()
		if b, exists = r.buckets[key]; !exists {
			b = &bucket{limiter: rate.NewLimiter(r.every, r.burst)}
			r.buckets[key] = b
		}
		r.mu.Unlock()
	}

	b.lastSeen.Store(now)
	return b.limiter
}

func (r *Registry) Allow(_ context.Context, key string) error {
	if !r.GetOrCreate(key).AllowN(r.now(), 1) {
		return ErrLimited
	}
	return nil
}

// Len returns the number of tracked keys.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.buckets)
}

// Sweep drops buckets idle for at least one window and returns how many
// were removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.window).UnixNano()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, b := range r.buckets {
		if b.lastSeen.Load() <= cutoff {
			delete(r.buckets, key)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
