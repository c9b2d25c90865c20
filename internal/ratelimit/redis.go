package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Window is a fixed-window counter kept in Redis, shared by all replicas.
type Window struct {
	redis  goredis.UniversalClient
	prefix string
	limit  int64
	window time.Duration
}

var _ Limiter = (*Window)(nil)

// NewWindow allows limit requests per key in every window. Keys are stored
// as "<prefix>:<key>".
func NewWindow(client goredis.UniversalClient, prefix string, limit int, window time.Duration) *Window {
	return &Window{
		redis:  client,
		prefix: prefix,
		limit:  int64(limit),
		window: window,
	}
}

// Allow increments the counter and arms its expiry in one MULTI/EXEC. The
// expiry is set with NX on every call, so a counter left without a TTL
// gets one on the next request instead of living forever.
func (w *Window) Allow(ctx context.Context, key string) error {
	k := w.prefix + ":" + key

	var incr *goredis.IntCmd
	_, err := w.redis.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, w.window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if incr.Val() > w.limit {
		return ErrLimited
	}

	return nil
}
