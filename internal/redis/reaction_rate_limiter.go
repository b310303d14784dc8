package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
)

// ReactionRateLimiter implements fixed-window rate limiting for reactions,
// keyed by connection ID. Window state lives in Redis so limits survive the
// engine restarting mid-window.
type ReactionRateLimiter struct {
	rdb    *goredis.Client
	clock  clockwork.Clock
	limit  int
	window time.Duration
}

// NewReactionRateLimiter creates a limiter allowing limit reactions per
// window per connection.
func NewReactionRateLimiter(rdb *goredis.Client, clock clockwork.Clock, limit int, window time.Duration) *ReactionRateLimiter {
	return &ReactionRateLimiter{
		rdb:    rdb,
		clock:  clock,
		limit:  limit,
		window: window,
	}
}

// Allow reports whether a reaction from connID is within its window budget.
// The error is returned alongside allow=true so callers fail open when Redis
// is unavailable.
func (l *ReactionRateLimiter) Allow(ctx context.Context, connID string) (bool, error) {
	windowStart := l.clock.Now().UnixMilli() / l.window.Milliseconds()
	key := fmt.Sprintf("rate_limit:reactions:%s:%d", connID, windowStart)

	pipe := l.rdb.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("rate limit check failed: %w", err)
	}

	return incr.Val() <= int64(l.limit), nil
}
