package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "rl:"

// FixedWindowLimiter implements a fixed-window rate limiter using Redis:
// INCR key; on the first hit PEXPIRE key window.
type FixedWindowLimiter struct {
	rdb *goredis.Client
}

func NewFixedWindowLimiter(c *Client) *FixedWindowLimiter {
	return &FixedWindowLimiter{rdb: rawClient(c)}
}

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration // 0 if allowed
	ResetAt    time.Time     // window end (best-effort)
	Count      int
}

// Enabled reports whether a Redis backend is configured.
func (l *FixedWindowLimiter) Enabled() bool { return l != nil && l.rdb != nil }

// Allow counts one hit for scope+subject (e.g. "login", "ip:1.2.3.4").
// limit <= 0 disables the check. Without Redis every call is allowed.
func (l *FixedWindowLimiter) Allow(ctx context.Context, scope, subject string, limit int, window time.Duration) (Decision, error) {
	open := Decision{Allowed: true, Limit: limit, Remaining: max(limit, 0)}
	if limit <= 0 || !l.Enabled() {
		return open, nil
	}
	if window < time.Second {
		window = time.Minute
	}

	// returns: {count, ttl_ms}
	const lua = `
local c = redis.call("INCR", KEYS[1])
if c == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {c, ttl}
`
	key := rateLimitPrefix + scope + ":" + subject
	res, err := l.rdb.Eval(ctx, lua, []string{key}, window.Milliseconds()).Result()
	if err != nil {
		return open, fmt.Errorf("ratelimit redis eval: %w", err)
	}

	arr, ok := res.([]any)
	if !ok || len(arr) != 2 {
		return open, fmt.Errorf("ratelimit redis eval: unexpected result %T", res)
	}
	count, ok1 := arr[0].(int64)
	ttlms, ok2 := arr[1].(int64)
	if !ok1 || !ok2 {
		return open, fmt.Errorf("ratelimit redis eval: unexpected element types")
	}

	ttl := time.Duration(ttlms) * time.Millisecond
	d := Decision{
		Allowed:   int(count) <= limit,
		Limit:     limit,
		Remaining: max(0, limit-int(count)),
		Count:     int(count),
		ResetAt:   time.Now().Add(ttl),
	}
	if !d.Allowed {
		d.RetryAfter = window
		if ttl > 0 {
			d.RetryAfter = ttl
		}
	}
	return d, nil
}
