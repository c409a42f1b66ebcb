package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Limiter = (*RedisLimiter)(nil)

// admitScript performs the whole fixed-window check-and-set server-side so
// concurrent admits for one key are serialized by Redis. A rejected request
// leaves the counter untouched, and the key's TTL is the window reset.
var admitScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])

local count = tonumber(redis.call('GET', key) or '0')
if count >= capacity then
	return {0, 0, redis.call('PTTL', key)}
end

count = redis.call('INCR', key)
if count == 1 then
	redis.call('PEXPIRE', key, window_ms)
end
return {1, capacity - count, redis.call('PTTL', key)}
`)

// RedisLimiter shares fixed windows across processes via Redis. Stale keys
// expire through the window TTL, so no janitor is needed.
type RedisLimiter struct {
	client    *redis.Client
	cfg       Config
	keyPrefix string
}

// NewRedisLimiter builds a Redis-backed limiter.
func NewRedisLimiter(client *redis.Client, cfg Config, keyPrefix string) *RedisLimiter {
	if keyPrefix == "" {
		keyPrefix = "ratelimit"
	}
	return &RedisLimiter{
		client:    client,
		cfg:       cfg,
		keyPrefix: keyPrefix,
	}
}

// Admit runs the fixed-window script for originKey.
func (l *RedisLimiter) Admit(ctx context.Context, originKey string) (Decision, error) {
	key := l.keyPrefix + ":" + originKey

	raw, err := admitScript.Run(ctx, l.client,
		[]string{key},
		l.cfg.Capacity,
		l.cfg.Window.Milliseconds(),
	).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: run admit script: %w", err)
	}

	reply, ok := raw.([]interface{})
	if !ok || len(reply) != 3 {
		return Decision{}, fmt.Errorf("ratelimit: unexpected script reply %T", raw)
	}

	allowed, _ := reply[0].(int64)
	remaining, _ := reply[1].(int64)
	ttlMillis, _ := reply[2].(int64)

	resetAt := time.Now().Add(l.cfg.Window)
	if ttlMillis > 0 {
		resetAt = time.Now().Add(time.Duration(ttlMillis) * time.Millisecond)
	}

	return Decision{
		Allowed:   allowed == 1,
		Remaining: int(remaining),
		ResetAt:   resetAt,
	}, nil
}
