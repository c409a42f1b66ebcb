package patledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Ledger = (*RedisLedger)(nil)

// RedisLedger shares pat registrations across processes. Each pair is a
// SETNX key, which makes the check-and-set atomic on the Redis side. Keys
// carry a TTL a little past the worry's own lifetime, so the ledger cleans
// itself up once the record is gone.
type RedisLedger struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisLedger builds a Redis-backed ledger. ttl should cover the record
// lifetime plus any retention grace; zero means the keys never expire.
func NewRedisLedger(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisLedger {
	if keyPrefix == "" {
		keyPrefix = "pat"
	}
	return &RedisLedger{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

// TryRegister issues SETNX for the pair key.
func (l *RedisLedger) TryRegister(ctx context.Context, worryID, originKey string) (bool, error) {
	key := fmt.Sprintf("%s:%s:%s", l.keyPrefix, worryID, originKey)

	registered, err := l.client.SetNX(ctx, key, 1, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("patledger: setnx %s: %w", key, err)
	}
	return registered, nil
}
