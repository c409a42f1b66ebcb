package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/pyrelog/pyre/config"
	"github.com/redis/go-redis/v9"
)

const (
	defaultDialTimeout = 5 * time.Second

	// Redis sits on the request path for admission checks, so commands
	// that stall are cut short and the caller fails open.
	commandTimeout = 500 * time.Millisecond
)

// NewClient builds a redis client using app config and verifies connectivity via PING.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 6379
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  commandTimeout,
		WriteTimeout: commandTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return rdb, nil
}
