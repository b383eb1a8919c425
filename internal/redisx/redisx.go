// Package redisx provides Redis client functionality
package redisx

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"

	"tracker-api/internal/config"
)

// Client is an alias for a Redis client
type Client = redis.Client

// Open creates a Redis client. No address means no client; callers fall back
// to in-process state.
func Open(cfg *config.Config) (*Client, func(), error) {
	if cfg.Redis.Addr == "" {
		return nil, func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, func() {}, goerr.Wrap(err, "failed to ping redis", goerr.V("addr", cfg.Redis.Addr))
	}
	closer := func() { _ = rdb.Close() }
	return rdb, closer, nil
}

// Ping reports whether the client answers within the context deadline.
func Ping(ctx context.Context, rdb *Client) error {
	if rdb == nil {
		return nil
	}
	return rdb.Ping(ctx).Err()
}
