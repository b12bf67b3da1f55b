package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultTimeout   = 5 * time.Second
	defaultOpTimeout = 500 * time.Millisecond
)

// Config captures the settings for the role cache connection.
type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	// Timeout bounds the startup ping.
	Timeout time.Duration
	// OpTimeout bounds every read and write. Role lookups fall back to
	// Postgres on error, so it is kept short.
	OpTimeout time.Duration
}

func (cfg Config) options() *redis.Options {
	opTimeout := cfg.OpTimeout
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	return &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	}
}

// Connect initialises a Redis client and validates connectivity with a ping.
// A default timeout is applied when none is provided.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := redis.NewClient(cfg.options())

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	return client, nil
}
