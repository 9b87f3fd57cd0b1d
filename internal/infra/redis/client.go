package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fastprodman/lottoengine/internal/config"
)

// New returns a client for cfg, or nil when no address is configured. Callers treat
// a nil client as "redis disabled".
func New(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	err := Ping(ctx, rdb, 3*time.Second)
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return rdb, nil
}

// Ping checks the connection within timeout.
func Ping(ctx context.Context, rdb *goredis.Client, timeout time.Duration) error {
	if rdb == nil {
		return nil
	}

	c, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return rdb.Ping(c).Err()
}
