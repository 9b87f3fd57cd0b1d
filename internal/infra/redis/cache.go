package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/fastprodman/lottoengine/internal/lottery"
)

// ErrCacheMiss is returned by Get when nothing is cached.
var ErrCacheMiss = errors.New("cache miss")

// ResultCache stores finished round results. A nil client disables it: Get always
// misses and Set does nothing.
type ResultCache struct {
	rdb *goredis.Client
	ttl time.Duration
}

func NewResultCache(rdb *goredis.Client, ttl time.Duration) *ResultCache {
	return &ResultCache{rdb: rdb, ttl: ttl}
}

func (c *ResultCache) Get(ctx context.Context, roundID string) (lottery.RoundResult, error) {
	if c == nil || c.rdb == nil {
		return lottery.RoundResult{}, ErrCacheMiss
	}

	raw, err := c.rdb.Get(ctx, RoundResultKey(roundID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return lottery.RoundResult{}, ErrCacheMiss
		}

		return lottery.RoundResult{}, fmt.Errorf("get cached result: %w", err)
	}

	var res lottery.RoundResult

	err = json.Unmarshal(raw, &res)
	if err != nil {
		return lottery.RoundResult{}, fmt.Errorf("decode cached result: %w", err)
	}

	return res, nil
}

// Set caches res. Only final results are cached; others are ignored.
func (c *ResultCache) Set(ctx context.Context, res lottery.RoundResult) error {
	if c == nil || c.rdb == nil || !res.Final() {
		return nil
	}

	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	err = c.rdb.Set(ctx, RoundResultKey(res.Round.ID), raw, c.ttl).Err()
	if err != nil {
		return fmt.Errorf("cache result: %w", err)
	}

	return nil
}
