package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
)

// RedisPublisher publishes events as JSON on a pub/sub channel.
type RedisPublisher struct {
	rdb     *goredis.Client
	channel string
}

func NewRedisPublisher(rdb *goredis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	err = p.rdb.Publish(ctx, p.channel, raw).Err()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}

	return nil
}

// LogPublisher writes events to the structured log.
type LogPublisher struct {
	log *slog.Logger
}

func NewLogPublisher(log *slog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(ctx context.Context, ev Event) error {
	p.log.InfoContext(ctx, "notification",
		"type", ev.Type,
		"round_id", ev.RoundID,
		"users", len(ev.UserIDs),
	)

	return nil
}
