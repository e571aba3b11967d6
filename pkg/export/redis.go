package export

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"wsncollect/pkg/config"
)

// redisClient is the part of *redis.Client used here.
type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// Redis publishes deliveries as JSON on a pub/sub channel.
type Redis struct {
	rdb     redisClient
	channel string
}

// NewRedis connects to the configured server and checks it with PING.
func NewRedis(ctx context.Context, c config.RedisExportConfig) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       0,
	})
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", c.Addr, err)
	}
	return &Redis{rdb: rdb, channel: c.Channel}, nil
}

func (r *Redis) Export(ctx context.Context, d Delivery) error {
	msg, err := Marshal(d)
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, r.channel, msg).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (r *Redis) Close() error { return r.rdb.Close() }
