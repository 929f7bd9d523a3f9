package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options tunes the Redis client shared by the settings cache, sweep locks and asynq.
type Options struct {
	Addr     string
	PoolSize int
	// ClientName is reported by CLIENT LIST so cashrecon connections are identifiable.
	ClientName string
}

func (o Options) redisOptions() *redis.Options {
	opts := &redis.Options{
		Addr:         o.Addr,
		ClientName:   o.ClientName,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
	if o.PoolSize > 0 {
		opts.PoolSize = o.PoolSize
	}
	return opts
}

// New creates a Redis client and verifies it with a ping.
func New(ctx context.Context, o Options) (*redis.Client, error) {
	client := redis.NewClient(o.redisOptions())

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping %s: %w", o.Addr, err)
	}

	return client, nil
}
