package settings

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/cashrecon/internal/shared"
)

// Source loads settings from the system of record.
type Source interface {
	Get(ctx context.Context, storeID int64) (Settings, error)
	StoresWithPurgeDay(ctx context.Context, day int) ([]int64, error)
}

// Cache fronts a Source with redis. Redis failures degrade to the Source.
type Cache struct {
	source Source
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewCache constructs a Cache. A nil client disables caching.
func NewCache(source Source, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{source: source, client: client, ttl: ttl, logger: logger}
}

// Get returns cached settings or loads them once per store across concurrent callers.
func (c *Cache) Get(ctx context.Context, storeID int64) (Settings, error) {
	key := shared.SettingsCacheKey(storeID)
	if c.client != nil {
		raw, err := c.client.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var s Settings
			if jsonErr := json.Unmarshal(raw, &s); jsonErr == nil {
				return s, nil
			}
		case !errors.Is(err, redis.Nil):
			c.logger.Warn("settings cache read", slog.Int64("store_id", storeID), slog.Any("error", err))
		}
	}

	v, err, _ := c.group.Do(strconv.FormatInt(storeID, 10), func() (any, error) {
		s, err := c.source.Get(ctx, storeID)
		if err != nil {
			return Settings{}, err
		}
		c.store(ctx, key, s)
		return s, nil
	})
	if err != nil {
		return Settings{}, err
	}
	return v.(Settings), nil
}

// Invalidate drops a cached entry.
func (c *Cache) Invalidate(ctx context.Context, storeID int64) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, shared.SettingsCacheKey(storeID)).Err()
}

// StoresWithPurgeDay is not cached; the sweep runs once a day.
func (c *Cache) StoresWithPurgeDay(ctx context.Context, day int) ([]int64, error) {
	return c.source.StoresWithPurgeDay(ctx, day)
}

func (c *Cache) store(ctx context.Context, key string, s Settings) {
	if c.client == nil {
		return
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("settings cache write", slog.Int64("store_id", s.StoreID), slog.Any("error", err))
	}
}
