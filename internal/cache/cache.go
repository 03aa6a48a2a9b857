package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const livenessPrefix = "hb:"

// Cache keeps the liveness fast path in Redis: ping timestamps are written
// here on every ping and read by the reconciler, with the Postgres column as
// the durable fallback.
type Cache struct {
	Client *redis.Client
}

func New(redisURL string) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Cache{Client: client}, nil
}

func (c *Cache) Close() error {
	return c.Client.Close()
}

// SetLiveness records the last ping time for a subscriber.
func (c *Cache) SetLiveness(ctx context.Context, chatID int64, t time.Time) error {
	key := fmt.Sprintf("%s%d", livenessPrefix, chatID)
	return c.Client.Set(ctx, key, t.Unix(), 0).Err()
}

// GetLiveness returns the last ping time for a subscriber.
func (c *Cache) GetLiveness(ctx context.Context, chatID int64) (time.Time, error) {
	key := fmt.Sprintf("%s%d", livenessPrefix, chatID)
	val, err := c.Client.Get(ctx, key).Result()
	if err != nil {
		return time.Time{}, err
	}
	unix, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(unix, 0), nil
}
