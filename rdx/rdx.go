package rdx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps the Redis client used for the notification event channel and
// small read caches. Constructed in main and passed down.
type Cache struct {
	Conn *redis.Client
}

func Connect(ctx context.Context, addr string) (*Cache, error) {
	conn := redis.NewClient(&redis.Options{Addr: addr})
	if err := conn.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Cache{Conn: conn}, nil
}

func (c *Cache) Close() error {
	return c.Conn.Close()
}

func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.Conn.Set(ctx, key, value, ttl).Err()
}

func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	return c.Conn.Get(ctx, key).Result()
}

func (c *Cache) Del(ctx context.Context, keys ...string) error {
	return c.Conn.Del(ctx, keys...).Err()
}

func (c *Cache) Publish(ctx context.Context, channel string, payload []byte) error {
	return c.Conn.Publish(ctx, channel, payload).Err()
}

func (c *Cache) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return c.Conn.Subscribe(ctx, channel)
}
