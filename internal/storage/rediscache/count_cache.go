package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	defaultKey = "foodstore:food:count"
	defaultTTL = 30 * time.Second
)

// CountCache кеширует приблизительное количество блюд в Redis.
type CountCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// Option настраивает CountCache.
type Option func(*CountCache)

// WithKey переопределяет ключ кеша.
func WithKey(key string) Option {
	return func(c *CountCache) {
		if key != "" {
			c.key = key
		}
	}
}

// WithTTL задаёт время жизни значения.
func WithTTL(ttl time.Duration) Option {
	return func(c *CountCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// NewCountCache создаёт кеш поверх готового клиента.
func NewCountCache(client *redis.Client, opts ...Option) *CountCache {
	c := &CountCache{client: client, key: defaultKey, ttl: defaultTTL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get возвращает значение и признак попадания в кеш.
func (c *CountCache) Get(ctx context.Context) (int64, bool, error) {
	n, err := c.client.Get(ctx, c.key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis get %s: %w", c.key, err)
	}
	return n, true, nil
}

// Set сохраняет значение с TTL.
func (c *CountCache) Set(ctx context.Context, n int64) error {
	if err := c.client.Set(ctx, c.key, n, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", c.key, err)
	}
	return nil
}

// Invalidate сбрасывает значение после изменения каталога.
func (c *CountCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", c.key, err)
	}
	return nil
}

// Ping проверяет доступность Redis. Используется health-чекером.
func (c *CountCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
