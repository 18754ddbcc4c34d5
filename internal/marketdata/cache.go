package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache stores the raw document between fetches.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache connects to a redis:// URL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(strings.TrimSpace(redisURL))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return &RedisCache{rdb: redis.NewClient(opt)}, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	return b, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Close() error { return c.rdb.Close() }

// CachedSource is a read-through cache in front of another Source. Cache
// failures are logged and the upstream is used.
type CachedSource struct {
	src   Source
	cache Cache
	key   string
	ttl   time.Duration
}

func NewCachedSource(src Source, cache Cache, key string, ttl time.Duration) *CachedSource {
	if key == "" {
		key = "wedx:exchange_data"
	}
	return &CachedSource{src: src, cache: cache, key: key, ttl: ttl}
}

func (c *CachedSource) FetchRaw(ctx context.Context) ([]byte, error) {
	b, err := c.cache.Get(ctx, c.key)
	switch {
	case err == nil && len(b) > 0:
		return b, nil
	case err != nil && !errors.Is(err, ErrCacheMiss):
		logrus.WithField("prefix", "marketdata").Warnf("cache get %s: %v", c.key, err)
	}

	b, err = c.src.FetchRaw(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, c.key, b, c.ttl); err != nil {
		logrus.WithField("prefix", "marketdata").Warnf("cache set %s: %v", c.key, err)
	}
	return b, nil
}
