package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jgivc/ghrelay/internal/common"
	"github.com/redis/go-redis/v9"
)

const (
	KeyPrefix    = "ghr"
	KeySeparator = ":"
)

type redisCache struct {
	cl  *redis.Client
	log *slog.Logger
}

func NewRedisCache(cl *redis.Client, log *slog.Logger) *redisCache {
	return &redisCache{
		cl:  cl,
		log: log.With(slog.String("item", "RedisCache")),
	}
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.cl.Get(ctx, getKey(KeyPrefix, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrCacheMiss
		}

		return nil, fmt.Errorf("cannot get cache key %s: %w", key, err)
	}

	return data, nil
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	if err := c.cl.Set(ctx, getKey(KeyPrefix, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("cannot set cache key %s: %w", key, err)
	}

	c.log.Debug("Cache set", slog.String("key", key), slog.Duration("ttl", ttl))

	return nil
}

func getKey(keys ...string) string {
	return strings.Join(keys, KeySeparator)
}
