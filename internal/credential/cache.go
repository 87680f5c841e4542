package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sms-console/internal/model"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

const cacheKey = "settings:" + SettingKey

var ErrCacheMiss = errors.New("credentials not cached")

type Cache interface {
	Get(ctx context.Context) (model.GatewayCredentials, error)
	Set(ctx context.Context, creds model.GatewayCredentials) error
	Del(ctx context.Context) error
}

// LocalCache keeps credentials in process memory.
type LocalCache struct {
	c *gocache.Cache
}

func NewLocalCache(ttl time.Duration) *LocalCache {
	return &LocalCache{c: gocache.New(ttl, 2*ttl)}
}

func (l *LocalCache) Get(_ context.Context) (model.GatewayCredentials, error) {
	v, ok := l.c.Get(cacheKey)
	if !ok {
		return model.GatewayCredentials{}, ErrCacheMiss
	}
	return v.(model.GatewayCredentials), nil
}

func (l *LocalCache) Set(_ context.Context, creds model.GatewayCredentials) error {
	l.c.SetDefault(cacheKey, creds)
	return nil
}

func (l *LocalCache) Del(_ context.Context) error {
	l.c.Delete(cacheKey)
	return nil
}

// RedisCache shares credentials between console replicas so an update on one
// is seen by all of them.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context) (model.GatewayCredentials, error) {
	val, err := c.rdb.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.GatewayCredentials{}, ErrCacheMiss
		}
		return model.GatewayCredentials{}, fmt.Errorf("get credentials from redis: %w", err)
	}

	var creds model.GatewayCredentials
	if err := json.Unmarshal(val, &creds); err != nil {
		return model.GatewayCredentials{}, fmt.Errorf("decode cached credentials: %w", err)
	}
	return creds, nil
}

func (c *RedisCache) Set(ctx context.Context, creds model.GatewayCredentials) error {
	b, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, cacheKey, b, c.ttl).Err()
}

func (c *RedisCache) Del(ctx context.Context) error {
	return c.rdb.Del(ctx, cacheKey).Err()
}
