package cache

import (
	"context"
	"errors"
	"time"

	"github.com/gobwas/glob"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// NoExpiration keeps a value until it is invalidated explicitly.
const NoExpiration time.Duration = 0

const scanBatch = 200

// Cache holds derived, non-authoritative projections. Keys and patterns are logical;
// implementations apply their own namespace so a pattern never reaches foreign keys.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	InvalidatePattern(ctx context.Context, pattern string) error
	InvalidateKeys(ctx context.Context, keys []string) error
}

type RedisCache struct {
	client    *redis.Client
	namespace string
}

func NewRedisCache(client *redis.Client, namespace string) *RedisCache {
	return &RedisCache{client: client, namespace: namespace}
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.namespace+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, r.namespace+key, value, ttl).Err()
}

func (r *RedisCache) InvalidatePattern(ctx context.Context, pattern string) error {
	iter := r.client.Scan(ctx, 0, r.namespace+pattern, scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return r.client.Del(ctx, batch...).Err()
	}
	return nil
}

func (r *RedisCache) InvalidateKeys(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.namespace + k
	}
	return r.client.Del(ctx, full...).Err()
}

// MemoryCache is the in-process fallback used when redis is unreachable at startup.
type MemoryCache struct {
	c *gocache.Cache
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{c: gocache.New(gocache.NoExpiration, 10*time.Minute)}
}

func (m *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	if ttl <= NoExpiration {
		ttl = gocache.NoExpiration
	}
	m.c.Set(key, value, ttl)
	return nil
}

// InvalidatePattern matches like redis SCAN MATCH: no separators, so * spans any character.
func (m *MemoryCache) InvalidatePattern(_ context.Context, pattern string) error {
	g, err := glob.Compile(pattern)
	if err != nil {
		return err
	}
	for k := range m.c.Items() {
		if g.Match(k) {
			m.c.Delete(k)
		}
	}
	return nil
}

func (m *MemoryCache) InvalidateKeys(_ context.Context, keys []string) error {
	for _, k := range keys {
		m.c.Delete(k)
	}
	return nil
}

// NewCache prefers redis and falls back to memory when the client is nil or unreachable.
func NewCache(ctx context.Context, client *redis.Client, namespace string) Cache {
	if client != nil {
		if err := client.Ping(ctx).Err(); err == nil {
			return NewRedisCache(client, namespace)
		}
	}
	return NewMemoryCache()
}
