package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/matst80/slask-catalog/pkg/types"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var ErrCacheMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, key string, out any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache stores entries under prefix using client, which stays owned
// by the caller.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) Client() *redis.Client {
	return c.client
}

func (c *RedisCache) Get(ctx context.Context, key string, out any) error {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return sonic.Unmarshal(data, out)
}

func (c *RedisCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, data, expiration).Err()
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = c.prefix + key
	}
	return c.client.Del(ctx, prefixed...).Err()
}

type localEntry struct {
	expires time.Time
	data    []byte
}

// MemoryCache is the process local fallback when no redis is configured.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]localEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]localEntry)}
}

func (c *MemoryCache) Get(_ context.Context, key string, out any) error {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || entry.expires.Before(time.Now()) {
		return ErrCacheMiss
	}
	return sonic.Unmarshal(entry.data, out)
}

func (c *MemoryCache) Set(_ context.Context, key string, value any, expiration time.Duration) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = localEntry{expires: time.Now().Add(expiration), data: data}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

// CachedTaxonomy caches the category and subcategory lists, product pages
// always go to the service. Concurrent misses for the same key share one
// request.
type CachedTaxonomy struct {
	Categories    types.CategoryService
	SubCategories types.SubCategoryService
	Cache         Cache
	TTL           time.Duration
	Log           logrus.FieldLogger
	group         singleflight.Group
	keys          sync.Map
}

func NewCachedTaxonomy(svc types.CatalogService, cache Cache, ttl time.Duration) *CachedTaxonomy {
	return &CachedTaxonomy{
		Categories:    svc,
		SubCategories: svc,
		Cache:         cache,
		TTL:           ttl,
		Log:           logrus.StandardLogger(),
	}
}

func cached[T any](ctx context.Context, c *CachedTaxonomy, key string, fetch func() ([]T, error)) ([]T, error) {
	c.keys.Store(key, struct{}{})
	var result []T
	if err := c.Cache.Get(ctx, key, &result); err == nil {
		return result, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		items, err := fetch()
		if err != nil {
			return nil, err
		}
		if err := c.Cache.Set(ctx, key, items, c.TTL); err != nil {
			c.Log.Warnf("could not cache %s: %v", key, err)
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]T), nil
}

func (c *CachedTaxonomy) ListCategories(ctx context.Context) ([]types.Category, error) {
	return cached(ctx, c, "categories", func() ([]types.Category, error) {
		return c.Categories.ListCategories(ctx)
	})
}

func (c *CachedTaxonomy) ListSubCategories(ctx context.Context, categoryId string) ([]types.SubCategory, error) {
	return cached(ctx, c, "subcategories:"+categoryId, func() ([]types.SubCategory, error) {
		return c.SubCategories.ListSubCategories(ctx, categoryId)
	})
}

// Invalidate drops every cached list so the next lookup goes to the service.
func (c *CachedTaxonomy) Invalidate(ctx context.Context) error {
	keys := []string{}
	c.keys.Range(func(k, _ any) bool {
		key := k.(string)
		keys = append(keys, key)
		c.group.Forget(key)
		return true
	})
	c.Log.Infof("invalidating %d cached taxonomy lists", len(keys))
	return c.Cache.Delete(ctx, keys...)
}
