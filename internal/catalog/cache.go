package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adstudio/backend/internal/metrics"
	"github.com/adstudio/backend/internal/models"
)

// Cache stores videos by id. A miss is reported with ok == false.
type Cache interface {
	Get(ctx context.Context, id string) (video models.Video, ok bool, err error)
	Set(ctx context.Context, video models.Video) error
	Delete(ctx context.Context, id string) error
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (models.Video, bool, error) {
	return models.Video{}, false, nil
}

func (noopCache) Set(context.Context, models.Video) error { return nil }

func (noopCache) Delete(context.Context, string) error { return nil }

type cacheEntry struct {
	video   models.Video
	expires time.Time
}

// MemoryCache is a process-local TTL cache.
type MemoryCache struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.RWMutex
	items map[string]cacheEntry
}

// NewMemoryCache returns a cache that keeps entries for ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &MemoryCache{ttl: ttl, now: time.Now, items: make(map[string]cacheEntry)}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, id string) (models.Video, bool, error) {
	c.mu.RLock()
	entry, ok := c.items[id]
	c.mu.RUnlock()

	hit := ok && c.now().Before(entry.expires)
	metrics.RecordCacheAccess("memory", hit)
	if !hit {
		return models.Video{}, false, nil
	}
	return entry.video, true, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, video models.Video) error {
	c.mu.Lock()
	c.items[video.ID] = cacheEntry{video: video, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

// Delete implements Cache.
func (c *MemoryCache) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	delete(c.items, id)
	c.mu.Unlock()
	return nil
}

// RedisCache shares cached videos between instances as JSON values.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
}

// NewRedisCache returns a cache storing entries under "<prefix>video:<id>".
func NewRedisCache(client redis.Cmdable, ttl time.Duration, prefix string) *RedisCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisCache{client: client, ttl: ttl, prefix: prefix}
}

func (c *RedisCache) key(id string) string {
	return fmt.Sprintf("%svideo:%s", c.prefix, id)
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, id string) (models.Video, bool, error) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.RecordCacheAccess("redis", false)
			return models.Video{}, false, nil
		}
		return models.Video{}, false, fmt.Errorf("get video from cache: %w", err)
	}

	var video models.Video
	if err := json.Unmarshal(data, &video); err != nil {
		return models.Video{}, false, fmt.Errorf("unmarshal cached video: %w", err)
	}
	metrics.RecordCacheAccess("redis", true)
	return video, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, video models.Video) error {
	data, err := json.Marshal(video)
	if err != nil {
		return fmt.Errorf("marshal video: %w", err)
	}
	return c.client.Set(ctx, c.key(video.ID), data, c.ttl).Err()
}

// Delete implements Cache.
func (c *RedisCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, c.key(id)).Err()
}
