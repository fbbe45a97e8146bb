package directory

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/qa-dashboard/qa-dashboard/internal/telemetry"
)

// Cache stores member lists by key. Get reports ok=false on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (members []string, ok bool, err error)
	Set(ctx context.Context, key string, members []string, ttl time.Duration) error
}

// Cached wraps a Directory with a TTL cache. Cache failures fall through to the backend.
type Cached struct {
	next  Directory
	cache Cache
	ttl   time.Duration
}

// NewCached wraps next with cache
func NewCached(next Directory, cache Cache, ttl time.Duration) *Cached {
	return &Cached{next: next, cache: cache, ttl: ttl}
}

// SiteMembers returns cached site members, loading them on a miss
func (c *Cached) SiteMembers(ctx context.Context, site string) ([]string, error) {
	return c.get(ctx, KindSite, site, c.next.SiteMembers)
}

// RegionMembers returns cached region members, loading them on a miss
func (c *Cached) RegionMembers(ctx context.Context, region string) ([]string, error) {
	return c.get(ctx, KindRegion, region, c.next.RegionMembers)
}

func (c *Cached) get(ctx context.Context, kind, name string, load func(context.Context, string) ([]string, error)) ([]string, error) {
	key := kind + ":" + normalizeKey(name)

	members, ok, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		telemetry.DirectoryCacheTotal.WithLabelValues("error").Inc()
		slog.Warn("directory cache read failed", "key", key, "error", err)
	case ok:
		telemetry.DirectoryCacheTotal.WithLabelValues("hit").Inc()
		return members, nil
	default:
		telemetry.DirectoryCacheTotal.WithLabelValues("miss").Inc()
	}

	members, err = load(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, members, c.ttl); err != nil {
		slog.Warn("directory cache write failed", "key", key, "error", err)
	}
	return members, nil
}

// ---------------------------------------------------------------------------
// Memory cache
// ---------------------------------------------------------------------------

type memoryItem struct {
	members   []string
	expiresAt time.Time
}

// MemoryCache is a process-local Cache
type MemoryCache struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

// NewMemoryCache creates an empty MemoryCache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]memoryItem), now: time.Now}
}

// Get returns a copy of the cached members
func (m *MemoryCache) Get(_ context.Context, key string) ([]string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	if m.now().After(item.expiresAt) {
		delete(m.items, key)
		return nil, false, nil
	}
	return copyMembers(item.members), true, nil
}

// Set stores a copy of members
func (m *MemoryCache) Set(_ context.Context, key string, members []string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = memoryItem{members: copyMembers(members), expiresAt: m.now().Add(ttl)}
	return nil
}

// ---------------------------------------------------------------------------
// Redis cache
// ---------------------------------------------------------------------------

// RedisCache stores JSON-encoded member lists under "<prefix>directory:<kind>:<name>"
type RedisCache struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisCache creates a RedisCache
func NewRedisCache(client redis.UniversalClient, keyPrefix string) *RedisCache {
	return &RedisCache{client: client, keyPrefix: keyPrefix}
}

// Get reads and decodes a member list
func (r *RedisCache) Get(ctx context.Context, key string) ([]string, bool, error) {
	raw, err := r.client.Get(ctx, r.keyPrefix+"directory:"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var members []string
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil, false, err
	}
	return members, true, nil
}

// Set encodes and stores a member list with a TTL
func (r *RedisCache) Set(ctx context.Context, key string, members []string, ttl time.Duration) error {
	if members == nil {
		members = []string{}
	}
	raw, err := json.Marshal(members)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.keyPrefix+"directory:"+key, raw, ttl).Err()
}
