// Package session stores server-side session state: whether a session is still live and the
// role cached for it. Redis backs the store in multi-instance deployments; the memory store
// serves single-instance and development setups.
package session

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the server-side session store
type Store interface {
	Create(ctx context.Context, sessionID string, ttl time.Duration) error
	Exists(ctx context.Context, sessionID string) (bool, error)
	GetRole(ctx context.Context, sessionID string) (any, bool, error)
	SetRole(ctx context.Context, sessionID string, role int) error
	Delete(ctx context.Context, sessionID string) error
}

// ---------------------------------------------------------------------------
// Memory
// ---------------------------------------------------------------------------

type memoryEntry struct {
	role      any
	hasRole   bool
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry), now: time.Now}
}

// live returns the entry if present and unexpired; expired entries are dropped. Caller holds mu.
func (s *MemoryStore) live(sessionID string) *memoryEntry {
	e, ok := s.entries[sessionID]
	if !ok {
		return nil
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, sessionID)
		return nil
	}
	return e
}

// Create registers a session
func (s *MemoryStore) Create(_ context.Context, sessionID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sessionID] = &memoryEntry{expiresAt: s.now().Add(ttl)}
	return nil
}

// Exists reports whether the session is live
func (s *MemoryStore) Exists(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(sessionID) != nil, nil
}

// GetRole returns the cached role value, if any
func (s *MemoryStore) GetRole(_ context.Context, sessionID string) (any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(sessionID)
	if e == nil || !e.hasRole {
		return nil, false, nil
	}
	return e.role, true, nil
}

// SetRole caches a role for a live session; unknown sessions are ignored
func (s *MemoryStore) SetRole(_ context.Context, sessionID string, role int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.live(sessionID); e != nil {
		e.role = role
		e.hasRole = true
	}
	return nil
}

// Delete ends a session
func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
	return nil
}

// ---------------------------------------------------------------------------
// Redis
// ---------------------------------------------------------------------------

const roleField = "role"

// RedisStore keeps each session as a hash with a TTL
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStore creates a RedisStore; keys are "<prefix>session:<id>"
func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) key(sessionID string) string {
	return s.keyPrefix + "session:" + sessionID
}

// Create registers a session
func (s *RedisStore) Create(ctx context.Context, sessionID string, ttl time.Duration) error {
	key := s.key(sessionID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "created_at", strconv.FormatInt(time.Now().Unix(), 10))
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

// Exists reports whether the session is live
func (s *RedisStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(sessionID)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetRole returns the cached role string, if any
func (s *RedisStore) GetRole(ctx context.Context, sessionID string) (any, bool, error) {
	v, err := s.client.HGet(ctx, s.key(sessionID), roleField).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// SetRole caches a role for a live session. HSETs on a missing key would resurrect it
// without a TTL, so the write only happens while the session exists.
func (s *RedisStore) SetRole(ctx context.Context, sessionID string, role int) error {
	key := s.key(sessionID)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil || exists == 0 {
		return err
	}
	return s.client.HSet(ctx, key, roleField, strconv.Itoa(role)).Err()
}

// Delete ends a session
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.key(sessionID)).Err()
}
