package qrauth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// NonceStore remembers redeemed payloads until they expire.
type NonceStore interface {
	// Claim records key and reports whether it was not already present.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

const redisPrefix = "qr_nonce:"

// RedisClient is the subset of *redis.Client the store uses.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

// RedisStore shares claims across service instances.
type RedisStore struct {
	client RedisClient
}

func NewRedisStore(client RedisClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, redisPrefix+key, 1, ttl).Result()
}

// MemoryStore is a single-process store.
type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now, entries: make(map[string]time.Time)}
}

func (s *MemoryStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, exp := range s.entries {
		if now.After(exp) {
			delete(s.entries, k)
		}
	}

	if _, ok := s.entries[key]; ok {
		return false, nil
	}
	s.entries[key] = now.Add(ttl)
	return true, nil
}
