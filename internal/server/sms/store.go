package sms

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/ticketkeeper/internal/common"
	"github.com/redis/go-redis/v9"
)

// CodeStore keeps one code hash and an attempt counter per phone.
// Get returns common.ErrorNotFound for a missing or expired code.
type CodeStore interface {
	Put(ctx context.Context, phone, codeHash string, ttl time.Duration) error
	Get(ctx context.Context, phone string) (string, error)
	Attempt(ctx context.Context, phone string) (int64, error)
	Delete(ctx context.Context, phone string) error
}

// RedisClient is the subset of *redis.Client the store uses.
type RedisClient interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type RedisStore struct {
	client RedisClient
}

func NewRedisStore(client RedisClient) *RedisStore {
	return &RedisStore{client: client}
}

func codeKey(phone string) string     { return "sms_code:" + phone }
func attemptsKey(phone string) string { return "sms_attempts:" + phone }

func (s *RedisStore) Put(ctx context.Context, phone, codeHash string, ttl time.Duration) error {
	if err := s.client.Del(ctx, attemptsKey(phone)).Err(); err != nil {
		return err
	}
	return s.client.Set(ctx, codeKey(phone), codeHash, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, phone string) (string, error) {
	v, err := s.client.Get(ctx, codeKey(phone)).Result()
	if errors.Is(err, redis.Nil) {
		return "", common.ErrorNotFound
	}
	return v, err
}

func (s *RedisStore) Attempt(ctx context.Context, phone string) (int64, error) {
	n, err := s.client.Incr(ctx, attemptsKey(phone)).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := s.client.Expire(ctx, attemptsKey(phone), DefaultTTL).Err(); err != nil {
			return 0, err
		}
	}
	return n, nil
}

func (s *RedisStore) Delete(ctx context.Context, phone string) error {
	return s.client.Del(ctx, codeKey(phone), attemptsKey(phone)).Err()
}

type memoryEntry struct {
	hash     string
	attempts int64
	expires  time.Time
}

// MemoryStore is a single-process CodeStore.
type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]*memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now, entries: make(map[string]*memoryEntry)}
}

func (s *MemoryStore) Put(_ context.Context, phone, codeHash string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[phone] = &memoryEntry{hash: codeHash, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, phone string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(phone)
	if !ok {
		return "", common.ErrorNotFound
	}
	return e.hash, nil
}

func (s *MemoryStore) Attempt(_ context.Context, phone string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(phone)
	if !ok {
		return 0, common.ErrorNotFound
	}
	e.attempts++
	return e.attempts, nil
}

func (s *MemoryStore) Delete(_ context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, phone)
	return nil
}

// live must be called with mu held.
func (s *MemoryStore) live(phone string) (*memoryEntry, bool) {
	e, ok := s.entries[phone]
	if !ok {
		return nil, false
	}
	if s.now().After(e.expires) {
		delete(s.entries, phone)
		return nil, false
	}
	return e, true
}
