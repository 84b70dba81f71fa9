package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"github.com/FACorreiaa/go-trip-planner-ai/internal/types"
)

// KVStore persists JSON documents under string keys with a TTL.
// Get returns types.ErrNotFound for missing or expired keys.
type KVStore interface {
	Get(ctx context.Context, key string, dst any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

var (
	_ KVStore = (*RedisKVStore)(nil)
	_ KVStore = (*MemoryKVStore)(nil)
)

type RedisKVStore struct {
	client *redis.Client
	prefix string
}

func NewRedisKVStore(client *redis.Client, prefix string) *RedisKVStore {
	return &RedisKVStore{client: client, prefix: prefix}
}

func (s *RedisKVStore) Get(ctx context.Context, key string, dst any) error {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *RedisKVStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, s.prefix+key, b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisKVStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// MemoryKVStore keeps encoded documents in process. Values are stored as JSON so callers
// never share mutable state with the cache.
type MemoryKVStore struct {
	cache  *cache.Cache
	prefix string
}

func NewMemoryKVStore(prefix string) *MemoryKVStore {
	return &MemoryKVStore{cache: cache.New(time.Hour, 10*time.Minute), prefix: prefix}
}

func (s *MemoryKVStore) Get(_ context.Context, key string, dst any) error {
	v, found := s.cache.Get(s.prefix + key)
	if !found {
		return types.ErrNotFound
	}
	return json.Unmarshal(v.([]byte), dst)
}

func (s *MemoryKVStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	s.cache.Set(s.prefix+key, b, ttl)
	return nil
}

func (s *MemoryKVStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(s.prefix + key)
	return nil
}
