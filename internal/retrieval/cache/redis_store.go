package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/searchlab/retrieval/internal/pkg/redis"
)

const redisKeyPrefix = "searchcache:"

// RedisStore keeps cache records in Redis. TTL handling is doubled up: the
// record carries expires_at and the key itself expires, so a stale record
// can never outlive a process restart by more than the configured TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Load reads the record for key; a missing key is a clean miss.
func (s *RedisStore) Load(ctx context.Context, key string) (*Entry, error) {
	val, err := s.client.Get(ctx, redisKeyPrefix+key)
	if err != nil {
		if redis.IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis load: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return nil, fmt.Errorf("decode cache record: %w", err)
	}
	return &entry, nil
}

// Save writes the record for key with the store TTL.
func (s *RedisStore) Save(ctx context.Context, key string, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache record: %w", err)
	}
	return s.client.Set(ctx, redisKeyPrefix+key, data, s.ttl)
}

// Delete removes the record for key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.Del(ctx, redisKeyPrefix+key)
	return err
}
