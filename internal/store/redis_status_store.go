package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces status keys.
const DefaultPrefix = "linkcrawler:status:"

// RedisStatusStore stores crawl status in Redis.
type RedisStatusStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStatusStore initializes a Redis-backed StatusStore. A zero ttl
// keeps keys forever.
func NewRedisStatusStore(addr, prefix string, ttl time.Duration) *RedisStatusStore {
	return NewRedisStatusStoreWithClient(redis.NewClient(&redis.Options{Addr: addr}), prefix, ttl)
}

// NewRedisStatusStoreWithClient wraps an existing client.
func NewRedisStatusStoreWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStatusStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisStatusStore{client: client, prefix: prefix, ttl: ttl}
}

// Ping checks the connection.
func (s *RedisStatusStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *RedisStatusStore) Close() error {
	return s.client.Close()
}

// SetStatus writes the status record to Redis.
func (s *RedisStatusStore) SetStatus(ctx context.Context, status CrawlStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(status.SessionID), payload, s.ttl).Err()
}

// GetStatus reads the status record from Redis.
func (s *RedisStatusStore) GetStatus(ctx context.Context, sessionID string) (CrawlStatus, bool, error) {
	val, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return CrawlStatus{}, false, nil
		}
		return CrawlStatus{}, false, err
	}

	var status CrawlStatus
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		return CrawlStatus{}, false, err
	}
	return status, true, nil
}

func (s *RedisStatusStore) key(sessionID string) string {
	return s.prefix + sessionID
}
