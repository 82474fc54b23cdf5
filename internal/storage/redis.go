package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jonathan/course-crawler/internal/types"
	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	URL      string
	Password string
}

// RedisStore keeps documents and archives as plain string keys.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// DefaultRedisPrefix namespaces every key written by RedisStore.
const DefaultRedisPrefix = "course_crawler"

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStoreFromClient(rdb, DefaultRedisPrefix), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

// DocumentKey returns the key holding the document for career.
func (s *RedisStore) DocumentKey(career types.Career) string {
	return fmt.Sprintf("%s:document:%s", s.prefix, career.Code())
}

// ArchiveKey returns the key holding the archived raw payload for career and tag.
func (s *RedisStore) ArchiveKey(career types.Career, tag types.ArchiveTag) string {
	return fmt.Sprintf("%s:raw:%s:%s", s.prefix, career.Code(), tag)
}

// SaveDocument stores the pretty-printed document without expiry.
func (s *RedisStore) SaveDocument(ctx context.Context, doc *Document) (string, error) {
	data, err := render(doc)
	if err != nil {
		return "", &PersistError{Career: careerOf(doc), Op: "render document", Cause: err}
	}
	key := s.DocumentKey(doc.Career)
	if err := s.rdb.Set(ctx, key, data, 0).Err(); err != nil {
		return "", &PersistError{Career: doc.Career, Op: "set document", Cause: err}
	}
	return key, nil
}

// ArchiveRaw stores the raw payload verbatim without expiry.
func (s *RedisStore) ArchiveRaw(ctx context.Context, raw *RawArchive) (string, error) {
	key := s.ArchiveKey(raw.Career, raw.Tag)
	if err := s.rdb.Set(ctx, key, raw.Raw, 0).Err(); err != nil {
		return "", &PersistError{Career: raw.Career, Op: "set archive", Cause: err}
	}
	return key, nil
}

// Get returns the value stored at key, or "" when the key does not exist.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get failed: %w", err)
	}
	return val, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
