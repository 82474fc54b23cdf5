package storage

import (
	"context"
	"testing"

	"github.com/jonathan/course-crawler/internal/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore_Keys(t *testing.T) {
	store := NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "")
	defer func() { _ = store.Close() }()

	assert.Equal(t, "course_crawler:document:U", store.DocumentKey(types.CareerUndergraduate))
	assert.Equal(t, "course_crawler:raw:W:failed", store.ArchiveKey(types.CareerInService, types.ArchiveTagFailed))
}

func TestNewRedisStore_InvalidURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisConfig{URL: "http://not-redis"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse redis URL")
}
