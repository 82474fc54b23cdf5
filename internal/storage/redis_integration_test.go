//go:build integration
// +build integration

package storage

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jonathan/course-crawler/internal/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set, skipping integration test")
	}

	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)

	prefix := "course_crawler_test_" + uuid.NewString()
	store := NewRedisStoreFromClient(rdb, prefix)
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := rdb.Keys(ctx, prefix+":*").Result()
		if len(keys) > 0 {
			rdb.Del(ctx, keys...)
		}
		_ = store.Close()
	})
	return store
}

func TestRedisStore_SaveDocument_Integration(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	key, err := store.SaveDocument(ctx, &Document{
		Career:  types.CareerGeneralEducation,
		Content: recoveredDoc(t, `{"course":["體育"]}`),
	})
	require.NoError(t, err)
	assert.Equal(t, store.DocumentKey(types.CareerGeneralEducation), key)

	val, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"course\": [\n    \"體育\"\n  ]\n}", val)
}

func TestRedisStore_ArchiveRaw_Integration(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	raw := "\x00broken {"
	key, err := store.ArchiveRaw(ctx, &RawArchive{Career: types.CareerMaster, Tag: types.ArchiveTagFailed, Raw: raw})
	require.NoError(t, err)

	val, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, raw, val)

	missing, err := store.Get(ctx, store.ArchiveKey(types.CareerDoctoral, types.ArchiveTagFailed))
	require.NoError(t, err)
	assert.Empty(t, missing)
}
