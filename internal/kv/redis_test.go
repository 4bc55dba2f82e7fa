package kv

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and a RedisStore pointing at it
func setupTestRedis(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client, "test", ttl), mr
}

func TestRedisStore_Contract(t *testing.T) {
	s, _ := setupTestRedis(t, 0)
	runStoreContract(t, s)
}

func TestRedisStore_PrefixedKeys(t *testing.T) {
	s, mr := setupTestRedis(t, 0)

	require.NoError(t, s.Set(context.Background(), KeyProducts, []byte(`[]`)))

	assert.True(t, mr.Exists("test:sharedProducts"))
	assert.False(t, mr.Exists("sharedProducts"))
	assert.Equal(t, time.Duration(0), mr.TTL("test:sharedProducts"))
}

func TestRedisStore_TTLWithJitter(t *testing.T) {
	s, mr := setupTestRedis(t, 15*time.Minute)

	require.NoError(t, s.Set(context.Background(), "k", []byte(`[]`)))

	ttl := mr.TTL("test:k")
	assert.GreaterOrEqual(t, ttl, 15*time.Minute)
	assert.Less(t, ttl, 20*time.Minute)

	mr.FastForward(21 * time.Minute)
	_, err := s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_ServerDown(t *testing.T) {
	s, mr := setupTestRedis(t, 0)
	mr.Close()

	_, err := s.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	assert.Error(t, s.Set(context.Background(), "k", []byte(`[]`)))
}
