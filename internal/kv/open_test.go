package kv

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/milkshop/internal/config"
	"github.com/fjod/milkshop/pkg/circuitbreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpen_Memory(t *testing.T) {
	s, err := Open(context.Background(), config.StorageConfig{Driver: "memory"}, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &MemoryStore{}, s)
}

func TestOpen_SQLite(t *testing.T) {
	cfg := config.StorageConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "kv.db")},
	}
	s, err := Open(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &SQLiteStore{}, s)
	runStoreContract(t, s)
}

func TestOpen_RedisIsGuarded(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.StorageConfig{
		Driver: "redis",
		Redis:  config.RedisConfig{Addr: mr.Addr(), Prefix: "ms"},
		Breaker: config.BreakerConfig{
			Enabled:      true,
			MaxRequests:  1,
			Interval:     time.Minute,
			Timeout:      time.Minute,
			FailureRatio: 0.5,
			MinRequests:  3,
		},
	}

	s, err := Open(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &Guarded{}, s)
	runStoreContract(t, s)
}

func TestOpen_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Open(context.Background(), config.StorageConfig{
		Driver: "redis",
		Redis:  config.RedisConfig{Addr: addr},
	}, zap.NewNop())
	assert.Error(t, err)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Driver: "etcd"}, zap.NewNop())
	assert.ErrorContains(t, err, "etcd")
}

func TestGuarded_OpensAfterFailures(t *testing.T) {
	boom := errors.New("boom")
	settings := circuitbreaker.DefaultSettings("test")
	settings.MinRequests = 2
	settings.FailureRatio = 0.5
	settings.Timeout = time.Hour

	g := NewGuarded(failingStore{err: boom}, settings, zap.NewNop())
	ctx := context.Background()

	assert.ErrorIs(t, g.Set(ctx, "k", nil), boom)
	_, err := g.Get(ctx, "k")
	assert.ErrorIs(t, err, boom)

	_, err = g.Get(ctx, "k")
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.NotErrorIs(t, err, boom)
}

func TestGuarded_NotFoundDoesNotTrip(t *testing.T) {
	settings := circuitbreaker.DefaultSettings("test")
	settings.MinRequests = 1
	settings.FailureRatio = 0.1

	g := NewGuarded(NewMemoryStore(0), settings, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := g.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	require.NoError(t, g.Set(ctx, "k", []byte(`[]`)))
}

func TestGuarded_CanceledDoesNotTrip(t *testing.T) {
	settings := circuitbreaker.DefaultSettings("test")
	settings.MinRequests = 1
	settings.FailureRatio = 0.1

	g := NewGuarded(failingStore{err: context.Canceled}, settings, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := g.Get(ctx, "k")
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, circuitbreaker.ErrOpen)
	}
}
