package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Collection reads and writes a whole JSON array of T under one key.
// Unreadable stored data is logged and treated as an empty collection.
type Collection[T any] struct {
	store Store
	log   *zap.Logger
	sfg   singleflight.Group

	// gens counts writes per key. A read only joins an in-flight read of
	// the same generation, so it never sees data older than the last Save.
	mu   sync.Mutex
	gens map[string]uint64
}

func NewCollection[T any](store Store, log *zap.Logger) *Collection[T] {
	return &Collection[T]{store: store, log: log, gens: make(map[string]uint64)}
}

// Load returns the collection, sharing one backend read between concurrent
// callers of the same key. Use LoadLatest inside read-modify-write cycles.
func (c *Collection[T]) Load(ctx context.Context, key string) ([]T, error) {
	flight := key + "#" + strconv.FormatUint(c.generation(key), 10)
	v, err, _ := c.sfg.Do(flight, func() (interface{}, error) {
		return c.LoadLatest(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	shared := v.([]T)
	out := make([]T, len(shared))
	copy(out, shared)
	return out, nil
}

// LoadLatest always reads the backend.
func (c *Collection[T]) LoadLatest(ctx context.Context, key string) ([]T, error) {
	data, err := c.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		c.log.Warn("discarding unreadable stored collection",
			zap.String("key", key), zap.Error(err))
		return []T{}, nil
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (c *Collection[T]) Save(ctx context.Context, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	// a failed Set may still have reached the backend
	defer c.bump(key)
	if err := c.store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key holds any value.
func (c *Collection[T]) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *Collection[T]) Delete(ctx context.Context, key string) error {
	defer c.bump(key)
	return c.store.Delete(ctx, key)
}

func (c *Collection[T]) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[key]
}

func (c *Collection[T]) bump(key string) {
	c.mu.Lock()
	c.gens[key]++
	c.mu.Unlock()
}
