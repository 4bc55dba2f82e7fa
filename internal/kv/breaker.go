package kv

import (
	"context"

	"github.com/fjod/milkshop/pkg/circuitbreaker"
	"go.uber.org/zap"
)

// Guarded fails fast while a remote backend keeps erroring.
type Guarded struct {
	next Store
	cb   *circuitbreaker.Breaker[[]byte]
}

func NewGuarded(next Store, settings circuitbreaker.Settings, log *zap.Logger) *Guarded {
	return &Guarded{
		next: next,
		cb:   circuitbreaker.New[[]byte](settings, log, ErrNotFound, context.Canceled),
	}
}

func (g *Guarded) Get(ctx context.Context, key string) ([]byte, error) {
	return g.cb.Execute(func() ([]byte, error) {
		return g.next.Get(ctx, key)
	})
}

func (g *Guarded) Set(ctx context.Context, key string, value []byte) error {
	_, err := g.cb.Execute(func() ([]byte, error) {
		return nil, g.next.Set(ctx, key, value)
	})
	return err
}

func (g *Guarded) Delete(ctx context.Context, key string) error {
	_, err := g.cb.Execute(func() ([]byte, error) {
		return nil, g.next.Delete(ctx, key)
	})
	return err
}

// Ping bypasses the breaker so health checks see the backend itself.
func (g *Guarded) Ping(ctx context.Context) error {
	return g.next.Ping(ctx)
}

func (g *Guarded) Close() error {
	return g.next.Close()
}
