package kv

import (
	"context"
	"fmt"

	"github.com/fjod/milkshop/internal/config"
	"github.com/fjod/milkshop/pkg/circuitbreaker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Open builds the backend named by cfg.Driver. Network backends are wrapped
// in a circuit breaker when cfg.Breaker.Enabled is set.
func Open(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (Store, error) {
	var (
		store  Store
		remote bool
	)

	switch cfg.Driver {
	case "", "memory":
		store = NewMemoryStore(cfg.TTL)

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		store, remote = NewRedisStore(client, cfg.Redis.Prefix, cfg.TTL), true

	case "sqlite":
		s, err := NewSQLiteStore(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		store = s

	case "postgres":
		s, err := NewPostgresStore(Credentials{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			DBName:   cfg.Postgres.DBName,
			SSLMode:  cfg.Postgres.SSLMode,
		})
		if err != nil {
			return nil, err
		}
		store, remote = s, true

	case "mongo":
		db, err := ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		store, remote = NewMongoStore(db, cfg.Mongo.Collection), true

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}

	log.Info("storage opened", zap.String("driver", cfg.Driver))

	if remote && cfg.Breaker.Enabled {
		return NewGuarded(store, circuitbreaker.Settings{
			Name:         "kv-" + cfg.Driver,
			MaxRequests:  cfg.Breaker.MaxRequests,
			Interval:     cfg.Breaker.Interval,
			Timeout:      cfg.Breaker.Timeout,
			FailureRatio: cfg.Breaker.FailureRatio,
			MinRequests:  cfg.Breaker.MinRequests,
		}, log), nil
	}
	return store, nil
}
