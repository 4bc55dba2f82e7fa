package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/milkshop/internal/cart"
	"github.com/fjod/milkshop/internal/catalog"
	"github.com/fjod/milkshop/internal/checkout"
	"github.com/fjod/milkshop/internal/config"
	milkgrpc "github.com/fjod/milkshop/internal/grpc"
	h "github.com/fjod/milkshop/internal/http"
	"github.com/fjod/milkshop/internal/kv"
	"github.com/fjod/milkshop/internal/orders"
	"github.com/fjod/milkshop/internal/relay"
	"github.com/fjod/milkshop/internal/telemetry"
	"github.com/fjod/milkshop/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logCfg := &logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output}
	if cfg.IsProduction() {
		logCfg.Format = "json"
	}
	zl, err := logger.New(logCfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()
	zap.ReplaceGlobals(zl)

	if err := run(cfg, zl); err != nil {
		zl.Fatal("storefront stopped with error", zap.Error(err))
	}
	zl.Info("storefront stopped")
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(cfg.Telemetry, zl)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			zl.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	store, err := kv.Open(ctx, cfg.Storage, zl)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	instanceID := cfg.App.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}
	zl = zl.With(zap.String("instance_id", instanceID))

	events := relay.New(instanceID, zl.Named("relay"))
	hub := relay.NewHub(events.Version, zl.Named("ws"))
	events.Subscribe(hub.Handle)

	products := catalog.NewStore(store, events, zl)
	carts := cart.NewService(store, events, zl)
	orderStore := orders.NewStore(store, events, zl)
	placer := checkout.NewService(carts, products, orderStore, zl)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	if cfg.Kafka.Enabled {
		fwd := relay.NewForwarder(instanceID, cfg.Kafka.Topic, cfg.Kafka.Brokers, zl.Named("kafka"))
		defer fwd.Close()
		events.Subscribe(fwd.Handle)

		lst := relay.NewListener(events, cfg.Kafka.Topic, cfg.Kafka.GroupID, cfg.Kafka.Brokers, zl.Named("kafka"))
		defer lst.Close()

		g.Go(func() error {
			fwd.Run(gctx)
			return nil
		})
		g.Go(func() error {
			lst.Run(gctx)
			return nil
		})
		zl.Info("kafka event bridge enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	router := h.NewRouter(h.Deps{
		Products:           products,
		Carts:              carts,
		Checkout:           placer,
		Orders:             orderStore,
		Events:             hub,
		Auth:               h.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Health:             store.Ping,
		RequestTimeout:     cfg.HTTP.RequestTimeout,
		MaxRequestBodySize: cfg.HTTP.MaxRequestBodySize,
		ServiceName:        cfg.Telemetry.ServiceName,
		Log:                zl.Named("http"),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.HTTP.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	g.Go(func() error {
		zl.Info("HTTP server starting", zap.String("port", cfg.HTTP.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	healthServer := health.NewServer()
	grpcServer := milkgrpc.NewServer(healthServer)
	watcher := milkgrpc.NewHealthWatcher(healthServer, store, milkgrpc.DefaultCheckInterval, zl.Named("health"))
	lis, err := net.Listen("tcp", ":"+cfg.GRPC.Port)
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port: %w", err)
	}
	g.Go(func() error {
		watcher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		zl.Info("gRPC health server listening", zap.String("port", cfg.GRPC.Port))
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		grpcServer.GracefulStop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
