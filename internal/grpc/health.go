package grpc

import (
	"context"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is reported alongside the overall ("") status.
const ServiceName = "milkshop.Storefront"

const DefaultCheckInterval = 10 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

// NewServer returns a gRPC server exposing grpc.health.v1 and reflection.
func NewServer(hs *health.Server) *grpc.Server {
	s := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)
	return s
}

// HealthWatcher keeps the health status in line with storage reachability.
type HealthWatcher struct {
	health   *health.Server
	storage  Pinger
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger

	last healthpb.HealthCheckResponse_ServingStatus
}

func NewHealthWatcher(hs *health.Server, storage Pinger, interval time.Duration, log *zap.Logger) *HealthWatcher {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	return &HealthWatcher{
		health:   hs,
		storage:  storage,
		interval: interval,
		timeout:  2 * time.Second,
		log:      log,
		last:     healthpb.HealthCheckResponse_UNKNOWN,
	}
}

// Check pings storage once and publishes the result.
func (w *HealthWatcher) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := w.storage.Ping(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		if w.last != status {
			w.log.Warn("storage unreachable", zap.Error(err))
		}
	} else if w.last == healthpb.HealthCheckResponse_NOT_SERVING {
		w.log.Info("storage reachable again")
	}

	w.last = status
	w.health.SetServingStatus("", status)
	w.health.SetServingStatus(ServiceName, status)
	return status
}

// Run checks immediately and then every interval. When ctx is done every
// service is marked NOT_SERVING.
func (w *HealthWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			w.health.Shutdown()
			return
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}
