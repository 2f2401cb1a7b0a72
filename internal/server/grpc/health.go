// Package grpcserver runs the gRPC health endpoint of the auth server.
package grpcserver

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported next to the overall "" status.
const ServiceName = "invisicipher.auth"

// Pinger is anything whose reachability decides the serving status.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health follows the credential store's reachability.
type Health struct {
	hs       *health.Server
	store    Pinger
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger
}

// NewHealth constructs a Health that starts in NOT_SERVING until the first successful ping.
func NewHealth(store Pinger, interval time.Duration, log *zap.Logger) *Health {
	h := &Health{
		hs:       health.NewServer(),
		store:    store,
		interval: interval,
		timeout:  interval / 2,
		log:      log,
	}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// NewServer returns a gRPC server with the interceptor chain and the health service registered.
func NewServer(h *Health, log *zap.Logger) *grpc.Server {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(RecoverUnary(log), LoggingUnary(log)),
		grpc.ChainStreamInterceptor(RecoverStream(log), LoggingStream(log)),
	)
	healthpb.RegisterHealthServer(s, h.hs)
	return s
}

// Run pings the store every interval until ctx is done, then marks everything NOT_SERVING.
func (h *Health) Run(ctx context.Context) {
	h.Check(ctx)
	t := time.NewTicker(h.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			h.hs.Shutdown()
			return
		case <-t.C:
			h.Check(ctx)
		}
	}
}

// Check pings the store once and updates the serving status.
func (h *Health) Check(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.log.Warn("store ping failed", zap.Error(err))
		h.set(healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	h.set(healthpb.HealthCheckResponse_SERVING)
}

func (h *Health) set(st healthpb.HealthCheckResponse_ServingStatus) {
	h.hs.SetServingStatus("", st)
	h.hs.SetServingStatus(ServiceName, st)
}
