// Command invisicipher-server serves the auth API over HTTP and a gRPC health endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/invisicipher/internal/config"
	"github.com/and161185/invisicipher/internal/limiter"
	"github.com/and161185/invisicipher/internal/migrate"
	"github.com/and161185/invisicipher/internal/repository"
	"github.com/and161185/invisicipher/internal/repository/memory"
	"github.com/and161185/invisicipher/internal/repository/postgres"
	grpcserver "github.com/and161185/invisicipher/internal/server/grpc"
	httpserver "github.com/and161185/invisicipher/internal/server/http"
	"github.com/and161185/invisicipher/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// main parses configuration, prepares the store and runs both listeners until a signal arrives.
func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.Dev)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// store opens the configured credential store and the matching limiter.
func store(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.UserRepository, limiter.Limiter, func(), error) {
	policy := limiter.Policy{Window: cfg.LimitWindow, MaxFails: cfg.LimitMaxFails, BlockFor: cfg.LimitBlockFor}
	if cfg.InMemory() {
		logger.Warn("using in-memory credential store; accounts are lost on restart")
		return memory.NewUserRepo(), limiter.NewMemory(policy), func() {}, nil
	}

	if err := migrate.Up(ctx, cfg.DatabaseDSN); err != nil {
		return nil, nil, nil, fmt.Errorf("migrate up: %w", err)
	}
	db, err := postgres.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect: %w", err)
	}
	return postgres.NewUserRepo(db), limiter.NewPG(db.Pool, policy), db.Close, nil
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("http", cfg.HTTPAddr),
		zap.String("grpc", cfg.GRPCHealthAddr),
		zap.Bool("memory", cfg.InMemory()),
	)

	users, lim, closeStore, err := store(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	authSvc, err := service.NewAuthService(users, []byte(cfg.JWTKey),
		service.WithAccessTTL(cfg.AccessTTL),
		service.WithLimiter(lim),
	)
	if err != nil {
		return err
	}

	proxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		return err
	}
	handler := httpserver.NewHandler(authSvc, logger).
		WithMetrics(httpserver.NewMetrics()).
		WithTrustedProxies(proxies)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpserver.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	health := grpcserver.NewHealth(users, cfg.HealthInterval, logger)
	grpcSrv := grpcserver.NewServer(health, logger)
	if cfg.Dev {
		reflection.Register(grpcSrv)
	}
	lis, err := net.Listen("tcp", cfg.GRPCHealthAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	healthCtx, stopHealth := context.WithCancel(ctx)
	defer stopHealth()
	go health.Run(healthCtx)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("listening (grpc health)", zap.String("addr", cfg.GRPCHealthAddr))
		errCh <- grpcSrv.Serve(lis)
	}()
	go func() {
		logger.Info("listening (http)", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	// graceful shutdown
	stopHealth()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	done := make(chan struct{})
	go func() {
		grpcSrv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		grpcSrv.Stop()
	}
	return serveErr
}
