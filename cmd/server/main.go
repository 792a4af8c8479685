// Command monitor-server starts the telemetry gRPC server.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/monitor/internal/api"
	"github.com/and161185/monitor/internal/auth"
	"github.com/and161185/monitor/internal/config"
	"github.com/and161185/monitor/internal/limiter"
	"github.com/and161185/monitor/internal/migrate"
	"github.com/and161185/monitor/internal/repository"
	"github.com/and161185/monitor/internal/repository/memory"
	"github.com/and161185/monitor/internal/repository/postgres"
	"github.com/and161185/monitor/internal/repository/sqlite"
	grpcserver "github.com/and161185/monitor/internal/server/grpc"
	"github.com/and161185/monitor/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, opens the record store, and serves until SIGINT/SIGTERM.
func main() {
	cfg, err := config.Load("monitor-server", os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	var logger *zap.Logger
	if cfg.Dev {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("store", cfg.Store.Backend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opener, lim, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer closeStore()

	authn, err := auth.NewTokens(cfg.Auth.Tokens)
	if err != nil {
		logger.Fatal("client tokens", zap.Error(err))
	}
	if cfg.Auth.JWTKey != "" {
		authn = append(authn, auth.NewJWT([]byte(cfg.Auth.JWTKey), cfg.Auth.JWTLeeway))
	}

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.LoggingUnary(logger),
			grpcserver.AuthUnary(authn, lim, logger),
		),
	}
	if cfg.TLS.Insecure {
		logger.Warn("serving without TLS")
	} else {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLS.Cert, cfg.TLS.Key)
		if err != nil {
			logger.Fatal("failed to load TLS cert/key", zap.Error(err))
		}
		opts = append(opts, grpc.Creds(creds))
	}
	s := grpc.NewServer(opts...)

	records := service.NewRecordStore(opener, cfg.Store.Name, cfg.Store.CreateIfMissing, logger.Named("records"))
	api.RegisterMonitorServer(s, grpcserver.New(records, version, logger))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if cfg.Dev {
		reflection.Register(s)
	}

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.Bool("tls", !cfg.TLS.Insecure))
		errCh <- s.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		hs.Shutdown()
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			s.Stop()
		}
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		closeStore()
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

// openStore builds the configured key-value backend and the matching lockout limiter.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Opener, limiter.Limiter, func(), error) {
	l := cfg.Limiter
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		if cfg.Store.Migrate {
			v, err := migrate.Up(ctx, cfg.Store.DSN, logger)
			if err != nil {
				return nil, nil, nil, err
			}
			logger.Info("schema ready", zap.Int64("version", v))
		}
		db, err := postgres.New(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, nil, nil, err
		}
		return postgres.NewKVStore(db), limiter.NewPG(db.Pool, l.Window, l.MaxFails, l.BlockFor), db.Close, nil
	case config.BackendMemory:
		return memory.New(), limiter.NewMemory(l.Window, l.MaxFails, l.BlockFor), func() {}, nil
	default:
		return sqlite.New(cfg.Store.Dir), limiter.NewMemory(l.Window, l.MaxFails, l.BlockFor), func() {}, nil
	}
}
