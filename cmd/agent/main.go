// Command monitor-agent samples the local host and reports it to a monitor server.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/and161185/monitor/internal/agent"
	"github.com/and161185/monitor/internal/api"
	"github.com/and161185/monitor/internal/collector"
)

type bearerCreds struct {
	token  string
	secure bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}
func (b bearerCreds) RequireTransportSecurity() bool { return b.secure }

func loadTLS(caPath string, skipVerify bool) (credentials.TransportCredentials, error) {
	if skipVerify {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil //nolint:gosec // explicit dev flag
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

func main() {
	addr := flag.String("addr", "localhost:8443", "server address")
	token := flag.String("token", os.Getenv("MONITOR_TOKEN"), "client token (default $MONITOR_TOKEN)")
	interval := flag.Duration("interval", time.Minute, "report interval")
	once := flag.Bool("once", false, "report once and exit")
	caPath := flag.String("ca", "", "CA certificate (PEM) for the server")
	skipVerify := flag.Bool("insecure-skip-verify", false, "do not verify the server certificate (dev only)")
	plaintext := flag.Bool("plaintext", false, "connect without TLS (dev only)")
	debug := flag.Bool("debug", false, "debug logging")
	flag.Parse()

	var logger *zap.Logger
	if *debug {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	defer func() { _ = logger.Sync() }()

	if *token == "" {
		fmt.Fprintln(os.Stderr, "missing client token (-token or MONITOR_TOKEN)")
		os.Exit(2)
	}
	if *interval <= 0 {
		fmt.Fprintln(os.Stderr, "interval must be positive")
		os.Exit(2)
	}

	opts := []grpc.DialOption{grpc.WithPerRPCCredentials(bearerCreds{token: *token, secure: !*plaintext})}
	if *plaintext {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		creds, err := loadTLS(*caPath, *skipVerify)
		if err != nil {
			logger.Fatal("tls", zap.Error(err))
		}
		opts = append(opts, grpc.WithTransportCredentials(creds))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	//nolint:staticcheck // DialContext is supported through 1.x; migrate when grpc.NewClient is stable
	cc, err := grpc.DialContext(ctx, *addr, opts...)
	if err != nil {
		logger.Fatal("dial", zap.Error(err))
	}
	defer func() { _ = cc.Close() }()

	a := agent.New(api.NewClient(cc), collector.New(nil, logger), logger)
	if *once {
		if err := a.ReportOnce(ctx); err != nil {
			logger.Error("report", zap.Error(err))
			os.Exit(1)
		}
		return
	}
	logger.Info("reporting", zap.String("addr", *addr), zap.Duration("interval", *interval))
	if err := a.Run(ctx, *interval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("agent stopped", zap.Error(err))
		os.Exit(1)
	}
}
