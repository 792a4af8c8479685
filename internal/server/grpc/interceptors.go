package grpcserver

import (
	"context"
	"errors"
	"net"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/and161185/monitor/internal/api"
	"github.com/and161185/monitor/internal/auth"
	"github.com/and161185/monitor/internal/errs"
	"github.com/and161185/monitor/internal/limiter"
)

// RequestIDHeader is the response header carrying the request id.
const RequestIDHeader = "x-request-id"

// LoggingUnary returns a unary server interceptor for structured logging.
// Each call gets a request id, returned to the client as a response header.
func LoggingUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		var rid string
		if id, err := uuid.NewV4(); err == nil {
			rid = id.String()
			ctx = WithRequestID(ctx, rid)
			_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, rid))
		}

		resp, err := next(ctx, req)
		code := status.Code(err)

		// metadata only, never payloads
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("dur", time.Since(start)),
			zap.String("peer", remoteAddr(ctx)),
			zap.String("request_id", rid),
		}
		switch code {
		case codes.OK, codes.InvalidArgument, codes.Unauthenticated, codes.ResourceExhausted, codes.Canceled:
			log.Info("grpc", fields...)
		default:
			log.Warn("grpc", append(fields, zap.Error(err))...)
		}
		return resp, err
	}
}

// RecoverUnary returns a unary server interceptor that recovers from panics.
func RecoverUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic",
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("method", info.FullMethod),
				)
				err = status.Error(codes.Internal, "internal")
			}
		}()
		return next(ctx, req)
	}
}

// AuthUnary authenticates calls to the Monitor service, except its public methods.
// The bearer credential is resolved to a client token and stored in context.
// Peers with too many failures are locked out by lim (nil disables lockout).
func AuthUnary(authn auth.Authenticator, lim limiter.Limiter, log *zap.Logger) grpc.UnaryServerInterceptor {
	prefix := "/" + api.ServiceName + "/"
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, prefix) || api.PublicMethods[info.FullMethod] {
			return next(ctx, req)
		}

		peerHash := limiter.HashPeer(remoteHost(ctx))
		if lim != nil {
			ok, wait, err := lim.Allow(ctx, peerHash)
			if err != nil {
				log.Error("limiter allow", zap.Error(err))
				return nil, status.Error(codes.Internal, "internal")
			}
			if !ok {
				return nil, status.Errorf(codes.ResourceExhausted, "%v, retry in %s", errs.ErrRateLimited, wait.Round(time.Second))
			}
		}

		token, err := authenticate(ctx, authn)
		if err != nil {
			if !errors.Is(err, errs.ErrUnauthorized) {
				log.Error("authenticate", zap.Error(err))
				return nil, status.Error(codes.Internal, "internal")
			}
			if lim != nil {
				if blocked, _, ferr := lim.Failure(ctx, peerHash); ferr != nil {
					log.Warn("limiter failure", zap.Error(ferr))
				} else if blocked {
					log.Warn("peer locked out", zap.String("peer", remoteAddr(ctx)))
				}
			}
			return nil, status.Error(codes.Unauthenticated, "no auth")
		}

		if lim != nil {
			// best-effort reset
			if err := lim.Success(ctx, peerHash); err != nil {
				log.Warn("limiter success", zap.Error(err))
			}
		}
		return next(WithClientToken(ctx, token), req)
	}
}

func authenticate(ctx context.Context, authn auth.Authenticator) (string, error) {
	bearer, err := bearerTokenFromMD(ctx)
	if err != nil {
		return "", errors.Join(errs.ErrUnauthorized, err)
	}
	return authn.Authenticate(ctx, bearer)
}

func bearerTokenFromMD(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("no metadata")
	}
	for _, v := range md.Get("authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			t := strings.TrimSpace(v[7:])
			if t != "" {
				return t, nil
			}
		}
	}
	return "", errors.New("no bearer token")
}

func remoteAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return ""
}

// remoteHost drops the port so lockouts apply to the host, not one connection.
func remoteHost(ctx context.Context) string {
	addr := remoteAddr(ctx)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
