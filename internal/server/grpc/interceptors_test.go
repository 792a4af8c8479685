package grpcserver

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/and161185/monitor/internal/api"
	"github.com/and161185/monitor/internal/auth"
	"github.com/and161185/monitor/internal/limiter"
)

type fakeAddr struct{}

func (fakeAddr) Network() string { return "tcp" }
func (fakeAddr) String() string  { return "127.0.0.1:12345" }

func TestLoggingUnary_Passthrough(t *testing.T) {
	t.Parallel()

	ic := LoggingUnary(zaptest.NewLogger(t))
	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: fakeAddr{}})

	var gotID string
	h := func(ctx context.Context, req any) (any, error) {
		gotID = RequestIDFromCtx(ctx)
		return "ok", nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: api.MethodGetRecord}

	resp, err := ic(ctx, "req", info, h)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s, _ := resp.(string); s != "ok" {
		t.Fatalf("resp mismatch: %v", resp)
	}
	if len(gotID) != 36 {
		t.Fatalf("want uuid request id, got %q", gotID)
	}

	wantErr := errors.New("boom")
	hErr := func(ctx context.Context, req any) (any, error) { return nil, wantErr }
	if _, err = ic(ctx, "req", info, hErr); !errors.Is(err, wantErr) {
		t.Fatalf("want original error, got: %v", err)
	}
}

func TestLoggingUnary_DurationFieldDoesNotBlock(t *testing.T) {
	t.Parallel()

	ic := LoggingUnary(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: api.MethodPing}
	h := func(ctx context.Context, req any) (any, error) {
		time.Sleep(5 * time.Millisecond)
		return "done", nil
	}

	start := time.Now()
	resp, err := ic(context.Background(), "req", info, h)
	if err != nil || resp.(string) != "done" {
		t.Fatalf("unexpected result: %v, %v", resp, err)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Fatalf("duration should reflect handler time")
	}
}

func TestRecoverUnary_CatchesPanic(t *testing.T) {
	t.Parallel()

	ic := RecoverUnary(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: api.MethodReportCPU}
	panicH := func(ctx context.Context, req any) (any, error) {
		panic("oh no")
	}

	_, err := ic(context.Background(), "req", info, panicH)
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Internal {
		t.Fatalf("want codes.Internal, got: %v", err)
	}
}

func TestRecoverUnary_NoPanicPassThrough(t *testing.T) {
	t.Parallel()

	ic := RecoverUnary(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: api.MethodInfo}
	h := func(ctx context.Context, req any) (any, error) { return 42, nil }

	resp, err := ic(context.Background(), "req", info, h)
	if err != nil || resp.(int) != 42 {
		t.Fatalf("unexpected result: %v, %v", resp, err)
	}
}

func bearerCtx(token string) context.Context {
	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: fakeAddr{}})
	if token == "" {
		return ctx
	}
	return metadata.NewIncomingContext(ctx, metadata.Pairs("authorization", "Bearer "+token))
}

func TestAuthUnary(t *testing.T) {
	t.Parallel()

	authn := auth.NewStaticTokens([]string{"t1"})
	ic := AuthUnary(authn, nil, zaptest.NewLogger(t))

	var seen string
	h := func(ctx context.Context, req any) (any, error) {
		seen, _ = ClientTokenFromCtx(ctx)
		return "ok", nil
	}
	guarded := &grpc.UnaryServerInfo{FullMethod: api.MethodReportLatency}

	if _, err := ic(bearerCtx("t1"), nil, guarded, h); err != nil || seen != "t1" {
		t.Fatalf("valid token: err=%v seen=%q", err, seen)
	}

	for name, ctx := range map[string]context.Context{
		"no metadata": bearerCtx(""),
		"wrong token": bearerCtx("t2"),
		"not bearer":  metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Basic t1")),
	} {
		if _, err := ic(ctx, nil, guarded, h); status.Code(err) != codes.Unauthenticated {
			t.Fatalf("%s: want Unauthenticated, got %v", name, err)
		}
	}

	seen = ""
	for _, m := range []string{api.MethodInfo, api.MethodPing, "/grpc.health.v1.Health/Check"} {
		if _, err := ic(bearerCtx(""), nil, &grpc.UnaryServerInfo{FullMethod: m}, h); err != nil {
			t.Fatalf("%s must be public: %v", m, err)
		}
	}
	if seen != "" {
		t.Fatalf("public call must not carry a client token")
	}
}

func TestAuthUnary_LocksOutAfterFailures(t *testing.T) {
	t.Parallel()

	lim := limiter.NewMemory(time.Minute, 2, time.Minute)
	ic := AuthUnary(auth.NewStaticTokens([]string{"t1"}), lim, zaptest.NewLogger(t))
	h := func(ctx context.Context, req any) (any, error) { return "ok", nil }
	info := &grpc.UnaryServerInfo{FullMethod: api.MethodGetRecord}

	for i := 0; i < 2; i++ {
		if _, err := ic(bearerCtx("bad"), nil, info, h); status.Code(err) != codes.Unauthenticated {
			t.Fatalf("attempt %d: want Unauthenticated, got %v", i, err)
		}
	}
	if _, err := ic(bearerCtx("t1"), nil, info, h); status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("locked peer: want ResourceExhausted, got %v", err)
	}
}

type brokenAuth struct{}

func (brokenAuth) Authenticate(context.Context, string) (string, error) {
	return "", errors.New("backend down")
}

func TestAuthUnary_AuthenticatorFailure(t *testing.T) {
	t.Parallel()

	ic := AuthUnary(brokenAuth{}, nil, zaptest.NewLogger(t))
	h := func(ctx context.Context, req any) (any, error) { return "ok", nil }
	_, err := ic(bearerCtx("t1"), nil, &grpc.UnaryServerInfo{FullMethod: api.MethodGetRecord}, h)
	if status.Code(err) != codes.Internal {
		t.Fatalf("want Internal, got %v", err)
	}
}
