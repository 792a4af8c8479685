package grpcserver

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/and161185/monitor/internal/api"
	"github.com/and161185/monitor/internal/auth"
	"github.com/and161185/monitor/internal/convert"
	"github.com/and161185/monitor/internal/errs"
	"github.com/and161185/monitor/internal/model"
	"github.com/and161185/monitor/internal/repository/memory"
	"github.com/and161185/monitor/internal/service"
)

const bufSize = 1 << 20

func startBufGRPC(t *testing.T, srv api.MonitorServer, authn auth.Authenticator) (*grpc.ClientConn, func()) {
	t.Helper()
	log := zaptest.NewLogger(t)
	lis := bufconn.Listen(bufSize)
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(
		RecoverUnary(log),
		LoggingUnary(log),
		AuthUnary(authn, nil, log),
	))
	api.RegisterMonitorServer(gs, srv)
	healthpb.RegisterHealthServer(gs, health.NewServer())
	go func() { _ = gs.Serve(lis) }()

	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	//nolint:staticcheck // DialContext is supported through 1.x; migrate when grpc.NewClient is stable
	cc, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	stop := func() { _ = cc.Close(); gs.Stop(); _ = lis.Close() }
	return cc, stop
}

func ctxAuth(token string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
}

func newStack(t *testing.T) (*api.Client, func()) {
	t.Helper()
	records := service.NewRecordStore(memory.New(), "monitor", true, zaptest.NewLogger(t))
	srv := New(records, "test", zaptest.NewLogger(t))
	cc, stop := startBufGRPC(t, srv, auth.NewStaticTokens([]string{"t1", "t2"}))
	return api.NewClient(cc), stop
}

func decode(t *testing.T, resp *api.RecordResponse) *model.ClientRecord {
	t.Helper()
	rec, err := convert.FromRecordResponse(resp)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rec
}

func TestServer_E2E_ReportFlow(t *testing.T) {
	t.Parallel()
	cl, stop := newStack(t)
	defer stop()
	ctx := ctxAuth("t1")

	resp, err := cl.ReportLatency(ctx, convert.ToLatencyRequest(0.042))
	if err != nil {
		t.Fatalf("report latency: %v", err)
	}
	rec := decode(t, resp)
	if *rec.Data.Analytics.Network.Latency != 0.042 || len(rec.Metadata.AuditLog) != 2 ||
		rec.Metadata.AuditLog[0].Event != model.EventCreatedRecord ||
		rec.Metadata.AuditLog[1].Event != model.EventNetworkLatencyUpdated {
		t.Fatalf("after latency: %+v", rec)
	}

	eth0 := model.NetworkInterface{Name: "eth0", MAC: "aa:bb", IPv4: model.Ptr("10.0.0.1")}
	if _, err := cl.ReportInterface(ctx, convert.ToInterfaceRequest(eth0)); err != nil {
		t.Fatalf("report interface: %v", err)
	}
	eth0.MAC = "cc:dd"
	resp, err = cl.ReportInterface(ctx, convert.ToInterfaceRequest(eth0))
	if err != nil {
		t.Fatalf("re-report interface: %v", err)
	}
	ifs := decode(t, resp).Data.Analytics.Network.Interfaces
	if len(ifs) != 1 || ifs[0].MAC != "cc:dd" || ifs[0].IPv6 != nil {
		t.Fatalf("interfaces: %+v", ifs)
	}

	cpu := model.CPUInfo{Threads: model.Ptr(8), Cores: model.Ptr(4), Model: model.Ptr("test cpu"), Load: model.Ptr(0.25)}
	if _, err := cl.ReportCPU(ctx, convert.ToCPURequest(cpu)); err != nil {
		t.Fatalf("report cpu: %v", err)
	}
	mem := model.MemoryInfo{Available: model.Ptr[int64](1 << 30), Used: model.Ptr[int64](1 << 29)}
	if _, err := cl.ReportMemory(ctx, convert.ToMemoryRequest(mem)); err != nil {
		t.Fatalf("report memory: %v", err)
	}
	resp, err = cl.ReportMountingPoint(ctx, convert.ToMountingPointRequest(model.MountingPoint{Path: "/", Available: 10, Used: 5}))
	if err != nil {
		t.Fatalf("report mounting point: %v", err)
	}
	rec = decode(t, resp)
	if len(rec.Metadata.AuditLog) != 7 || rec.Data.Analytics.Memory.Swap != nil || *rec.Data.Analytics.CPU.Model != "test cpu" {
		t.Fatalf("final record: %+v", rec)
	}

	resp, err = cl.GetRecord(ctx)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if got := decode(t, resp); len(got.Metadata.AuditLog) != 7 {
		t.Fatalf("get record must not mutate: %d entries", len(got.Metadata.AuditLog))
	}

	other, err := cl.GetRecord(ctxAuth("t2"))
	if err != nil {
		t.Fatalf("get record t2: %v", err)
	}
	if got := decode(t, other); len(got.Metadata.AuditLog) != 1 || len(got.Data.Analytics.Network.Interfaces) != 0 {
		t.Fatalf("records leak between clients: %+v", got)
	}
}

func TestServer_PublicMethods(t *testing.T) {
	t.Parallel()
	cl, stop := newStack(t)
	defer stop()

	info, err := cl.Info(context.Background())
	if err != nil || info.Application != "monitor" || info.Version != "test" {
		t.Fatalf("info: %+v %v", info, err)
	}
	before := time.Now().Add(-time.Second)
	ping, err := cl.Ping(context.Background())
	if err != nil || ping.ServerTime.Before(before) {
		t.Fatalf("ping: %+v %v", ping, err)
	}
}

func TestServer_HealthUsesProtobuf(t *testing.T) {
	t.Parallel()
	records := service.NewRecordStore(memory.New(), "monitor", true, nil)
	cc, stop := startBufGRPC(t, New(records, "test", nil), auth.NewStaticTokens(nil))
	defer stop()

	resp, err := healthpb.NewHealthClient(cc).Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil || resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("health: %v %v", resp, err)
	}
}

func TestServer_StatusCodes(t *testing.T) {
	t.Parallel()
	cl, stop := newStack(t)
	defer stop()
	ctx := ctxAuth("t1")

	if _, err := cl.GetRecord(context.Background()); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("no auth: want Unauthenticated, got %v", err)
	}
	if _, err := cl.GetRecord(ctxAuth("nope")); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("bad token: want Unauthenticated, got %v", err)
	}

	invalid := map[string]func() error{
		"latency missing": func() error { _, err := cl.ReportLatency(ctx, &api.LatencyRequest{}); return err },
		"interface no address": func() error {
			_, err := cl.ReportInterface(ctx, &api.InterfaceRequest{Name: "eth0", MAC: "aa"})
			return err
		},
		"interface name not utf-8": func() error {
			_, err := cl.ReportInterface(ctx, &api.InterfaceRequest{Name: "e\xff", MAC: "aa", IPv4: model.Ptr("10.0.0.1")})
			return err
		},
		"cpu negative": func() error { _, err := cl.ReportCPU(ctx, &api.CPURequest{Cores: model.Ptr(-1)}); return err },
		"memory negative": func() error {
			_, err := cl.ReportMemory(ctx, &api.MemoryRequest{Used: model.Ptr[int64](-1)})
			return err
		},
		"mount no path": func() error {
			_, err := cl.ReportMountingPoint(ctx, &api.MountingPointRequest{Available: model.Ptr[int64](1), Used: model.Ptr[int64](1)})
			return err
		},
	}
	for name, call := range invalid {
		if err := call(); status.Code(err) != codes.InvalidArgument {
			t.Fatalf("%s: want InvalidArgument, got %v", name, err)
		}
	}
}

func TestToStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want codes.Code
	}{
		{errors.New("validation: bad"), codes.InvalidArgument},
		{errs.ErrKeyMismatch, codes.InvalidArgument},
		{errs.ErrInvalidToken, codes.InvalidArgument},
		{errors.Join(errs.ErrCorruptRecord, errors.New("x")), codes.DataLoss},
		{errs.ErrStoreUnavailable, codes.Unavailable},
		{errs.ErrUnauthorized, codes.Unauthenticated},
		{errs.ErrRateLimited, codes.ResourceExhausted},
		{context.Canceled, codes.Canceled},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("boom"), codes.Internal},
	}
	for _, tc := range cases {
		if got := status.Code(toStatus("op", tc.err)); got != tc.want {
			t.Fatalf("%v: want %s, got %s", tc.err, tc.want, got)
		}
	}
}

type failingRecords struct {
	service.RecordService
	err error
}

func (f failingRecords) LoadOrCreate(context.Context, string) (*model.ClientRecord, error) {
	return nil, f.err
}

func TestServer_StoreErrorsMapped(t *testing.T) {
	t.Parallel()
	ctx := WithClientToken(context.Background(), "t1")

	srv := New(failingRecords{err: errs.ErrCorruptRecord}, "test", zaptest.NewLogger(t))
	if _, err := srv.GetRecord(ctx, &emptypb.Empty{}); status.Code(err) != codes.DataLoss {
		t.Fatalf("want DataLoss, got %v", err)
	}
	srv = New(failingRecords{err: errs.ErrStoreUnavailable}, "test", zaptest.NewLogger(t))
	if _, err := srv.GetRecord(ctx, &emptypb.Empty{}); status.Code(err) != codes.Unavailable {
		t.Fatalf("want Unavailable, got %v", err)
	}
	if _, err := srv.GetRecord(context.Background(), &emptypb.Empty{}); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("handler without token: want Unauthenticated, got %v", err)
	}
}
