// Package grpcserver exposes the monitor gRPC API handlers.
package grpcserver

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/and161185/monitor/internal/api"
	"github.com/and161185/monitor/internal/convert"
	"github.com/and161185/monitor/internal/errs"
	"github.com/and161185/monitor/internal/model"
	"github.com/and161185/monitor/internal/service"
)

// Application is the name reported by Info.
const Application = "monitor"

// Server wires the record service into gRPC handlers.
type Server struct {
	records service.RecordService
	version string
	log     *zap.Logger
	now     func() time.Time
}

var _ api.MonitorServer = (*Server)(nil)

// New constructs a gRPC server with injected services.
func New(records service.RecordService, version string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{records: records, version: version, log: log, now: time.Now}
}

// Info reports the application name and version.
func (s *Server) Info(context.Context, *emptypb.Empty) (*api.InfoResponse, error) {
	return &api.InfoResponse{Application: Application, Version: s.version}, nil
}

// Ping returns the server clock; clients time the round trip to measure latency.
func (s *Server) Ping(context.Context, *emptypb.Empty) (*api.PingResponse, error) {
	return &api.PingResponse{ServerTime: s.now()}, nil
}

// GetRecord returns the caller's record, creating it on first contact.
func (s *Server) GetRecord(ctx context.Context, _ *emptypb.Empty) (*api.RecordResponse, error) {
	token, err := clientToken(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := s.records.LoadOrCreate(ctx, token)
	return s.respond(ctx, "get record", rec, err)
}

// ReportLatency stores the caller's measured latency.
func (s *Server) ReportLatency(ctx context.Context, req *api.LatencyRequest) (*api.RecordResponse, error) {
	token, err := clientToken(ctx)
	if err != nil {
		return nil, err
	}
	latency, err := convert.FromLatencyRequest(req)
	if err != nil {
		return nil, toStatus("report latency", err)
	}
	rec, err := s.records.UpdateNetworkLatency(ctx, token, latency)
	return s.respond(ctx, "report latency", rec, err)
}

// ReportInterface upserts one network interface by name.
func (s *Server) ReportInterface(ctx context.Context, req *api.InterfaceRequest) (*api.RecordResponse, error) {
	token, err := clientToken(ctx)
	if err != nil {
		return nil, err
	}
	in, err := convert.FromInterfaceRequest(req)
	if err != nil {
		return nil, toStatus("report interface", err)
	}
	rec, err := s.records.UpsertNetworkInterface(ctx, token, in)
	return s.respond(ctx, "report interface", rec, err)
}

// ReportCPU replaces the cpu section.
func (s *Server) ReportCPU(ctx context.Context, req *api.CPURequest) (*api.RecordResponse, error) {
	token, err := clientToken(ctx)
	if err != nil {
		return nil, err
	}
	cpu, err := convert.FromCPURequest(req)
	if err != nil {
		return nil, toStatus("report cpu", err)
	}
	rec, err := s.records.UpdateCPU(ctx, token, cpu)
	return s.respond(ctx, "report cpu", rec, err)
}

// ReportMemory replaces the memory section.
func (s *Server) ReportMemory(ctx context.Context, req *api.MemoryRequest) (*api.RecordResponse, error) {
	token, err := clientToken(ctx)
	if err != nil {
		return nil, err
	}
	mem, err := convert.FromMemoryRequest(req)
	if err != nil {
		return nil, toStatus("report memory", err)
	}
	rec, err := s.records.UpdateMemory(ctx, token, mem)
	return s.respond(ctx, "report memory", rec, err)
}

// ReportMountingPoint upserts one mounting point by path.
func (s *Server) ReportMountingPoint(ctx context.Context, req *api.MountingPointRequest) (*api.RecordResponse, error) {
	token, err := clientToken(ctx)
	if err != nil {
		return nil, err
	}
	mp, err := convert.FromMountingPointRequest(req)
	if err != nil {
		return nil, toStatus("report mounting point", err)
	}
	rec, err := s.records.UpsertMountingPoint(ctx, token, mp)
	return s.respond(ctx, "report mounting point", rec, err)
}

func (s *Server) respond(ctx context.Context, op string, rec *model.ClientRecord, err error) (*api.RecordResponse, error) {
	if err != nil {
		st := toStatus(op, err)
		if status.Code(st) == codes.Internal || status.Code(st) == codes.DataLoss {
			s.log.Error(op, zap.String("request_id", RequestIDFromCtx(ctx)), zap.Error(err))
		}
		return nil, st
	}
	resp, err := convert.ToRecordResponse(rec)
	if err != nil {
		s.log.Error("encode response", zap.String("request_id", RequestIDFromCtx(ctx)), zap.Error(err))
		return nil, status.Error(codes.Internal, "internal")
	}
	return resp, nil
}

func clientToken(ctx context.Context) (string, error) {
	token, ok := ClientTokenFromCtx(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "no auth")
	}
	return token, nil
}

// toStatus maps domain errors to gRPC status codes.
func toStatus(op string, err error) error {
	switch {
	case strings.HasPrefix(err.Error(), "validation:"):
		return status.Errorf(codes.InvalidArgument, "malformed request: %s", strings.TrimPrefix(err.Error(), "validation: "))
	case errors.Is(err, errs.ErrKeyMismatch), errors.Is(err, errs.ErrInvalidToken):
		return status.Errorf(codes.InvalidArgument, "%s: %v", op, err)
	case errors.Is(err, errs.ErrCorruptRecord):
		return status.Errorf(codes.DataLoss, "%s: stored record is corrupt", op)
	case errors.Is(err, errs.ErrStoreUnavailable):
		return status.Errorf(codes.Unavailable, "%s: store unavailable", op)
	case errors.Is(err, errs.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "no auth")
	case errors.Is(err, errs.ErrRateLimited):
		return status.Error(codes.ResourceExhausted, "rate limited")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, op)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, op)
	default:
		return status.Errorf(codes.Internal, "%s: internal", op)
	}
}
