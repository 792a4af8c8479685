package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/emptypb"
)

const (
	packageName      protoreflect.FullName = "monitor.v1"
	serviceShortName                       = "Monitor"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = string(packageName) + "." + serviceShortName

// Full method names.
const (
	MethodInfo                = "/" + ServiceName + "/Info"
	MethodPing                = "/" + ServiceName + "/Ping"
	MethodGetRecord           = "/" + ServiceName + "/GetRecord"
	MethodReportLatency       = "/" + ServiceName + "/ReportLatency"
	MethodReportInterface     = "/" + ServiceName + "/ReportInterface"
	MethodReportCPU           = "/" + ServiceName + "/ReportCPU"
	MethodReportMemory        = "/" + ServiceName + "/ReportMemory"
	MethodReportMountingPoint = "/" + ServiceName + "/ReportMountingPoint"
)

// PublicMethods can be called without credentials.
var PublicMethods = map[string]bool{
	MethodInfo: true,
	MethodPing: true,
}

// MonitorServer is the server API for the Monitor service.
type MonitorServer interface {
	Info(context.Context, *emptypb.Empty) (*InfoResponse, error)
	Ping(context.Context, *emptypb.Empty) (*PingResponse, error)
	GetRecord(context.Context, *emptypb.Empty) (*RecordResponse, error)
	ReportLatency(context.Context, *LatencyRequest) (*RecordResponse, error)
	ReportInterface(context.Context, *InterfaceRequest) (*RecordResponse, error)
	ReportCPU(context.Context, *CPURequest) (*RecordResponse, error)
	ReportMemory(context.Context, *MemoryRequest) (*RecordResponse, error)
	ReportMountingPoint(context.Context, *MountingPointRequest) (*RecordResponse, error)
}

// ServiceDesc describes the Monitor service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MonitorServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Info", MonitorServer.Info),
		unary("Ping", MonitorServer.Ping),
		unary("GetRecord", MonitorServer.GetRecord),
		unary("ReportLatency", MonitorServer.ReportLatency),
		unary("ReportInterface", MonitorServer.ReportInterface),
		unary("ReportCPU", MonitorServer.ReportCPU),
		unary("ReportMemory", MonitorServer.ReportMemory),
		unary("ReportMountingPoint", MonitorServer.ReportMountingPoint),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: FilePath,
}

// RegisterMonitorServer registers srv on s.
func RegisterMonitorServer(s grpc.ServiceRegistrar, srv MonitorServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// unary builds a method descriptor that decodes the protobuf request into Req,
// dispatches through the interceptor chain and encodes the Resp it returns.
// Interceptors see the Go messages.
func unary[Req, Resp any](name string, call func(MonitorServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, ic grpc.UnaryServerInterceptor) (any, error) {
			raw, decoded := newWire[Req]()
			if err := dec(raw); err != nil {
				return nil, err
			}
			in := decoded()
			s := srv.(MonitorServer)
			if ic == nil {
				resp, err := call(s, ctx, in)
				if err != nil {
					return nil, err
				}
				return toWire(resp)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			resp, err := ic(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
			if err != nil {
				return nil, err
			}
			return toWire(resp)
		},
	}
}
