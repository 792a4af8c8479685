package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
)

// Client is a typed client for the Monitor service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	req, err := toWire(in)
	if err != nil {
		return nil, err
	}
	raw, decoded := newWire[Resp]()
	if err := cc.Invoke(ctx, method, req, raw, opts...); err != nil {
		return nil, err
	}
	return decoded(), nil
}

func (c *Client) Info(ctx context.Context, opts ...grpc.CallOption) (*InfoResponse, error) {
	return invoke[InfoResponse](ctx, c.cc, MethodInfo, &emptypb.Empty{}, opts)
}

func (c *Client) Ping(ctx context.Context, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c.cc, MethodPing, &emptypb.Empty{}, opts)
}

func (c *Client) GetRecord(ctx context.Context, opts ...grpc.CallOption) (*RecordResponse, error) {
	return invoke[RecordResponse](ctx, c.cc, MethodGetRecord, &emptypb.Empty{}, opts)
}

func (c *Client) ReportLatency(ctx context.Context, in *LatencyRequest, opts ...grpc.CallOption) (*RecordResponse, error) {
	return invoke[RecordResponse](ctx, c.cc, MethodReportLatency, orEmpty(in), opts)
}

func (c *Client) ReportInterface(ctx context.Context, in *InterfaceRequest, opts ...grpc.CallOption) (*RecordResponse, error) {
	return invoke[RecordResponse](ctx, c.cc, MethodReportInterface, orEmpty(in), opts)
}

func (c *Client) ReportCPU(ctx context.Context, in *CPURequest, opts ...grpc.CallOption) (*RecordResponse, error) {
	return invoke[RecordResponse](ctx, c.cc, MethodReportCPU, orEmpty(in), opts)
}

func (c *Client) ReportMemory(ctx context.Context, in *MemoryRequest, opts ...grpc.CallOption) (*RecordResponse, error) {
	return invoke[RecordResponse](ctx, c.cc, MethodReportMemory, orEmpty(in), opts)
}

func (c *Client) ReportMountingPoint(ctx context.Context, in *MountingPointRequest, opts ...grpc.CallOption) (*RecordResponse, error) {
	return invoke[RecordResponse](ctx, c.cc, MethodReportMountingPoint, orEmpty(in), opts)
}

// orEmpty sends a nil request as a message with every field unset.
func orEmpty[T any](in *T) *T {
	if in == nil {
		return new(T)
	}
	return in
}
