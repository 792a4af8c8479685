// Package api defines the monitor.v1.Monitor gRPC service: its proto
// descriptor, the Go form of its messages, the service descriptor and a typed
// client.
package api

import (
	"time"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// StatusSuccess is the status reported by every successful record call.
const StatusSuccess = "success"

// InfoResponse describes the running server.
type InfoResponse struct {
	Application string
	Version     string
}

// PingResponse carries the server clock.
type PingResponse struct {
	ServerTime time.Time
}

// RecordResponse returns the client's full document after a call. Record holds
// the stored JSON form, byte for byte.
type RecordResponse struct {
	Status string
	Record []byte
}

// LatencyRequest reports round-trip latency in seconds.
type LatencyRequest struct {
	Latency *float64
}

// InterfaceRequest reports one network interface.
type InterfaceRequest struct {
	Name string
	MAC  string
	IPv4 *string
	IPv6 *string
}

// CPURequest reports a processor snapshot; unknown values are nil.
type CPURequest struct {
	Threads *int
	Cores   *int
	Model   *string
	Load    *float64
}

// MemoryRequest reports a memory snapshot in bytes; Swap is nil when swap is disabled.
type MemoryRequest struct {
	Available *int64
	Used      *int64
	Swap      *SwapMessage
}

// SwapMessage is swap usage in bytes.
type SwapMessage struct {
	Available int64
	Used      int64
}

// MountingPointRequest reports usage of one mounting point in bytes.
type MountingPointRequest struct {
	Path      string
	Available *int64
	Used      *int64
}

func (*InfoResponse) protoName() protoreflect.Name { return "InfoResponse" }

func (x *InfoResponse) fill(m protoreflect.Message) {
	setOpt(m, "application", &x.Application, protoreflect.ValueOfString)
	setOpt(m, "version", &x.Version, protoreflect.ValueOfString)
}

func (x *InfoResponse) load(m protoreflect.Message) {
	x.Application = getString(m, "application")
	x.Version = getString(m, "version")
}

func (*PingResponse) protoName() protoreflect.Name { return "PingResponse" }

func (x *PingResponse) fill(m protoreflect.Message) {
	if x.ServerTime.IsZero() {
		return
	}
	m.Set(fieldOf(m, "server_time"), protoreflect.ValueOfMessage(timestamppb.New(x.ServerTime).ProtoReflect()))
}

func (x *PingResponse) load(m protoreflect.Message) {
	fd := fieldOf(m, "server_time")
	if !m.Has(fd) {
		return
	}
	ts := m.Get(fd).Message()
	x.ServerTime = time.Unix(getInt(ts, "seconds"), getInt(ts, "nanos")).UTC()
}

func (*RecordResponse) protoName() protoreflect.Name { return "RecordResponse" }

func (x *RecordResponse) fill(m protoreflect.Message) {
	setOpt(m, "status", &x.Status, protoreflect.ValueOfString)
	if x.Record != nil {
		m.Set(fieldOf(m, "record"), protoreflect.ValueOfBytes(x.Record))
	}
}

func (x *RecordResponse) load(m protoreflect.Message) {
	x.Status = getString(m, "status")
	if fd := fieldOf(m, "record"); m.Has(fd) {
		x.Record = m.Get(fd).Bytes()
	}
}

func (*LatencyRequest) protoName() protoreflect.Name { return "LatencyRequest" }

func (x *LatencyRequest) fill(m protoreflect.Message) {
	setOpt(m, "latency", x.Latency, protoreflect.ValueOfFloat64)
}

func (x *LatencyRequest) load(m protoreflect.Message) {
	x.Latency = getOpt(m, "latency", protoreflect.Value.Float)
}

func (*InterfaceRequest) protoName() protoreflect.Name { return "InterfaceRequest" }

func (x *InterfaceRequest) fill(m protoreflect.Message) {
	setOpt(m, "name", &x.Name, protoreflect.ValueOfString)
	setOpt(m, "mac", &x.MAC, protoreflect.ValueOfString)
	setOpt(m, "ipv4", x.IPv4, protoreflect.ValueOfString)
	setOpt(m, "ipv6", x.IPv6, protoreflect.ValueOfString)
}

func (x *InterfaceRequest) load(m protoreflect.Message) {
	x.Name = getString(m, "name")
	x.MAC = getString(m, "mac")
	x.IPv4 = getOpt(m, "ipv4", protoreflect.Value.String)
	x.IPv6 = getOpt(m, "ipv6", protoreflect.Value.String)
}

func (*CPURequest) protoName() protoreflect.Name { return "CPURequest" }

func (x *CPURequest) fill(m protoreflect.Message) {
	setOpt(m, "threads", x.Threads, valueOfInt)
	setOpt(m, "cores", x.Cores, valueOfInt)
	setOpt(m, "model", x.Model, protoreflect.ValueOfString)
	setOpt(m, "load", x.Load, protoreflect.ValueOfFloat64)
}

func (x *CPURequest) load(m protoreflect.Message) {
	x.Threads = getOpt(m, "threads", intOf)
	x.Cores = getOpt(m, "cores", intOf)
	x.Model = getOpt(m, "model", protoreflect.Value.String)
	x.Load = getOpt(m, "load", protoreflect.Value.Float)
}

func (*MemoryRequest) protoName() protoreflect.Name { return "MemoryRequest" }

func (x *MemoryRequest) fill(m protoreflect.Message) {
	setOpt(m, "available", x.Available, protoreflect.ValueOfInt64)
	setOpt(m, "used", x.Used, protoreflect.ValueOfInt64)
	if x.Swap != nil {
		swap := m.Mutable(fieldOf(m, "swap")).Message()
		swap.Set(fieldOf(swap, "available"), protoreflect.ValueOfInt64(x.Swap.Available))
		swap.Set(fieldOf(swap, "used"), protoreflect.ValueOfInt64(x.Swap.Used))
	}
}

func (x *MemoryRequest) load(m protoreflect.Message) {
	x.Available = getOpt(m, "available", protoreflect.Value.Int)
	x.Used = getOpt(m, "used", protoreflect.Value.Int)
	if fd := fieldOf(m, "swap"); m.Has(fd) {
		swap := m.Get(fd).Message()
		x.Swap = &SwapMessage{Available: getInt(swap, "available"), Used: getInt(swap, "used")}
	}
}

func (*MountingPointRequest) protoName() protoreflect.Name { return "MountingPointRequest" }

func (x *MountingPointRequest) fill(m protoreflect.Message) {
	setOpt(m, "path", &x.Path, protoreflect.ValueOfString)
	setOpt(m, "available", x.Available, protoreflect.ValueOfInt64)
	setOpt(m, "used", x.Used, protoreflect.ValueOfInt64)
}

func (x *MountingPointRequest) load(m protoreflect.Message) {
	x.Path = getString(m, "path")
	x.Available = getOpt(m, "available", protoreflect.Value.Int)
	x.Used = getOpt(m, "used", protoreflect.Value.Int)
}
