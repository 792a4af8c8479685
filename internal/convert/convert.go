// Package convert maps API messages to domain values and back, validating
// inbound payloads on the way in.
package convert

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/and161185/monitor/internal/api"
	"github.com/and161185/monitor/internal/codec"
	"github.com/and161185/monitor/internal/model"
)

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// text rejects strings that are not valid UTF-8; protobuf does not check them
// for proto2 fields.
func text(field string, values ...*string) error {
	for _, v := range values {
		if v != nil && !utf8.ValidString(*v) {
			return fmt.Errorf("validation: %s is not valid UTF-8", field)
		}
	}
	return nil
}

// --- inbound (client -> server) ---

// FromLatencyRequest returns the reported latency in seconds.
func FromLatencyRequest(in *api.LatencyRequest) (float64, error) {
	if in == nil || in.Latency == nil {
		return 0, errors.New("validation: latency is required")
	}
	if l := *in.Latency; !finite(l) || l < 0 {
		return 0, fmt.Errorf("validation: latency %v out of range", l)
	}
	return *in.Latency, nil
}

// FromInterfaceRequest requires name, mac and at least one address.
func FromInterfaceRequest(in *api.InterfaceRequest) (model.NetworkInterface, error) {
	if in == nil {
		return model.NetworkInterface{}, errors.New("validation: empty interface")
	}
	if in.Name == "" || in.MAC == "" {
		return model.NetworkInterface{}, errors.New("validation: interface name and mac are required")
	}
	if err := text("interface", &in.Name, &in.MAC, in.IPv4, in.IPv6); err != nil {
		return model.NetworkInterface{}, err
	}
	if in.IPv4 == nil && in.IPv6 == nil {
		return model.NetworkInterface{}, fmt.Errorf("validation: interface %s has no address", in.Name)
	}
	return model.NetworkInterface{Name: in.Name, MAC: in.MAC, IPv4: in.IPv4, IPv6: in.IPv6}, nil
}

// FromCPURequest accepts null for unknown values.
func FromCPURequest(in *api.CPURequest) (model.CPUInfo, error) {
	if in == nil {
		return model.CPUInfo{}, errors.New("validation: empty cpu")
	}
	if in.Threads != nil && *in.Threads < 0 {
		return model.CPUInfo{}, errors.New("validation: negative thread count")
	}
	if in.Cores != nil && *in.Cores < 0 {
		return model.CPUInfo{}, errors.New("validation: negative core count")
	}
	if in.Load != nil && (!finite(*in.Load) || *in.Load < 0) {
		return model.CPUInfo{}, fmt.Errorf("validation: cpu load %v out of range", *in.Load)
	}
	if err := text("cpu model", in.Model); err != nil {
		return model.CPUInfo{}, err
	}
	return model.CPUInfo{Threads: in.Threads, Cores: in.Cores, Model: in.Model, Load: in.Load}, nil
}

// FromMemoryRequest accepts null for unknown values and for disabled swap.
func FromMemoryRequest(in *api.MemoryRequest) (model.MemoryInfo, error) {
	if in == nil {
		return model.MemoryInfo{}, errors.New("validation: empty memory")
	}
	if (in.Available != nil && *in.Available < 0) || (in.Used != nil && *in.Used < 0) {
		return model.MemoryInfo{}, errors.New("validation: negative memory value")
	}
	out := model.MemoryInfo{Available: in.Available, Used: in.Used}
	if in.Swap != nil {
		if in.Swap.Available < 0 || in.Swap.Used < 0 {
			return model.MemoryInfo{}, errors.New("validation: negative swap value")
		}
		out.Swap = &model.SwapInfo{Available: in.Swap.Available, Used: in.Swap.Used}
	}
	return out, nil
}

// FromMountingPointRequest requires a path and both usage values.
func FromMountingPointRequest(in *api.MountingPointRequest) (model.MountingPoint, error) {
	if in == nil || in.Path == "" {
		return model.MountingPoint{}, errors.New("validation: mounting point path is required")
	}
	if err := text("mounting point path", &in.Path); err != nil {
		return model.MountingPoint{}, err
	}
	if in.Available == nil || in.Used == nil {
		return model.MountingPoint{}, fmt.Errorf("validation: mounting point %s needs available and used", in.Path)
	}
	if *in.Available < 0 || *in.Used < 0 {
		return model.MountingPoint{}, fmt.Errorf("validation: mounting point %s has negative usage", in.Path)
	}
	return model.MountingPoint{Path: in.Path, Available: *in.Available, Used: *in.Used}, nil
}

// ToRecordResponse wraps the stored document in a success response.
func ToRecordResponse(rec *model.ClientRecord) (*api.RecordResponse, error) {
	b, err := codec.Encode(rec)
	if err != nil {
		return nil, err
	}
	return &api.RecordResponse{Status: api.StatusSuccess, Record: b}, nil
}

// --- outbound (agent -> server) ---

// FromRecordResponse decodes the document carried by a response.
func FromRecordResponse(resp *api.RecordResponse) (*model.ClientRecord, error) {
	if resp == nil {
		return nil, errors.New("nil response")
	}
	if resp.Status != api.StatusSuccess {
		return nil, fmt.Errorf("unexpected status %q", resp.Status)
	}
	return codec.Decode(resp.Record)
}

func ToLatencyRequest(seconds float64) *api.LatencyRequest {
	return &api.LatencyRequest{Latency: &seconds}
}

func ToInterfaceRequest(in model.NetworkInterface) *api.InterfaceRequest {
	return &api.InterfaceRequest{Name: in.Name, MAC: in.MAC, IPv4: in.IPv4, IPv6: in.IPv6}
}

func ToCPURequest(c model.CPUInfo) *api.CPURequest {
	return &api.CPURequest{Threads: c.Threads, Cores: c.Cores, Model: c.Model, Load: c.Load}
}

func ToMemoryRequest(m model.MemoryInfo) *api.MemoryRequest {
	out := &api.MemoryRequest{Available: m.Available, Used: m.Used}
	if m.Swap != nil {
		out.Swap = &api.SwapMessage{Available: m.Swap.Available, Used: m.Swap.Used}
	}
	return out
}

func ToMountingPointRequest(mp model.MountingPoint) *api.MountingPointRequest {
	return &api.MountingPointRequest{Path: mp.Path, Available: &mp.Available, Used: &mp.Used}
}
