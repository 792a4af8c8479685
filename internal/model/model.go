// Package model defines the client record document and its sections.
package model

import (
	"math"
	"time"
)

// Event names the kind of mutation recorded in an audit entry.
type Event string

// Audit events, one per mutating operation.
const (
	EventCreatedRecord            Event = "created_record"
	EventNetworkLatencyUpdated    Event = "network_latency_updated"
	EventNetworkInterfaceUpdated  Event = "network_interface_updated"
	EventCPUUpdated               Event = "cpu_updated"
	EventMemoryUpdated            Event = "memory_updated"
	EventDiskMountingPointUpdated Event = "disk_mounting_point_updated"
)

// Timestamp is a point in time expressed as seconds since the Unix epoch.
// It is stored as-is so documents survive encode/decode without precision loss.
type Timestamp float64

// TimestampOf converts t to a Timestamp with microsecond resolution.
func TimestampOf(t time.Time) Timestamp {
	return Timestamp(float64(t.UnixMicro()) / 1e6)
}

// Time returns ts as a UTC time.Time.
func (ts Timestamp) Time() time.Time {
	sec, frac := math.Modf(float64(ts))
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC()
}

// ClientRecord is the cumulative document kept per client token.
type ClientRecord struct {
	Metadata Metadata
	Data     Data
}

// Metadata holds record timestamps and the append-only audit trail.
type Metadata struct {
	CreatedAt Timestamp
	UpdatedAt Timestamp
	AuditLog  []AuditEntry
}

// AuditEntry is an immutable record of one mutation.
type AuditEntry struct {
	Timestamp   Timestamp
	Description string
	Event       Event
}

// Data wraps the self-reported analytics.
type Data struct {
	Analytics Analytics
}

// Analytics groups the independently updated sections.
type Analytics struct {
	Network Network
	CPU     CPUInfo
	Memory  MemoryInfo
	Disks   Disks
}

// Network holds the last reported latency and the known interfaces.
type Network struct {
	Latency    *float64 // seconds
	Interfaces []NetworkInterface
}

// NetworkInterface is keyed by Name within one record.
type NetworkInterface struct {
	Name string
	MAC  string
	IPv4 *string
	IPv6 *string
}

// CPUInfo is a processor snapshot; every report replaces it wholesale.
type CPUInfo struct {
	Threads *int
	Cores   *int
	Model   *string
	Load    *float64
}

// MemoryInfo is a memory snapshot; Swap is nil when swapping is disabled.
type MemoryInfo struct {
	Available *int64
	Used      *int64
	Swap      *SwapInfo
}

// SwapInfo describes swap usage in bytes.
type SwapInfo struct {
	Available int64
	Used      int64
}

// Disks holds mounting points keyed by Path.
type Disks struct {
	MountingPoints []MountingPoint
}

// MountingPoint is keyed by Path within one record.
type MountingPoint struct {
	Path      string
	Available int64
	Used      int64
}

// NewClientRecord returns an unpopulated record in the full default shape.
// Every call allocates fresh collections, so records never share state.
func NewClientRecord() *ClientRecord {
	return &ClientRecord{
		Metadata: Metadata{AuditLog: []AuditEntry{}},
		Data: Data{Analytics: Analytics{
			Network: Network{Interfaces: []NetworkInterface{}},
			Disks:   Disks{MountingPoints: []MountingPoint{}},
		}},
	}
}

// Append records one mutation: it stamps UpdatedAt and appends an audit entry.
// UpdatedAt never moves backwards, even if the wall clock does.
func (r *ClientRecord) Append(at Timestamp, event Event, description string) {
	if at < r.Metadata.UpdatedAt {
		at = r.Metadata.UpdatedAt
	}
	r.Metadata.UpdatedAt = at
	r.Metadata.AuditLog = append(r.Metadata.AuditLog, AuditEntry{
		Timestamp:   at,
		Description: description,
		Event:       event,
	})
}

// UpsertInterface replaces the interface with the same name in place or appends it.
func (n *Network) UpsertInterface(in NetworkInterface) {
	for i := range n.Interfaces {
		if n.Interfaces[i].Name == in.Name {
			n.Interfaces[i].MAC = in.MAC
			n.Interfaces[i].IPv4 = in.IPv4
			n.Interfaces[i].IPv6 = in.IPv6
			return
		}
	}
	n.Interfaces = append(n.Interfaces, in)
}

// UpsertMountingPoint replaces the mounting point with the same path in place or appends it.
func (d *Disks) UpsertMountingPoint(mp MountingPoint) {
	for i := range d.MountingPoints {
		if d.MountingPoints[i].Path == mp.Path {
			d.MountingPoints[i].Available = mp.Available
			d.MountingPoints[i].Used = mp.Used
			return
		}
	}
	d.MountingPoints = append(d.MountingPoints, mp)
}

// Ptr returns a pointer to v; handy for optional fields.
func Ptr[T any](v T) *T { return &v }
