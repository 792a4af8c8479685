// Package collector samples host telemetry with gopsutil and maps it onto record sections.
package collector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/netip"
	"slices"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"go.uber.org/zap"

	"github.com/and161185/monitor/internal/model"
)

// Snapshot is one sampling pass over the host.
type Snapshot struct {
	Interfaces     []model.NetworkInterface
	CPU            model.CPUInfo
	Memory         model.MemoryInfo
	MountingPoints []model.MountingPoint
}

// Source abstracts the gopsutil calls so sampling can be faked in tests.
type Source interface {
	Interfaces(ctx context.Context) (net.InterfaceStatList, error)
	Counts(ctx context.Context, logical bool) (int, error)
	Info(ctx context.Context) ([]cpu.InfoStat, error)
	Avg(ctx context.Context) (*load.AvgStat, error)
	VirtualMemory(ctx context.Context) (*mem.VirtualMemoryStat, error)
	SwapMemory(ctx context.Context) (*mem.SwapMemoryStat, error)
	Partitions(ctx context.Context, all bool) ([]disk.PartitionStat, error)
	Usage(ctx context.Context, path string) (*disk.UsageStat, error)
}

// Host reads the local machine.
type Host struct{}

var _ Source = Host{}

func (Host) Interfaces(ctx context.Context) (net.InterfaceStatList, error) {
	return net.InterfacesWithContext(ctx)
}
func (Host) Counts(ctx context.Context, logical bool) (int, error) {
	return cpu.CountsWithContext(ctx, logical)
}
func (Host) Info(ctx context.Context) ([]cpu.InfoStat, error) { return cpu.InfoWithContext(ctx) }
func (Host) Avg(ctx context.Context) (*load.AvgStat, error)   { return load.AvgWithContext(ctx) }
func (Host) VirtualMemory(ctx context.Context) (*mem.VirtualMemoryStat, error) {
	return mem.VirtualMemoryWithContext(ctx)
}
func (Host) SwapMemory(ctx context.Context) (*mem.SwapMemoryStat, error) {
	return mem.SwapMemoryWithContext(ctx)
}
func (Host) Partitions(ctx context.Context, all bool) ([]disk.PartitionStat, error) {
	return disk.PartitionsWithContext(ctx, all)
}
func (Host) Usage(ctx context.Context, path string) (*disk.UsageStat, error) {
	return disk.UsageWithContext(ctx, path)
}

// Collector samples a Source.
type Collector struct {
	src Source
	log *zap.Logger
}

// New returns a Collector over src; a nil src reads the local host.
func New(src Source, log *zap.Logger) *Collector {
	if src == nil {
		src = Host{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Collector{src: src, log: log}
}

// Collect samples every section. A failing section is left empty and its error
// is joined into the result; the other sections are still returned.
func (c *Collector) Collect(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	var errList []error

	stats, err := c.src.Interfaces(ctx)
	if err != nil {
		errList = append(errList, fmt.Errorf("interfaces: %w", err))
	} else {
		snap.Interfaces = Interfaces(stats)
	}

	snap.CPU = c.cpu(ctx)

	vm, err := c.src.VirtualMemory(ctx)
	if err != nil {
		errList = append(errList, fmt.Errorf("virtual memory: %w", err))
	} else {
		swap, err := c.src.SwapMemory(ctx)
		if err != nil {
			c.log.Debug("swap memory", zap.Error(err))
		}
		snap.Memory = Memory(vm, swap)
	}

	mps, err := c.mountingPoints(ctx)
	if err != nil {
		errList = append(errList, err)
	}
	snap.MountingPoints = mps

	return snap, errors.Join(errList...)
}

// cpu fills what it can; every field is optional.
func (c *Collector) cpu(ctx context.Context) model.CPUInfo {
	logical, err := c.src.Counts(ctx, true)
	if err != nil {
		c.log.Debug("cpu logical count", zap.Error(err))
	}
	physical, err := c.src.Counts(ctx, false)
	if err != nil {
		c.log.Debug("cpu physical count", zap.Error(err))
	}
	infos, err := c.src.Info(ctx)
	if err != nil {
		c.log.Debug("cpu info", zap.Error(err))
	}
	avg, err := c.src.Avg(ctx)
	if err != nil {
		c.log.Debug("load average", zap.Error(err))
	}
	return CPU(logical, physical, infos, avg)
}

func (c *Collector) mountingPoints(ctx context.Context) ([]model.MountingPoint, error) {
	parts, err := c.src.Partitions(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("partitions: %w", err)
	}
	out := make([]model.MountingPoint, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		if p.Mountpoint == "" || seen[p.Mountpoint] {
			continue
		}
		seen[p.Mountpoint] = true
		u, err := c.src.Usage(ctx, p.Mountpoint)
		if err != nil {
			c.log.Debug("disk usage", zap.String("path", p.Mountpoint), zap.Error(err))
			continue
		}
		out = append(out, MountingPoint(p.Mountpoint, u))
	}
	return out, nil
}

// Interfaces keeps non-loopback interfaces that have a MAC and at least one address.
// The first IPv4 address wins; for IPv6 a global address is preferred over link-local.
func Interfaces(stats net.InterfaceStatList) []model.NetworkInterface {
	out := make([]model.NetworkInterface, 0, len(stats))
	for _, st := range stats {
		if st.Name == "" || st.HardwareAddr == "" || slices.Contains(st.Flags, "loopback") {
			continue
		}
		in := model.NetworkInterface{Name: st.Name, MAC: st.HardwareAddr}
		var linkLocal *string
		for _, a := range st.Addrs {
			ip, ok := parseAddr(a.Addr)
			if !ok || ip.IsLoopback() {
				continue
			}
			s := ip.String()
			switch {
			case ip.Is4():
				if in.IPv4 == nil {
					in.IPv4 = &s
				}
			case ip.IsLinkLocalUnicast():
				if linkLocal == nil {
					linkLocal = &s
				}
			default:
				if in.IPv6 == nil {
					in.IPv6 = &s
				}
			}
		}
		if in.IPv6 == nil {
			in.IPv6 = linkLocal
		}
		if in.IPv4 == nil && in.IPv6 == nil {
			continue
		}
		out = append(out, in)
	}
	return out
}

// parseAddr accepts both "10.0.0.1/24" and a bare address.
func parseAddr(s string) (netip.Addr, bool) {
	if p, err := netip.ParsePrefix(s); err == nil {
		return p.Addr().Unmap(), true
	}
	if a, err := netip.ParseAddr(s); err == nil {
		return a.Unmap(), true
	}
	return netip.Addr{}, false
}

// CPU maps counts, model name and the one-minute load average. Zero counts and
// missing stats leave the matching field unset.
func CPU(logical, physical int, infos []cpu.InfoStat, avg *load.AvgStat) model.CPUInfo {
	var out model.CPUInfo
	if logical > 0 {
		out.Threads = model.Ptr(logical)
	}
	if physical > 0 {
		out.Cores = model.Ptr(physical)
	}
	for _, i := range infos {
		if i.ModelName != "" {
			out.Model = model.Ptr(i.ModelName)
			break
		}
	}
	if avg != nil && avg.Load1 >= 0 && !math.IsNaN(avg.Load1) && !math.IsInf(avg.Load1, 0) {
		out.Load = model.Ptr(avg.Load1)
	}
	return out
}

// Memory maps RAM usage; swap is reported only when the host has any.
func Memory(vm *mem.VirtualMemoryStat, swap *mem.SwapMemoryStat) model.MemoryInfo {
	var out model.MemoryInfo
	if vm != nil {
		out.Available = model.Ptr(clamp(vm.Available))
		out.Used = model.Ptr(clamp(vm.Used))
	}
	if swap != nil && swap.Total > 0 {
		out.Swap = &model.SwapInfo{Available: clamp(swap.Free), Used: clamp(swap.Used)}
	}
	return out
}

// MountingPoint maps one filesystem's usage.
func MountingPoint(path string, u *disk.UsageStat) model.MountingPoint {
	mp := model.MountingPoint{Path: path}
	if u != nil {
		mp.Available = clamp(u.Free)
		mp.Used = clamp(u.Used)
	}
	return mp
}

func clamp(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
