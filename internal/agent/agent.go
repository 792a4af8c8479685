// Package agent pushes host telemetry to the monitor server on a schedule.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/monitor/internal/api"
	"github.com/and161185/monitor/internal/collector"
	"github.com/and161185/monitor/internal/convert"
	"github.com/and161185/monitor/internal/model"
)

const (
	maxRetries     = 3
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// MonitorClient is the subset of api.Client the agent uses.
type MonitorClient interface {
	Ping(ctx context.Context, opts ...grpc.CallOption) (*api.PingResponse, error)
	ReportLatency(ctx context.Context, in *api.LatencyRequest, opts ...grpc.CallOption) (*api.RecordResponse, error)
	ReportInterface(ctx context.Context, in *api.InterfaceRequest, opts ...grpc.CallOption) (*api.RecordResponse, error)
	ReportCPU(ctx context.Context, in *api.CPURequest, opts ...grpc.CallOption) (*api.RecordResponse, error)
	ReportMemory(ctx context.Context, in *api.MemoryRequest, opts ...grpc.CallOption) (*api.RecordResponse, error)
	ReportMountingPoint(ctx context.Context, in *api.MountingPointRequest, opts ...grpc.CallOption) (*api.RecordResponse, error)
}

var _ MonitorClient = (*api.Client)(nil)

// Sampler produces one host snapshot.
type Sampler interface {
	Collect(ctx context.Context) (collector.Snapshot, error)
}

var _ Sampler = (*collector.Collector)(nil)

// Agent samples the host and reports each section.
type Agent struct {
	client  MonitorClient
	sampler Sampler
	log     *zap.Logger
	now     func() time.Time
	delay   time.Duration
}

// New constructs an Agent.
func New(client MonitorClient, sampler Sampler, log *zap.Logger) *Agent {
	if log == nil {
		log = zap.NewNop()
	}
	return &Agent{client: client, sampler: sampler, log: log, now: time.Now, delay: initialBackoff}
}

// Run reports immediately and then every interval until ctx is done.
func (a *Agent) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if err := a.ReportOnce(ctx); err != nil {
			a.log.Warn("report", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// ReportOnce measures latency, samples the host and sends every section.
// It keeps going after a failed section and returns the joined errors.
func (a *Agent) ReportOnce(ctx context.Context) error {
	start := a.now()
	var errList []error

	latency, err := a.latency(ctx)
	if err != nil {
		errList = append(errList, fmt.Errorf("ping: %w", err))
	} else {
		errList = append(errList, a.send(ctx, "latency", func() error {
			_, err := a.client.ReportLatency(ctx, convert.ToLatencyRequest(latency))
			return err
		}))
	}

	snap, err := a.sampler.Collect(ctx)
	if err != nil {
		a.log.Warn("collect", zap.Error(err))
	}
	for _, in := range snap.Interfaces {
		errList = append(errList, a.send(ctx, "interface "+in.Name, func() error {
			_, err := a.client.ReportInterface(ctx, convert.ToInterfaceRequest(in))
			return err
		}))
	}
	if snap.CPU != (model.CPUInfo{}) {
		errList = append(errList, a.send(ctx, "cpu", func() error {
			_, err := a.client.ReportCPU(ctx, convert.ToCPURequest(snap.CPU))
			return err
		}))
	}
	if snap.Memory.Available != nil || snap.Memory.Used != nil {
		errList = append(errList, a.send(ctx, "memory", func() error {
			_, err := a.client.ReportMemory(ctx, convert.ToMemoryRequest(snap.Memory))
			return err
		}))
	}
	for _, mp := range snap.MountingPoints {
		errList = append(errList, a.send(ctx, "mounting point "+mp.Path, func() error {
			_, err := a.client.ReportMountingPoint(ctx, convert.ToMountingPointRequest(mp))
			return err
		}))
	}

	err = errors.Join(errList...)
	a.log.Debug("report done", zap.Duration("dur", a.now().Sub(start)), zap.Bool("ok", err == nil))
	return err
}

// latency is the round trip of one Ping, in seconds.
func (a *Agent) latency(ctx context.Context) (float64, error) {
	start := time.Now()
	if _, err := a.client.Ping(ctx); err != nil {
		return 0, err
	}
	return time.Since(start).Seconds(), nil
}

// send retries transient failures. Rejections by the server and a done ctx end
// the retries at once.
func (a *Agent) send(ctx context.Context, what string, call func() error) error {
	err := retry.Do(call,
		retry.Attempts(maxRetries),
		retry.Delay(a.delay),
		retry.MaxDelay(maxBackoff),
		retry.RetryIf(transient),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

func transient(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	default:
		return false
	}
}
