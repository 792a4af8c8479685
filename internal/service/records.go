// Package service contains the record store: per-client documents built from telemetry reports.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/and161185/monitor/internal/codec"
	"github.com/and161185/monitor/internal/errs"
	"github.com/and161185/monitor/internal/model"
	"github.com/and161185/monitor/internal/repository"
)

// RecordService defines load-or-create and per-section updates of client records.
// Every method returns the full document as persisted.
type RecordService interface {
	// LoadOrCreate returns the stored record for token, creating it on first use.
	LoadOrCreate(ctx context.Context, token string) (*model.ClientRecord, error)
	// UpdateNetworkLatency overwrites the last reported latency (seconds).
	UpdateNetworkLatency(ctx context.Context, token string, latency float64) (*model.ClientRecord, error)
	// UpsertNetworkInterface replaces the interface with the same name or appends it.
	UpsertNetworkInterface(ctx context.Context, token string, in model.NetworkInterface) (*model.ClientRecord, error)
	// UpdateCPU replaces the cpu section.
	UpdateCPU(ctx context.Context, token string, cpu model.CPUInfo) (*model.ClientRecord, error)
	// UpdateMemory replaces the memory section, swap included.
	UpdateMemory(ctx context.Context, token string, mem model.MemoryInfo) (*model.ClientRecord, error)
	// UpsertMountingPoint replaces the mounting point with the same path or appends it.
	UpsertMountingPoint(ctx context.Context, token string, mp model.MountingPoint) (*model.ClientRecord, error)
}

// RecordStore implements RecordService on top of a key-value Opener.
// A handle is opened for every operation and closed before it returns.
type RecordStore struct {
	opener repository.Opener
	name   string
	create bool
	log    *zap.Logger
	now    func() time.Time
	locks  *tokenLocks
}

var _ RecordService = (*RecordStore)(nil)

// NewRecordStore constructs a RecordStore that keeps documents in store name.
// createIfMissing is passed through to every Open call.
func NewRecordStore(opener repository.Opener, name string, createIfMissing bool, log *zap.Logger) *RecordStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &RecordStore{
		opener: opener,
		name:   name,
		create: createIfMissing,
		log:    log,
		now:    time.Now,
		locks:  newTokenLocks(),
	}
}

// LoadOrCreate reads the record for token. A missing record is created, stamped
// and persisted with a single created_record audit entry.
func (s *RecordStore) LoadOrCreate(ctx context.Context, token string) (*model.ClientRecord, error) {
	var out *model.ClientRecord
	err := s.withHandle(ctx, token, func(ctx context.Context, h repository.Handle) error {
		rec, err := s.loadOrCreate(ctx, h, token)
		out = rec
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RecordStore) UpdateNetworkLatency(ctx context.Context, token string, latency float64) (*model.ClientRecord, error) {
	return s.mutate(ctx, token, model.EventNetworkLatencyUpdated, "Network latency was updated.", func(r *model.ClientRecord) {
		r.Data.Analytics.Network.Latency = &latency
	})
}

func (s *RecordStore) UpsertNetworkInterface(ctx context.Context, token string, in model.NetworkInterface) (*model.ClientRecord, error) {
	// Names are merge keys; one that is not valid UTF-8 would not survive storage.
	if in.Name == "" || !utf8.ValidString(in.Name) {
		return nil, fmt.Errorf("%w: interface name", errs.ErrKeyMismatch)
	}
	desc := fmt.Sprintf("Network interface %s was updated.", in.Name)
	return s.mutate(ctx, token, model.EventNetworkInterfaceUpdated, desc, func(r *model.ClientRecord) {
		r.Data.Analytics.Network.UpsertInterface(in)
	})
}

func (s *RecordStore) UpdateCPU(ctx context.Context, token string, cpu model.CPUInfo) (*model.ClientRecord, error) {
	return s.mutate(ctx, token, model.EventCPUUpdated, "CPU information was updated.", func(r *model.ClientRecord) {
		r.Data.Analytics.CPU = cpu
	})
}

func (s *RecordStore) UpdateMemory(ctx context.Context, token string, mem model.MemoryInfo) (*model.ClientRecord, error) {
	return s.mutate(ctx, token, model.EventMemoryUpdated, "Memory information was updated.", func(r *model.ClientRecord) {
		r.Data.Analytics.Memory = mem
	})
}

func (s *RecordStore) UpsertMountingPoint(ctx context.Context, token string, mp model.MountingPoint) (*model.ClientRecord, error) {
	if mp.Path == "" || !utf8.ValidString(mp.Path) {
		return nil, fmt.Errorf("%w: mounting point path", errs.ErrKeyMismatch)
	}
	desc := fmt.Sprintf("Mounting point %s was updated.", mp.Path)
	return s.mutate(ctx, token, model.EventDiskMountingPointUpdated, desc, func(r *model.ClientRecord) {
		r.Data.Analytics.Disks.UpsertMountingPoint(mp)
	})
}

// mutate runs one read-modify-write cycle: load or create, apply, stamp, audit, write back.
func (s *RecordStore) mutate(ctx context.Context, token string, event model.Event, desc string, apply func(*model.ClientRecord)) (*model.ClientRecord, error) {
	var out *model.ClientRecord
	err := s.withHandle(ctx, token, func(ctx context.Context, h repository.Handle) error {
		rec, err := s.loadOrCreate(ctx, h, token)
		if err != nil {
			return err
		}
		apply(rec)
		rec.Append(model.TimestampOf(s.now()), event, desc)
		if err := s.save(ctx, h, token, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("record updated",
		zap.String("client", fingerprint(token)),
		zap.String("event", string(event)),
		zap.Int("audit_len", len(out.Metadata.AuditLog)),
	)
	return out, nil
}

// withHandle holds the token lock and an open handle for the duration of fn.
// Once the lock is held the caller's cancellation no longer applies.
func (s *RecordStore) withHandle(ctx context.Context, token string, fn func(context.Context, repository.Handle) error) error {
	if token == "" {
		return errs.ErrInvalidToken
	}
	release, err := s.locks.acquire(ctx, token)
	if err != nil {
		return fmt.Errorf("acquire record lock: %w", err)
	}
	defer release()

	ctx = context.WithoutCancel(ctx)
	h, err := s.opener.Open(ctx, s.name, s.create)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", errs.ErrStoreUnavailable, s.name, err)
	}
	defer func() {
		if cerr := h.Close(); cerr != nil {
			s.log.Warn("close store handle", zap.String("store", s.name), zap.Error(cerr))
		}
	}()
	return fn(ctx, h)
}

func (s *RecordStore) loadOrCreate(ctx context.Context, h repository.Handle, token string) (*model.ClientRecord, error) {
	b, err := h.Get(ctx, token)
	switch {
	case err == nil:
		rec, derr := codec.Decode(b)
		if derr != nil {
			s.log.Error("stored record does not decode", zap.String("client", fingerprint(token)), zap.Error(derr))
			return nil, derr
		}
		return rec, nil
	case errors.Is(err, errs.ErrNotFound):
	default:
		return nil, fmt.Errorf("%w: get: %w", errs.ErrStoreUnavailable, err)
	}

	rec := model.NewClientRecord()
	now := model.TimestampOf(s.now())
	rec.Metadata.CreatedAt = now
	rec.Append(now, model.EventCreatedRecord, "A new record was generated.")
	if err := s.save(ctx, h, token, rec); err != nil {
		return nil, err
	}
	s.log.Info("record created", zap.String("client", fingerprint(token)))
	return rec, nil
}

func (s *RecordStore) save(ctx context.Context, h repository.Handle, token string, rec *model.ClientRecord) error {
	b, err := codec.Encode(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := h.Set(ctx, token, b); err != nil {
		return fmt.Errorf("%w: set: %w", errs.ErrStoreUnavailable, err)
	}
	return nil
}

// fingerprint identifies a token in logs without revealing it.
func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:4])
}
