// Package codec converts client records to and from their stored JSON form.
//
// Optional values are always written as explicit nulls and collections as
// arrays, so a decoded record compares equal to the one that was encoded.
// Unknown fields are ignored; a document missing any section is rejected.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/and161185/monitor/internal/errs"
	"github.com/and161185/monitor/internal/model"
)

type document struct {
	Metadata *metadataDoc `json:"metadata"`
	Data     *dataDoc     `json:"data"`
}

type metadataDoc struct {
	CreatedAt *model.Timestamp `json:"created_at"`
	UpdatedAt *model.Timestamp `json:"updated_at"`
	AuditLog  []auditEntryDoc  `json:"audit_log"`
}

type auditEntryDoc struct {
	Timestamp   model.Timestamp `json:"timestamp"`
	Description string          `json:"description"`
	Event       model.Event     `json:"event"`
}

type dataDoc struct {
	Analytics *analyticsDoc `json:"analytics"`
}

type analyticsDoc struct {
	Network *networkDoc `json:"network"`
	CPU     *cpuDoc     `json:"cpu"`
	Memory  *memoryDoc  `json:"memory"`
	Disks   *disksDoc   `json:"disks"`
}

type networkDoc struct {
	Latency    *float64       `json:"latency"`
	Interfaces []interfaceDoc `json:"interfaces"`
}

type interfaceDoc struct {
	Name string  `json:"name"`
	IPv4 *string `json:"ipv4"`
	IPv6 *string `json:"ipv6"`
	MAC  string  `json:"mac"`
}

type cpuDoc struct {
	Threads *int     `json:"threads"`
	Cores   *int     `json:"cores"`
	Model   *string  `json:"model"`
	Load    *float64 `json:"load"`
}

type memoryDoc struct {
	Available *int64   `json:"available"`
	Used      *int64   `json:"used"`
	Swap      *swapDoc `json:"swap"`
}

type swapDoc struct {
	Available int64 `json:"available"`
	Used      int64 `json:"used"`
}

type disksDoc struct {
	MountingPoints []mountingPointDoc `json:"mounting_points"`
}

type mountingPointDoc struct {
	Path      string `json:"path"`
	Available int64  `json:"available"`
	Used      int64  `json:"used"`
}

// Encode serializes a record into its stored form. Strings that are not valid
// UTF-8 are refused since JSON would rewrite them and break the round trip.
func Encode(r *model.ClientRecord) ([]byte, error) {
	if r == nil {
		return nil, errors.New("encode: nil record")
	}
	if err := checkUTF8(r); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	b, err := json.Marshal(toDoc(r))
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return b, nil
}

// Decode parses a stored record. Any structural problem yields errs.ErrCorruptRecord.
func Decode(b []byte) (*model.ClientRecord, error) {
	var d document
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrCorruptRecord, err)
	}
	if err := d.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrCorruptRecord, err)
	}
	return fromDoc(&d), nil
}

func (d *document) validate() error {
	switch {
	case d.Metadata == nil:
		return errors.New("missing metadata")
	case d.Metadata.CreatedAt == nil || d.Metadata.UpdatedAt == nil:
		return errors.New("missing metadata timestamps")
	case *d.Metadata.UpdatedAt < *d.Metadata.CreatedAt:
		return errors.New("updated_at before created_at")
	case d.Metadata.AuditLog == nil:
		return errors.New("missing audit_log")
	case d.Data == nil || d.Data.Analytics == nil:
		return errors.New("missing data.analytics")
	}
	a := d.Data.Analytics
	switch {
	case a.Network == nil:
		return errors.New("missing network section")
	case a.Network.Interfaces == nil:
		return errors.New("missing network.interfaces")
	case a.CPU == nil:
		return errors.New("missing cpu section")
	case a.Memory == nil:
		return errors.New("missing memory section")
	case a.Disks == nil:
		return errors.New("missing disks section")
	case a.Disks.MountingPoints == nil:
		return errors.New("missing disks.mounting_points")
	}
	return nil
}

func checkUTF8(r *model.ClientRecord) error {
	invalid := func(field string, s *string) error {
		if s == nil || utf8.ValidString(*s) {
			return nil
		}
		return fmt.Errorf("%s %q is not valid UTF-8", field, *s)
	}
	var errList []error
	for _, e := range r.Metadata.AuditLog {
		errList = append(errList, invalid("audit description", &e.Description))
	}
	an := &r.Data.Analytics
	for _, in := range an.Network.Interfaces {
		errList = append(errList,
			invalid("interface name", &in.Name),
			invalid("interface mac", &in.MAC),
			invalid("interface ipv4", in.IPv4),
			invalid("interface ipv6", in.IPv6),
		)
	}
	errList = append(errList, invalid("cpu model", an.CPU.Model))
	for _, mp := range an.Disks.MountingPoints {
		errList = append(errList, invalid("mounting point path", &mp.Path))
	}
	return errors.Join(errList...)
}

func toDoc(r *model.ClientRecord) *document {
	audit := make([]auditEntryDoc, 0, len(r.Metadata.AuditLog))
	for _, e := range r.Metadata.AuditLog {
		audit = append(audit, auditEntryDoc(e))
	}

	an := r.Data.Analytics
	ifaces := make([]interfaceDoc, 0, len(an.Network.Interfaces))
	for _, in := range an.Network.Interfaces {
		ifaces = append(ifaces, interfaceDoc{Name: in.Name, IPv4: in.IPv4, IPv6: in.IPv6, MAC: in.MAC})
	}
	mps := make([]mountingPointDoc, 0, len(an.Disks.MountingPoints))
	for _, mp := range an.Disks.MountingPoints {
		mps = append(mps, mountingPointDoc(mp))
	}

	var swap *swapDoc
	if an.Memory.Swap != nil {
		swap = &swapDoc{Available: an.Memory.Swap.Available, Used: an.Memory.Swap.Used}
	}

	created, updated := r.Metadata.CreatedAt, r.Metadata.UpdatedAt
	return &document{
		Metadata: &metadataDoc{CreatedAt: &created, UpdatedAt: &updated, AuditLog: audit},
		Data: &dataDoc{Analytics: &analyticsDoc{
			Network: &networkDoc{Latency: an.Network.Latency, Interfaces: ifaces},
			CPU: &cpuDoc{
				Threads: an.CPU.Threads,
				Cores:   an.CPU.Cores,
				Model:   an.CPU.Model,
				Load:    an.CPU.Load,
			},
			Memory: &memoryDoc{Available: an.Memory.Available, Used: an.Memory.Used, Swap: swap},
			Disks:  &disksDoc{MountingPoints: mps},
		}},
	}
}

func fromDoc(d *document) *model.ClientRecord {
	r := model.NewClientRecord()
	r.Metadata.CreatedAt = *d.Metadata.CreatedAt
	r.Metadata.UpdatedAt = *d.Metadata.UpdatedAt
	for _, e := range d.Metadata.AuditLog {
		r.Metadata.AuditLog = append(r.Metadata.AuditLog, model.AuditEntry(e))
	}

	a := d.Data.Analytics
	an := &r.Data.Analytics
	an.Network.Latency = a.Network.Latency
	for _, in := range a.Network.Interfaces {
		an.Network.Interfaces = append(an.Network.Interfaces, model.NetworkInterface{
			Name: in.Name, MAC: in.MAC, IPv4: in.IPv4, IPv6: in.IPv6,
		})
	}
	an.CPU = model.CPUInfo{Threads: a.CPU.Threads, Cores: a.CPU.Cores, Model: a.CPU.Model, Load: a.CPU.Load}
	an.Memory = model.MemoryInfo{Available: a.Memory.Available, Used: a.Memory.Used}
	if a.Memory.Swap != nil {
		an.Memory.Swap = &model.SwapInfo{Available: a.Memory.Swap.Available, Used: a.Memory.Swap.Used}
	}
	for _, mp := range a.Disks.MountingPoints {
		an.Disks.MountingPoints = append(an.Disks.MountingPoints, model.MountingPoint(mp))
	}
	return r
}
