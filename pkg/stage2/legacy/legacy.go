// Package legacy drives the older MTK DA protocol: single-opcode-byte
// commands with ACK/NACK/continuation byte framing, spec.md §4.5.
package legacy

import (
	"context"
	"time"

	"github.com/barnettlynn/flashkit/pkg/catalog"
	"github.com/barnettlynn/flashkit/pkg/events"
	"github.com/barnettlynn/flashkit/pkg/ferrors"
	"github.com/barnettlynn/flashkit/pkg/stage2"
	"github.com/barnettlynn/flashkit/pkg/transport"
)

const defaultSectorSize = 512

const (
	readTimeout   = 5 * time.Second
	eraseTimeout  = 30 * time.Second
	formatTimeout = 10 * time.Minute
)

// Patcher lets a caller supply chip-specific ARM Thumb DA patches. The
// Legacy DA's original PATCH opcode sequences are undocumented (spec §9);
// this engine ships no default table, only the seam.
type Patcher func(da []byte) []byte

// Driver implements stage2.Driver over the Legacy byte-synchronous
// protocol.
type Driver struct {
	t          transport.Transport
	sink       *events.Sink
	sectorSize uint64
	partitions []stage2.Partition
	patcher    Patcher
}

// New binds a Driver to t with the default 512-byte sector size.
func New(t transport.Transport, sink *events.Sink) *Driver {
	return &Driver{t: t, sink: sink, sectorSize: defaultSectorSize}
}

// SetPatcher installs a caller-supplied DA patch function.
func (d *Driver) SetPatcher(p Patcher) { d.patcher = p }

func (d *Driver) Kind() stage2.Kind { return stage2.KindLegacy }
func (d *Driver) Close() error      { return d.t.Close() }

func (d *Driver) progress(done, total int64, label string) {
	if d.sink != nil {
		d.sink.Progress(done, total, label)
	}
}

func (d *Driver) expectACK(ctx context.Context, timeout time.Duration) error {
	b, err := d.t.ReadExact(ctx, 1, timeout)
	if err != nil {
		return err
	}
	switch b[0] {
	case catalog.LegacyACK:
		return nil
	case catalog.LegacyCont:
		return nil
	case catalog.LegacyNACK:
		return &ferrors.ProtocolError{Op: "legacy", Code: uint32(catalog.LegacyNACK)}
	default:
		return &ferrors.ProtocolError{Op: "legacy", Code: uint32(b[0])}
	}
}

func checkCancel(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ferrors.Cancelled
	default:
		return nil
	}
}

func (d *Driver) findPartition(name string) (stage2.Partition, error) {
	for _, p := range d.partitions {
		if p.Name == name {
			return p, nil
		}
	}
	return stage2.Partition{}, &ferrors.StorageError{Kind: ferrors.StoragePartitionNotFound, Name: name}
}

// DeviceInfo is not meaningful on the Legacy path beyond the fixed sector
// size; storage identification happens via the PMT, not a device-control
// subcommand family.
func (d *Driver) DeviceInfo(ctx context.Context) (stage2.StorageInfo, error) {
	return stage2.StorageInfo{Kind: stage2.StorageNAND, BlockSize: uint32(d.sectorSize)}, nil
}

// Partitions returns the partition-map-table entries most recently read
// via ReadPMT; Legacy has no live GPT to reparse on demand.
func (d *Driver) Partitions(ctx context.Context) ([]stage2.Partition, error) {
	return d.partitions, nil
}
