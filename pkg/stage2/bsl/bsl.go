// Package bsl drives the SPRD/Unisoc BSL stage-1/stage-2 protocol: HDLC
// framed command/response exchanges used for FDL upload, baud-rate
// retuning, and partition read/write, spec.md §4.7.
package bsl

import (
	"context"
	"time"

	"github.com/barnettlynn/flashkit/pkg/catalog"
	"github.com/barnettlynn/flashkit/pkg/codec"
	"github.com/barnettlynn/flashkit/pkg/events"
	"github.com/barnettlynn/flashkit/pkg/ferrors"
	"github.com/barnettlynn/flashkit/pkg/stage2"
	"github.com/barnettlynn/flashkit/pkg/transport"
)

const (
	fdlChunk       = 4096
	partitionChunk = 64 * 1024
	defaultTimeout = 5 * time.Second
)

// Driver implements stage2.Driver over HDLC-framed SPRD BSL exchanges.
type Driver struct {
	t          transport.Transport
	sink       *events.Sink
	partitions []stage2.Partition
}

// New binds a Driver to t. sink may be nil.
func New(t transport.Transport, sink *events.Sink) *Driver {
	return &Driver{t: t, sink: sink}
}

func (d *Driver) Kind() stage2.Kind { return stage2.KindBSL }
func (d *Driver) Close() error      { return d.t.Close() }

func (d *Driver) progress(done, total int64, label string) {
	if d.sink != nil {
		d.sink.Progress(done, total, label)
	}
}

// sendFrame HDLC-frames payload and writes it.
func (d *Driver) sendFrame(ctx context.Context, payload []byte) error {
	return d.t.Write(ctx, codec.FrameHDLC(payload))
}

// recvFrame reads one HDLC frame byte-at-a-time until the closing flag,
// then parses it. BSL frames are not length-prefixed, so the link is read
// one byte at a time between flag octets.
func (d *Driver) recvFrame(ctx context.Context, timeout time.Duration) ([]byte, error) {
	var raw []byte
	first, err := d.t.ReadExact(ctx, 1, timeout)
	if err != nil {
		return nil, err
	}
	raw = append(raw, first...)
	for {
		b, err := d.t.ReadExact(ctx, 1, timeout)
		if err != nil {
			return nil, err
		}
		raw = append(raw, b...)
		if len(raw) > 1 && b[0] == 0x7E {
			break
		}
	}
	return codec.ParseHDLC(raw)
}

// command sends a one-byte opcode with an optional parameter block and
// expects a single response byte (OK/ERROR/BUSY/VERIFY_ERROR).
func (d *Driver) command(ctx context.Context, op byte, params []byte) error {
	payload := append([]byte{op}, params...)
	if err := d.sendFrame(ctx, payload); err != nil {
		return err
	}
	resp, err := d.recvFrame(ctx, defaultTimeout)
	if err != nil {
		return err
	}
	if len(resp) == 0 {
		return &ferrors.ProtocolError{Op: "bsl.command", Code: 0}
	}
	if resp[0] != catalog.BSLRspOK {
		return &ferrors.ProtocolError{Op: "bsl.command", Code: uint32(resp[0])}
	}
	return nil
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

// DeviceInfo is minimal on the BSL path: storage kind is always NAND-class
// flash addressed by partition name, per spec.md §4.7.
func (d *Driver) DeviceInfo(ctx context.Context) (stage2.StorageInfo, error) {
	return stage2.StorageInfo{Kind: stage2.StorageNAND, BlockSize: 512}, nil
}

// Partitions returns whatever has been discovered out of band; BSL has no
// on-wire partition enumeration command in this catalog.
func (d *Driver) Partitions(ctx context.Context) ([]stage2.Partition, error) {
	return d.partitions, nil
}

// Reboot issues RESET.
func (d *Driver) Reboot(ctx context.Context) error {
	return d.command(ctx, catalog.BSLReset, nil)
}

// Shutdown issues POWER_OFF; mode is not meaningful on this path.
func (d *Driver) Shutdown(ctx context.Context, mode stage2.RebootMode) error {
	return d.command(ctx, catalog.BSLPowerOff, nil)
}

// FormatPartition is implemented as ErasePartition on BSL; the protocol
// has no distinct format verb in this catalog.
func (d *Driver) FormatPartition(ctx context.Context, name string) error {
	return d.ErasePartition(ctx, name)
}

// ErasePartition issues ERASE_PARTITION with the nul-terminated name.
func (d *Driver) ErasePartition(ctx context.Context, name string) error {
	return d.command(ctx, catalog.BSLErasePartition, nulTerminate(name))
}

func nulTerminate(s string) []byte {
	return append([]byte(s), 0)
}
