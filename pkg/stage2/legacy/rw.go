package legacy

import (
	"context"
	"encoding/binary"
	"io"

	"github.com/barnettlynn/flashkit/pkg/catalog"
	"github.com/barnettlynn/flashkit/pkg/ferrors"
	"github.com/barnettlynn/flashkit/pkg/stage2"
)

func writeBE64(ctx context.Context, d *Driver, v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return d.t.Write(ctx, b[:])
}

// ReadPartition translates name to a sector range via the cached PMT and
// streams it one sector at a time, ACK-ing after each, spec.md §4.5.
func (d *Driver) ReadPartition(ctx context.Context, name string, w stage2.WriteSink) error {
	part, err := d.findPartition(name)
	if err != nil {
		return err
	}
	return d.readFlash(ctx, part.StartSector, part.SectorCount, w)
}

func (d *Driver) readFlash(ctx context.Context, startSector, sectorCount uint64, w stage2.WriteSink) error {
	if err := d.t.Write(ctx, []byte{catalog.LegacyCmdReadFlash}); err != nil {
		return err
	}
	if err := writeBE64(ctx, d, startSector); err != nil {
		return err
	}
	if err := writeBE64(ctx, d, sectorCount); err != nil {
		return err
	}
	total := sectorCount * d.sectorSize
	var done uint64
	for i := uint64(0); i < sectorCount; i++ {
		if err := checkCancel(ctx); err != nil {
			return err
		}
		sector, err := d.t.ReadExact(ctx, int(d.sectorSize), readTimeout)
		if err != nil {
			return err
		}
		if _, err := w.Write(sector); err != nil {
			return err
		}
		if err := d.expectACK(ctx, readTimeout); err != nil {
			return err
		}
		done += d.sectorSize
		d.progress(int64(done), int64(total), "read_flash")
	}
	return d.expectACK(ctx, readTimeout)
}

// WritePartition writes length bytes from r into name, sector by sector,
// padding the final short sector, spec.md §4.5.
func (d *Driver) WritePartition(ctx context.Context, name string, r stage2.ReadSource, length int64) error {
	part, err := d.findPartition(name)
	if err != nil {
		return err
	}
	sectorCount := (uint64(length) + d.sectorSize - 1) / d.sectorSize
	if sectorCount > part.SectorCount {
		return &ferrors.StorageError{Kind: ferrors.StorageSizeExceedsPartition, Name: name}
	}

	if err := d.t.Write(ctx, []byte{catalog.LegacyCmdWriteFlash}); err != nil {
		return err
	}
	if err := writeBE64(ctx, d, part.StartSector); err != nil {
		return err
	}
	if err := writeBE64(ctx, d, sectorCount); err != nil {
		return err
	}
	if err := d.expectACK(ctx, readTimeout); err != nil {
		return err
	}

	buf := make([]byte, d.sectorSize)
	var sent int64
	for i := uint64(0); i < sectorCount; i++ {
		if err := checkCancel(ctx); err != nil {
			return &ferrors.PartialWriteError{Op: "legacy.write_partition", FailedAt: sent, TotalLength: length, Cause: err}
		}
		for j := range buf {
			buf[j] = 0
		}
		n, err := io.ReadFull(r, buf)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return &ferrors.PartialWriteError{Op: "legacy.write_partition", FailedAt: sent, TotalLength: length, Cause: err}
		}
		if err := d.t.Write(ctx, buf); err != nil {
			return &ferrors.PartialWriteError{Op: "legacy.write_partition", FailedAt: sent, TotalLength: length, Cause: err}
		}
		if err := d.expectACK(ctx, readTimeout); err != nil {
			return &ferrors.PartialWriteError{Op: "legacy.write_partition", FailedAt: sent, TotalLength: length, Cause: err}
		}
		sent += int64(n)
		d.progress(sent, length, "write_partition:"+name)
	}
	return nil
}

// ErasePartition issues erase_flash with a 30-second ACK timeout.
func (d *Driver) ErasePartition(ctx context.Context, name string) error {
	part, err := d.findPartition(name)
	if err != nil {
		return err
	}
	if err := d.t.Write(ctx, []byte{catalog.LegacyCmdEraseFlash}); err != nil {
		return err
	}
	if err := writeBE64(ctx, d, part.StartSector); err != nil {
		return err
	}
	if err := writeBE64(ctx, d, part.SectorCount); err != nil {
		return err
	}
	return d.expectACK(ctx, eraseTimeout)
}

// FormatPartition issues format_flash with a 10-minute ACK timeout.
func (d *Driver) FormatPartition(ctx context.Context, name string) error {
	if err := d.t.Write(ctx, []byte{catalog.LegacyCmdFormat}); err != nil {
		return err
	}
	return d.expectACK(ctx, formatTimeout)
}
