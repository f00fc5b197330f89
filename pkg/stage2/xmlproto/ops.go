package xmlproto

import (
	"context"
	"fmt"
	"time"

	"github.com/barnettlynn/flashkit/pkg/codec"
	"github.com/barnettlynn/flashkit/pkg/ferrors"
	"github.com/barnettlynn/flashkit/pkg/stage2"
)

const bulkTimeout = 5 * time.Second

const xmlDataChunk = 4096

// DeviceInfo issues GET-HW-INFO; the response <arg> is opaque to this
// engine beyond being attached to the returned StorageInfo as FWVersion.
func (d *Driver) DeviceInfo(ctx context.Context) (stage2.StorageInfo, error) {
	resp, err := d.call(ctx, CmdGetHWInfo, "")
	if err != nil {
		return stage2.StorageInfo{}, err
	}
	return stage2.StorageInfo{Kind: stage2.StorageEMMC, BlockSize: 512, FWVersion: resp.Arg}, nil
}

// Partitions returns the driver's partition list. Nothing in this package
// fills that list, so it is empty: the XML protocol addresses partitions
// by name directly and has no separate GPT-probe command in this catalog.
func (d *Driver) Partitions(ctx context.Context) ([]stage2.Partition, error) {
	return d.partitions, nil
}

// ReadPartition issues READ-PARTITION with the partition name, then reads
// a stream of magic-framed data packets until the device closes the
// transfer with a final status document.
func (d *Driver) ReadPartition(ctx context.Context, name string, w stage2.WriteSink) error {
	if err := d.send(ctx, Doc{Command: CmdReadPartition, Arg: name}); err != nil {
		return err
	}
	var done int64
	for {
		if err := checkCancel(ctx); err != nil {
			return err
		}
		header, err := d.t.ReadExact(ctx, codec.HeaderLen(), bulkTimeout)
		if err != nil {
			return err
		}
		length, err := codec.ParseXFlashHeader(header)
		if err != nil {
			return err
		}
		if length == 0 {
			break
		}
		payload, err := d.t.ReadExact(ctx, int(length), bulkTimeout)
		if err != nil {
			return err
		}
		if _, err := w.Write(payload); err != nil {
			return err
		}
		done += int64(length)
		d.progress(done, 0, "read_partition:"+name)
	}
	resp, err := d.recv(ctx)
	if err != nil {
		return err
	}
	if resp.Status != "" && resp.Status != "OK" {
		return &ferrors.ProtocolError{Op: "xmlproto.read_partition", Code: 0}
	}
	return nil
}

// WritePartition issues WRITE-PARTITION with "name:length", streams length
// bytes in 4 KiB magic-framed chunks, and reads the final status document.
func (d *Driver) WritePartition(ctx context.Context, name string, r stage2.ReadSource, length int64) error {
	if err := d.send(ctx, Doc{Command: CmdWritePartition, Arg: fmt.Sprintf("%s:%d", name, length)}); err != nil {
		return err
	}
	buf := make([]byte, xmlDataChunk)
	var sent int64
	for sent < length {
		if err := checkCancel(ctx); err != nil {
			return &ferrors.PartialWriteError{Op: "xmlproto.write_partition", FailedAt: sent, TotalLength: length, Cause: err}
		}
		want := xmlDataChunk
		if remaining := length - sent; int64(want) > remaining {
			want = int(remaining)
		}
		n, rerr := r.Read(buf[:want])
		if n > 0 {
			if err := d.t.Write(ctx, codec.FrameXFlash(buf[:n])); err != nil {
				return &ferrors.PartialWriteError{Op: "xmlproto.write_partition", FailedAt: sent, TotalLength: length, Cause: err}
			}
			sent += int64(n)
			d.progress(sent, length, "write_partition:"+name)
		}
		if rerr != nil {
			break
		}
	}
	resp, err := d.recv(ctx)
	if err != nil {
		return &ferrors.PartialWriteError{Op: "xmlproto.write_partition", FailedAt: sent, TotalLength: length, Cause: err}
	}
	if resp.Status != "" && resp.Status != "OK" {
		return &ferrors.PartialWriteError{Op: "xmlproto.write_partition", FailedAt: sent, TotalLength: length, Cause: &ferrors.ProtocolError{Op: "xmlproto.write_partition"}}
	}
	return nil
}

// ErasePartition issues ERASE-PARTITION with the partition name.
func (d *Driver) ErasePartition(ctx context.Context, name string) error {
	_, err := d.call(ctx, CmdErasePartition, name)
	return err
}

// FormatPartition has no dedicated XML command distinct from erase in
// this catalog; it is issued as FLASH-ALL scoped to one partition name.
func (d *Driver) FormatPartition(ctx context.Context, name string) error {
	_, err := d.call(ctx, CmdFlashAll, name)
	return err
}

// Reboot issues the no-argument REBOOT command.
func (d *Driver) Reboot(ctx context.Context) error {
	_, err := d.call(ctx, CmdReboot, "")
	return err
}

// Shutdown issues SET-BOOT-MODE with the numeric mode as its argument; the
// XML catalog has no dedicated SHUTDOWN verb (spec.md §4.6 lists
// SET-BOOT-MODE as the closest analog).
func (d *Driver) Shutdown(ctx context.Context, mode stage2.RebootMode) error {
	_, err := d.call(ctx, CmdSetBootMode, fmt.Sprintf("%d", mode))
	return err
}
