package xflash

import (
	"context"
	"encoding/binary"

	"github.com/barnettlynn/flashkit/pkg/catalog"
	"github.com/barnettlynn/flashkit/pkg/ferrors"
	"github.com/barnettlynn/flashkit/pkg/stage2"
)

func readWriteParams(storageKind uint32, partitionKind uint32, address, length uint64) []byte {
	b := make([]byte, 24)
	binary.LittleEndian.PutUint32(b[0:4], storageKind)
	binary.LittleEndian.PutUint32(b[4:8], partitionKind)
	binary.LittleEndian.PutUint64(b[8:16], address)
	binary.LittleEndian.PutUint64(b[16:24], length)
	return b
}

// ReadPartition streams name's content to w, ACK-ing each frame with a
// zero-payload packet and reporting progress after each, spec.md §4.4.
func (d *Driver) ReadPartition(ctx context.Context, name string, w stage2.WriteSink) error {
	part, err := d.findPartition(name)
	if err != nil {
		return err
	}
	address := part.Offset()
	length := part.Size()

	params := readWriteParams(uint32(d.storage.Kind), 0, address, length)
	if err := d.c.sendCmd(ctx, catalog.XCmdReadPartition); err != nil {
		return err
	}
	if status, err := d.c.getStatus(ctx); err != nil {
		return err
	} else if status != 0 {
		return statusErr("xflash.read_partition", status)
	}
	if err := d.c.sendParams(ctx, params); err != nil {
		return err
	}
	if status, err := d.c.getStatus(ctx); err != nil {
		return err
	} else if status != 0 {
		return statusErr("xflash.read_partition", status)
	}

	var done uint64
	for done < length {
		if err := checkCancel(ctx); err != nil {
			return err
		}
		payload, err := d.c.readPacket(ctx, d.c.readWait)
		if err != nil {
			return err
		}
		if _, err := w.Write(payload); err != nil {
			return err
		}
		done += uint64(len(payload))
		d.progress(int64(done), int64(length), "read_partition:"+name)
		if err := d.c.writePacket(ctx, nil); err != nil {
			return err
		}
	}
	_, err = d.c.getStatus(ctx)
	return err
}

// WritePartition streams length bytes from r into name, chunked at 1 MiB
// top-level with 4 KiB sub-chunks, spec.md §4.4/§9.
func (d *Driver) WritePartition(ctx context.Context, name string, r stage2.ReadSource, length int64) error {
	part, err := d.findPartition(name)
	if err != nil {
		return err
	}
	if uint64(length) > part.Size() {
		return &ferrors.StorageError{Kind: ferrors.StorageSizeExceedsPartition, Name: name}
	}
	address := part.Offset()

	params := readWriteParams(uint32(d.storage.Kind), 0, address, uint64(length))
	if err := d.c.sendCmd(ctx, catalog.XCmdWritePartition); err != nil {
		return err
	}
	if status, err := d.c.getStatus(ctx); err != nil {
		return err
	} else if status != 0 {
		return statusErr("xflash.write_partition", status)
	}
	if err := d.c.sendParams(ctx, params); err != nil {
		return err
	}
	if status, err := d.c.getStatus(ctx); err != nil {
		return err
	} else if status != 0 {
		return statusErr("xflash.write_partition", status)
	}

	buf := make([]byte, writeChunk)
	var sent int64
	for sent < length {
		if err := checkCancel(ctx); err != nil {
			return &ferrors.PartialWriteError{Op: "xflash.write_partition", FailedAt: sent, TotalLength: length, Cause: err}
		}
		want := writeChunk
		if remaining := length - sent; int64(want) > remaining {
			want = int(remaining)
		}
		n, rerr := r.Read(buf[:want])
		if n > 0 {
			if err := d.writeChunkSubFramed(ctx, buf[:n]); err != nil {
				return &ferrors.PartialWriteError{Op: "xflash.write_partition", FailedAt: sent, TotalLength: length, Cause: err}
			}
			sent += int64(n)
			d.progress(sent, length, "write_partition:"+name)
		}
		if rerr != nil {
			if sent < length {
				return &ferrors.PartialWriteError{Op: "xflash.write_partition", FailedAt: sent, TotalLength: length, Cause: rerr}
			}
			break
		}
		status, err := d.c.getStatus(ctx)
		if err != nil {
			return &ferrors.PartialWriteError{Op: "xflash.write_partition", FailedAt: sent, TotalLength: length, Cause: err}
		}
		if status != catalog.StatusContinue && status != 0 {
			return &ferrors.PartialWriteError{Op: "xflash.write_partition", FailedAt: sent, TotalLength: length, Cause: statusErr("xflash.write_partition", status)}
		}
	}
	_, err = d.c.getStatus(ctx)
	return err
}

// writeChunkSubFramed sends one top-level chunk as a sequence of 4 KiB
// magic-framed data packets.
func (d *Driver) writeChunkSubFramed(ctx context.Context, chunk []byte) error {
	for off := 0; off < len(chunk); off += dataChunk {
		if err := checkCancel(ctx); err != nil {
			return err
		}
		end := off + dataChunk
		if end > len(chunk) {
			end = len(chunk)
		}
		if err := d.c.writePacket(ctx, chunk[off:end]); err != nil {
			return err
		}
	}
	return nil
}

// ErasePartition zero-fills name's full extent, the XFlash equivalent of
// erase (the protocol has no dedicated erase opcode beyond write with an
// all-zero source).
func (d *Driver) ErasePartition(ctx context.Context, name string) error {
	part, err := d.findPartition(name)
	if err != nil {
		return err
	}
	return d.WritePartition(ctx, name, zeroReader{}, int64(part.Size()))
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}
