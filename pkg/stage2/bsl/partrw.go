package bsl

import (
	"context"
	"encoding/binary"

	"github.com/barnettlynn/flashkit/pkg/catalog"
	"github.com/barnettlynn/flashkit/pkg/ferrors"
	"github.com/barnettlynn/flashkit/pkg/stage2"
)

// partitionParams builds the nul-terminated-name + i64 LE offset + i64 LE
// size parameter block spec.md §4.7 describes for partition read/write.
func partitionParams(name string, offset, size int64) []byte {
	b := append(nulTerminate(name), make([]byte, 16)...)
	binary.LittleEndian.PutUint64(b[len(b)-16:len(b)-8], uint64(offset))
	binary.LittleEndian.PutUint64(b[len(b)-8:], uint64(size))
	return b
}

// ReadPartition streams name in 64 KiB chunks via repeated READ_PARTITION
// commands, each returning a DATA response carrying the chunk payload.
func (d *Driver) ReadPartition(ctx context.Context, name string, w stage2.WriteSink) error {
	part, err := d.findPartition(name)
	if err != nil {
		return err
	}
	total := int64(part.Size())
	var done int64
	for done < total {
		if err := checkCancel(ctx); err != nil {
			return err
		}
		want := int64(partitionChunk)
		if remaining := total - done; want > remaining {
			want = remaining
		}
		payload := append([]byte{catalog.BSLReadPartition}, partitionParams(name, done, want)...)
		if err := d.sendFrame(ctx, payload); err != nil {
			return err
		}
		resp, err := d.recvFrame(ctx, defaultTimeout)
		if err != nil {
			return err
		}
		if len(resp) == 0 || resp[0] != catalog.BSLRspData {
			return &ferrors.ProtocolError{Op: "bsl.read_partition", Code: uint32(resp[0])}
		}
		if _, err := w.Write(resp[1:]); err != nil {
			return err
		}
		done += int64(len(resp) - 1)
		d.progress(done, total, "read_partition:"+name)
	}
	return nil
}

// WritePartition streams length bytes from r into name in 64 KiB chunks
// via repeated WRITE_PARTITION commands.
func (d *Driver) WritePartition(ctx context.Context, name string, r stage2.ReadSource, length int64) error {
	part, err := d.findPartition(name)
	if err != nil {
		return err
	}
	if uint64(length) > part.Size() {
		return &ferrors.StorageError{Kind: ferrors.StorageSizeExceedsPartition, Name: name}
	}

	buf := make([]byte, partitionChunk)
	var sent int64
	for sent < length {
		if err := checkCancel(ctx); err != nil {
			return &ferrors.PartialWriteError{Op: "bsl.write_partition", FailedAt: sent, TotalLength: length, Cause: err}
		}
		want := partitionChunk
		if remaining := length - sent; int64(want) > remaining {
			want = int(remaining)
		}
		n, rerr := r.Read(buf[:want])
		if n > 0 {
			params := partitionParams(name, sent, int64(n))
			payload := append([]byte{catalog.BSLWritePartition}, append(params, buf[:n]...)...)
			if err := d.sendFrame(ctx, payload); err != nil {
				return &ferrors.PartialWriteError{Op: "bsl.write_partition", FailedAt: sent, TotalLength: length, Cause: err}
			}
			resp, err := d.recvFrame(ctx, defaultTimeout)
			if err != nil {
				return &ferrors.PartialWriteError{Op: "bsl.write_partition", FailedAt: sent, TotalLength: length, Cause: err}
			}
			if len(resp) == 0 || resp[0] != catalog.BSLRspOK {
				return &ferrors.PartialWriteError{Op: "bsl.write_partition", FailedAt: sent, TotalLength: length, Cause: &ferrors.ProtocolError{Op: "bsl.write_partition"}}
			}
			sent += int64(n)
			d.progress(sent, length, "write_partition:"+name)
		}
		if rerr != nil {
			break
		}
	}
	return nil
}

// ReadUID issues READ_UID and returns the raw identifier bytes carried in
// the DATA response.
func (d *Driver) ReadUID(ctx context.Context) ([]byte, error) {
	if err := d.sendFrame(ctx, []byte{catalog.BSLReadUID}); err != nil {
		return nil, err
	}
	resp, err := d.recvFrame(ctx, defaultTimeout)
	if err != nil {
		return nil, err
	}
	if len(resp) == 0 || resp[0] != catalog.BSLRspData {
		return nil, &ferrors.ProtocolError{Op: "bsl.read_uid", Code: 0}
	}
	return resp[1:], nil
}
