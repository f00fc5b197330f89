package bsl

import (
	"context"
	"encoding/binary"

	"github.com/barnettlynn/flashkit/pkg/catalog"
	"github.com/barnettlynn/flashkit/pkg/ferrors"
)

// UploadFDL uploads an FDL image to address via
// DATA_START(address, size) → OK → loop{DATA_MIDST(chunk≤4KiB) → OK} →
// DATA_END → OK → DATA_EXEC → OK, spec.md §4.7.
func (d *Driver) UploadFDL(ctx context.Context, address uint32, data []byte) error {
	var startParams [8]byte
	binary.LittleEndian.PutUint32(startParams[0:4], address)
	binary.LittleEndian.PutUint32(startParams[4:8], uint32(len(data)))
	if err := d.command(ctx, catalog.BSLDataStart, startParams[:]); err != nil {
		return err
	}

	total := len(data)
	var sent int
	for off := 0; off < total; off += fdlChunk {
		if err := checkCancel(ctx); err != nil {
			return &ferrors.PartialWriteError{Op: "bsl.upload_fdl", FailedAt: int64(sent), TotalLength: int64(total), Cause: err}
		}
		end := off + fdlChunk
		if end > total {
			end = total
		}
		if err := d.command(ctx, catalog.BSLDataMidst, data[off:end]); err != nil {
			return &ferrors.PartialWriteError{Op: "bsl.upload_fdl", FailedAt: int64(sent), TotalLength: int64(total), Cause: err}
		}
		sent += end - off
		d.progress(int64(sent), int64(total), "upload_fdl")
	}

	if err := d.command(ctx, catalog.BSLDataEnd, nil); err != nil {
		return err
	}
	return d.command(ctx, catalog.BSLDataExec, nil)
}
