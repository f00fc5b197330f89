package xflash

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/barnettlynn/flashkit/pkg/catalog"
	"github.com/barnettlynn/flashkit/pkg/codec"
)

// ExtensionPatchAddress is the well-known load address for installing an
// extension patch with BootTo, spec.md §4.4.
const ExtensionPatchAddress uint64 = 0x4FFF0000

// BootTo uploads code to address in 4 KiB magic-framed chunks and jumps,
// spec.md §4.4. After the final chunk it waits 500ms and accepts either
// the SYNC_SIGNAL frame or an OK status.
func (d *Driver) BootTo(ctx context.Context, address uint64, code []byte) error {
	var params [16]byte
	binary.LittleEndian.PutUint64(params[0:8], address)
	binary.LittleEndian.PutUint64(params[8:16], uint64(len(code)))
	if err := d.c.transact(ctx, catalog.XCmdBootTo, params[:]); err != nil {
		return err
	}

	for off := 0; off < len(code); off += dataChunk {
		if err := checkCancel(ctx); err != nil {
			return err
		}
		end := off + dataChunk
		if end > len(code) {
			end = len(code)
		}
		if err := d.c.writePacket(ctx, code[off:end]); err != nil {
			return err
		}
	}

	time.Sleep(500 * time.Millisecond)
	status, err := d.c.getStatus(ctx)
	if err != nil {
		return err
	}
	if status == codec.XFlashSyncSignal || status == 0 {
		return nil
	}
	return statusErr("xflash.boot_to", status)
}
