package xflash

import (
	"context"
	"encoding/binary"

	"github.com/barnettlynn/flashkit/pkg/catalog"
	"github.com/barnettlynn/flashkit/pkg/stage2"
)

// Reboot sends the no-parameter REBOOT command, spec.md §4.4.
func (d *Driver) Reboot(ctx context.Context) error {
	if err := d.c.sendCmd(ctx, catalog.XCmdReboot); err != nil {
		return err
	}
	status, err := d.c.getStatus(ctx)
	if err != nil {
		return err
	}
	if status != 0 {
		return statusErr("xflash.reboot", status)
	}
	return nil
}

// Shutdown sends the 12-byte SHUTDOWN parameter block, spec.md §4.4.
func (d *Driver) Shutdown(ctx context.Context, mode stage2.RebootMode) error {
	var params [12]byte
	binary.LittleEndian.PutUint32(params[0:4], 0) // async_mode
	binary.LittleEndian.PutUint32(params[4:8], 0) // dl_bit
	binary.LittleEndian.PutUint32(params[8:12], uint32(mode))
	return d.c.transact(ctx, catalog.XCmdShutdown, params[:])
}
