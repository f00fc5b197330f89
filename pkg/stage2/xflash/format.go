package xflash

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/barnettlynn/flashkit/pkg/catalog"
	"github.com/barnettlynn/flashkit/pkg/ferrors"
)

const formatParamLen = 48
const formatDelayCapMS = 5000

// FormatPartition sends a 48-byte NandExtension parameter block and loops
// on STATUS_CONTINUE-as-delay-in-milliseconds until STATUS_COMPLETE,
// spec.md §4.4.
func (d *Driver) FormatPartition(ctx context.Context, name string) error {
	part, err := d.findPartition(name)
	if err != nil {
		return err
	}

	params := make([]byte, formatParamLen)
	binary.LittleEndian.PutUint32(params[0:4], uint32(d.storage.Kind))
	binary.LittleEndian.PutUint32(params[4:8], 0)
	binary.LittleEndian.PutUint64(params[8:16], part.Offset())
	binary.LittleEndian.PutUint64(params[16:24], part.Size())

	if err := d.c.sendCmd(ctx, catalog.XCmdFormatPartition); err != nil {
		return err
	}
	if status, err := d.c.getStatus(ctx); err != nil {
		return err
	} else if status != 0 {
		return statusErr("xflash.format", status)
	}
	if err := d.c.sendParams(ctx, params); err != nil {
		return err
	}

	for {
		if err := checkCancel(ctx); err != nil {
			return err
		}
		status, err := d.c.getStatus(ctx)
		if err != nil {
			return err
		}
		switch status {
		case catalog.StatusContinue:
			delayMS, err := d.c.getStatus(ctx)
			if err != nil {
				return err
			}
			if delayMS > formatDelayCapMS {
				delayMS = formatDelayCapMS
			}
			time.Sleep(time.Duration(delayMS) * time.Millisecond)
			if err := d.c.writePacket(ctx, nil); err != nil {
				return err
			}
		case catalog.StatusComplete:
			return nil
		default:
			return &ferrors.ProtocolError{Op: "xflash.format", Code: status}
		}
	}
}
