// Package xflash drives the MTK XFlash stage-2 agent protocol: magic-length
// framed packets carrying commands, parameter blocks, bulk data, and
// status sentinels, spec.md §4.4.
package xflash

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/barnettlynn/flashkit/pkg/catalog"
	"github.com/barnettlynn/flashkit/pkg/codec"
	"github.com/barnettlynn/flashkit/pkg/events"
	"github.com/barnettlynn/flashkit/pkg/ferrors"
	"github.com/barnettlynn/flashkit/pkg/transport"
)

const dataChunk = 4096
const writeChunk = 1 << 20

// conn wraps a Transport with the magic-frame read/write primitives every
// XFlash exchange is built from.
type conn struct {
	t        transport.Transport
	sink     *events.Sink
	readWait time.Duration
}

func newConn(t transport.Transport, sink *events.Sink) *conn {
	return &conn{t: t, sink: sink, readWait: 5 * time.Second}
}

func (c *conn) writePacket(ctx context.Context, payload []byte) error {
	return c.t.Write(ctx, codec.FrameXFlash(payload))
}

func (c *conn) readPacket(ctx context.Context, timeout time.Duration) ([]byte, error) {
	header, err := c.t.ReadExact(ctx, codec.HeaderLen(), timeout)
	if err != nil {
		return nil, err
	}
	length, err := codec.ParseXFlashHeader(header)
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}
	return c.t.ReadExact(ctx, int(length), timeout)
}

// getStatus reads one magic frame and normalizes it to a single status
// code: a 2-byte payload is a u16 status; a 4-byte payload equal to the
// XFlash magic re-normalizes to OK (0); any other 4-byte payload is read
// as a u32 status verbatim.
func (c *conn) getStatus(ctx context.Context) (uint32, error) {
	payload, err := c.readPacket(ctx, c.readWait)
	if err != nil {
		return 0, err
	}
	switch len(payload) {
	case 2:
		return uint32(binary.LittleEndian.Uint16(payload)), nil
	case 4:
		v := binary.LittleEndian.Uint32(payload)
		if v == codec.XFlashMagic {
			return 0, nil
		}
		return v, nil
	default:
		return 0, &ferrors.ProtocolError{Op: "xflash.get_status", Code: uint32(len(payload))}
	}
}

func (c *conn) sendCmd(ctx context.Context, cmd uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], cmd)
	return c.writePacket(ctx, b[:])
}

func (c *conn) sendParams(ctx context.Context, params []byte) error {
	return c.writePacket(ctx, params)
}

// transact runs the common shape of spec.md §4.4: send_cmd → get_status →
// send_params → get_status, before any data-phase loop begins. It returns
// an error unless both statuses are OK, STATUS_CONTINUE or STATUS_COMPLETE.
func (c *conn) transact(ctx context.Context, cmd uint32, params []byte) error {
	if err := c.sendCmd(ctx, cmd); err != nil {
		return err
	}
	if status, err := c.getStatus(ctx); err != nil {
		return err
	} else if status != 0 && status != catalog.StatusContinue && status != catalog.StatusComplete {
		return statusErr("xflash.transact", status)
	}
	if err := c.sendParams(ctx, params); err != nil {
		return err
	}
	status, err := c.getStatus(ctx)
	if err != nil {
		return err
	}
	if status != 0 && status != catalog.StatusContinue && status != catalog.StatusComplete {
		return statusErr("xflash.transact", status)
	}
	return nil
}

func statusErr(op string, status uint32) error {
	return &ferrors.ProtocolError{Op: op, Code: status}
}

func checkCancel(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ferrors.Cancelled
	default:
		return nil
	}
}
