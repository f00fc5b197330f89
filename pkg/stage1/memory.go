package stage1

import (
	"context"

	"github.com/barnettlynn/flashkit/pkg/catalog"
	"github.com/barnettlynn/flashkit/pkg/codec"
	"github.com/barnettlynn/flashkit/pkg/ferrors"
	"github.com/barnettlynn/flashkit/pkg/transport"
)

// memAccessErr turns a non-zero stage-1 status into the Security taxonomy
// when the target config predicted it, otherwise a generic ProtocolError.
func (d *Driver) memAccessErr(op string, status uint16, write bool) error {
	if status == 0 {
		return nil
	}
	if write && d.lastIdentity.TargetConfig.MemWriteAuth {
		return &ferrors.SecurityError{Kind: ferrors.SecurityMemAuthBlocked}
	}
	if !write && d.lastIdentity.TargetConfig.MemReadAuth {
		return &ferrors.SecurityError{Kind: ferrors.SecurityMemAuthBlocked}
	}
	return &ferrors.ProtocolError{Op: op, Code: uint32(status)}
}

func (d *Driver) sendAddrCount(ctx context.Context, cmd byte, addr uint32, count uint32) error {
	if err := codec.Echo(ctx, d.t, cmd, d.timeouts.Identity); err != nil {
		return err
	}
	if err := transport.WriteU32BE(ctx, d.t, addr); err != nil {
		return err
	}
	return transport.WriteU32BE(ctx, d.t, count)
}

// Read16 reads count 16-bit big-endian words starting at addr.
func (d *Driver) Read16(ctx context.Context, addr uint32, count uint32) ([]uint16, error) {
	if err := d.sendAddrCount(ctx, catalog.CmdRead16, addr, count); err != nil {
		return nil, err
	}
	status, err := transport.ReadU16BE(ctx, d.t, d.timeouts.Identity)
	if err != nil {
		return nil, err
	}
	if status != 0 {
		return nil, d.memAccessErr("stage1.read16", status, false)
	}
	out := make([]uint16, count)
	for i := range out {
		v, err := transport.ReadU16BE(ctx, d.t, d.timeouts.Bulk)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Read32 reads count 32-bit big-endian words starting at addr.
func (d *Driver) Read32(ctx context.Context, addr uint32, count uint32) ([]uint32, error) {
	if err := d.sendAddrCount(ctx, catalog.CmdRead32, addr, count); err != nil {
		return nil, err
	}
	status, err := transport.ReadU16BE(ctx, d.t, d.timeouts.Identity)
	if err != nil {
		return nil, err
	}
	if status != 0 {
		return nil, d.memAccessErr("stage1.read32", status, false)
	}
	out := make([]uint32, count)
	for i := range out {
		v, err := transport.ReadU32BE(ctx, d.t, d.timeouts.Bulk)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Write16 writes values as a stream of 16-bit big-endian words starting at
// addr, then reads the trailing status.
func (d *Driver) Write16(ctx context.Context, addr uint32, values []uint16) error {
	if err := d.sendAddrCount(ctx, catalog.CmdWrite16, addr, uint32(len(values))); err != nil {
		return err
	}
	for _, v := range values {
		var b [2]byte
		b[0] = byte(v >> 8)
		b[1] = byte(v)
		if err := d.t.Write(ctx, b[:]); err != nil {
			return err
		}
	}
	status, err := transport.ReadU16BE(ctx, d.t, d.timeouts.Bulk)
	if err != nil {
		return err
	}
	return d.memAccessErr("stage1.write16", status, true)
}

// Write32 writes values as a stream of 32-bit big-endian words starting at
// addr, then reads the trailing status.
func (d *Driver) Write32(ctx context.Context, addr uint32, values []uint32) error {
	if err := d.sendAddrCount(ctx, catalog.CmdWrite32, addr, uint32(len(values))); err != nil {
		return err
	}
	for _, v := range values {
		if err := transport.WriteU32BE(ctx, d.t, v); err != nil {
			return err
		}
	}
	status, err := transport.ReadU16BE(ctx, d.t, d.timeouts.Bulk)
	if err != nil {
		return err
	}
	return d.memAccessErr("stage1.write32", status, true)
}
