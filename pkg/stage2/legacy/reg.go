package legacy

import (
	"context"
	"encoding/binary"

	"github.com/barnettlynn/flashkit/pkg/catalog"
	"github.com/barnettlynn/flashkit/pkg/stage2"
)

// ReadReg32 reads a 32-bit register at address, spec.md §4.5.
func (d *Driver) ReadReg32(ctx context.Context, address uint32) (uint32, error) {
	if err := d.t.Write(ctx, []byte{catalog.LegacyCmdReadReg32}); err != nil {
		return 0, err
	}
	var addrBuf [4]byte
	binary.BigEndian.PutUint32(addrBuf[:], address)
	if err := d.t.Write(ctx, addrBuf[:]); err != nil {
		return 0, err
	}
	valBuf, err := d.t.ReadExact(ctx, 4, readTimeout)
	if err != nil {
		return 0, err
	}
	if err := d.expectACK(ctx, readTimeout); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(valBuf), nil
}

// WriteReg32 writes value to the 32-bit register at address, spec.md §4.5.
func (d *Driver) WriteReg32(ctx context.Context, address, value uint32) error {
	if err := d.t.Write(ctx, []byte{catalog.LegacyCmdWriteReg32}); err != nil {
		return err
	}
	var buf [8]byte
	binary.BigEndian.PutUint32(buf[0:4], address)
	binary.BigEndian.PutUint32(buf[4:8], value)
	if err := d.t.Write(ctx, buf[:]); err != nil {
		return err
	}
	return d.expectACK(ctx, readTimeout)
}

// Reboot and Shutdown are not detailed by spec.md §4.5 beyond the common
// stage2.Driver contract. Reboot sends its opcode alone and awaits an ACK;
// Shutdown sends its opcode, then the mode as a BE32 value, then awaits an
// ACK.
func (d *Driver) Reboot(ctx context.Context) error {
	if err := d.t.Write(ctx, []byte{catalog.LegacyCmdReboot}); err != nil {
		return err
	}
	return d.expectACK(ctx, readTimeout)
}

func (d *Driver) Shutdown(ctx context.Context, mode stage2.RebootMode) error {
	if err := d.t.Write(ctx, []byte{catalog.LegacyCmdShutdown}); err != nil {
		return err
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(mode))
	if err := d.t.Write(ctx, b[:]); err != nil {
		return err
	}
	return d.expectACK(ctx, readTimeout)
}
