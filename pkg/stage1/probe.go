package stage1

import (
	"context"

	"github.com/barnettlynn/flashkit/pkg/catalog"
	"github.com/barnettlynn/flashkit/pkg/codec"
	"github.com/barnettlynn/flashkit/pkg/ferrors"
	"github.com/barnettlynn/flashkit/pkg/transport"
)

// Probe issues the fixed identity-probe command sequence of spec.md §4.3
// and returns the assembled Identity. GET_PL_CAP, GET_ME_ID and GET_SOC_ID
// are optional: a failure on any of them is swallowed rather than aborting
// the whole probe.
func (d *Driver) Probe(ctx context.Context) (Identity, error) {
	var id Identity

	hwCode, _, err := d.echoU16Status(ctx, catalog.CmdGetHWCode)
	if err != nil {
		return id, err
	}
	id.HWCode = hwCode

	// GET_BL_VER is special: a device still in BROM echoes the command byte
	// itself (0xFE) instead of a version/status pair.
	if err := d.t.Write(ctx, []byte{catalog.CmdGetBLVer}); err != nil {
		return id, err
	}
	first, err := d.t.ReadExact(ctx, 1, d.timeouts.Identity)
	if err != nil {
		return id, err
	}
	if first[0] == catalog.CmdGetBLVer {
		id.IsBROM = true
	} else {
		id.BLVersion = first[0]
		if _, err := transport.ReadU16BE(ctx, d.t, d.timeouts.Identity); err != nil {
			return id, err
		}
	}

	// GET_HW_SW_VER packs the two values its name promises into one 32-bit
	// echo: hw_version in the upper 16 bits, sw_version in the lower 16.
	// The fixed probe sequence (spec.md §4.3) has no separate command for
	// hw_sub_code, so it stays zero-valued; DA selection (spec.md §3) only
	// ever keys on hw_code/hw_version/sw_version, not hw_sub_code.
	hwsw, _, err := d.echoU32Status(ctx, catalog.CmdGetHWSWVer)
	if err != nil {
		return id, err
	}
	id.HWVersion = uint16(hwsw >> 16)
	id.SWVersion = uint16(hwsw)

	tc, _, err := d.echoU32Status(ctx, catalog.CmdGetTargetConfig)
	if err != nil {
		return id, err
	}
	id.TargetConfig = decodeTargetConfig(tc)
	id.RawTargetConfig = tc

	if capVal, _, err := d.echoU32Status(ctx, catalog.CmdGetPLCap); err == nil {
		id.ChipEvolution = uint16(capVal)
	}

	if meid, err := d.echoBytesStatus(ctx, catalog.CmdGetMEID, 16); err == nil {
		id.MEID = meid
	}

	if socid, err := d.echoBytesStatus(ctx, catalog.CmdGetSOCID, 32); err == nil {
		id.SOCID = socid
	}

	d.logf("stage1: identity probed: hw_code=%#04x bl_version=%#02x is_brom=%v", id.HWCode, id.BLVersion, id.IsBROM)
	d.lastIdentity = id
	return id, nil
}

// echoU16Status sends an echo command and reads a 16-bit big-endian value
// followed by a 16-bit status.
func (d *Driver) echoU16Status(ctx context.Context, cmd byte) (uint16, uint16, error) {
	if err := codec.Echo(ctx, d.t, cmd, d.timeouts.Identity); err != nil {
		return 0, 0, err
	}
	val, err := transport.ReadU16BE(ctx, d.t, d.timeouts.Identity)
	if err != nil {
		return 0, 0, err
	}
	status, err := transport.ReadU16BE(ctx, d.t, d.timeouts.Identity)
	if err != nil {
		return 0, 0, err
	}
	if status != 0 {
		return val, status, &ferrors.ProtocolError{Op: "stage1.probe", Code: uint32(status)}
	}
	return val, status, nil
}

// echoU32Status sends an echo command and reads a 32-bit big-endian value
// followed by a 16-bit status.
func (d *Driver) echoU32Status(ctx context.Context, cmd byte) (uint32, uint16, error) {
	if err := codec.Echo(ctx, d.t, cmd, d.timeouts.Identity); err != nil {
		return 0, 0, err
	}
	val, err := transport.ReadU32BE(ctx, d.t, d.timeouts.Identity)
	if err != nil {
		return 0, 0, err
	}
	status, err := transport.ReadU16BE(ctx, d.t, d.timeouts.Identity)
	if err != nil {
		return 0, 0, err
	}
	if status != 0 {
		return val, status, &ferrors.ProtocolError{Op: "stage1.probe", Code: uint32(status)}
	}
	return val, status, nil
}

// echoBytesStatus sends an echo command and reads n opaque bytes followed
// by a 16-bit status.
func (d *Driver) echoBytesStatus(ctx context.Context, cmd byte, n int) ([]byte, error) {
	if err := codec.Echo(ctx, d.t, cmd, d.timeouts.Identity); err != nil {
		return nil, err
	}
	val, err := d.t.ReadExact(ctx, n, d.timeouts.Identity)
	if err != nil {
		return nil, err
	}
	status, err := transport.ReadU16BE(ctx, d.t, d.timeouts.Identity)
	if err != nil {
		return nil, err
	}
	if status != 0 {
		return val, &ferrors.ProtocolError{Op: "stage1.probe", Code: uint32(status)}
	}
	return val, nil
}
