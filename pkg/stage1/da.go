package stage1

import (
	"context"
	"time"

	"github.com/barnettlynn/flashkit/pkg/catalog"
	"github.com/barnettlynn/flashkit/pkg/codec"
	"github.com/barnettlynn/flashkit/pkg/ferrors"
	"github.com/barnettlynn/flashkit/pkg/transport"
)

const daUploadChunk = 64

// uploadDelay implements the load-adaptive trailer delay of spec.md §9:
// max(35ms, min(500ms, bytes/1000 + 35ms)). It is never hard-coded to the
// floor even though the floor usually wins for small payloads.
func uploadDelay(bytesSent int) time.Duration {
	ms := bytesSent/1000 + 35
	if ms > 500 {
		ms = 500
	}
	if ms < 35 {
		ms = 35
	}
	return time.Duration(ms) * time.Millisecond
}

// DAUploadParams describes one DA upload, spec.md §4.3.
type DAUploadParams struct {
	LoadAddress     uint32
	DeclaredLength  uint32
	SignatureLength uint32
	Data            []byte // code followed by signature tail
}

// DAUploadResult carries the device-reported checksum/status for
// diagnostics; a checksum mismatch is logged but not fatal.
type DAUploadResult struct {
	DeviceChecksum uint16
	LocalChecksum  uint16
}

// UploadDA uploads a Download Agent payload, retrying once through the SLA
// challenge/response path if the device demands it, then streaming the
// payload in fixed 64-byte chunks.
func (d *Driver) UploadDA(ctx context.Context, p DAUploadParams, keys []SLAKey) (DAUploadResult, error) {
	padded := codec.PadEven(p.Data)
	checksum := codec.XOR16(padded)

	status, err := d.sendDAHeader(ctx, p.LoadAddress, uint32(len(padded)), p.SignatureLength)
	if err != nil {
		return DAUploadResult{}, err
	}

	if status == catalog.StatusSLARequired {
		if err := d.slaChallengeResponse(ctx, keys); err != nil {
			return DAUploadResult{}, err
		}
		status, err = d.sendDAHeader(ctx, p.LoadAddress, uint32(len(padded)), p.SignatureLength)
		if err != nil {
			return DAUploadResult{}, err
		}
	}
	if status > 0xFF {
		return DAUploadResult{}, daStatusErr(status)
	}

	total := len(padded)
	for off := 0; off < total; off += daUploadChunk {
		if err := checkCancel(ctx); err != nil {
			return DAUploadResult{}, err
		}
		end := off + daUploadChunk
		if end > total {
			end = total
		}
		if err := d.t.Write(ctx, padded[off:end]); err != nil {
			return DAUploadResult{}, err
		}
		d.progress(int64(end), int64(total), "da upload")
	}
	// final zero-byte write terminates the stream
	if err := d.t.Write(ctx, nil); err != nil {
		return DAUploadResult{}, err
	}
	time.Sleep(uploadDelay(total))

	deviceChecksum, err := transport.ReadU16BE(ctx, d.t, d.timeouts.Bulk)
	if err != nil {
		return DAUploadResult{}, err
	}
	finalStatus, err := transport.ReadU16BE(ctx, d.t, d.timeouts.Bulk)
	if err != nil {
		return DAUploadResult{}, err
	}
	if finalStatus > 0xFF {
		return DAUploadResult{}, daStatusErr(finalStatus)
	}
	if deviceChecksum != checksum {
		d.logf("stage1: DA checksum mismatch: local=%#04x device=%#04x (not fatal, device authoritative)", checksum, deviceChecksum)
	}
	return DAUploadResult{DeviceChecksum: deviceChecksum, LocalChecksum: checksum}, nil
}

func (d *Driver) sendDAHeader(ctx context.Context, addr, length, sigLength uint32) (uint16, error) {
	if err := codec.Echo(ctx, d.t, catalog.CmdSendDA, d.timeouts.Identity); err != nil {
		return 0, err
	}
	if err := transport.WriteU32BE(ctx, d.t, addr); err != nil {
		return 0, err
	}
	if err := transport.WriteU32BE(ctx, d.t, length); err != nil {
		return 0, err
	}
	if err := transport.WriteU32BE(ctx, d.t, sigLength); err != nil {
		return 0, err
	}
	return transport.ReadU16BE(ctx, d.t, d.timeouts.Identity)
}

// daStatusErr classifies a fatal DA-upload status per spec.md §4.3's
// failure taxonomy.
func daStatusErr(status uint16) error {
	if catalog.IsDASecStatus(status) {
		return &ferrors.SecurityError{Kind: securityKindFor(status)}
	}
	if status == catalog.StatusSBCEnabled {
		return &ferrors.SecurityError{Kind: ferrors.SecuritySbcBlocked}
	}
	return &ferrors.ProtocolError{Op: "stage1.upload_da", Code: uint32(status)}
}

func securityKindFor(status uint16) ferrors.SecurityKind {
	switch status {
	case catalog.StatusSLARequired:
		return ferrors.SecuritySlaRequired
	case catalog.StatusSBCEnabled:
		return ferrors.SecuritySbcBlocked
	default:
		return ferrors.SecurityDaaBlocked
	}
}

// JumpDA hands control to the uploaded DA at addr. use64 selects the
// 64-bit jump opcode (0xDE) over the default 32-bit one (0xD5).
func (d *Driver) JumpDA(ctx context.Context, addr uint32, use64 bool) error {
	cmd := catalog.CmdJumpDA
	if use64 {
		cmd = catalog.CmdJump64
	}
	if err := codec.Echo(ctx, d.t, cmd, d.timeouts.Identity); err != nil {
		return err
	}
	if err := transport.WriteU32BE(ctx, d.t, addr); err != nil {
		return err
	}
	echoed, err := transport.ReadU32BE(ctx, d.t, d.timeouts.Identity)
	if err != nil {
		return err
	}
	if echoed != addr {
		return &ferrors.ProtocolError{Op: "stage1.jump_da", Code: uint32(echoed)}
	}
	status, err := transport.ReadU16BE(ctx, d.t, d.timeouts.Identity)
	if err != nil {
		return err
	}
	if status != 0 {
		return &ferrors.ProtocolError{Op: "stage1.jump_da", Code: uint32(status)}
	}
	return nil
}

func checkCancel(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ferrors.Cancelled
	default:
		return nil
	}
}
