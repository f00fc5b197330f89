package stage1

import (
	"context"

	"github.com/barnettlynn/flashkit/pkg/catalog"
	"github.com/barnettlynn/flashkit/pkg/codec"
	"github.com/barnettlynn/flashkit/pkg/ferrors"
	"github.com/barnettlynn/flashkit/pkg/transport"
)

const slaChallengeMaxLen = 1024

// SLAKey is one candidate per-chip RSA private key consulted during an SLA
// challenge/response. The engine treats signing as an injected capability
// (a caller-held private key never passes through this package as raw key
// material beyond what Sign needs).
type SLAKey interface {
	// Sign produces an RSA signature over challenge using this key's
	// private components.
	Sign(challenge []byte) ([]byte, error)
}

// slaChallengeResponse runs the SLA challenge/response sequence of spec.md
// §4.3 after a SEND_DA exchange reported SLA_REQUIRED. It tries each
// candidate key in order; the first whose 32-bit result is ≤ 0xFF
// succeeds.
func (d *Driver) slaChallengeResponse(ctx context.Context, keys []SLAKey) error {
	if err := codec.Echo(ctx, d.t, catalog.CmdSLA, d.timeouts.Identity); err != nil {
		return err
	}
	status, err := transport.ReadU16BE(ctx, d.t, d.timeouts.Identity)
	if err != nil {
		return err
	}
	if status == catalog.StatusSLAPass {
		return nil
	}

	challengeLen, err := transport.ReadU16BE(ctx, d.t, d.timeouts.Identity)
	if err != nil {
		return err
	}
	if int(challengeLen) > slaChallengeMaxLen {
		return &ferrors.ProtocolError{Op: "stage1.sla", Code: uint32(challengeLen)}
	}
	challenge, err := d.t.ReadExact(ctx, int(challengeLen), d.timeouts.Bulk)
	if err != nil {
		return err
	}

	for _, key := range keys {
		if err := checkCancel(ctx); err != nil {
			return err
		}
		sig, err := key.Sign(challenge)
		if err != nil {
			continue
		}
		if err := transport.WriteU32LE(ctx, d.t, uint32(len(sig))); err != nil {
			return err
		}
		echoedLen, err := transport.ReadU32LE(ctx, d.t, d.timeouts.Identity)
		if err != nil {
			return err
		}
		if echoedLen != uint32(len(sig)) {
			continue
		}
		if _, err := transport.ReadU16BE(ctx, d.t, d.timeouts.Identity); err != nil {
			return err
		}
		if err := d.t.Write(ctx, sig); err != nil {
			return err
		}
		result, err := transport.ReadU32BE(ctx, d.t, d.timeouts.Identity)
		if err != nil {
			return err
		}
		if result <= 0xFF {
			return nil
		}
	}
	return &ferrors.SecurityError{Kind: ferrors.SecuritySlaFailed}
}
