package stage1

import (
	"context"

	"github.com/barnettlynn/flashkit/pkg/codec"
	"github.com/barnettlynn/flashkit/pkg/ferrors"
)

// handshakeSequence is the fixed byte sequence the BROM/Preloader expects,
// each byte echoed back as its one's complement.
var handshakeSequence = []byte{0xA0, 0x0A, 0x50, 0x05}

const handshakeMaxAttempts = 100

// Handshake performs the stage-1 byte-echo handshake, spec.md §4.3: send
// 0xA0, 0x0A, 0x50, 0x05 one at a time, requiring the one's-complement echo
// after each; any mismatch restarts from the first byte. From the second
// attempt onward a single 0xA0 resync byte precedes the retried sequence,
// and pending input is drained first.
func (d *Driver) Handshake(ctx context.Context) error {
	for attempt := 0; attempt < handshakeMaxAttempts; attempt++ {
		if attempt > 0 {
			if err := d.t.Drain(); err != nil {
				return err
			}
			// A resync prelude; its own echo (if any) is not checked — only
			// the four-byte sequence below gates success.
			_ = codec.EchoComplement(ctx, d.t, 0xA0, d.timeouts.ByteWindow)
		}

		ok := true
		for _, b := range handshakeSequence {
			if err := codec.EchoComplement(ctx, d.t, b, d.timeouts.ByteWindow); err != nil {
				ok = false
				break
			}
		}
		if ok {
			d.logf("stage1: handshake complete after %d attempt(s)", attempt+1)
			return nil
		}
	}
	return &ferrors.HandshakeFailedError{Attempts: handshakeMaxAttempts}
}
