package codec

import (
	"context"
	"fmt"
	"time"

	"github.com/barnettlynn/flashkit/pkg/transport"
)

// Echo writes b and reads one byte back, succeeding only if the device
// echoed the same byte. This is the MTK stage-1 byte-echo primitive spec.md
// §4.2 describes: "each outbound command byte is echoed by the device."
func Echo(ctx context.Context, t transport.Transport, b byte, timeout time.Duration) error {
	if err := t.Write(ctx, []byte{b}); err != nil {
		return err
	}
	got, err := t.ReadExact(ctx, 1, timeout)
	if err != nil {
		return err
	}
	if got[0] != b {
		return fmt.Errorf("codec: echo mismatch: sent %#02x, got %#02x", b, got[0])
	}
	return nil
}

// EchoBytes echoes each byte of b in turn via Echo.
func EchoBytes(ctx context.Context, t transport.Transport, b []byte, timeout time.Duration) error {
	for _, x := range b {
		if err := Echo(ctx, t, x, timeout); err != nil {
			return err
		}
	}
	return nil
}

// EchoComplement writes b and reads one byte back, succeeding only if the
// device returned the one's complement of b (^b). Used by the stage-1
// handshake sequence.
func EchoComplement(ctx context.Context, t transport.Transport, b byte, timeout time.Duration) error {
	if err := t.Write(ctx, []byte{b}); err != nil {
		return err
	}
	got, err := t.ReadExact(ctx, 1, timeout)
	if err != nil {
		return err
	}
	want := ^b
	if got[0] != want {
		return fmt.Errorf("codec: handshake mismatch: sent %#02x, want complement %#02x, got %#02x", b, want, got[0])
	}
	return nil
}
