// Package transport provides the byte-level link to a device held in BROM,
// Preloader, BSL, or a running DA/FDL agent. It knows nothing about any
// protocol framing; it only guarantees ordered, timeout-bounded,
// cancellable reads and writes over a single physical link.
package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Sentinel errors. pkg/session classifies ErrTimeout and ErrDisconnected
// into the Transport error kind and ErrCancelled as a cancellation.
var (
	ErrTimeout      = errors.New("transport: timed out")
	ErrDisconnected = errors.New("transport: disconnected")
	ErrCancelled    = errors.New("transport: cancelled")
)

// Speed reports the USB link speed a transport negotiated, used to surface
// (but never auto-remediate) a full-speed downshift.
type Speed int

const (
	SpeedUnknown Speed = iota
	SpeedFull
	SpeedHigh
	SpeedSuper
)

func (s Speed) String() string {
	switch s {
	case SpeedFull:
		return "full-speed"
	case SpeedHigh:
		return "high-speed"
	case SpeedSuper:
		return "super-speed"
	default:
		return "unknown-speed"
	}
}

// Transport is the contract every stage-1/stage-2 driver is handed. It is
// exclusively owned by one Session at a time; only one call may be
// outstanding at once (callers serialize access — see pkg/session).
type Transport interface {
	// Write sends all of p or returns an error; there is no partial write.
	Write(ctx context.Context, p []byte) error

	// ReadExact blocks until exactly n bytes have arrived, timeout elapses,
	// the link disconnects, or ctx is cancelled.
	ReadExact(ctx context.Context, n int, timeout time.Duration) ([]byte, error)

	// Drain discards any pending input and output buffers.
	Drain() error

	// Retune closes and reopens the link at a new line rate. Only
	// meaningful for the SPRD BSL path; serial-only.
	Retune(baud int) error

	// Speed reports the negotiated USB link speed, SpeedUnknown if the
	// backend cannot determine it (e.g. a plain tty with no USB descriptor
	// visibility).
	Speed() Speed

	Close() error
}

// ReadU16BE reads a 2-byte big-endian integer.
func ReadU16BE(ctx context.Context, t Transport, timeout time.Duration) (uint16, error) {
	b, err := t.ReadExact(ctx, 2, timeout)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadU32BE reads a 4-byte big-endian integer.
func ReadU32BE(ctx context.Context, t Transport, timeout time.Duration) (uint32, error) {
	b, err := t.ReadExact(ctx, 4, timeout)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadU32LE reads a 4-byte little-endian integer.
func ReadU32LE(ctx context.Context, t Transport, timeout time.Duration) (uint32, error) {
	b, err := t.ReadExact(ctx, 4, timeout)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// WriteU32BE writes v as a 4-byte big-endian integer.
func WriteU32BE(ctx context.Context, t Transport, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return t.Write(ctx, b[:])
}

// WriteU32LE writes v as a 4-byte little-endian integer.
func WriteU32LE(ctx context.Context, t Transport, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return t.Write(ctx, b[:])
}

// callGuard serializes access to a Transport implementation: only one
// outstanding read or write call at a time, per spec.md §4.1.
type callGuard struct {
	mu sync.Mutex
}

func (g *callGuard) lock() func() {
	g.mu.Lock()
	return g.mu.Unlock
}

// checkCancelled returns ErrCancelled if ctx is already done, wrapping the
// context error for diagnostics.
func checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	default:
		return nil
	}
}
