package transport

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMockReadExactTimesOutWhenShort(t *testing.T) {
	m := NewMock(nil)
	m.Feed([]byte{0x01, 0x02})
	_, err := m.ReadExact(context.Background(), 4, 10*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestMockReadExactReturnsExactBytes(t *testing.T) {
	m := NewMock(nil)
	m.Feed([]byte{0xAA, 0xBB, 0xCC, 0xDD})
	got, err := m.ReadExact(context.Background(), 2, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != 0xAA || got[1] != 0xBB {
		t.Fatalf("unexpected bytes: %x", got)
	}
}

func TestReadU32BEBigEndian(t *testing.T) {
	m := NewMock(nil)
	m.Feed([]byte{0x00, 0x00, 0x01, 0x02})
	v, err := ReadU32BE(context.Background(), m, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0x0102 {
		t.Fatalf("expected 0x102, got %#x", v)
	}
}

func TestReadU32LELittleEndian(t *testing.T) {
	m := NewMock(nil)
	m.Feed([]byte{0x02, 0x01, 0x00, 0x00})
	v, err := ReadU32LE(context.Background(), m, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0x0102 {
		t.Fatalf("expected 0x102, got %#x", v)
	}
}

func TestWriteCancelledBeforeCallNeverWrites(t *testing.T) {
	m := NewMock(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.Write(ctx, []byte{0x01})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if len(m.Written) != 0 {
		t.Fatalf("expected no bytes written after cancellation, got %d", len(m.Written))
	}
}

func TestDisconnectedTransportRejectsWrite(t *testing.T) {
	m := NewMock(nil)
	m.Close()
	if err := m.Write(context.Background(), []byte{0x01}); !errors.Is(err, ErrDisconnected) {
		t.Fatalf("expected ErrDisconnected, got %v", err)
	}
}
