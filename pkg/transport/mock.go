package transport

import (
	"bytes"
	"context"
	"io"
	"time"
)

// Mock is an in-memory Transport backed by a scripted responder function.
// Every Write is recorded; Responder is invoked after each write to
// produce the bytes the simulated device would reply with, or to simulate
// silence/disconnect.
type Mock struct {
	// Responder is called once per Write with the cumulative bytes written
	// so far and must return the bytes now available to read (appended to
	// an internal buffer), or an error to simulate a disconnect.
	Responder func(written []byte) ([]byte, error)

	Written []byte
	inbox   bytes.Buffer
	closed  bool
	speed   Speed
}

// NewMock creates a Mock transport. If responder is nil, writes produce no
// reply, so reads time out unless bytes were supplied with Feed.
func NewMock(responder func(written []byte) ([]byte, error)) *Mock {
	return &Mock{Responder: responder, speed: SpeedHigh}
}

func (m *Mock) Write(ctx context.Context, p []byte) error {
	if err := checkCancelled(ctx); err != nil {
		return err
	}
	if m.closed {
		return ErrDisconnected
	}
	m.Written = append(m.Written, p...)
	if m.Responder != nil {
		out, err := m.Responder(append([]byte{}, m.Written...))
		if err != nil {
			return err
		}
		m.inbox.Write(out)
	}
	return nil
}

func (m *Mock) ReadExact(ctx context.Context, n int, timeout time.Duration) ([]byte, error) {
	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}
	if m.closed {
		return nil, ErrDisconnected
	}
	if m.inbox.Len() < n {
		return nil, ErrTimeout
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(&m.inbox, buf); err != nil {
		return nil, ErrTimeout
	}
	return buf, nil
}

func (m *Mock) Drain() error {
	m.inbox.Reset()
	return nil
}

func (m *Mock) Retune(baud int) error {
	return nil
}

func (m *Mock) Speed() Speed {
	return m.speed
}

func (m *Mock) Close() error {
	m.closed = true
	return nil
}

// Feed injects bytes directly into the read buffer, bypassing Responder.
// Used to script multi-step exchanges where the response does not depend
// solely on the most recent write.
func (m *Mock) Feed(p []byte) {
	m.inbox.Write(p)
}
