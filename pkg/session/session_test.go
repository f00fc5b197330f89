package session

import (
	"context"
	"testing"

	"github.com/barnettlynn/flashkit/pkg/dacatalog"
	"github.com/barnettlynn/flashkit/pkg/ferrors"
	"github.com/barnettlynn/flashkit/pkg/stage1"
	"github.com/barnettlynn/flashkit/pkg/transport"
)

func newTestSession(responder func([]byte) ([]byte, error)) (*Session, *transport.Mock) {
	m := transport.NewMock(responder)
	cat := &dacatalog.Catalog{}
	s := New(Config{
		Transport: m,
		Catalog:   cat,
		Timeouts:  stage1.DefaultTimeouts(),
	})
	return s, m
}

func TestOperationsRejectedOutsideOperationalState(t *testing.T) {
	s, _ := newTestSession(nil)
	if s.State() != StateOpened {
		t.Fatalf("want initial state Opened, got %v", s.State())
	}
	err := s.ReadPartition(context.Background(), "boot", nil)
	if err == nil {
		t.Fatalf("expected InvalidStateError")
	}
	ise, ok := err.(*ferrors.InvalidStateError)
	if !ok {
		t.Fatalf("want *ferrors.InvalidStateError, got %T: %v", err, err)
	}
	if ise.Expected != StateOperational.String() || ise.Actual != StateOpened.String() {
		t.Fatalf("unexpected InvalidStateError fields: %+v", ise)
	}
}

func TestSelectDARejectedBeforeProbe(t *testing.T) {
	s, _ := newTestSession(nil)
	if _, err := s.SelectDA(context.Background()); err == nil {
		t.Fatalf("expected InvalidStateError calling SelectDA from Opened")
	}
}

// TestCancellationStopsWrites implements spec.md §8's universal property:
// after cancellation, no further bytes are written to the transport.
func TestCancellationStopsWrites(t *testing.T) {
	s, m := newTestSession(func(written []byte) ([]byte, error) {
		// would normally echo the one's complement; never reached once
		// cancellation is observed before the first write.
		return []byte{^written[len(written)-1]}, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Handshake(ctx)
	if err == nil {
		t.Fatalf("expected handshake to fail on a pre-cancelled context")
	}
	if len(m.Written) != 0 {
		t.Fatalf("expected zero bytes written after cancellation, got %d", len(m.Written))
	}
	if s.State() != StateFailed {
		t.Fatalf("want state Failed after cancellation, got %v", s.State())
	}
}

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{ferrors.Cancelled, 1},
		{transport.ErrTimeout, 2},
		{transport.ErrDisconnected, 2},
		{&ferrors.SecurityError{Kind: ferrors.SecuritySlaFailed}, 4},
		{&ferrors.StorageError{Kind: ferrors.StorageGptInvalid}, 5},
		{&ferrors.CatalogError{Kind: ferrors.CatalogNoMatchingDa}, 5},
		{&ferrors.ProtocolError{Op: "x", Code: 1}, 3},
		{&ferrors.HandshakeFailedError{Attempts: 100}, 3},
	}
	for _, c := range cases {
		if got := ExitCode(c.err); got != c.want {
			t.Fatalf("ExitCode(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestCloseIsIdempotentAndTransitionsToClosed(t *testing.T) {
	s, _ := newTestSession(nil)
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if s.State() != StateClosed {
		t.Fatalf("want Closed, got %v", s.State())
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("second close should be a no-op, got %v", err)
	}
}
