package stage1

import (
	"time"

	"github.com/barnettlynn/flashkit/pkg/events"
	"github.com/barnettlynn/flashkit/pkg/transport"
)

// Timeouts bundles the stage-1 timing defaults of spec.md §5. They are
// always explicit constructor inputs, never implicit retries.
type Timeouts struct {
	ByteWindow time.Duration // handshake per-byte read window, default 150ms
	Identity   time.Duration // identity probe commands, default 1s
	Bulk       time.Duration // DA upload chunk exchanges, default 5s
}

// DefaultTimeouts returns the spec.md §5 defaults.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		ByteWindow: 150 * time.Millisecond,
		Identity:   time.Second,
		Bulk:       5 * time.Second,
	}
}

// Driver drives the stage-1 wire protocol over a borrowed Transport.
// Besides the transport and timing defaults it keeps a copy of the last
// probed Identity, which the memory operations consult to classify a
// rejected access; Probe also returns that Identity to the caller (the
// session).
type Driver struct {
	t            transport.Transport
	sink         *events.Sink
	timeouts     Timeouts
	lastIdentity Identity
}

// New returns a Driver bound to t. sink may be nil, in which case no
// progress events are emitted.
func New(t transport.Transport, sink *events.Sink, timeouts Timeouts) *Driver {
	return &Driver{t: t, sink: sink, timeouts: timeouts}
}

func (d *Driver) logf(format string, args ...any) {
	if d.sink != nil {
		d.sink.Logf(events.LevelInfo, format, args...)
	}
}

func (d *Driver) progress(done, total int64, label string) {
	if d.sink != nil {
		d.sink.Progress(done, total, label)
	}
}
