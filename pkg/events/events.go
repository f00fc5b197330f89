// Package events defines the forward-only progress channel emitted by a
// session. The core sends; the host drains. No callback or back-reference
// from the core into host code is ever stored, so the engine cannot form a
// reference cycle back into a UI layer.
package events

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Kind discriminates the payload carried by an Event: a result variant
// tagged with an explicit field rather than an interface hierarchy.
type Kind int

const (
	KindLog Kind = iota
	KindProgress
	KindStateChanged
	KindDeviceInfo
	KindPartitionsDiscovered
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindLog:
		return "log"
	case KindProgress:
		return "progress"
	case KindStateChanged:
		return "state_changed"
	case KindDeviceInfo:
		return "device_info"
	case KindPartitionsDiscovered:
		return "partitions_discovered"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Level mirrors slog.Level's ordering without importing it, so events can be
// drained and re-logged through the host's own logger at the right level.
type Level int

const (
	LevelDebug Level = iota - 4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// Event is a single tagged event on the session's channel.
type Event struct {
	Kind Kind

	// KindLog / KindError
	Level   Level
	Message string
	Err     error

	// KindProgress
	BytesDone  int64
	BytesTotal int64
	Label      string

	// KindStateChanged
	From, To string

	// KindDeviceInfo / KindPartitionsDiscovered carry opaque payloads the
	// caller type-asserts; session never depends on their shape.
	Payload any
}

// Human renders a Progress event as "label: 12 MB / 64 MB" (or
// "label: 12 MB" when the total is unknown); any other event renders as its
// Message.
func (e Event) Human() string {
	if e.Kind != KindProgress {
		return e.Message
	}
	if e.BytesTotal <= 0 {
		return fmt.Sprintf("%s: %s", e.Label, humanize.Bytes(uint64(e.BytesDone)))
	}
	return fmt.Sprintf("%s: %s / %s", e.Label, humanize.Bytes(uint64(e.BytesDone)), humanize.Bytes(uint64(e.BytesTotal)))
}

// Sink is the send-only half owned by a session. Log and Progress sends
// never block: when the channel is full the oldest pending event, of any
// kind, is dropped to make room. StateChanged, DeviceInfo,
// PartitionsDiscovered and Error sends block until the host has room.
type Sink struct {
	ch chan Event
}

// NewSink creates a Sink with the given channel buffer depth.
func NewSink(depth int) *Sink {
	if depth <= 0 {
		depth = 64
	}
	return &Sink{ch: make(chan Event, depth)}
}

// Events returns the receive-only channel for the host to drain.
func (s *Sink) Events() <-chan Event {
	return s.ch
}

// Close closes the channel. Must only be called once, after the session is
// fully torn down and no more sends can occur.
func (s *Sink) Close() {
	close(s.ch)
}

func (s *Sink) emit(ev Event, mustDeliver bool) {
	if mustDeliver {
		s.ch <- ev
		return
	}
	select {
	case s.ch <- ev:
	default:
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- ev:
		default:
		}
	}
}

func (s *Sink) Log(level Level, msg string) {
	s.emit(Event{Kind: KindLog, Level: level, Message: msg}, false)
}

func (s *Sink) Logf(level Level, format string, args ...any) {
	s.Log(level, fmt.Sprintf(format, args...))
}

func (s *Sink) Progress(done, total int64, label string) {
	s.emit(Event{Kind: KindProgress, BytesDone: done, BytesTotal: total, Label: label}, false)
}

func (s *Sink) StateChanged(from, to string) {
	s.emit(Event{Kind: KindStateChanged, From: from, To: to}, true)
}

func (s *Sink) DeviceInfo(payload any) {
	s.emit(Event{Kind: KindDeviceInfo, Payload: payload}, true)
}

func (s *Sink) PartitionsDiscovered(payload any) {
	s.emit(Event{Kind: KindPartitionsDiscovered, Payload: payload}, true)
}

func (s *Sink) Error(err error, msg string) {
	s.emit(Event{Kind: KindError, Err: err, Message: msg}, true)
}
