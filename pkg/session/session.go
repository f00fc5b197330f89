// Package session ties the transport, stage-1 driver, DA catalog, and the
// selected stage-2 driver together behind the state machine spec.md §3/§5
// describes, and dispatches every high-level flashing operation through
// whichever stage-2 driver was bound for the current device.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/barnettlynn/flashkit/pkg/dacatalog"
	"github.com/barnettlynn/flashkit/pkg/events"
	"github.com/barnettlynn/flashkit/pkg/ferrors"
	"github.com/barnettlynn/flashkit/pkg/stage1"
	"github.com/barnettlynn/flashkit/pkg/stage2"
	"github.com/barnettlynn/flashkit/pkg/transport"
)

// State is one value of the session state machine, spec.md §3: each state
// strictly follows the previous in time, and any state can transition to
// Failed.
type State int

const (
	StateClosed State = iota
	StateOpened
	StateHandshook
	StateStageOneReady
	StateDaSelected
	StateStageTwoUp
	StateStorageKnown
	StatePartitionsKnown
	StateOperational
	StateClosing
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateOpened:
		return "Opened"
	case StateHandshook:
		return "Handshook"
	case StateStageOneReady:
		return "StageOneReady"
	case StateDaSelected:
		return "DaSelected"
	case StateStageTwoUp:
		return "StageTwoUp"
	case StateStorageKnown:
		return "StorageKnown"
	case StatePartitionsKnown:
		return "PartitionsKnown"
	case StateOperational:
		return "Operational"
	case StateClosing:
		return "Closing"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Stage2Factory builds a stage-2 driver of the given kind over t once the
// transport has been re-bound past the DA jump. Which kind to build is a
// host decision driven by the selected DA catalog entry (spec.md doesn't
// pin a DA-version-to-agent-kind mapping, so the session takes it as an
// explicit input rather than guessing from blob bytes).
type Stage2Factory func(kind stage2.Kind, t transport.Transport, sink *events.Sink) (stage2.Driver, error)

// Config bundles everything a Session needs at construction time.
type Config struct {
	Transport     transport.Transport
	Sink          *events.Sink
	Catalog       *dacatalog.Catalog
	SLAKeys       []stage1.SLAKey
	Timeouts      stage1.Timeouts
	Stage2Factory Stage2Factory
}

// Session is the single owner of a Transport and drives it through the
// stage-1/stage-2 handoff. Per spec.md §5, a Session is single-threaded
// cooperative: callers must not invoke two operations concurrently.
type Session struct {
	t       transport.Transport
	sink    *events.Sink
	catalog *dacatalog.Catalog
	slaKeys []stage1.SLAKey
	factory Stage2Factory

	state State

	stage1Driver *stage1.Driver
	identity     stage1.Identity
	daEntry      dacatalog.Entry

	stage2Driver stage2.Driver
	storage      stage2.StorageInfo
	partitions   []stage2.Partition
}

// New constructs a Session in StateOpened, owning cfg.Transport.
func New(cfg Config) *Session {
	return &Session{
		t:            cfg.Transport,
		sink:         cfg.Sink,
		catalog:      cfg.Catalog,
		slaKeys:      cfg.SLAKeys,
		factory:      cfg.Stage2Factory,
		state:        StateOpened,
		stage1Driver: stage1.New(cfg.Transport, cfg.Sink, cfg.Timeouts),
	}
}

// State reports the session's current state.
func (s *Session) State() State {
	return s.state
}

func (s *Session) setState(to State) {
	from := s.state
	s.state = to
	if s.sink != nil {
		s.sink.StateChanged(from.String(), to.String())
	}
}

func (s *Session) fail(err error) error {
	s.setState(StateFailed)
	if s.sink != nil {
		s.sink.Error(err, "session failed")
	}
	return err
}

func (s *Session) requireState(expected State) error {
	if s.state != expected {
		return &ferrors.InvalidStateError{Expected: expected.String(), Actual: s.state.String()}
	}
	return nil
}

// Stage1 exposes the bound stage-1 driver, e.g. for seccfg's MemoryAccessor
// capability before the DA hands control to stage-2.
func (s *Session) Stage1() *stage1.Driver {
	return s.stage1Driver
}

// Identity returns the identity probed in ProbeIdentity.
func (s *Session) Identity() stage1.Identity {
	return s.identity
}

// Handshake performs the stage-1 byte-echo handshake, Opened -> Handshook.
func (s *Session) Handshake(ctx context.Context) error {
	if err := s.requireState(StateOpened); err != nil {
		return err
	}
	if err := s.stage1Driver.Handshake(ctx); err != nil {
		return s.fail(err)
	}
	s.setState(StateHandshook)
	return nil
}

// ProbeIdentity issues the stage-1 identity probe, Handshook -> StageOneReady.
func (s *Session) ProbeIdentity(ctx context.Context) (stage1.Identity, error) {
	if err := s.requireState(StateHandshook); err != nil {
		return stage1.Identity{}, err
	}
	id, err := s.stage1Driver.Probe(ctx)
	if err != nil {
		return stage1.Identity{}, s.fail(err)
	}
	s.identity = id
	if s.sink != nil {
		s.sink.DeviceInfo(id)
	}
	s.setState(StateStageOneReady)
	return id, nil
}

// SelectDA looks up the catalog entry matching the probed identity,
// StageOneReady -> DaSelected.
func (s *Session) SelectDA(ctx context.Context) (dacatalog.Entry, error) {
	if err := s.requireState(StateStageOneReady); err != nil {
		return dacatalog.Entry{}, err
	}
	entry, err := s.catalog.Select(s.identity.HWCode, s.identity.HWVersion, s.identity.SWVersion)
	if err != nil {
		return dacatalog.Entry{}, s.fail(err)
	}
	s.daEntry = entry
	s.setState(StateDaSelected)
	return entry, nil
}

// UploadAndJump uploads the selected DA entry's stage-1 region, jumps to
// that region's load address, and re-binds the session to a stage-2
// driver of kind built via the session's Stage2Factory,
// DaSelected -> StageTwoUp. The entry's stage-2 region is not uploaded.
func (s *Session) UploadAndJump(ctx context.Context, kind stage2.Kind, use64 bool) error {
	if err := s.requireState(StateDaSelected); err != nil {
		return err
	}
	region, ok := s.daEntry.StageOneRegion()
	if !ok {
		return s.fail(&ferrors.CatalogError{Kind: ferrors.CatalogCorruptDaBlob, Detail: "DA entry has no stage-1 region"})
	}
	code, err := s.catalog.CodeBytes(region)
	if err != nil {
		return s.fail(err)
	}
	_, err = s.stage1Driver.UploadDA(ctx, stage1.DAUploadParams{
		LoadAddress:     region.LoadAddress,
		DeclaredLength:  region.Length,
		SignatureLength: region.SignatureLength,
		Data:            code,
	}, s.slaKeys)
	if err != nil {
		return s.fail(err)
	}
	if err := s.stage1Driver.JumpDA(ctx, region.LoadAddress, use64); err != nil {
		return s.fail(err)
	}
	if s.factory == nil {
		return s.fail(fmt.Errorf("session: no Stage2Factory configured"))
	}
	driver, err := s.factory(kind, s.t, s.sink)
	if err != nil {
		return s.fail(err)
	}
	s.stage2Driver = driver
	s.setState(StateStageTwoUp)
	return nil
}

// LoadStorageInfo queries the stage-2 driver's storage descriptor,
// StageTwoUp -> StorageKnown.
func (s *Session) LoadStorageInfo(ctx context.Context) (stage2.StorageInfo, error) {
	if err := s.requireState(StateStageTwoUp); err != nil {
		return stage2.StorageInfo{}, err
	}
	info, err := s.stage2Driver.DeviceInfo(ctx)
	if err != nil {
		return stage2.StorageInfo{}, s.fail(err)
	}
	s.storage = info
	s.setState(StateStorageKnown)
	return info, nil
}

// LoadPartitions queries the stage-2 driver's partition table,
// StorageKnown -> PartitionsKnown -> Operational.
func (s *Session) LoadPartitions(ctx context.Context) ([]stage2.Partition, error) {
	if err := s.requireState(StateStorageKnown); err != nil {
		return nil, err
	}
	parts, err := s.stage2Driver.Partitions(ctx)
	if err != nil {
		return nil, s.fail(err)
	}
	s.partitions = parts
	if s.sink != nil {
		s.sink.PartitionsDiscovered(parts)
	}
	s.setState(StatePartitionsKnown)
	s.setState(StateOperational)
	return parts, nil
}

func (s *Session) requireOperational() error {
	return s.requireState(StateOperational)
}

// ReadPartition streams name's contents to w. Requires Operational state.
func (s *Session) ReadPartition(ctx context.Context, name string, w stage2.WriteSink) error {
	if err := s.requireOperational(); err != nil {
		return err
	}
	if err := s.stage2Driver.ReadPartition(ctx, name, w); err != nil {
		return s.fail(err)
	}
	return nil
}

// WritePartition streams length bytes from r into name. Requires
// Operational state. A cancellation or device error mid-write does not
// roll back; the returned error (typically *ferrors.PartialWriteError)
// carries the byte offset reached, per spec.md §7.
func (s *Session) WritePartition(ctx context.Context, name string, r stage2.ReadSource, length int64) error {
	if err := s.requireOperational(); err != nil {
		return err
	}
	if err := s.stage2Driver.WritePartition(ctx, name, r, length); err != nil {
		s.setState(StateFailed)
		if s.sink != nil {
			s.sink.Error(err, "write_partition failed")
		}
		return err
	}
	return nil
}

// ErasePartition erases name. Requires Operational state.
func (s *Session) ErasePartition(ctx context.Context, name string) error {
	if err := s.requireOperational(); err != nil {
		return err
	}
	if err := s.stage2Driver.ErasePartition(ctx, name); err != nil {
		return s.fail(err)
	}
	return nil
}

// FormatPartition formats name. Requires Operational state.
func (s *Session) FormatPartition(ctx context.Context, name string) error {
	if err := s.requireOperational(); err != nil {
		return err
	}
	if err := s.stage2Driver.FormatPartition(ctx, name); err != nil {
		return s.fail(err)
	}
	return nil
}

// Reboot reboots the device. Requires Operational state.
func (s *Session) Reboot(ctx context.Context) error {
	if err := s.requireOperational(); err != nil {
		return err
	}
	if err := s.stage2Driver.Reboot(ctx); err != nil {
		return s.fail(err)
	}
	return nil
}

// Shutdown powers off the device in the given mode. Requires Operational
// state.
func (s *Session) Shutdown(ctx context.Context, mode stage2.RebootMode) error {
	if err := s.requireOperational(); err != nil {
		return err
	}
	if err := s.stage2Driver.Shutdown(ctx, mode); err != nil {
		return s.fail(err)
	}
	return nil
}

// Close tears the session down: Closing -> Closed. Valid from any state
// except Closed itself; a Failed session's only valid operation is Close,
// per spec.md §7.
func (s *Session) Close(ctx context.Context) error {
	if s.state == StateClosed {
		return nil
	}
	s.setState(StateClosing)
	_ = s.t.Drain()
	err := s.t.Close()
	if s.stage2Driver != nil {
		_ = s.stage2Driver.Close()
	}
	s.setState(StateClosed)
	if s.sink != nil {
		s.sink.Close()
	}
	return err
}

// ExitCode maps an error returned from session operations onto spec.md
// §6's exit-status contract: 0 success, 1 user/cancellation, 2 transport,
// 3 protocol, 4 authentication/security, 5 storage/format.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case isCancellation(err):
		return 1
	case isTransport(err):
		return 2
	case func() bool { _, ok := ferrors.AsSecurity(err); return ok }():
		return 4
	case func() bool { _, ok := ferrors.AsStorage(err); return ok }():
		return 5
	case func() bool { _, ok := ferrors.AsCatalog(err); return ok }():
		return 5
	default:
		return 3
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, ferrors.Cancelled) || errors.Is(err, context.Canceled) || errors.Is(err, transport.ErrCancelled)
}

func isTransport(err error) bool {
	return errors.Is(err, transport.ErrTimeout) || errors.Is(err, transport.ErrDisconnected)
}
