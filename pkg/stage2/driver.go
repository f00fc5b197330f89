// Package stage2 defines the contract every stage-2 agent driver
// (XFlash, Legacy, XML, SPRD BSL) implements. Per the "sum-type protocol
// families" design note, the families are modeled as a tagged variant at
// the session level, not as a class hierarchy: callers hold a Driver
// value and switch on Kind() only when a family-specific capability is
// needed (see pkg/stage2/xmlproto for the SLA-signer seam, for instance).
package stage2

import (
	"context"
)

// Kind identifies which wire protocol a Driver speaks.
type Kind int

const (
	KindXFlash Kind = iota
	KindLegacy
	KindXML
	KindBSL
)

func (k Kind) String() string {
	switch k {
	case KindXFlash:
		return "xflash"
	case KindLegacy:
		return "legacy"
	case KindXML:
		return "xml"
	case KindBSL:
		return "bsl"
	default:
		return "unknown"
	}
}

// StorageKind identifies the physical storage technology behind a device,
// spec.md §3.
type StorageKind int

const (
	StorageUnknown StorageKind = iota
	StorageEMMC
	StorageUFS
	StorageNAND
	StorageNOR
)

func (s StorageKind) String() string {
	switch s {
	case StorageEMMC:
		return "emmc"
	case StorageUFS:
		return "ufs"
	case StorageNAND:
		return "nand"
	case StorageNOR:
		return "nor"
	default:
		return "unknown"
	}
}

// StorageInfo describes the storage descriptor read from stage-2 once the
// agent is running, spec.md §3.
type StorageInfo struct {
	Kind      StorageKind
	BlockSize uint32 // default 512
	UserSize  uint64
	Boot1Size uint64
	Boot2Size uint64
	RPMBSize  uint64
	CID       []byte
	FWVersion string
}

// Partition is one entry of a parsed partition table, spec.md §3.
type Partition struct {
	Name        string
	StartSector uint64
	SectorCount uint64
	SectorSize  uint64
	TypeGUID    [16]byte
	UniqueGUID  [16]byte
	Attributes  uint64
}

// Offset returns StartSector * SectorSize.
func (p Partition) Offset() uint64 { return p.StartSector * p.SectorSize }

// Size returns SectorCount * SectorSize.
func (p Partition) Size() uint64 { return p.SectorCount * p.SectorSize }

// RebootMode selects a SHUTDOWN/REBOOT target mode, spec.md §4.4.
type RebootMode uint32

const (
	RebootNormal RebootMode = iota
	RebootHomeScreen
	RebootToFastboot
	RebootToBrom
	RebootToRecovery
	RebootToMeta
	RebootCharger
	RebootException
)

// Driver is the common stage-2 contract: read/write/erase a partition,
// reboot/shutdown, format, and report device info. Family-specific
// behavior (e.g. XML's SLA verification) lives on the concrete type and
// is reached via a type assertion, not added to this interface.
type Driver interface {
	Kind() Kind

	DeviceInfo(ctx context.Context) (StorageInfo, error)
	Partitions(ctx context.Context) ([]Partition, error)

	ReadPartition(ctx context.Context, name string, w WriteSink) error
	WritePartition(ctx context.Context, name string, r ReadSource, length int64) error
	ErasePartition(ctx context.Context, name string) error
	FormatPartition(ctx context.Context, name string) error

	Reboot(ctx context.Context) error
	Shutdown(ctx context.Context, mode RebootMode) error

	Close() error
}

// WriteSink receives bytes read from a partition. It mirrors io.Writer but
// is named distinctly because drivers also report progress alongside data.
type WriteSink interface {
	Write(p []byte) (int, error)
}

// ReadSource supplies bytes to write to a partition. It mirrors io.Reader.
type ReadSource interface {
	Read(p []byte) (int, error)
}
