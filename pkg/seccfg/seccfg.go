// Package seccfg parses and mutates the 16 KiB on-device secure-config
// partition that records MediaTek's bootloader lock state, spec.md §4.8.
package seccfg

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"

	"github.com/barnettlynn/flashkit/pkg/ferrors"
)

const (
	// HeaderMagic is the required first 4 bytes of a valid record.
	HeaderMagic uint32 = 0x4D4D4D4D
	// EndFlag is the required value of the header's trailing field.
	EndFlag uint32 = 0x45454545
	// HeaderLen is the canonical header size in bytes: 7 u32 LE fields.
	HeaderLen = 28
	// HashLen is the trailing hardware-encrypted hash length.
	HashLen = 32
	// minSize is spec.md §3's "size ≥ 64" invariant.
	minSize = 64
)

// LockState enumerates the bootloader lock states spec.md §3 lists. The
// numeric values for Unlock/Lock/critical-Unlock are pinned by spec.md's
// worked scenario (§8 scenario 5: LOCK=4, UNLOCK=3, critical UNLOCK=1);
// the remaining values fill otherwise-unspecified gaps.
type LockState uint32

const (
	LockStateDefault LockState = iota
	LockStateMPDefault
	_ // reserved: spec.md pins only Unlock/Lock's numeric values, not this slot
	LockStateUnlock
	LockStateLock
	LockStateVerified
	LockStateCustom
)

func (s LockState) String() string {
	switch s {
	case LockStateDefault:
		return "default"
	case LockStateMPDefault:
		return "mp_default"
	case LockStateUnlock:
		return "unlock"
	case LockStateLock:
		return "lock"
	case LockStateVerified:
		return "verified"
	case LockStateCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// CriticalLockState is the separate two-state lock spec.md §3 describes
// alongside LockState.
type CriticalLockState uint32

const (
	CriticalLockStateLock CriticalLockState = iota
	CriticalLockStateUnlock
)

func (s CriticalLockState) String() string {
	if s == CriticalLockStateUnlock {
		return "unlock"
	}
	return "lock"
}

// Header is the 28-byte seccfg header, spec.md §3.
type Header struct {
	Magic             uint32
	Version           uint32
	Size              uint32
	LockState         LockState
	CriticalLockState CriticalLockState
	SbootRuntime      uint32
	EndFlag           uint32
}

// AesCbcBlock is the hardware-keyed AES-CBC capability the secure-config
// engine needs, exposed by SejEngine/DxccEngine. Spec.md §4.8/§9 treats
// these as opaque pure functions over a block of bytes.
type AesCbcBlock interface {
	EncryptBlock(block []byte) ([]byte, error)
	DecryptBlock(block []byte) ([]byte, error)
}

// Config is a parsed seccfg record: the decoded header plus the full raw
// blob, which mutation methods update in place.
type Config struct {
	Header Header
	Raw    []byte
}

// Parse validates and decodes a seccfg blob. Magic and EndFlag must match
// their constants, and the header's declared Size must be at least 64 and
// fit within the blob, or the record is rejected.
func Parse(blob []byte) (*Config, error) {
	if len(blob) < HeaderLen {
		return nil, &ferrors.StorageError{Kind: ferrors.StorageSeccfgInvalid, Name: "seccfg"}
	}
	h := decodeHeader(blob)
	if h.Magic != HeaderMagic || h.EndFlag != EndFlag {
		return nil, &ferrors.StorageError{Kind: ferrors.StorageSeccfgInvalid, Name: "seccfg"}
	}
	if h.Size < minSize || int(h.Size) > len(blob) {
		return nil, &ferrors.StorageError{Kind: ferrors.StorageSeccfgInvalid, Name: "seccfg"}
	}
	raw := append([]byte(nil), blob...)
	return &Config{Header: h, Raw: raw}, nil
}

func decodeHeader(b []byte) Header {
	u32 := binary.LittleEndian.Uint32
	return Header{
		Magic:             u32(b[0:4]),
		Version:           u32(b[4:8]),
		Size:              u32(b[8:12]),
		LockState:         LockState(u32(b[12:16])),
		CriticalLockState: CriticalLockState(u32(b[16:20])),
		SbootRuntime:      u32(b[20:24]),
		EndFlag:           u32(b[24:28]),
	}
}

// canonicalHeaderBytes serializes h into the 28-byte form hashed for
// integrity verification, forcing the end-flag slot to the constant
// regardless of what the header itself carries.
func canonicalHeaderBytes(h Header) []byte {
	buf := make([]byte, HeaderLen)
	u32 := binary.LittleEndian.PutUint32
	u32(buf[0:4], h.Magic)
	u32(buf[4:8], h.Version)
	u32(buf[8:12], h.Size)
	u32(buf[12:16], uint32(h.LockState))
	u32(buf[16:20], uint32(h.CriticalLockState))
	u32(buf[20:24], h.SbootRuntime)
	u32(buf[24:28], EndFlag)
	return buf
}

func (c *Config) hashBounds() (int, int, error) {
	end := int(c.Header.Size)
	start := end - HashLen
	if start < HeaderLen || end > len(c.Raw) {
		return 0, 0, &ferrors.StorageError{Kind: ferrors.StorageSeccfgInvalid, Name: "seccfg"}
	}
	return start, end, nil
}

// VerifyHash recomputes the canonical header's SHA-256 digest and compares
// it against the stored hash after decrypting it via engine, spec.md §4.8.
func (c *Config) VerifyHash(engine AesCbcBlock) (bool, error) {
	start, end, err := c.hashBounds()
	if err != nil {
		return false, err
	}
	digest := sha256.Sum256(canonicalHeaderBytes(c.Header))
	decrypted, err := engine.DecryptBlock(c.Raw[start:end])
	if err != nil {
		return false, err
	}
	return bytes.Equal(decrypted, digest[:]), nil
}

// Mutate sets lock and critical to the target states, rewrites the header
// in place, recomputes and re-encrypts the trailing hash via engine, and
// writes it back. Bytes between the header and the hash are left
// untouched, spec.md §4.8's byte-preserving mutation rule.
func (c *Config) Mutate(lock LockState, critical CriticalLockState, engine AesCbcBlock) error {
	start, end, err := c.hashBounds()
	if err != nil {
		return err
	}
	c.Header.LockState = lock
	c.Header.CriticalLockState = critical
	c.Header.EndFlag = EndFlag
	copy(c.Raw[0:HeaderLen], canonicalHeaderBytes(c.Header))

	digest := sha256.Sum256(canonicalHeaderBytes(c.Header))
	encrypted, err := engine.EncryptBlock(digest[:])
	if err != nil {
		return err
	}
	if len(encrypted) != HashLen {
		return &ferrors.StorageError{Kind: ferrors.StorageSeccfgInvalid, Name: "seccfg"}
	}
	copy(c.Raw[start:end], encrypted)
	return nil
}

// Serialize returns the full blob in its current state, a defensive copy
// so callers can't mutate Config by holding onto the returned slice.
func (c *Config) Serialize() []byte {
	return append([]byte(nil), c.Raw...)
}
