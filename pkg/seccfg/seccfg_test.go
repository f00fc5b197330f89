package seccfg

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"testing"
)

// xorEngine is a self-inverse stand-in for the hardware AES-CBC engine:
// XOR with a fixed key is its own inverse, so Encrypt then Decrypt
// round-trips without needing real AES.
type xorEngine struct {
	key byte
}

func (e xorEngine) transform(block []byte) ([]byte, error) {
	out := make([]byte, len(block))
	for i, b := range block {
		out[i] = b ^ e.key
	}
	return out, nil
}

func (e xorEngine) EncryptBlock(block []byte) ([]byte, error) { return e.transform(block) }
func (e xorEngine) DecryptBlock(block []byte) ([]byte, error) { return e.transform(block) }

func buildFixture(t *testing.T, lock LockState, critical CriticalLockState, engine AesCbcBlock) []byte {
	t.Helper()
	const size = 64
	blob := make([]byte, size)
	h := Header{
		Magic:             HeaderMagic,
		Version:           1,
		Size:              size,
		LockState:         lock,
		CriticalLockState: critical,
		SbootRuntime:      0,
		EndFlag:           EndFlag,
	}
	copy(blob[0:HeaderLen], canonicalHeaderBytes(h))
	// fill the middle region with recognizable non-zero bytes so the
	// preservation check below has something to compare.
	for i := HeaderLen; i < size-HashLen; i++ {
		blob[i] = byte(i)
	}
	digest := sha256.Sum256(canonicalHeaderBytes(h))
	encrypted, err := engine.EncryptBlock(digest[:])
	if err != nil {
		t.Fatalf("encrypt fixture hash: %v", err)
	}
	copy(blob[size-HashLen:size], encrypted)
	return blob
}

func TestRoundTripWithoutMutation(t *testing.T) {
	engine := xorEngine{key: 0x5A}
	blob := buildFixture(t, LockStateDefault, CriticalLockStateLock, engine)

	cfg, err := Parse(blob)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	out := cfg.Serialize()
	if !bytes.Equal(out, blob) {
		t.Fatalf("round trip mismatch:\n got %x\nwant %x", out, blob)
	}

	ok, err := cfg.VerifyHash(engine)
	if err != nil {
		t.Fatalf("verify hash failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected hash to verify")
	}
}

// TestSeccfgUnlockMutatesMinimalBytes implements spec.md §8 scenario 5:
// LOCK(4) -> UNLOCK(3), critical LOCK -> UNLOCK(1); every other header byte
// is unchanged and only the trailing 32-byte hash differs.
func TestSeccfgUnlockMutatesMinimalBytes(t *testing.T) {
	engine := xorEngine{key: 0xA5}
	original := buildFixture(t, LockStateLock, CriticalLockStateLock, engine)

	cfg, err := Parse(original)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cfg.Header.LockState != LockStateLock || uint32(LockStateLock) != 4 {
		t.Fatalf("fixture precondition: want LockStateLock==4, got %d", cfg.Header.LockState)
	}
	if uint32(CriticalLockStateUnlock) != 1 {
		t.Fatalf("fixture precondition: want CriticalLockStateUnlock==1, got %d", CriticalLockStateUnlock)
	}

	if err := cfg.Mutate(LockStateUnlock, CriticalLockStateUnlock, engine); err != nil {
		t.Fatalf("mutate failed: %v", err)
	}
	mutated := cfg.Serialize()

	lockOff := 12
	criticalOff := 16
	hashOff := len(original) - HashLen

	for i := 0; i < len(original); i++ {
		switch {
		case i >= lockOff && i < lockOff+4:
		case i >= criticalOff && i < criticalOff+4:
		case i >= hashOff:
		default:
			if original[i] != mutated[i] {
				t.Fatalf("byte %d changed outside lock_state/critical_lock_state/hash: %x -> %x", i, original[i], mutated[i])
			}
		}
	}

	if binary.LittleEndian.Uint32(mutated[lockOff:lockOff+4]) != uint32(LockStateUnlock) {
		t.Fatalf("lock_state not updated")
	}
	if binary.LittleEndian.Uint32(mutated[criticalOff:criticalOff+4]) != uint32(CriticalLockStateUnlock) {
		t.Fatalf("critical_lock_state not updated")
	}
	if bytes.Equal(original[hashOff:], mutated[hashOff:]) {
		t.Fatalf("expected trailing hash to differ after mutation")
	}

	ok, err := cfg.VerifyHash(engine)
	if err != nil {
		t.Fatalf("verify hash failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected mutated hash to verify")
	}
}

func TestParseRejectsBadMagic(t *testing.T) {
	blob := make([]byte, 64)
	binary.LittleEndian.PutUint32(blob[24:28], EndFlag)
	if _, err := Parse(blob); err == nil {
		t.Fatalf("expected error for missing magic")
	}
}

func TestParseRejectsShortSize(t *testing.T) {
	blob := make([]byte, 64)
	binary.LittleEndian.PutUint32(blob[0:4], HeaderMagic)
	binary.LittleEndian.PutUint32(blob[8:12], 32) // below minSize of 64
	binary.LittleEndian.PutUint32(blob[24:28], EndFlag)
	if _, err := Parse(blob); err == nil {
		t.Fatalf("expected error for size < 64")
	}
}
