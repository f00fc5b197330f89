package seccfg

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/barnettlynn/flashkit/pkg/ferrors"
)

// MemoryAccessor is the memory-mapped register access capability the
// crypto engines drive; *stage1.Driver satisfies it directly via its
// Read32/Write32 custom-memory extension commands (spec.md §4.8/§9).
type MemoryAccessor interface {
	Read32(ctx context.Context, addr uint32, count uint32) ([]uint32, error)
	Write32(ctx context.Context, addr uint32, values []uint32) error
}

// Registers names the memory-mapped control/data/status addresses one of
// these engines pokes. The exact addresses are chip-specific and not
// pinned by spec.md; callers supply them for the target SoC.
type Registers struct {
	Data    uint32 // base address of the data buffer, one word per Write32/Read32
	Control uint32 // write 1 to kick off an operation, 2 for decrypt, 1 for encrypt
	Status  uint32 // polled until non-zero (busy) clears
}

const (
	ctrlEncrypt = 1
	ctrlDecrypt = 2

	pollInterval = 5 * time.Millisecond
	pollAttempts = 200
)

func wordsFromBlock(block []byte) []uint32 {
	words := make([]uint32, len(block)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(block[i*4 : i*4+4])
	}
	return words
}

func blockFromWords(words []uint32) []byte {
	block := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(block[i*4:i*4+4], w)
	}
	return block
}

func runTransform(ctx context.Context, mem MemoryAccessor, regs Registers, ctrl uint32, block []byte) ([]byte, error) {
	words := wordsFromBlock(block)
	if err := mem.Write32(ctx, regs.Data, words); err != nil {
		return nil, err
	}
	if err := mem.Write32(ctx, regs.Control, []uint32{ctrl}); err != nil {
		return nil, err
	}
	for i := 0; i < pollAttempts; i++ {
		status, err := mem.Read32(ctx, regs.Status, 1)
		if err != nil {
			return nil, err
		}
		if len(status) > 0 && status[0] == 0 {
			out, err := mem.Read32(ctx, regs.Data, uint32(len(words)))
			if err != nil {
				return nil, err
			}
			return blockFromWords(out), nil
		}
		time.Sleep(pollInterval)
	}
	return nil, &ferrors.ProtocolError{Op: "seccfg.crypto_engine", Code: uint32(ctrl)}
}

// SejEngine drives MediaTek's SEJ hardware AES engine via memory-mapped
// registers, spec.md §4.8's "SEJ/DXCC" crypto backend.
type SejEngine struct {
	mem  MemoryAccessor
	regs Registers
}

// NewSejEngine builds a SejEngine addressing regs through mem.
func NewSejEngine(mem MemoryAccessor, regs Registers) *SejEngine {
	return &SejEngine{mem: mem, regs: regs}
}

func (e *SejEngine) EncryptBlock(block []byte) ([]byte, error) {
	return runTransform(context.Background(), e.mem, e.regs, ctrlEncrypt, block)
}

func (e *SejEngine) DecryptBlock(block []byte) ([]byte, error) {
	return runTransform(context.Background(), e.mem, e.regs, ctrlDecrypt, block)
}

// DxccEngine drives MediaTek's newer DXCC crypto engine. Register layout
// differs from SEJ on DXCC-equipped SoCs, but the poke-data/kick-control/
// poll-status/read-back shape is the same.
type DxccEngine struct {
	mem  MemoryAccessor
	regs Registers
}

// NewDxccEngine builds a DxccEngine addressing regs through mem.
func NewDxccEngine(mem MemoryAccessor, regs Registers) *DxccEngine {
	return &DxccEngine{mem: mem, regs: regs}
}

func (e *DxccEngine) EncryptBlock(block []byte) ([]byte, error) {
	return runTransform(context.Background(), e.mem, e.regs, ctrlEncrypt, block)
}

func (e *DxccEngine) DecryptBlock(block []byte) ([]byte, error) {
	return runTransform(context.Background(), e.mem, e.regs, ctrlDecrypt, block)
}
