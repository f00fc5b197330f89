package xflash

import (
	"context"
	"encoding/binary"
	"unicode/utf16"

	"github.com/barnettlynn/flashkit/pkg/catalog"
	"github.com/barnettlynn/flashkit/pkg/ferrors"
	"github.com/barnettlynn/flashkit/pkg/stage2"
)

const (
	gptSectorSize  = 512
	gptSectorCount = 34
	gptSignature   = "EFI PART"
	entryNameBytes = 72
)

// Partitions reads 34 sectors from LBA0 of the user partition and parses a
// GPT, accepting either a bare GPT at offset 0 or an MBR-then-GPT layout
// (GPT at offset 512), spec.md §4.4.
func (d *Driver) Partitions(ctx context.Context) ([]stage2.Partition, error) {
	raw, err := d.readRaw(ctx, 0, gptSectorCount*gptSectorSize)
	if err != nil {
		return nil, err
	}
	parts, err := parseGPT(raw)
	if err != nil {
		return nil, err
	}
	d.partitions = parts
	return parts, nil
}

func parseGPT(raw []byte) ([]stage2.Partition, error) {
	headerOff := 0
	if len(raw) < gptSectorSize || string(raw[0:8]) != gptSignature {
		headerOff = gptSectorSize
		if len(raw) < headerOff+gptSectorSize || string(raw[headerOff:headerOff+8]) != gptSignature {
			return nil, &ferrors.StorageError{Kind: ferrors.StorageGptInvalid}
		}
	}
	header := raw[headerOff:]
	entryLBA := binary.LittleEndian.Uint64(header[72:80])
	numEntries := binary.LittleEndian.Uint32(header[80:84])
	entrySize := binary.LittleEndian.Uint32(header[84:88])
	if entrySize < 128 {
		return nil, &ferrors.StorageError{Kind: ferrors.StorageGptInvalid}
	}

	entriesOff := int(entryLBA) * gptSectorSize
	parts := make([]stage2.Partition, 0, numEntries)
	for i := uint32(0); i < numEntries; i++ {
		off := entriesOff + int(i*entrySize)
		if off+int(entrySize) > len(raw) {
			break
		}
		entry := raw[off : off+int(entrySize)]
		var typeGUID [16]byte
		copy(typeGUID[:], entry[0:16])
		if allZero(typeGUID[:]) {
			break
		}
		var uniqueGUID [16]byte
		copy(uniqueGUID[:], entry[16:32])
		firstLBA := binary.LittleEndian.Uint64(entry[32:40])
		lastLBA := binary.LittleEndian.Uint64(entry[40:48])
		attrs := binary.LittleEndian.Uint64(entry[48:56])
		name := decodeUTF16LEName(entry[56 : 56+entryNameBytes])

		parts = append(parts, stage2.Partition{
			Name:        name,
			StartSector: firstLBA,
			SectorCount: lastLBA - firstLBA + 1,
			SectorSize:  gptSectorSize,
			TypeGUID:    typeGUID,
			UniqueGUID:  uniqueGUID,
			Attributes:  attrs,
		})
	}
	return parts, nil
}

func decodeUTF16LEName(b []byte) string {
	units := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		u := binary.LittleEndian.Uint16(b[i : i+2])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}

// readRaw reads length bytes starting at address via the READ_FLASH
// command, used internally for the GPT probe. The storage kind is the one
// DeviceInfo selected; partition kind 0 designates the user area.
func (d *Driver) readRaw(ctx context.Context, address, length uint64) ([]byte, error) {
	params := make([]byte, 24)
	binary.LittleEndian.PutUint32(params[0:4], uint32(d.storage.Kind))
	binary.LittleEndian.PutUint32(params[4:8], 0)
	binary.LittleEndian.PutUint64(params[8:16], address)
	binary.LittleEndian.PutUint64(params[16:24], length)

	if err := d.c.sendCmd(ctx, catalog.XCmdReadFlash); err != nil {
		return nil, err
	}
	if status, err := d.c.getStatus(ctx); err != nil {
		return nil, err
	} else if status != 0 {
		return nil, statusErr("xflash.read_raw", status)
	}
	if err := d.c.sendParams(ctx, params); err != nil {
		return nil, err
	}
	if status, err := d.c.getStatus(ctx); err != nil {
		return nil, err
	} else if status != 0 {
		return nil, statusErr("xflash.read_raw", status)
	}

	out := make([]byte, 0, length)
	for uint64(len(out)) < length {
		if err := checkCancel(ctx); err != nil {
			return nil, err
		}
		payload, err := d.c.readPacket(ctx, d.c.readWait)
		if err != nil {
			return nil, err
		}
		out = append(out, payload...)
		// ACK each frame with a zero-payload flow packet.
		if err := d.c.writePacket(ctx, nil); err != nil {
			return nil, err
		}
	}
	if _, err := d.c.getStatus(ctx); err != nil {
		return nil, err
	}
	return out[:length], nil
}

func (d *Driver) findPartition(name string) (stage2.Partition, error) {
	for _, p := range d.partitions {
		if p.Name == name {
			return p, nil
		}
	}
	return stage2.Partition{}, &ferrors.StorageError{Kind: ferrors.StoragePartitionNotFound, Name: name}
}
