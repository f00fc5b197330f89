package legacy

import (
	"context"
	"encoding/binary"

	"github.com/barnettlynn/flashkit/pkg/catalog"
	"github.com/barnettlynn/flashkit/pkg/stage2"
)

// ReadPMT reads the partition-map-table: BE32 length, payload, ACK,
// spec.md §4.5. Each entry is decoded by decodePMTEntries and cached so
// subsequent read/write/erase calls can resolve a partition name.
func (d *Driver) ReadPMT(ctx context.Context) ([]stage2.Partition, error) {
	if err := d.t.Write(ctx, []byte{catalog.LegacyCmdReadPMT}); err != nil {
		return nil, err
	}
	lenBuf, err := d.t.ReadExact(ctx, 4, readTimeout)
	if err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(lenBuf)
	payload, err := d.t.ReadExact(ctx, int(length), readTimeout)
	if err != nil {
		return nil, err
	}
	if err := d.expectACK(ctx, readTimeout); err != nil {
		return nil, err
	}
	parts := decodePMTEntries(payload, d.sectorSize)
	d.partitions = parts
	return parts, nil
}

// WritePMT writes a partition-map-table payload, spec.md §4.5.
func (d *Driver) WritePMT(ctx context.Context, payload []byte) error {
	if err := d.t.Write(ctx, []byte{catalog.LegacyCmdWritePMT}); err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if err := d.t.Write(ctx, lenBuf[:]); err != nil {
		return err
	}
	if err := d.t.Write(ctx, payload); err != nil {
		return err
	}
	return d.expectACK(ctx, readTimeout)
}

// pmtEntrySize is the fixed-width PMT record: a 64-byte nul-padded ASCII
// name followed by BE64 start_sector and BE64 sector_count.
const pmtEntrySize = 80

func decodePMTEntries(payload []byte, sectorSize uint64) []stage2.Partition {
	var parts []stage2.Partition
	for off := 0; off+pmtEntrySize <= len(payload); off += pmtEntrySize {
		entry := payload[off : off+pmtEntrySize]
		nameEnd := 0
		for nameEnd < 64 && entry[nameEnd] != 0 {
			nameEnd++
		}
		name := string(entry[:nameEnd])
		if name == "" {
			continue
		}
		start := binary.BigEndian.Uint64(entry[64:72])
		count := binary.BigEndian.Uint64(entry[72:80])
		parts = append(parts, stage2.Partition{
			Name:        name,
			StartSector: start,
			SectorCount: count,
			SectorSize:  sectorSize,
		})
	}
	return parts
}
