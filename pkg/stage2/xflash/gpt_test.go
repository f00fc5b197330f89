package xflash

import (
	"encoding/binary"
	"testing"
)

// buildGPTFixture builds a 34*512 buffer with an MBR signature at offset 0
// and a GPT header + 3 entries starting at offset 512, per spec scenario 4.
func buildGPTFixture(t *testing.T) []byte {
	t.Helper()
	buf := make([]byte, gptSectorCount*gptSectorSize)
	buf[510] = 0x55
	buf[511] = 0xAA

	header := buf[gptSectorSize:]
	copy(header[0:8], gptSignature)
	binary.LittleEndian.PutUint64(header[72:80], 2) // partition_entry_lba
	binary.LittleEndian.PutUint32(header[80:84], 3) // num_entries
	binary.LittleEndian.PutUint32(header[84:88], 128) // entry_size

	entriesOff := 2 * gptSectorSize
	names := []string{"boot", "system", "userdata"}
	for i, name := range names {
		off := entriesOff + i*128
		entry := buf[off : off+128]
		entry[0] = byte(i + 1) // non-zero type GUID byte
		first := uint64(1000 * (i + 1))
		last := first + 99
		binary.LittleEndian.PutUint64(entry[32:40], first)
		binary.LittleEndian.PutUint64(entry[40:48], last)
		for j, r := range name {
			binary.LittleEndian.PutUint16(entry[56+j*2:58+j*2], uint16(r))
		}
	}
	return buf
}

func TestGPTParseScenario(t *testing.T) {
	buf := buildGPTFixture(t)
	parts, err := parseGPT(buf)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(parts) != 3 {
		t.Fatalf("want 3 partitions, got %d", len(parts))
	}
	for i, p := range parts {
		wantFirst := uint64(1000 * (i + 1))
		if p.StartSector != wantFirst {
			t.Fatalf("partition %d: want start_sector %d, got %d", i, wantFirst, p.StartSector)
		}
		if p.Offset() != wantFirst*512 {
			t.Fatalf("partition %d: want offset %d, got %d", i, wantFirst*512, p.Offset())
		}
		if p.SectorCount != 100 {
			t.Fatalf("partition %d: want sector_count 100, got %d", i, p.SectorCount)
		}
	}
	if parts[0].Name != "boot" || parts[1].Name != "system" || parts[2].Name != "userdata" {
		t.Fatalf("unexpected names: %+v", parts)
	}
}

func TestGPTRejectsMissingSignature(t *testing.T) {
	buf := make([]byte, gptSectorCount*gptSectorSize)
	if _, err := parseGPT(buf); err == nil {
		t.Fatalf("expected error for missing EFI PART signature")
	}
}
