package legacy

import (
	"bytes"
	"context"
	"testing"

	"github.com/barnettlynn/flashkit/pkg/transport"
)

func TestReadFlashOneSectorACKEach(t *testing.T) {
	sector := bytes.Repeat([]byte{0xAB}, defaultSectorSize)
	call := 0
	m := transport.NewMock(func(written []byte) ([]byte, error) {
		call++
		switch call {
		case 1, 2, 3: // opcode, start, count
			return nil, nil
		default:
			return nil, nil
		}
	})
	// Preload the two sectors + ACKs directly since the responder above
	// can't easily interleave reads between writes for a multi-sector
	// exchange; Feed lets the test script the full reply stream upfront.
	m.Feed(sector)
	m.Feed([]byte{0x5A})
	m.Feed(sector)
	m.Feed([]byte{0x5A})
	m.Feed([]byte{0x5A})

	d := New(m, nil)
	var out bytes.Buffer
	if err := d.readFlash(context.Background(), 0, 2, &out); err != nil {
		t.Fatalf("readFlash failed: %v", err)
	}
	if out.Len() != defaultSectorSize*2 {
		t.Fatalf("want %d bytes, got %d", defaultSectorSize*2, out.Len())
	}
}

func TestDecodePMTEntries(t *testing.T) {
	entry := make([]byte, pmtEntrySize)
	copy(entry, []byte("boot"))
	entry[70] = 0
	// start_sector = 100, sector_count = 10 (already zeroed elsewhere)
	entry[64+7] = 100
	entry[72+7] = 10
	parts := decodePMTEntries(entry, 512)
	if len(parts) != 1 {
		t.Fatalf("want 1 partition, got %d", len(parts))
	}
	if parts[0].Name != "boot" || parts[0].StartSector != 100 || parts[0].SectorCount != 10 {
		t.Fatalf("unexpected partition: %+v", parts[0])
	}
}
