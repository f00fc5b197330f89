package dacatalog

import (
	"encoding/binary"
	"testing"

	"github.com/barnettlynn/flashkit/pkg/ferrors"
)

// buildBlob constructs a minimal non-legacy (0xDC-entry) DA blob holding
// the given entries, each with the regions it carries.
func buildBlob(t *testing.T, entries []Entry) []byte {
	t.Helper()
	const entrySize = modernEntrySize
	blob := make([]byte, entryTableOffset+len(entries)*entrySize)
	copy(blob[:len("MTK_DA_v6\x00")], "MTK_DA_v6\x00")
	binary.LittleEndian.PutUint32(blob[entryCountOffset:entryTableOffset], uint32(len(entries)))

	for i, e := range entries {
		off := entryTableOffset + i*entrySize
		buf := blob[off : off+entrySize]
		binary.LittleEndian.PutUint16(buf[2:4], e.HWCode)
		binary.LittleEndian.PutUint16(buf[4:6], e.HWSubCode)
		binary.LittleEndian.PutUint16(buf[6:8], e.HWVersion)
		binary.LittleEndian.PutUint16(buf[8:10], e.SWVersion)
		binary.LittleEndian.PutUint16(buf[16:18], 0)
		binary.LittleEndian.PutUint16(buf[18:20], uint16(len(e.Regions)))
		for j, r := range e.Regions {
			roff := 20 + j*20
			rbuf := buf[roff : roff+20]
			binary.LittleEndian.PutUint32(rbuf[0:4], r.BufferOffset)
			binary.LittleEndian.PutUint32(rbuf[4:8], r.Length)
			binary.LittleEndian.PutUint32(rbuf[8:12], r.LoadAddress)
			binary.LittleEndian.PutUint32(rbuf[12:16], r.StartOffset)
			binary.LittleEndian.PutUint32(rbuf[16:20], r.SignatureLength)
		}
	}
	// probe slot left zero so modern (0xDC) entry size is assumed.
	return blob
}

func TestParseAndSelectPicksDominatedEntry(t *testing.T) {
	entries := []Entry{
		{HWCode: 0x6765, HWVersion: 1, SWVersion: 1, Regions: []Region{{}, {BufferOffset: 0x100, Length: 16}, {BufferOffset: 0x200, Length: 32}}},
		{HWCode: 0x6765, HWVersion: 2, SWVersion: 2, Regions: []Region{{}, {BufferOffset: 0x300, Length: 16}, {BufferOffset: 0x400, Length: 32}}},
	}
	blob := buildBlob(t, entries)
	// pad blob so CodeBytes bounds checks succeed for the highest offset used.
	padded := append(blob, make([]byte, 0x500)...)

	cat, err := Parse(padded)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !cat.IsV6 {
		t.Fatalf("expected IsV6 true")
	}
	if len(cat.Entries) != 2 {
		t.Fatalf("want 2 entries, got %d", len(cat.Entries))
	}

	// device reports hw_version=1, sw_version=5: first entry (hw_version 1
	// <= 1) qualifies before the second (hw_version 2 > 1).
	sel, err := cat.Select(0x6765, 1, 5)
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if sel.HWVersion != 1 {
		t.Fatalf("want entry with hw_version 1, got %d", sel.HWVersion)
	}

	s1, ok := sel.StageOneRegion()
	if !ok || s1.BufferOffset != 0x100 {
		t.Fatalf("unexpected stage-1 region: %+v ok=%v", s1, ok)
	}
	s2, ok := sel.StageTwoRegion()
	if !ok || s2.BufferOffset != 0x200 {
		t.Fatalf("unexpected stage-2 region: %+v ok=%v", s2, ok)
	}
}

func TestSelectFallsBackToFirstEntry(t *testing.T) {
	entries := []Entry{
		{HWCode: 0x6765, HWVersion: 5, SWVersion: 5},
		{HWCode: 0x6765, HWVersion: 9, SWVersion: 9},
	}
	blob := buildBlob(t, entries)
	cat, err := Parse(blob)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	// device hw_version/sw_version below every entry: none qualifies, so
	// the first entry matching hw_code wins.
	sel, err := cat.Select(0x6765, 1, 1)
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if sel.HWVersion != 5 {
		t.Fatalf("want fallback to first entry (hw_version 5), got %d", sel.HWVersion)
	}
}

func TestSelectNoMatchingHWCode(t *testing.T) {
	blob := buildBlob(t, []Entry{{HWCode: 0x1111, HWVersion: 1, SWVersion: 1}})
	cat, err := Parse(blob)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	_, err = cat.Select(0x9999, 100, 100)
	if err == nil {
		t.Fatalf("expected NoMatchingDa error")
	}
	catErr, ok := ferrors.AsCatalog(err)
	if !ok || catErr.Kind != ferrors.CatalogNoMatchingDa {
		t.Fatalf("want CatalogNoMatchingDa, got %v", err)
	}
}

// TestSelectIsDeterministic runs Select repeatedly over the same catalog
// and confirms it always returns the identical entry, per spec.md §8's
// determinism requirement on DA selection.
func TestSelectIsDeterministic(t *testing.T) {
	entries := []Entry{
		{HWCode: 0x6765, HWVersion: 1, SWVersion: 1},
		{HWCode: 0x6765, HWVersion: 3, SWVersion: 3},
	}
	blob := buildBlob(t, entries)
	cat, err := Parse(blob)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	first, err := cat.Select(0x6765, 2, 2)
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := cat.Select(0x6765, 2, 2)
		if err != nil {
			t.Fatalf("select failed on iteration %d: %v", i, err)
		}
		if again.HWVersion != first.HWVersion || again.SWVersion != first.SWVersion {
			t.Fatalf("select is non-deterministic: first=%+v again=%+v", first, again)
		}
	}
}
