// Package dacatalog parses the multi-entry MTK Download Agent blob
// ("MTK_AllInOne_DA.bin") and selects the entry matching a discovered
// chip identity, spec.md §6.
package dacatalog

import (
	"bytes"
	"encoding/binary"

	"github.com/barnettlynn/flashkit/pkg/ferrors"
)

const (
	headerLen        = 0x68
	entryCountOffset = 0x68
	entryTableOffset = 0x6C
	probeOffset      = 0xD8
	legacyProbeValue = 0xDADA
	legacyEntrySize  = 0xD8
	modernEntrySize  = 0xDC
	maxRegions       = 10
)

// Region describes one loadable code/data span within the blob, spec.md
// §6's 5-field region record.
type Region struct {
	BufferOffset    uint32
	Length          uint32
	LoadAddress     uint32
	StartOffset     uint32
	SignatureLength uint32
}

// Entry is one DA catalog entry: a chip-version match key plus its
// regions, spec.md §3/§6.
type Entry struct {
	HWCode      uint16
	HWSubCode   uint16
	HWVersion   uint16
	SWVersion   uint16
	PageSize    uint16
	RegionIndex uint16
	Regions     []Region
}

// StageOneRegion returns regions[1], the stage-1 code per spec.md §3's
// "Entry[1] is stage-1 code" rule.
func (e Entry) StageOneRegion() (Region, bool) {
	if len(e.Regions) > 1 {
		return e.Regions[1], true
	}
	return Region{}, false
}

// StageTwoRegion returns regions[2], the stage-2 code.
func (e Entry) StageTwoRegion() (Region, bool) {
	if len(e.Regions) > 2 {
		return e.Regions[2], true
	}
	return Region{}, false
}

// Catalog is a parsed DA blob: a version string/flag plus all entries.
type Catalog struct {
	IsV6    bool
	Version string
	Blob    []byte
	Entries []Entry
}

// CodeBytes slices the blob for region r.
func (c *Catalog) CodeBytes(r Region) ([]byte, error) {
	end := int(r.BufferOffset) + int(r.Length)
	if r.Length == 0 || end > len(c.Blob) || int(r.BufferOffset) < 0 {
		return nil, &ferrors.CatalogError{Kind: ferrors.CatalogCorruptDaBlob, Detail: "region out of bounds"}
	}
	return c.Blob[r.BufferOffset:end], nil
}

// Parse parses a DA blob per spec.md §6's exact byte-offset format.
func Parse(blob []byte) (*Catalog, error) {
	if len(blob) < entryTableOffset {
		return nil, &ferrors.CatalogError{Kind: ferrors.CatalogCorruptDaBlob, Detail: "blob shorter than header"}
	}

	header := blob[:headerLen]
	isV6 := bytes.Contains(header, []byte("MTK_DA_v6"))
	version := extractVersion(header)

	numEntries := binary.LittleEndian.Uint32(blob[entryCountOffset:entryTableOffset])

	legacy := false
	probeAt := entryTableOffset + probeOffset
	if probeAt+2 <= len(blob) {
		probe := binary.LittleEndian.Uint16(blob[probeAt : probeAt+2])
		legacy = probe == legacyProbeValue
	}
	entrySize := modernEntrySize
	if legacy {
		entrySize = legacyEntrySize
	}

	cat := &Catalog{IsV6: isV6, Version: version, Blob: blob}
	for i := uint32(0); i < numEntries; i++ {
		off := entryTableOffset + int(i)*entrySize
		if off+entrySize > len(blob) {
			break
		}
		entry, err := parseEntry(blob[off:off+entrySize], legacy)
		if err != nil {
			return nil, err
		}
		cat.Entries = append(cat.Entries, entry)
	}
	return cat, nil
}

func extractVersion(header []byte) string {
	marker := []byte("MTK_DA_v")
	idx := bytes.Index(header, marker)
	if idx < 0 {
		return ""
	}
	rest := header[idx:]
	if nul := bytes.IndexByte(rest, 0); nul >= 0 {
		rest = rest[:nul]
	}
	return string(rest)
}

func parseEntry(buf []byte, legacy bool) (Entry, error) {
	u16 := binary.LittleEndian.Uint16
	var e Entry
	var regionsOff int
	if legacy {
		// magic, hw_code, hw_sub_code, hw_version, page_size, reserved,
		// entry_region_index, entry_region_count
		e.HWCode = u16(buf[2:4])
		e.HWSubCode = u16(buf[4:6])
		e.HWVersion = u16(buf[6:8])
		e.PageSize = u16(buf[8:10])
		e.RegionIndex = u16(buf[12:14])
		regionsOff = 16
	} else {
		// magic, hw_code, hw_sub_code, hw_version, sw_version, reserved,
		// page_size, reserved, entry_region_index, entry_region_count
		e.HWCode = u16(buf[2:4])
		e.HWSubCode = u16(buf[4:6])
		e.HWVersion = u16(buf[6:8])
		e.SWVersion = u16(buf[8:10])
		e.PageSize = u16(buf[12:14])
		e.RegionIndex = u16(buf[16:18])
		regionsOff = 20
	}
	regionCountOff := regionsOff - 2
	regionCount := int(u16(buf[regionCountOff : regionCountOff+2]))
	if regionCount > maxRegions {
		regionCount = maxRegions
	}
	for i := 0; i < regionCount; i++ {
		off := regionsOff + i*20
		if off+20 > len(buf) {
			break
		}
		r := buf[off : off+20]
		e.Regions = append(e.Regions, Region{
			BufferOffset:    binary.LittleEndian.Uint32(r[0:4]),
			Length:          binary.LittleEndian.Uint32(r[4:8]),
			LoadAddress:     binary.LittleEndian.Uint32(r[8:12]),
			StartOffset:     binary.LittleEndian.Uint32(r[12:16]),
			SignatureLength: binary.LittleEndian.Uint32(r[16:20]),
		})
	}
	return e, nil
}

// Select implements spec.md §3's deterministic selection rule: the first
// entry matching hwCode whose hw_version ≤ deviceHWVersion and sw_version
// ≤ deviceSWVersion; if none qualifies, the first entry matching hwCode;
// if no entry matches hwCode at all, Catalog{NoMatchingDa}.
func (c *Catalog) Select(hwCode, deviceHWVersion, deviceSWVersion uint16) (Entry, error) {
	var candidates []Entry
	for _, e := range c.Entries {
		if e.HWCode == hwCode {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return Entry{}, &ferrors.CatalogError{Kind: ferrors.CatalogNoMatchingDa}
	}
	for _, e := range candidates {
		if e.HWVersion <= deviceHWVersion && e.SWVersion <= deviceSWVersion {
			return e, nil
		}
	}
	return candidates[0], nil
}
