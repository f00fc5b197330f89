package codec

import (
	"encoding/binary"
	"fmt"
)

// XFlashMagic prefixes every stage-2 XFlash/XML packet (spec.md §4.2/§6).
const XFlashMagic uint32 = 0xFEEEEEEF

// XFlashDataTypeProtocolFlow is the only data_type value this engine ever
// sends or expects: a protocol-flow packet (as opposed to a raw data
// packet some XFlash variants distinguish at the framing layer). This
// engine keeps a single shape and relies on length/content to disambiguate
// command vs. params vs. bulk vs. status payloads.
const XFlashDataTypeProtocolFlow uint32 = 1

// XFlashSyncSignal is returned after a successful BOOT_TO upload.
const XFlashSyncSignal uint32 = 0x434E5953

const xflashHeaderLen = 12 // magic(4) + data_type(4) + length(4), all LE

// FrameXFlash wraps payload in the magic-length header: {magic, data_type,
// length} each little-endian u32, followed by payload.
func FrameXFlash(payload []byte) []byte {
	out := make([]byte, xflashHeaderLen+len(payload))
	binary.LittleEndian.PutUint32(out[0:4], XFlashMagic)
	binary.LittleEndian.PutUint32(out[4:8], XFlashDataTypeProtocolFlow)
	binary.LittleEndian.PutUint32(out[8:12], uint32(len(payload)))
	copy(out[xflashHeaderLen:], payload)
	return out
}

// ParseXFlashHeader reads just the fixed 12-byte header and returns the
// payload length a caller must now read. It does not consume the payload,
// and returns an error without having read it when the magic is wrong —
// per spec.md §8: "frames with wrong magic are rejected without consuming
// the payload."
func ParseXFlashHeader(header []byte) (length uint32, err error) {
	if len(header) != xflashHeaderLen {
		return 0, fmt.Errorf("xflash: header must be %d bytes, got %d", xflashHeaderLen, len(header))
	}
	magic := binary.LittleEndian.Uint32(header[0:4])
	if magic != XFlashMagic {
		return 0, fmt.Errorf("xflash: bad magic %#08x, want %#08x", magic, XFlashMagic)
	}
	return binary.LittleEndian.Uint32(header[8:12]), nil
}

// HeaderLen is the fixed length of an XFlash packet header.
func HeaderLen() int { return xflashHeaderLen }
