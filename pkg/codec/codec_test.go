package codec

import (
	"bytes"
	"testing"
)

func TestHDLCRoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		{0x01},
		{0x7E},
		{0x7D},
		{0x7E, 0x7D, 0x7E, 0x7D, 0x00, 0xFF},
		bytes.Repeat([]byte{0x7E, 0x7D}, 100),
	}
	for _, c := range cases {
		escaped := EscapeHDLC(c)
		got, err := UnescapeHDLC(escaped)
		if err != nil {
			t.Fatalf("unescape(%x) error: %v", c, err)
		}
		if !bytes.Equal(got, c) && !(len(got) == 0 && len(c) == 0) {
			t.Fatalf("round trip mismatch: want %x got %x", c, got)
		}
	}
}

func TestHDLCFrameParseRoundTrip(t *testing.T) {
	payload := []byte{0x00, 0x01, 0x02, 0x7E, 0x7D, 0xFF}
	frame := FrameHDLC(payload)
	got, err := ParseHDLC(frame)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("want %x got %x", payload, got)
	}
}

func TestCRC16SelfCheck(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	crc := CRC16(data)
	extended := append(append([]byte{}, data...), byte(crc), byte(crc>>8))
	if CRC16(extended) != 0 {
		t.Fatalf("crc16 self-check failed: got %#04x, want 0", CRC16(extended))
	}
}

func TestXOR16Example(t *testing.T) {
	// spec.md §8 scenario 3: [0x01,0x02,0x03,0x04] -> 0x0102 ^ 0x0304 = 0x0206
	got := XOR16([]byte{0x01, 0x02, 0x03, 0x04})
	if got != 0x0206 {
		t.Fatalf("want 0x0206, got %#04x", got)
	}
}

func TestXOR16PadsOddLength(t *testing.T) {
	got := XOR16([]byte{0x01, 0x02, 0x03})
	want := uint16(0x0102) ^ uint16(0x0300)
	if got != want {
		t.Fatalf("want %#04x got %#04x", want, got)
	}
}

func TestXFlashFrameParseRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 16, 4096, 1 << 20} {
		payload := bytes.Repeat([]byte{0xAB}, n)
		frame := FrameXFlash(payload)
		length, err := ParseXFlashHeader(frame[:HeaderLen()])
		if err != nil {
			t.Fatalf("n=%d: parse header error: %v", n, err)
		}
		if int(length) != n {
			t.Fatalf("n=%d: want length %d got %d", n, n, length)
		}
		got := frame[HeaderLen() : HeaderLen()+int(length)]
		if !bytes.Equal(got, payload) {
			t.Fatalf("n=%d: payload mismatch", n)
		}
	}
}

func TestXFlashBadMagicRejectedWithoutConsumingPayload(t *testing.T) {
	frame := FrameXFlash([]byte{0x01, 0x02, 0x03, 0x04})
	frame[0] ^= 0xFF // corrupt magic
	_, err := ParseXFlashHeader(frame[:HeaderLen()])
	if err == nil {
		t.Fatalf("expected error for bad magic")
	}
}
