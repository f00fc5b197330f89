package stage1

import (
	"context"
	"testing"

	"github.com/barnettlynn/flashkit/pkg/transport"
)

// scriptedResponder returns a Mock responder that replies with the n-th
// entry of script on the n-th Write call (1-indexed), nil after exhausted.
func scriptedResponder(script [][]byte) func([]byte) ([]byte, error) {
	call := 0
	return func(written []byte) ([]byte, error) {
		call++
		if call-1 < len(script) {
			return script[call-1], nil
		}
		return nil, nil
	}
}

func newTestDriver(responder func([]byte) ([]byte, error)) (*Driver, *transport.Mock) {
	m := transport.NewMock(responder)
	d := New(m, nil, DefaultTimeouts())
	return d, m
}

func TestHandshakeSucceedsOnFirstPass(t *testing.T) {
	responder := func(written []byte) ([]byte, error) {
		last := written[len(written)-1]
		return []byte{^last}, nil
	}
	d, _ := newTestDriver(responder)
	if err := d.Handshake(context.Background()); err != nil {
		t.Fatalf("handshake failed: %v", err)
	}
}

// TestHandshakeRecoversFromNoise implements spec scenario 2: the device
// returns a wrong byte before the first response, then correct complements.
// The handshake must restart and succeed on the second attempt.
func TestHandshakeRecoversFromNoise(t *testing.T) {
	call := 0
	responder := func(written []byte) ([]byte, error) {
		call++
		last := written[len(written)-1]
		if call == 1 {
			return []byte{0xFF}, nil
		}
		return []byte{^last}, nil
	}
	d, _ := newTestDriver(responder)
	if err := d.Handshake(context.Background()); err != nil {
		t.Fatalf("handshake failed: %v", err)
	}
}

func TestHandshakeFailsWhenDeviceNeverResponds(t *testing.T) {
	d, _ := newTestDriver(nil)
	d.timeouts.ByteWindow = 0
	err := d.Handshake(context.Background())
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
}

// TestProbeDetectsBROM implements spec scenario 1: a mock that echoes the
// GET_BL_VER command byte back (instead of a version) marks is_brom true,
// and optional probes that fail silently do not abort the overall probe.
func TestProbeDetectsBROM(t *testing.T) {
	script := [][]byte{
		{0xFD, 0x12, 0x34, 0x00, 0x00}, // GET_HW_CODE: echo + value + status
		{0xFE},                        // GET_BL_VER: echoes command itself -> BROM
		{0xFC, 0x00, 0x01, 0x00, 0x02, 0x00, 0x00}, // GET_HW_SW_VER
		{0xD8, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, // GET_TARGET_CONFIG (all flags clear)
		{0x00}, // GET_PL_CAP: wrong echo, fails silently
		{0x00}, // GET_ME_ID: wrong echo, fails silently
		{0x00}, // GET_SOC_ID: wrong echo, fails silently
	}
	d, _ := newTestDriver(scriptedResponder(script))
	id, err := d.Probe(context.Background())
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if !id.IsBROM {
		t.Fatalf("expected is_brom=true")
	}
	if id.HWCode != 0x1234 {
		t.Fatalf("want hw_code 0x1234, got %#04x", id.HWCode)
	}
	if id.MEID != nil || id.SOCID != nil {
		t.Fatalf("expected optional fields to remain unset on silent failure")
	}
}

// TestDAUploadChecksumExample implements spec scenario 3.
func TestDAUploadChecksumExample(t *testing.T) {
	script := [][]byte{
		{0xD7},                         // echo SEND_DA
		nil,                            // addr bytes
		nil,                            // length bytes
		{0x00, 0x00},                   // sigLength write triggers status read: status=0
		nil,                            // data chunk write
		{0x02, 0x06, 0x00, 0x00},       // terminator write triggers checksum(0x0206)+status(0)
	}
	d, _ := newTestDriver(scriptedResponder(script))
	result, err := d.UploadDA(context.Background(), DAUploadParams{
		LoadAddress:     0x41000000,
		DeclaredLength:  4,
		SignatureLength: 0,
		Data:            []byte{0x01, 0x02, 0x03, 0x04},
	}, nil)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if result.LocalChecksum != 0x0206 {
		t.Fatalf("want local checksum 0x0206, got %#04x", result.LocalChecksum)
	}
	if result.DeviceChecksum != 0x0206 {
		t.Fatalf("want device checksum 0x0206, got %#04x", result.DeviceChecksum)
	}
}

func TestUploadDelayFormula(t *testing.T) {
	cases := map[int]int{
		0:      35,
		100:    35,
		10000:  45,
		500000: 500,
	}
	for bytes, wantMS := range cases {
		got := uploadDelay(bytes)
		if got.Milliseconds() != int64(wantMS) {
			t.Fatalf("bytes=%d: want %dms got %v", bytes, wantMS, got)
		}
	}
}
