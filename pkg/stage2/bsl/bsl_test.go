package bsl

import (
	"bytes"
	"context"
	"testing"

	"github.com/barnettlynn/flashkit/pkg/catalog"
	"github.com/barnettlynn/flashkit/pkg/codec"
	"github.com/barnettlynn/flashkit/pkg/transport"
)

// TestFDLUploadChunking implements spec scenario 6: a 10 KiB FDL uploads
// in exactly three DATA_MIDST frames (4 KiB + 4 KiB + 2 KiB) plus one
// DATA_START, one DATA_END, and one DATA_EXEC, each acknowledged OK.
func TestFDLUploadChunking(t *testing.T) {
	okFrame := codec.FrameHDLC([]byte{catalog.BSLRspOK})
	calls := 0
	m := transport.NewMock(func(written []byte) ([]byte, error) {
		calls++
		return okFrame, nil
	})
	d := New(m, nil)
	data := bytes.Repeat([]byte{0x42}, 10*1024)
	if err := d.UploadFDL(context.Background(), 0x5000, data); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if calls != 6 {
		t.Fatalf("want 6 exchanges (start+3 midst+end+exec), got %d", calls)
	}
}

func TestChangeBaudRateRetunes(t *testing.T) {
	okFrame := codec.FrameHDLC([]byte{catalog.BSLRspOK})
	m := transport.NewMock(func(written []byte) ([]byte, error) {
		return okFrame, nil
	})
	d := New(m, nil)
	if err := d.ChangeBaudRate(context.Background(), 921600); err != nil {
		t.Fatalf("change baud rate failed: %v", err)
	}
}
