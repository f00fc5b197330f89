package xmlproto

import (
	"bytes"
	"context"
	"encoding/xml"
	"testing"

	"github.com/barnettlynn/flashkit/pkg/codec"
	"github.com/barnettlynn/flashkit/pkg/transport"
)

func TestDefaultSignerReturnsLiteralSLA(t *testing.T) {
	sig, err := defaultSigner{}.Sign([]byte("anything"))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if !bytes.Equal(sig, []byte("SLA\x00")) {
		t.Fatalf("want literal SLA\\0, got %q", sig)
	}
}

func TestVerifySLASkippedWhenDisabled(t *testing.T) {
	resp := Doc{Command: CmdGetSysProperty, Arg: "Disabled", Status: "OK"}
	body, _ := xml.Marshal(resp)
	m := transport.NewMock(func(written []byte) ([]byte, error) {
		return codec.FrameXFlash(body), nil
	})
	d := New(m, nil, nil)
	if err := d.VerifySLA(context.Background()); err != nil {
		t.Fatalf("expected no error when SLA disabled, got %v", err)
	}
}

func TestSplitThree(t *testing.T) {
	got := splitThree("aa:bb:cc")
	want := [3]string{"aa", "bb", "cc"}
	if got != want {
		t.Fatalf("want %v got %v", want, got)
	}
}
