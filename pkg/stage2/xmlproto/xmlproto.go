// Package xmlproto drives the MTK XML stage-2 protocol: the same
// magic-frame transport as XFlash, carrying UTF-8 XML command/response
// documents instead of binary parameter blocks, spec.md §4.6.
package xmlproto

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/barnettlynn/flashkit/pkg/codec"
	"github.com/barnettlynn/flashkit/pkg/events"
	"github.com/barnettlynn/flashkit/pkg/ferrors"
	"github.com/barnettlynn/flashkit/pkg/stage2"
	"github.com/barnettlynn/flashkit/pkg/transport"
)

// Command names, spec.md §4.6.
const (
	CmdWritePartition               = "WRITE-PARTITION"
	CmdReadPartition                = "READ-PARTITION"
	CmdErasePartition               = "ERASE-PARTITION"
	CmdFlashAll                     = "FLASH-ALL"
	CmdGetHWInfo                    = "GET-HW-INFO"
	CmdReboot                       = "REBOOT"
	CmdReadRegister                 = "READ-REGISTER"
	CmdWriteRegister                = "WRITE-REGISTER"
	CmdReadEfuse                    = "READ-EFUSE"
	CmdWriteEfuse                   = "WRITE-EFUSE"
	CmdSetBootMode                  = "SET-BOOT-MODE"
	CmdSecurityGetDevFwInfo         = "SECURITY-GET-DEV-FW-INFO"
	CmdSecuritySetFlashPolicy       = "SECURITY-SET-FLASH-POLICY"
	CmdSecuritySetAllInOneSignature = "SECURITY-SET-ALLINONE-SIGNATURE"
	CmdGetSysProperty               = "GET-SYS-PROPERTY"
)

// Doc is the XML envelope every command/response uses, spec.md §4.6:
// <da><version>v</version><command>CMD:...</command><arg>...</arg></da>.
type Doc struct {
	XMLName xml.Name `xml:"da"`
	Version string   `xml:"version"`
	Command string   `xml:"command"`
	Arg     string   `xml:"arg,omitempty"`
	Status  string   `xml:"status,omitempty"`
}

const protocolVersion = "5"

// Signer produces an SLA signature over an authentication challenge. New
// installs defaultSigner when given a nil signer; defaultSigner returns the
// literal ASCII "SLA\0" whatever the challenge.
type Signer interface {
	Sign(challenge []byte) ([]byte, error)
}

type defaultSigner struct{}

func (defaultSigner) Sign([]byte) ([]byte, error) {
	return []byte("SLA\x00"), nil
}

// SLASelector chooses which discovered identifier seeds the SLA challenge.
type SLASelector int

const (
	SLASelectNone SLASelector = iota
	SLASelectHRID
	SLASelectSOCID
)

// Driver implements stage2.Driver over the XML protocol.
type Driver struct {
	t          transport.Transport
	sink       *events.Sink
	signer     Signer
	selector   SLASelector
	partitions []stage2.Partition
}

// New binds a Driver to t. sink may be nil; signer may be nil, in which
// case defaultSigner is used.
func New(t transport.Transport, sink *events.Sink, signer Signer) *Driver {
	if signer == nil {
		signer = defaultSigner{}
	}
	return &Driver{t: t, sink: sink, signer: signer}
}

func (d *Driver) Kind() stage2.Kind { return stage2.KindXML }
func (d *Driver) Close() error      { return d.t.Close() }

func (d *Driver) progress(done, total int64, label string) {
	if d.sink != nil {
		d.sink.Progress(done, total, label)
	}
}

// send marshals doc and writes it as a magic-framed packet.
func (d *Driver) send(ctx context.Context, doc Doc) error {
	doc.Version = protocolVersion
	body, err := xml.Marshal(doc)
	if err != nil {
		return err
	}
	return d.t.Write(ctx, codec.FrameXFlash(body))
}

// recv reads one magic-framed packet and unmarshals it as a Doc.
func (d *Driver) recv(ctx context.Context) (Doc, error) {
	header, err := d.t.ReadExact(ctx, codec.HeaderLen(), 5*time.Second)
	if err != nil {
		return Doc{}, err
	}
	length, err := codec.ParseXFlashHeader(header)
	if err != nil {
		return Doc{}, err
	}
	body, err := d.t.ReadExact(ctx, int(length), 5*time.Second)
	if err != nil {
		return Doc{}, err
	}
	var doc Doc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return Doc{}, fmt.Errorf("xmlproto: malformed response: %w", err)
	}
	return doc, nil
}

// call sends one command/arg pair and returns the response document,
// failing unless the response's status is OK or empty (commands that
// carry their result in <arg> rather than <status> report no status).
func (d *Driver) call(ctx context.Context, command, arg string) (Doc, error) {
	if err := d.send(ctx, Doc{Command: command, Arg: arg}); err != nil {
		return Doc{}, err
	}
	resp, err := d.recv(ctx)
	if err != nil {
		return Doc{}, err
	}
	if resp.Status != "" && resp.Status != "OK" {
		return resp, &ferrors.ProtocolError{Op: "xmlproto." + command, Code: 0}
	}
	return resp, nil
}

func checkCancel(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ferrors.Cancelled
	default:
		return nil
	}
}

func (d *Driver) findPartition(name string) (stage2.Partition, error) {
	for _, p := range d.partitions {
		if p.Name == name {
			return p, nil
		}
	}
	return stage2.Partition{}, &ferrors.StorageError{Kind: ferrors.StoragePartitionNotFound, Name: name}
}
