// Package driverfactory is the one place flashkit's command-line tools
// import every concrete transport and stage-2 driver package, so that
// pkg/session never needs to know xflash/legacy/xmlproto/bsl exist.
package driverfactory

import (
	"fmt"
	"strconv"

	"github.com/barnettlynn/flashkit/internal/config"
	"github.com/barnettlynn/flashkit/pkg/events"
	"github.com/barnettlynn/flashkit/pkg/stage2"
	"github.com/barnettlynn/flashkit/pkg/stage2/bsl"
	"github.com/barnettlynn/flashkit/pkg/stage2/legacy"
	"github.com/barnettlynn/flashkit/pkg/stage2/xflash"
	"github.com/barnettlynn/flashkit/pkg/stage2/xmlproto"
	"github.com/barnettlynn/flashkit/pkg/transport"
)

// OpenTransport builds the Transport backend cfg.Transport selects.
func OpenTransport(cfg config.TransportConfig) (transport.Transport, error) {
	switch cfg.Kind {
	case "serial":
		return transport.NewSerial(cfg.SerialDevice, cfg.BaudRate)
	case "usb":
		vid, err := strconv.ParseUint(cfg.USBVendorID, 16, 16)
		if err != nil {
			return nil, fmt.Errorf("usb_vendor_id: %w", err)
		}
		pid, err := strconv.ParseUint(cfg.USBProductID, 16, 16)
		if err != nil {
			return nil, fmt.Errorf("usb_product_id: %w", err)
		}
		return transport.NewUSB(uint16(vid), uint16(pid), cfg.USBInEP, cfg.USBOutEP)
	default:
		return nil, fmt.Errorf("unknown transport kind %q", cfg.Kind)
	}
}

// KindFromString maps the config's stage2_kind string onto stage2.Kind.
func KindFromString(s string) (stage2.Kind, error) {
	switch s {
	case "xflash":
		return stage2.KindXFlash, nil
	case "legacy":
		return stage2.KindLegacy, nil
	case "xml":
		return stage2.KindXML, nil
	case "bsl":
		return stage2.KindBSL, nil
	default:
		return 0, fmt.Errorf("unknown stage2 kind %q", s)
	}
}

// Stage2Factory builds the concrete stage-2 driver matching kind. It
// satisfies session.Stage2Factory.
func Stage2Factory(kind stage2.Kind, t transport.Transport, sink *events.Sink) (stage2.Driver, error) {
	switch kind {
	case stage2.KindXFlash:
		return xflash.New(t, sink), nil
	case stage2.KindLegacy:
		return legacy.New(t, sink), nil
	case stage2.KindXML:
		return xmlproto.New(t, sink, nil), nil
	case stage2.KindBSL:
		return bsl.New(t, sink), nil
	default:
		return nil, fmt.Errorf("driverfactory: unknown stage2 kind %v", kind)
	}
}
