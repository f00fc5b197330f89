package xflash

import (
	"context"
	"encoding/binary"

	"github.com/barnettlynn/flashkit/pkg/catalog"
	"github.com/barnettlynn/flashkit/pkg/stage2"
)

// deviceCtrl issues DEVICE_CTRL → OK → <sub_cmd> → OK → read(payload),
// spec.md §4.4.
func (d *Driver) deviceCtrl(ctx context.Context, sub uint32, respLen int) ([]byte, error) {
	if err := d.c.sendCmd(ctx, catalog.XCmdDeviceCtrl); err != nil {
		return nil, err
	}
	if status, err := d.c.getStatus(ctx); err != nil {
		return nil, err
	} else if status != 0 {
		return nil, statusErr("xflash.device_ctrl", status)
	}
	var subBuf [4]byte
	binary.LittleEndian.PutUint32(subBuf[:], sub)
	if err := d.c.sendParams(ctx, subBuf[:]); err != nil {
		return nil, err
	}
	if status, err := d.c.getStatus(ctx); err != nil {
		return nil, err
	} else if status != 0 {
		return nil, statusErr("xflash.device_ctrl", status)
	}
	return d.c.t.ReadExact(ctx, respLen, d.c.readWait)
}

// DeviceInfo probes storage kind by trying eMMC, UFS, NAND, then NOR in
// that order; the first to return a non-zero type wins, spec.md §4.4.
func (d *Driver) DeviceInfo(ctx context.Context) (stage2.StorageInfo, error) {
	probes := []struct {
		sub  uint32
		kind stage2.StorageKind
	}{
		{catalog.XSubGetEMMCInfo, stage2.StorageEMMC},
		{catalog.XSubGetUFSInfo, stage2.StorageUFS},
		{catalog.XSubGetNANDInfo, stage2.StorageNAND},
		{catalog.XSubGetNORInfo, stage2.StorageNOR},
	}
	for _, p := range probes {
		payload, err := d.deviceCtrl(ctx, p.sub, 32)
		if err != nil {
			continue
		}
		if allZero(payload) {
			continue
		}
		info := stage2.StorageInfo{
			Kind:      p.kind,
			BlockSize: 512,
			UserSize:  binary.LittleEndian.Uint64(payload[0:8]),
			CID:       append([]byte{}, payload[8:24]...),
		}
		d.storage = info
		return info, nil
	}
	return stage2.StorageInfo{}, statusErr("xflash.device_info", 0)
}

func allZero(b []byte) bool {
	for _, x := range b {
		if x != 0 {
			return false
		}
	}
	return true
}
