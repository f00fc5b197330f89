package bsl

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/barnettlynn/flashkit/pkg/catalog"
)

// ChangeBaudRate sends CHANGE_BAUDRATE(new_rate) → OK → sleep(100ms) →
// transport.Retune(new_rate), spec.md §4.7.
func (d *Driver) ChangeBaudRate(ctx context.Context, newRate uint32) error {
	var params [4]byte
	binary.LittleEndian.PutUint32(params[:], newRate)
	if err := d.command(ctx, catalog.BSLChangeBaudrate, params[:]); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	return d.t.Retune(int(newRate))
}
