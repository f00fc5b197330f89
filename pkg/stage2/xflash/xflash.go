package xflash

import (
	"github.com/barnettlynn/flashkit/pkg/events"
	"github.com/barnettlynn/flashkit/pkg/stage2"
	"github.com/barnettlynn/flashkit/pkg/transport"
)

// Driver implements stage2.Driver over the XFlash magic-frame protocol.
type Driver struct {
	c          *conn
	sink       *events.Sink
	storage    stage2.StorageInfo
	partitions []stage2.Partition
}

// New binds a Driver to t. sink may be nil.
func New(t transport.Transport, sink *events.Sink) *Driver {
	return &Driver{c: newConn(t, sink), sink: sink}
}

func (d *Driver) Kind() stage2.Kind { return stage2.KindXFlash }

func (d *Driver) Close() error { return d.c.t.Close() }

func (d *Driver) progress(done, total int64, label string) {
	if d.sink != nil {
		d.sink.Progress(done, total, label)
	}
}
