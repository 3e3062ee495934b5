package ftpfetch

import (
	"context"
	"io"

	"github.com/crawlkit/ftpfetch/wire"
)

// acquiredData is the result holder the checkout step fills in, so the
// cleanup path can inspect exactly what was acquired regardless of where
// the cycle failed.
type acquiredData struct {
	conn *Conn
}

// dataTransfer coordinates the data channel for exactly one command/reply
// cycle: negotiate the passive address, check the data connection out of
// the pool, attach the optional recorder observer, drive the streamed read
// into the sink, and guarantee release.
type dataTransfer struct {
	pools     *PoolSet
	commander *wire.Commander
	recorder  Recorder
}

// execute runs one cycle and returns the final reply.
//
// Once the data connection is acquired it is discarded on every outcome;
// a negotiation failure before acquisition releases nothing. The observer
// is always detached before returning. Partially written sink content is
// left intact for the caller to reset or discard.
func (d *dataTransfer) execute(ctx context.Context, cmd wire.Command, sink io.Writer) (wire.Reply, error) {
	var got acquiredData
	var detach func()

	defer func() {
		if detach != nil {
			detach()
		}
		if got.conn != nil {
			got.conn.Discard()
		}
	}()

	addr, err := d.commander.NegotiatePassive(ctx)
	if err != nil {
		return wire.Reply{}, err
	}

	if err := d.checkOut(ctx, addr, &got); err != nil {
		return wire.Reply{}, err
	}

	stream := wire.NewDataStream(got.conn.netConn)
	if d.recorder != nil {
		detach = stream.Observe(d.recorder.ResponseData)
	}

	return d.commander.Stream(ctx, cmd, sink, stream)
}

func (d *dataTransfer) checkOut(ctx context.Context, addr string, got *acquiredData) error {
	conn, err := d.pools.CheckOut(ctx, addr, RoleData)
	if err != nil {
		return err
	}
	got.conn = conn
	return nil
}
