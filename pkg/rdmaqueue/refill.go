package rdmaqueue

import (
	"github.com/runZeroInc/rdmaqueue/pkg/transport"
)

// recvPosted is an internal gauge of outstanding receive work requests;
// it only ever moves up here and down in the Completion Pipeline when a
// RECV completes.
func (c *connection) recvPosted() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint32(len(c.incomingPending))
}

// belowLowWater reports whether the outstanding receive count has dropped
// under half the configured window size, the Recv-Refill Pipeline's
// suspension condition. The low-water mark is never less than 1: at
// WINDOW_SIZE=1, integer division would otherwise floor it to 0 and the
// pipeline would never fire, leaving no receive buffer ever posted.
func (c *connection) belowLowWater() bool {
	lowWater := uint64(c.cfg.WindowSize) / 2
	if lowWater < 1 {
		lowWater = 1
	}
	return uint64(c.recvPosted()) < lowWater
}

// pollRefill is one poll of the Recv-Refill Pipeline. Posting batches of
// WINDOW_SIZE (capped by remaining RECV_WRS headroom) amortizes both the
// verbs call and the peer credit grant it triggers.
func (c *connection) pollRefill() {
	if c.isClosed() || c.failure() != nil {
		return
	}
	if !c.belowLowWater() {
		return
	}

	posted := c.recvPosted()
	headroom := c.cfg.RecvWRs - posted
	if headroom == 0 {
		return
	}

	n := c.cfg.WindowSize
	if n > headroom {
		n = headroom
	}
	if n == 0 {
		return
	}

	buffers := make([]transport.RegisteredMemory, 0, n)
	for i := uint32(0); i < n; i++ {
		buf, err := c.pool.acquire()
		if err != nil {
			// Fail fast with PoolExhausted, but give back what we already
			// pulled so the pool isn't silently shrunk.
			for _, b := range buffers {
				c.pool.release(b)
			}
			c.poolExhaustions.Add(1)
			c.fail(err)
			return
		}
		buffers = append(buffers, buf)
	}

	items := make([]transport.RecvItem, 0, len(buffers))
	ids := make([]WorkID, 0, len(buffers))
	c.mu.Lock()
	for _, buf := range buffers {
		id := c.results.allocateID()
		c.incomingPending[id] = buf
		ids = append(ids, id)
		items = append(items, transport.RecvItem{WorkID: uint64(id), Memory: buf})
	}
	c.mu.Unlock()

	if err := c.qp.PostReceive(items); err != nil {
		c.mu.Lock()
		for _, id := range ids {
			delete(c.incomingPending, id)
		}
		c.mu.Unlock()
		for _, buf := range buffers {
			c.pool.release(buf)
		}
		c.fail(err)
		return
	}

	if err := c.ctl.publishCredit(uint64(len(buffers))); err != nil {
		c.fail(err)
	}
}
