package rdmaqueue

import (
	"github.com/runZeroInc/rdmaqueue/pkg/transport"
)

// pollPush is one poll of the Push Pipeline. It is always
// non-blocking: if there is nothing to post, or no credit to post with, it
// returns immediately so the scheduler can move on to another pipeline or
// return control to the caller.
func (c *connection) pollPush() {
	if c.isClosed() || c.failure() != nil {
		return
	}

	c.mu.Lock()
	if len(c.pendingPushQueue) == 0 {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	available := c.ctl.remainingSendCredits()
	if available == 0 {
		// Consult the peer's grant; adopt it as the new credit count only
		// on the zero-to-nonzero transition, not on every poll.
		available = c.ctl.acknowledgePeerGrant()
		if available == 0 {
			return
		}
	}

	c.mu.Lock()
	n := uint64(len(c.pendingPushQueue))
	if n == 0 {
		c.mu.Unlock()
		return
	}
	if n > available {
		n = available
	}

	batch := c.pendingPushQueue[:n]
	c.pendingPushQueue = c.pendingPushQueue[n:]

	items := make([]transport.SendItem, 0, len(batch))
	for _, req := range batch {
		if _, exists := c.outgoingPending[req.id]; exists {
			c.mu.Unlock()
			c.fail(ErrDuplicateWorkID)
			return
		}
		c.outgoingPending[req.id] = req.memory
		items = append(items, transport.SendItem{
			WorkID: uint64(req.id),
			Memory: req.memory,
			Length: req.length,
		})
	}
	c.mu.Unlock()

	if err := c.qp.PostSend(items); err != nil {
		c.fail(err)
		return
	}
	c.ctl.consumeSendCredits(uint64(len(items)))
}

// enqueuePush appends one push request to the pending queue for the next
// Push Pipeline poll; it does not post anything itself.
func (c *connection) enqueuePush(id WorkID, memory transport.RegisteredMemory, length uint32) {
	c.mu.Lock()
	c.pendingPushQueue = append(c.pendingPushQueue, pushRequest{id: id, memory: memory, length: length})
	c.mu.Unlock()
}
