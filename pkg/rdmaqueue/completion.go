package rdmaqueue

import (
	"errors"

	"github.com/runZeroInc/rdmaqueue/pkg/transport"
)

// pollCompletion is one poll of the Completion Pipeline. It
// drains whatever is currently buffered on the completion queue and routes
// each entry to its pending map. There is no separate recv-credit step:
// each RECV completion removes its work ID from incomingPending, which is
// what recvPosted() counts.
func (c *connection) pollCompletion() {
	if c.isClosed() {
		return
	}
	if c.failure() != nil {
		return
	}

	wcs, err := c.cq.Poll()
	if err != nil {
		if errors.Is(err, transport.ErrPeerClosed) {
			c.fail(ErrPeerClosed)
		} else {
			c.fail(err)
		}
		return
	}
	if len(wcs) == 0 {
		return
	}

	for _, wc := range wcs {
		if !wc.Success {
			c.fail(ErrUnsuccessfulCompletion)
			return
		}

		switch wc.Opcode {
		case transport.OpRecv:
			// Removing the work ID from incomingPending here is what
			// drives recvPosted() back down, which is what the Recv-Refill
			// Pipeline's low-water check observes.
			c.completeRecv(wc)
			c.recvCompletions.Add(1)
		case transport.OpSend:
			c.completeSend(wc)
			c.sendCompletions.Add(1)
		case transport.OpRDMAWrite, transport.OpRDMARead:
			// One-sided completions acknowledging our own control-flow
			// traffic; nothing further to route.
		default:
			c.fail(ErrUnknownOpcode)
			return
		}
	}
}

func (c *connection) completeRecv(wc transport.WorkCompletion) {
	id := WorkID(wc.WorkID)

	c.mu.Lock()
	buf, ok := c.incomingPending[id]
	if !ok {
		c.mu.Unlock()
		c.log.WithField("work_id", id).Error("rdmaqueue: RECV completion for unknown work ID")
		return
	}
	delete(c.incomingPending, id)

	cr := CompletedRequest{
		Opcode:  transport.OpRecv,
		Bytes:   wc.ByteLen,
		Payload: buf,
	}

	var token QueueToken
	if len(c.pendingPopTokens) > 0 {
		token = c.pendingPopTokens[0]
		c.pendingPopTokens = c.pendingPopTokens[1:]
		cr.Token = token
		c.mu.Unlock()
		c.results.complete(token.id, cr)
		return
	}

	// No pop token is waiting yet; hold the buffer in the bag until one
	// arrives; pops are order-agnostic with respect to push completions.
	c.completedPops = append(c.completedPops, cr)
	c.mu.Unlock()
}

func (c *connection) completeSend(wc transport.WorkCompletion) {
	id := WorkID(wc.WorkID)

	c.mu.Lock()
	buf, ok := c.outgoingPending[id]
	c.mu.Unlock()
	if !ok {
		c.log.WithField("work_id", id).Error("rdmaqueue: SEND completion for unknown work ID")
		return
	}

	c.mu.Lock()
	delete(c.outgoingPending, id)
	c.mu.Unlock()

	c.results.complete(id, CompletedRequest{
		Token:   QueueToken{id: id},
		Opcode:  transport.OpSend,
		Bytes:   wc.ByteLen,
		Payload: buf,
	})
}
