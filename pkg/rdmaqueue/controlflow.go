package rdmaqueue

import (
	"sync"
	"sync/atomic"

	"github.com/runZeroInc/rdmaqueue/pkg/transport"
)

// controlFlow tracks the local send-credit counter and the peer-granted
// receive credits for one connection.
//
// The peer's credit-grant inbox cell (transport.QueuePair.PeerCreditGrant)
// holds a monotonically increasing cumulative count of every receive
// buffer the peer has ever posted, not a delta. RDMA_WRITE overwrites the
// cell rather than accumulating into it, so two grants published before
// the previous one is acknowledged would otherwise clobber each other; a
// cumulative counter makes every published value independently
// reconstructible as "total minus last acknowledged total", with no
// dependence on how many grants landed in between polls.
// acknowledgePeerGrant advances lastAckedPeerTotal to the value it
// consumed and adds the difference onto the local send-credit counter.
type controlFlow struct {
	qp transport.QueuePair

	// credits is the local send-credit counter: how many sends the engine
	// is currently allowed to post. It only ever decreases on
	// consumeSendCredits and increases on acknowledgePeerGrant.
	credits atomic.Uint64

	mu                 sync.Mutex
	lastAckedPeerTotal uint64

	// ourGrantTotal is our own cumulative count of receive buffers ever
	// posted, published to the peer via PublishCreditGrant.
	ourGrantTotal atomic.Uint64

	windowSize uint64
}

func newControlFlow(qp transport.QueuePair, windowSize uint32) *controlFlow {
	return &controlFlow{qp: qp, windowSize: uint64(windowSize)}
}

// remainingSendCredits is the current known credit count toward the peer.
func (c *controlFlow) remainingSendCredits() uint64 {
	return c.credits.Load()
}

// consumeSendCredits must be called with n equal to the number of sends
// just posted; it is a programming error to call it with more than
// remainingSendCredits() currently allows.
func (c *controlFlow) consumeSendCredits(n uint64) {
	for {
		cur := c.credits.Load()
		next := uint64(0)
		if cur > n {
			next = cur - n
		}
		if c.credits.CompareAndSwap(cur, next) {
			return
		}
	}
}

// peerGrantedCredits non-destructively reads how many additional credits
// the peer has granted since the last acknowledgePeerGrant.
func (c *controlFlow) peerGrantedCredits() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.qp.PeerCreditGrant()
	if total <= c.lastAckedPeerTotal {
		return 0
	}
	return total - c.lastAckedPeerTotal
}

// acknowledgePeerGrant logically zeroes the inbox cell by advancing the
// local watermark to the cell's current value, crediting the difference
// onto the send-credit counter. Returns the amount just credited.
func (c *controlFlow) acknowledgePeerGrant() uint64 {
	c.mu.Lock()
	total := c.qp.PeerCreditGrant()
	granted := uint64(0)
	if total > c.lastAckedPeerTotal {
		granted = total - c.lastAckedPeerTotal
		c.lastAckedPeerTotal = total
	}
	c.mu.Unlock()

	if granted > 0 {
		c.credits.Add(granted)
	}
	return granted
}

// publishCredit bumps our own cumulative grant total by n (receive
// buffers newly posted) and publishes the new total to the peer.
func (c *controlFlow) publishCredit(n uint64) error {
	total := c.ourGrantTotal.Add(n)
	return c.qp.PublishCreditGrant(total)
}
