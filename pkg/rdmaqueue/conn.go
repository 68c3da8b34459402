package rdmaqueue

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/runZeroInc/rdmaqueue/pkg/transport"
)

// TaskHandle identifies one connection's engine within a Scheduler.
type TaskHandle uint64

// connection is the per-connection context: the pool, pending maps,
// control-flow counters and pipeline state every pipeline operates on.
// Every mutation happens inside a short, non-blocking poll call, so a
// plain mutex held only for the duration of that call is enough; nothing
// here ever blocks on I/O while holding it.
type connection struct {
	handle TaskHandle
	id     xid.ID
	cfg    Config

	cm  transport.CommunicationManager
	pd  transport.ProtectionDomain
	cq  transport.CompletionQueue
	qp  transport.QueuePair
	ctl *controlFlow
	pool *bufferPool

	results *resultStore

	mu sync.Mutex

	// outgoingPending/incomingPending map work IDs to the buffer pinned by
	// that outstanding send/receive.
	outgoingPending map[WorkID]transport.RegisteredMemory
	incomingPending map[WorkID]transport.RegisteredMemory

	// completedPops is the ordered sequence of received buffers awaiting a
	// pop token to claim them; it is a bag, not keyed by work ID.
	completedPops []CompletedRequest

	// pendingPushQueue holds push requests the Push Pipeline has not yet
	// had credit to post.
	pendingPushQueue []pushRequest

	// pendingPopTokens holds pop tokens issued before a received buffer was
	// available to satisfy them.
	pendingPopTokens []QueueToken

	closed bool
	fatal  error

	// Counters surfaced to pkg/metrics; incremented from the pipelines,
	// never read there.
	sendCompletions   atomic.Uint64
	recvCompletions   atomic.Uint64
	poolExhaustions   atomic.Uint64
	waitBlockedMicros atomic.Uint64

	log *logrus.Entry
}

type pushRequest struct {
	id     WorkID
	memory transport.RegisteredMemory
	length uint32
}

func newConnection(handle TaskHandle, cfg Config, cm transport.CommunicationManager, pd transport.ProtectionDomain, cq transport.CompletionQueue, qp transport.QueuePair) (*connection, error) {
	pool, err := newBufferPool(pd, cfg.PoolBuffers, cfg.BufferSize)
	if err != nil {
		return nil, fmt.Errorf("rdmaqueue: allocate buffer pool: %w", err)
	}

	id := xid.New()
	c := &connection{
		handle:          handle,
		id:              id,
		cfg:             cfg,
		cm:              cm,
		pd:              pd,
		cq:              cq,
		qp:              qp,
		ctl:             newControlFlow(qp, cfg.WindowSize),
		pool:            pool,
		results:         newResultStore(),
		outgoingPending: make(map[WorkID]transport.RegisteredMemory),
		incomingPending: make(map[WorkID]transport.RegisteredMemory),
		log:             logrus.WithField("conn", id.String()),
	}
	return c, nil
}

// fail marks the connection fail-stopped: every pipeline poll after this
// becomes a no-op and user operations observe ErrPeerClosed or the
// recorded fatal error: the engine is fail-stop per connection.
func (c *connection) fail(err error) {
	c.mu.Lock()
	if c.fatal == nil {
		c.fatal = err
		c.log.WithError(err).Error("connection entering fail-stop")
	}
	c.mu.Unlock()
}

func (c *connection) failure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fatal
}

// teardown releases connection resources in the hard-required order:
// buffers (the pool, which owns the registered region) before the
// completion queue, before the queue pair, before the protection domain.
func (c *connection) teardown() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	record(c.pool.close())
	record(c.cq.Close())
	record(c.qp.Close())
	record(c.pd.Close())
	return firstErr
}

func (c *connection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
