package rdmaqueue

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/runZeroInc/rdmaqueue/pkg/metrics"
	"github.com/runZeroInc/rdmaqueue/pkg/transport"
)

// IoQueue is the user-facing socket-like handle: socket/bind/listen/
// accept/connect, malloc/free, push/pop, and wait/wait_any. One
// IoQueue wraps exactly one CM identifier and, once connected, exactly one
// connection engine.
type IoQueue struct {
	cfg       Config
	scheduler *Scheduler
	cm        transport.CommunicationManager

	conn *connection
	log  *logrus.Entry
}

// Socket allocates a CM identifier and returns a queue descriptor not yet
// bound, listening, or connected.
func Socket(cfg Config, cm transport.CommunicationManager) (*IoQueue, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &IoQueue{
		cfg:       cfg,
		scheduler: newScheduler(),
		cm:        cm,
		log:       logrus.WithField("component", "rdmaqueue"),
	}, nil
}

// Bind associates the queue descriptor with a local address.
func (q *IoQueue) Bind(addr string) error {
	return q.cm.Bind(addr)
}

// Listen begins listening for incoming connection requests.
func (q *IoQueue) Listen() error {
	return q.cm.Listen()
}

// Accept blocks (subject to ctx) for one incoming connection, completes
// the private-data exchange and CM event sequence, and returns a new,
// fully established IoQueue for it.
func (q *IoQueue) Accept(ctx context.Context) (*IoQueue, error) {
	peerCM, peerData, err := q.cm.AcceptConnection(ctx)
	if err != nil {
		return nil, fmt.Errorf("rdmaqueue: accept: %w", err)
	}

	child, err := Socket(q.cfg, peerCM)
	if err != nil {
		return nil, err
	}

	if err := child.establish(ctx, peerCM, true, peerData); err != nil {
		return nil, err
	}
	return child, nil
}

// Connect resolves node/service and establishes an outbound connection,
// exchanging credit-grant-inbox private data in the process.
func (q *IoQueue) Connect(ctx context.Context, node, service string) error {
	if err := q.cm.ResolveAddress(ctx, node, service); err != nil {
		return fmt.Errorf("rdmaqueue: resolve address: %w", err)
	}
	if err := q.cm.ResolveRoute(); err != nil {
		return fmt.Errorf("rdmaqueue: resolve route: %w", err)
	}
	return q.establish(ctx, q.cm, false, transport.ConnectionPrivateData{})
}

// establish drives the shared tail of accept/connect: allocate the
// protection domain and completion queue, exchange private data with the
// peer (AcceptWithData when accepting, ConnectWithData when initiating),
// create the queue pair, wait for EventEstablished, and build the
// connection engine.
func (q *IoQueue) establish(ctx context.Context, cm transport.CommunicationManager, accepting bool, peerData transport.ConnectionPrivateData) error {
	pd, err := cm.AllocateProtectionDomain()
	if err != nil {
		return fmt.Errorf("rdmaqueue: allocate protection domain: %w", err)
	}
	cq, err := cm.CreateCQ(q.cfg.CQElements)
	if err != nil {
		return fmt.Errorf("rdmaqueue: create CQ: %w", err)
	}

	// The private-data exchange is what actually establishes the
	// underlying connection the simulated queue pair rides on, so it must
	// happen before CreateQP, not after: a real adapter embeds the QP
	// number in the connect request, but here the QP wraps the socket the
	// exchange produces.
	ourData := transport.ConnectionPrivateData{}
	if accepting {
		if err := cm.AcceptWithData(ourData); err != nil {
			return fmt.Errorf("rdmaqueue: accept with data: %w", err)
		}
	} else {
		if err := cm.ConnectWithData(ourData); err != nil {
			return fmt.Errorf("rdmaqueue: connect with data: %w", err)
		}
	}

	qp, err := cm.CreateQP(pd, cq)
	if err != nil {
		return fmt.Errorf("rdmaqueue: create QP: %w", err)
	}

	if err := q.awaitEstablished(ctx, cm); err != nil {
		return err
	}
	_ = peerData // exchanged during CM setup; the credit protocol itself rides the queue pair once established.

	conn, err := newConnection(0, q.cfg, cm, pd, cq, qp)
	if err != nil {
		return err
	}
	q.scheduler.register(conn)
	q.conn = conn

	// Seed the receive window immediately so the peer has credit to send
	// into before the first user pop is ever issued.
	conn.pollOnce()
	return nil
}

// awaitEstablished drains CM events until EventEstablished arrives. In
// non-blocking mode GetCMEvent returns transport.ErrNoEvent between
// events; that is not a failure here, just nothing to do yet.
func (q *IoQueue) awaitEstablished(ctx context.Context, cm transport.CommunicationManager) error {
	for {
		ev, err := cm.GetCMEvent(ctx)
		if err != nil {
			if errors.Is(err, transport.ErrNoEvent) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				runtime.Gosched()
				continue
			}
			return fmt.Errorf("rdmaqueue: awaiting established event: %w", err)
		}
		if ev.Kind == transport.EventEstablished {
			return nil
		}
	}
}

// Malloc obtains a buffer from the connection's memory pool.
func (q *IoQueue) Malloc() (transport.RegisteredMemory, error) {
	if q.conn == nil {
		return nil, ErrNotConnected
	}
	buf, err := q.conn.pool.acquire()
	if err != nil {
		q.conn.poolExhaustions.Add(1)
	}
	return buf, err
}

// Free returns a buffer to the pool.
func (q *IoQueue) Free(buf transport.RegisteredMemory) error {
	if q.conn == nil {
		return ErrNotConnected
	}
	q.conn.pool.release(buf)
	return nil
}

// Push submits buf (its first length bytes) for send and polls the Push
// Pipeline once. The engine retains buf until the returned token is
// awaited.
func (q *IoQueue) Push(buf transport.RegisteredMemory, length uint32) (QueueToken, error) {
	if q.conn == nil {
		return QueueToken{}, ErrNotConnected
	}
	if err := q.conn.failure(); err != nil {
		return QueueToken{}, err
	}
	if length > q.cfg.BufferSize {
		return QueueToken{}, fmt.Errorf("rdmaqueue: push length %d exceeds BufferSize %d", length, q.cfg.BufferSize)
	}

	id := q.conn.results.allocateID()
	if err := q.conn.results.track(id, buf, transport.OpSend); err != nil {
		return QueueToken{}, err
	}
	q.conn.enqueuePush(id, buf, length)
	q.conn.pollPush()
	return QueueToken{id: id}, nil
}

// Pop registers interest in the next received buffer. It is pure
// bookkeeping: no I/O happens at Pop time.
func (q *IoQueue) Pop() (QueueToken, error) {
	if q.conn == nil {
		return QueueToken{}, ErrNotConnected
	}
	if err := q.conn.failure(); err != nil {
		return QueueToken{}, err
	}

	id := q.conn.results.allocateID()
	token := QueueToken{id: id}

	q.conn.mu.Lock()
	if len(q.conn.completedPops) > 0 {
		cr := q.conn.completedPops[0]
		q.conn.completedPops = q.conn.completedPops[1:]
		cr.Token = token
		q.conn.mu.Unlock()

		if err := q.conn.results.track(id, nil, transport.OpRecv); err != nil {
			return QueueToken{}, err
		}
		q.conn.results.complete(id, cr)
		return token, nil
	}

	if err := q.conn.results.track(id, nil, transport.OpRecv); err != nil {
		q.conn.mu.Unlock()
		return QueueToken{}, err
	}
	q.conn.pendingPopTokens = append(q.conn.pendingPopTokens, token)
	q.conn.mu.Unlock()

	return token, nil
}

// Wait blocks until token's operation completes.
func (q *IoQueue) Wait(token QueueToken) (CompletedRequest, error) {
	if q.conn == nil {
		return CompletedRequest{}, ErrNotConnected
	}
	return q.conn.waitToken(token.id)
}

// WaitAny blocks until any of tokens completes, returning its index and
// result.
func (q *IoQueue) WaitAny(tokens []QueueToken) (int, CompletedRequest, error) {
	if q.conn == nil {
		return -1, CompletedRequest{}, ErrNotConnected
	}
	ids := make([]WorkID, len(tokens))
	for i, t := range tokens {
		ids[i] = t.id
	}
	return q.conn.waitAny(ids)
}

// Disconnect initiates CM teardown for the connection without releasing
// local engine resources; call Close to release them.
func (q *IoQueue) Disconnect() error {
	if q.conn == nil {
		return ErrNotConnected
	}
	return q.conn.cm.Disconnect()
}

// Stats snapshots this connection's counters for pkg/metrics.
func (q *IoQueue) Stats() metrics.ConnStats {
	if q.conn == nil {
		return metrics.ConnStats{}
	}
	c := q.conn
	inUse, total := c.pool.occupancy()
	sendCreditsInUse := uint64(0)
	if remaining := c.ctl.remainingSendCredits(); remaining < c.ctl.windowSize {
		sendCreditsInUse = c.ctl.windowSize - remaining
	}
	return metrics.ConnStats{
		PoolInUse:         inUse,
		PoolTotal:         total,
		SendCreditsInUse:  sendCreditsInUse,
		SendWindow:        c.ctl.windowSize,
		RecvPosted:        c.recvPosted(),
		RecvWRs:           c.cfg.RecvWRs,
		SendCompletions:   c.sendCompletions.Load(),
		RecvCompletions:   c.recvCompletions.Load(),
		PoolExhaustions:   c.poolExhaustions.Load(),
		WaitBlockedMicros: c.waitBlockedMicros.Load(),
	}
}

// ConnID returns this connection's globally unique, sortable identifier,
// suitable as a Prometheus label value or a log correlation key. It is
// empty until the queue is established.
func (q *IoQueue) ConnID() string {
	if q.conn == nil {
		return ""
	}
	return q.conn.id.String()
}

// QueuePair exposes the underlying transport.QueuePair for callers that
// need transport-specific diagnostics (see transport.TCPDiagnosable); it
// returns nil until the queue is established.
func (q *IoQueue) QueuePair() transport.QueuePair {
	if q.conn == nil {
		return nil
	}
	return q.conn.qp
}

// RegisterMetrics adds this connection to collector under key, with the
// given label values, so it is scraped until collector.Remove(key) is
// called.
func (q *IoQueue) RegisterMetrics(collector *metrics.EngineCollector, key uint64, labels []string) {
	collector.Add(key, labels, q.Stats)
}

// Close tears down the connection engine's resources in the mandated
// order: buffers, then completion queue, then queue pair, then protection
// domain.
func (q *IoQueue) Close() error {
	if q.conn == nil {
		return nil
	}
	q.scheduler.unregister(q.conn.handle)
	return q.conn.teardown()
}
