package loopback

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/higebu/netfd"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/runZeroInc/rdmaqueue/pkg/tcpinfo"
	"github.com/runZeroInc/rdmaqueue/pkg/transport"
)

// Wire framing over the loopback TCP connection. A data frame carries one
// posted send's payload; a credit frame carries a one-sided credit-grant
// write. Both ride the same ordered stream, exactly as RDMA RC traffic and
// RDMA_WRITE traffic share one queue pair's wire in the real protocol.
const (
	frameData   byte = 1
	frameCredit byte = 2
)

type recvSlot struct {
	workID uint64
	memory transport.RegisteredMemory
}

type completionQueue struct {
	ch     chan transport.WorkCompletion
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	peerErr error
}

func newCompletionQueue(depth uint32) *completionQueue {
	if depth == 0 {
		depth = 1
	}
	return &completionQueue{
		ch:     make(chan transport.WorkCompletion, depth*4),
		closed: make(chan struct{}),
	}
}

func (c *completionQueue) push(wc transport.WorkCompletion) {
	select {
	case c.ch <- wc:
	case <-c.closed:
	}
}

// Poll drains whatever completions are currently buffered without
// blocking, matching the engine's non-destructive, non-blocking CQ poll.
// Once the reader has observed the peer disconnect, Poll first drains any
// completions still buffered and only then starts returning
// transport.ErrPeerClosed, so nothing already delivered is lost.
func (c *completionQueue) Poll() ([]transport.WorkCompletion, error) {
	var out []transport.WorkCompletion
	for {
		select {
		case wc := <-c.ch:
			out = append(out, wc)
		default:
			if len(out) > 0 {
				return out, nil
			}
			c.mu.Lock()
			err := c.peerErr
			c.mu.Unlock()
			return nil, err
		}
	}
}

// failPeer records that the peer end of the connection is gone, so the
// next drained Poll call reports transport.ErrPeerClosed. Only the first
// call has any effect.
func (c *completionQueue) failPeer(err error) {
	c.mu.Lock()
	if c.peerErr == nil {
		c.peerErr = err
	}
	c.mu.Unlock()
}

func (c *completionQueue) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// NewCompletionQueue constructs a completion queue with room for four times
// depth work completions before PostSend/reader backpressure kicks in.
func NewCompletionQueue(depth uint32) transport.CompletionQueue {
	return newCompletionQueue(depth)
}

type queuePair struct {
	conn net.Conn
	cq   *completionQueue

	writeMu sync.Mutex

	recvMu    sync.Mutex
	recvQueue []recvSlot

	peerGrant atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}

	log *logrus.Entry
}

// NewQueuePair wraps conn (an established loopback TCP connection) and cq
// (where posted work surfaces as completions), starting the background
// reader that plays the role of the adapter delivering incoming wire
// traffic into posted receive buffers.
func NewQueuePair(conn net.Conn, cq transport.CompletionQueue) transport.QueuePair {
	q := &queuePair{
		conn: wrapWireConn(conn),
		cq:   cq.(*completionQueue),
		done: make(chan struct{}),
		log:  logrus.WithField("component", "loopback.queuepair"),
	}
	tuneSocketBuffers(conn)
	go q.readLoop()
	return q
}

// tuneSocketBuffers sizes the kernel socket buffers on the underlying fd to
// emulate an adapter's fixed receive-WR capacity. The wider size is only
// worth asking for on kernels new enough to actually grant it instead of
// silently clamping to a much smaller default.
func tuneSocketBuffers(conn net.Conn) {
	fd := netfd.GetFdFromConn(conn)
	if fd <= 0 {
		return
	}
	wantBuf := 1 << 17
	if detectCapabilities() {
		wantBuf = 1 << 20
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, wantBuf); err != nil {
		logrus.WithError(err).Debug("loopback: SO_RCVBUF tuning failed, continuing with default")
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, wantBuf); err != nil {
		logrus.WithError(err).Debug("loopback: SO_SNDBUF tuning failed, continuing with default")
	}
}

func (q *queuePair) PostSend(items []transport.SendItem) error {
	q.writeMu.Lock()
	defer q.writeMu.Unlock()

	for _, item := range items {
		payload := item.Memory.Bytes()[:item.Length]
		hdr := make([]byte, 5)
		hdr[0] = frameData
		binary.BigEndian.PutUint32(hdr[1:], item.Length)
		if _, err := q.conn.Write(hdr); err != nil {
			return fmt.Errorf("loopback: post send header: %w", err)
		}
		if len(payload) > 0 {
			if _, err := q.conn.Write(payload); err != nil {
				return fmt.Errorf("loopback: post send payload: %w", err)
			}
		}
		q.cq.push(transport.WorkCompletion{
			WorkID:  item.WorkID,
			Opcode:  transport.OpSend,
			Success: true,
			ByteLen: item.Length,
		})
	}
	return nil
}

func (q *queuePair) PostReceive(items []transport.RecvItem) error {
	q.recvMu.Lock()
	for _, item := range items {
		q.recvQueue = append(q.recvQueue, recvSlot{workID: item.WorkID, memory: item.Memory})
	}
	q.recvMu.Unlock()
	return nil
}

func (q *queuePair) PublishCreditGrant(total uint64) error {
	q.writeMu.Lock()
	defer q.writeMu.Unlock()

	frame := make([]byte, 9)
	frame[0] = frameCredit
	binary.BigEndian.PutUint64(frame[1:], total)
	if _, err := q.conn.Write(frame); err != nil {
		return fmt.Errorf("loopback: publish credit grant: %w", err)
	}
	// One-sided writes complete locally; the peer's CQ never sees them.
	q.cq.push(transport.WorkCompletion{Opcode: transport.OpRDMAWrite, Success: true})
	return nil
}

func (q *queuePair) PeerCreditGrant() uint64 {
	return q.peerGrant.Load()
}

// TCPInfo reads the kernel's current TCP_INFO socket option for the
// connection backing this queue pair. It has nothing to do with posting or
// polling work; it exists so a caller can tell a stalled credit protocol
// from a stalled TCP connection underneath it, since the loopback
// transport rides a real socket rather than adapter hardware.
func (q *queuePair) TCPInfo() (*tcpinfo.Info, error) {
	wc, ok := q.conn.(*wireConn)
	if !ok {
		return nil, fmt.Errorf("loopback: connection does not support TCP_INFO")
	}
	info := wc.snapshotTCPInfo()
	if info == nil {
		return nil, fmt.Errorf("loopback: TCP_INFO unavailable on this platform")
	}
	return info, nil
}

// WireStats reports byte counters and open/close TCP_INFO snapshots for the
// raw socket underneath this queue pair.
func (q *queuePair) WireStats() (WireStats, bool) {
	wc, ok := q.conn.(*wireConn)
	if !ok {
		return WireStats{}, false
	}
	return wc.stats(), true
}

func (q *queuePair) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return q.conn.Close()
}

// readLoop plays the part of the RDMA adapter: it drains wire traffic in
// order and either matches a data frame against the oldest posted receive
// buffer, or applies a credit frame directly to the peer-grant cell.
func (q *queuePair) readLoop() {
	defer func() {
		if !q.isClosing() {
			q.cq.failPeer(transport.ErrPeerClosed)
		}
	}()

	hdr := make([]byte, 9)
	for {
		tag, err := q.readTag(hdr[:1])
		if err != nil {
			if !q.isClosing() {
				q.log.WithError(err).Debug("loopback: read loop terminating")
			}
			return
		}

		switch tag {
		case frameData:
			if _, err := io.ReadFull(q.conn, hdr[1:5]); err != nil {
				return
			}
			length := binary.BigEndian.Uint32(hdr[1:5])
			slot, ok := q.popRecvSlot()
			if !ok {
				// Protocol violation: sender exceeded granted credits. The
				// engine's credit discipline makes this unreachable in
				// practice; drain and drop the payload, log it, and keep
				// reading rather than corrupting state.
				if _, err := io.CopyN(io.Discard, q.conn, int64(length)); err != nil {
					return
				}
				q.log.Error("loopback: received data frame with no posted receive buffer")
				continue
			}
			buf := slot.memory.Bytes()
			if length > uint32(len(buf)) {
				length = uint32(len(buf))
			}
			if length > 0 {
				if _, err := io.ReadFull(q.conn, buf[:length]); err != nil {
					return
				}
			}
			q.cq.push(transport.WorkCompletion{
				WorkID:  slot.workID,
				Opcode:  transport.OpRecv,
				Success: true,
				ByteLen: length,
			})
		case frameCredit:
			if _, err := io.ReadFull(q.conn, hdr[1:9]); err != nil {
				return
			}
			q.peerGrant.Store(binary.BigEndian.Uint64(hdr[1:9]))
		default:
			q.log.WithField("tag", tag).Error("loopback: unknown frame tag on wire")
			return
		}
	}
}

func (q *queuePair) readTag(buf []byte) (byte, error) {
	if _, err := io.ReadFull(q.conn, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (q *queuePair) popRecvSlot() (recvSlot, bool) {
	q.recvMu.Lock()
	defer q.recvMu.Unlock()
	if len(q.recvQueue) == 0 {
		return recvSlot{}, false
	}
	slot := q.recvQueue[0]
	q.recvQueue = q.recvQueue[1:]
	return slot, true
}

func (q *queuePair) isClosing() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}
