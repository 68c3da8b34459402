package loopback

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/runZeroInc/rdmaqueue/pkg/tcpinfo"
)

// WireStats is a point-in-time snapshot of the raw socket a queue pair
// simulates its RDMA traffic over: byte counters plus TCP_INFO captured at
// open and (once closed) at close, so a caller can tell whether a stall
// happened in the credit protocol or in the TCP connection underneath it.
type WireStats struct {
	OpenedAt   time.Time
	ClosedAt   time.Time
	TxBytes    uint64
	RxBytes    uint64
	OpenedInfo *tcpinfo.Info
	ClosedInfo *tcpinfo.Info
}

// wireConn wraps the loopback TCP connection to count bytes and capture
// TCP_INFO at open/close, without altering read/write semantics.
type wireConn struct {
	net.Conn

	txBytes atomic.Uint64
	rxBytes atomic.Uint64

	openedAt time.Time

	mu         sync.Mutex
	closedAt   time.Time
	openedInfo *tcpinfo.Info
	closedInfo *tcpinfo.Info
}

func wrapWireConn(conn net.Conn) *wireConn {
	w := &wireConn{Conn: conn, openedAt: time.Now()}
	w.openedInfo = w.snapshotTCPInfo()
	return w
}

func (w *wireConn) snapshotTCPInfo() *tcpinfo.Info {
	if !tcpinfo.Supported() {
		return nil
	}
	tcpConn, ok := w.Conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	rawConn, err := tcpConn.SyscallConn()
	if err != nil {
		return nil
	}
	var info *tcpinfo.Info
	_ = rawConn.Control(func(fd uintptr) {
		sys, err := tcpinfo.GetTCPInfo(fd)
		if err == nil {
			info = sys.ToInfo()
		}
	})
	return info
}

func (w *wireConn) Read(b []byte) (int, error) {
	n, err := w.Conn.Read(b)
	if n > 0 {
		w.rxBytes.Add(uint64(n))
	}
	return n, err
}

func (w *wireConn) Write(b []byte) (int, error) {
	n, err := w.Conn.Write(b)
	if n > 0 {
		w.txBytes.Add(uint64(n))
	}
	return n, err
}

func (w *wireConn) Close() error {
	w.mu.Lock()
	if w.closedAt.IsZero() {
		w.closedAt = time.Now()
		w.closedInfo = w.snapshotTCPInfo()
	}
	w.mu.Unlock()
	return w.Conn.Close()
}

func (w *wireConn) stats() WireStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WireStats{
		OpenedAt:   w.openedAt,
		ClosedAt:   w.closedAt,
		TxBytes:    w.txBytes.Load(),
		RxBytes:    w.rxBytes.Load(),
		OpenedInfo: w.openedInfo,
		ClosedInfo: w.closedInfo,
	}
}
