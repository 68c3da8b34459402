package main

import (
	"context"
	"flag"
	"net"
	"os"

	"github.com/docker/docker/pkg/parsers/kernel"
	"github.com/sirupsen/logrus"

	"github.com/runZeroInc/rdmaqueue/pkg/rdmaqueue"
	"github.com/runZeroInc/rdmaqueue/pkg/transport"
	"github.com/runZeroInc/rdmaqueue/pkg/transport/loopback"
)

// logTCPDiagnostics reports the underlying socket's TCP_INFO if the queue's
// transport exposes it, so a stuck demo run can be told apart from a stuck
// credit protocol.
func logTCPDiagnostics(q *rdmaqueue.IoQueue) {
	diag, ok := q.QueuePair().(transport.TCPDiagnosable)
	if !ok {
		return
	}
	info, err := diag.TCPInfo()
	if err != nil {
		logrus.WithError(err).Debug("TCP_INFO unavailable")
		return
	}
	logrus.Infof("tcp state=%s rtt=%s", info.State, info.RTT)

	if ws, ok := diag.(interface{ WireStats() (loopback.WireStats, bool) }); ok {
		if stats, ok := ws.WireStats(); ok {
			logrus.Infof("wire tx=%dB rx=%dB", stats.TxBytes, stats.RxBytes)
		}
	}
}

func main() {
	mode := flag.String("mode", "", "client or server")
	addr := flag.String("addr", "127.0.0.1:18515", "address to bind (server) or connect to (client)")
	blocking := flag.Bool("blocking", true, "use blocking CM event mode")
	flag.Parse()

	if v, err := kernel.GetKernelVersion(); err != nil {
		logrus.WithError(err).Warn("could not determine kernel version")
	} else {
		logrus.Infof("running on kernel %s", v)
	}

	cfg := rdmaqueue.DefaultConfig()
	cfg.Blocking = *blocking

	ctx := context.Background()

	switch *mode {
	case "server":
		runServer(ctx, cfg, *addr)
	case "client":
		runClient(ctx, cfg, *addr)
	default:
		logrus.Fatal("mode must be 'client' or 'server'")
		os.Exit(2)
	}
}

func runServer(ctx context.Context, cfg rdmaqueue.Config, addr string) {
	cm := loopback.NewCommunicationManager(cfg.Blocking)
	q, err := rdmaqueue.Socket(cfg, cm)
	if err != nil {
		logrus.Fatalf("socket: %v", err)
	}
	if err := q.Bind(addr); err != nil {
		logrus.Fatalf("bind: %v", err)
	}
	if err := q.Listen(); err != nil {
		logrus.Fatalf("listen: %v", err)
	}

	conn, err := q.Accept(ctx)
	if err != nil {
		logrus.Fatalf("accept: %v", err)
	}
	defer conn.Close()
	logrus.WithField("conn", conn.ConnID()).Info("connected to client")

	logrus.Info("waiting to receive byte")
	token, err := conn.Pop()
	if err != nil {
		logrus.Fatalf("pop: %v", err)
	}
	result, err := conn.Wait(token)
	if err != nil {
		logrus.Fatalf("wait: %v", err)
	}
	logrus.Infof("server got: %d", result.Payload.Bytes()[0])
	logTCPDiagnostics(conn)
}

func runClient(ctx context.Context, cfg rdmaqueue.Config, addr string) {
	cm := loopback.NewCommunicationManager(cfg.Blocking)
	q, err := rdmaqueue.Socket(cfg, cm)
	if err != nil {
		logrus.Fatalf("socket: %v", err)
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		logrus.Fatalf("parse address: %v", err)
	}
	if err := q.Connect(ctx, host, port); err != nil {
		logrus.Fatalf("connect: %v", err)
	}
	defer q.Close()
	logrus.WithField("conn", q.ConnID()).Info("connected to server")

	logrus.Info("sending byte to server")
	buf, err := q.Malloc()
	if err != nil {
		logrus.Fatalf("malloc: %v", err)
	}
	buf.Bytes()[0] = 42

	token, err := q.Push(buf, 1)
	if err != nil {
		logrus.Fatalf("push: %v", err)
	}
	if _, err := q.Wait(token); err != nil {
		logrus.Fatalf("wait: %v", err)
	}
	if err := q.Free(buf); err != nil {
		logrus.Fatalf("free: %v", err)
	}
	logrus.Info("done")
	logTCPDiagnostics(q)
}
