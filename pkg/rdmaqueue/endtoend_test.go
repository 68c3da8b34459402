package rdmaqueue

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/runZeroInc/rdmaqueue/pkg/transport"
	"github.com/runZeroInc/rdmaqueue/pkg/transport/loopback"
)

// dial establishes one loopback-backed client/server pair under cfg and
// returns both ends, ready for Push/Pop/Wait. Callers must Close both.
func dial(t *testing.T, cfg Config, addr string) (server, client *IoQueue) {
	t.Helper()

	serverCM := loopback.NewCommunicationManager(cfg.Blocking)
	serverQ, err := Socket(cfg, serverCM)
	assert.NilError(t, err)
	assert.NilError(t, serverQ.Bind(addr))
	assert.NilError(t, serverQ.Listen())

	type acceptResult struct {
		conn *IoQueue
		err  error
	}
	accepted := make(chan acceptResult, 1)
	go func() {
		c, err := serverQ.Accept(context.Background())
		accepted <- acceptResult{c, err}
	}()

	clientCM := loopback.NewCommunicationManager(cfg.Blocking)
	clientQ, err := Socket(cfg, clientCM)
	assert.NilError(t, err)

	host, port, err := net.SplitHostPort(addr)
	assert.NilError(t, err)
	assert.NilError(t, clientQ.Connect(context.Background(), host, port))

	select {
	case r := <-accepted:
		assert.NilError(t, r.err)
		return r.conn, clientQ
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for accept")
		return nil, nil
	}
}

func TestEndToEndSingleByteRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferSize = 1
	server, client := dial(t, cfg, "127.0.0.1:18601")
	defer server.Close()
	defer client.Close()

	buf, err := client.Malloc()
	assert.NilError(t, err)
	buf.Bytes()[0] = 42

	pushToken, err := client.Push(buf, 1)
	assert.NilError(t, err)
	_, err = client.Wait(pushToken)
	assert.NilError(t, err)
	assert.NilError(t, client.Free(buf))

	popToken, err := server.Pop()
	assert.NilError(t, err)
	result, err := server.Wait(popToken)
	assert.NilError(t, err)
	assert.Equal(t, result.Bytes, uint32(1))
	assert.Equal(t, result.Payload.Bytes()[0], byte(42))
}

func TestEndToEndPingPong1024(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferSize = 1
	server, client := dial(t, cfg, "127.0.0.1:18602")
	defer server.Close()
	defer client.Close()

	const n = 1024
	for i := 0; i < n; i++ {
		want := byte(i % 256)

		buf, err := client.Malloc()
		assert.NilError(t, err)
		buf.Bytes()[0] = want

		pushToken, err := client.Push(buf, 1)
		assert.NilError(t, err)
		_, err = client.Wait(pushToken)
		assert.NilError(t, err)
		assert.NilError(t, client.Free(buf))

		popToken, err := server.Pop()
		assert.NilError(t, err)
		result, err := server.Wait(popToken)
		assert.NilError(t, err)
		assert.Equal(t, result.Payload.Bytes()[0], want)

		echoToken, err := server.Push(result.Payload, 1)
		assert.NilError(t, err)
		_, err = server.Wait(echoToken)
		assert.NilError(t, err)
		assert.NilError(t, server.Free(result.Payload))

		clientPop, err := client.Pop()
		assert.NilError(t, err)
		echoed, err := client.Wait(clientPop)
		assert.NilError(t, err)
		assert.Equal(t, echoed.Payload.Bytes()[0], want)
		assert.NilError(t, client.Free(echoed.Payload))
	}
}

func TestEndToEndCreditStarvationAndRecovery(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowSize = 4
	cfg.BufferSize = 1
	cfg.RecvWRs = 4
	cfg.SendWRs = 16
	cfg.CQElements = 64
	// 16 user buffers plus the RecvWRs the client's own refill pipeline
	// draws from the same pool at connect time.
	cfg.PoolBuffers = 16 + cfg.RecvWRs
	server, client := dial(t, cfg, "127.0.0.1:18603")
	defer server.Close()
	defer client.Close()

	var tokens []QueueToken
	for i := 0; i < 16; i++ {
		buf, err := client.Malloc()
		assert.NilError(t, err)
		buf.Bytes()[0] = byte(i)
		tok, err := client.Push(buf, 1)
		assert.NilError(t, err)
		tokens = append(tokens, tok)
	}

	// Without the server popping, only WindowSize=4 sends can have posted;
	// the rest sit in the pending push queue.
	time.Sleep(50 * time.Millisecond)
	client.conn.mu.Lock()
	queued := len(client.conn.pendingPushQueue)
	client.conn.mu.Unlock()
	assert.Assert(t, queued > 0, "expected pushes still queued behind the credit window")

	// Now have the server drain, which refills receive credit and grants
	// the client room to post the rest. The server drains on its own
	// goroutine because the client's engine only posts its queued sends
	// while the client itself is polling inside Wait below.
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for i := 0; i < 16; i++ {
			popToken, err := server.Pop()
			if !assert.Check(t, err) {
				return
			}
			result, err := server.Wait(popToken)
			if !assert.Check(t, err) {
				return
			}
			assert.Check(t, result.Payload.Bytes()[0] == byte(i))
			assert.Check(t, server.Free(result.Payload))
		}
	}()

	for _, tok := range tokens {
		_, err := client.Wait(tok)
		assert.NilError(t, err)
	}
	<-drained
}

func TestEndToEndPoolExhaustion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowSize = 4
	cfg.RecvWRs = 4
	// The Recv-Refill Pipeline draws its own buffers from this same pool,
	// so the 8 buffers the user expects to malloc sit on top of the
	// RecvWRs already posted at connect time.
	cfg.PoolBuffers = 8 + cfg.RecvWRs
	server, client := dial(t, cfg, "127.0.0.1:18604")
	defer server.Close()
	defer client.Close()

	acquired := make([]transport.RegisteredMemory, 0, 8)
	for i := 0; i < 8; i++ {
		buf, err := client.Malloc()
		assert.NilError(t, err)
		acquired = append(acquired, buf)
	}

	_, err := client.Malloc()
	assert.Assert(t, errors.Is(err, ErrPoolExhausted))

	assert.NilError(t, client.Free(acquired[0]))

	_, err = client.Malloc()
	assert.NilError(t, err)
}

// TestEndToEndWindowSizeOneSerializes is a regression test for the
// integer-division low-water mark: at WindowSize=1, half of 1 floors to
// 0, which used to mean the Recv-Refill Pipeline never fired and no
// receive buffer was ever posted.
func TestEndToEndWindowSizeOneSerializes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowSize = 1
	cfg.RecvWRs = 1
	cfg.SendWRs = 1
	cfg.CQElements = 2
	cfg.BufferSize = 1
	cfg.PoolBuffers = 1 + cfg.RecvWRs
	server, client := dial(t, cfg, "127.0.0.1:18606")
	defer server.Close()
	defer client.Close()

	buf, err := client.Malloc()
	assert.NilError(t, err)
	buf.Bytes()[0] = 7

	pushToken, err := client.Push(buf, 1)
	assert.NilError(t, err)
	_, err = client.Wait(pushToken)
	assert.NilError(t, err)
	assert.NilError(t, client.Free(buf))

	popToken, err := server.Pop()
	assert.NilError(t, err)
	result, err := server.Wait(popToken)
	assert.NilError(t, err)
	assert.Equal(t, result.Payload.Bytes()[0], byte(7))
}

func TestEndToEndWaitUnknownToken(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferSize = 1
	server, client := dial(t, cfg, "127.0.0.1:18607")
	defer server.Close()
	defer client.Close()

	_, err := client.Wait(QueueToken{id: 999999})
	assert.Assert(t, errors.Is(err, ErrUnknownToken))

	buf, err := client.Malloc()
	assert.NilError(t, err)
	buf.Bytes()[0] = 1
	pushToken, err := client.Push(buf, 1)
	assert.NilError(t, err)
	_, err = client.Wait(pushToken)
	assert.NilError(t, err)

	// Waiting again on an already-claimed token is indistinguishable from
	// an unknown one; the result was already handed back once.
	_, err = client.Wait(pushToken)
	assert.Assert(t, errors.Is(err, ErrUnknownToken))
}

func TestEndToEndWaitAfterPeerClose(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferSize = 1
	server, client := dial(t, cfg, "127.0.0.1:18608")
	defer client.Close()

	popToken, err := client.Pop()
	assert.NilError(t, err)

	assert.NilError(t, server.Close())

	_, err = client.Wait(popToken)
	assert.Assert(t, errors.Is(err, ErrPeerClosed))
}

func TestEndToEndWaitAnyMixedTokens(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BufferSize = 1
	server, client := dial(t, cfg, "127.0.0.1:18605")
	defer server.Close()
	defer client.Close()

	popToken, err := client.Pop()
	assert.NilError(t, err)

	buf, err := client.Malloc()
	assert.NilError(t, err)
	buf.Bytes()[0] = 7
	pushToken, err := client.Push(buf, 1)
	assert.NilError(t, err)

	serverBuf, err := server.Malloc()
	assert.NilError(t, err)
	serverBuf.Bytes()[0] = 99
	serverPush, err := server.Push(serverBuf, 1)
	assert.NilError(t, err)
	_, err = server.Wait(serverPush)
	assert.NilError(t, err)

	idx, result, err := client.WaitAny([]QueueToken{popToken, pushToken})
	assert.NilError(t, err)
	assert.Equal(t, idx, 0)
	assert.Equal(t, result.Payload.Bytes()[0], byte(99))

	_, err = client.Wait(pushToken)
	assert.NilError(t, err)
}
