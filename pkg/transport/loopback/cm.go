package loopback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/runZeroInc/rdmaqueue/pkg/transport"
)

// ErrNoEvent is the loopback transport's non-blocking GetCMEvent error,
// aliased to the shared transport-level sentinel so engine code can match
// it without depending on this concrete transport.
var ErrNoEvent = transport.ErrNoEvent

type communicationManager struct {
	blocking bool
	log      *logrus.Entry

	mu       sync.Mutex
	listener net.Listener
	dialAddr string
	conn     net.Conn

	events chan transport.Event

	pendingPeerData transport.ConnectionPrivateData
}

// NewCommunicationManager creates a CM identifier. blocking selects whether
// GetCMEvent blocks until an event is ready or returns ErrNoEvent
// immediately.
func NewCommunicationManager(blocking bool) transport.CommunicationManager {
	return &communicationManager{
		blocking: blocking,
		events:   make(chan transport.Event, 8),
		log:      logrus.WithField("component", "loopback.cm"),
	}
}

func (c *communicationManager) Bind(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("loopback: bind %s: %w", addr, err)
	}
	c.mu.Lock()
	c.listener = l
	c.mu.Unlock()
	return nil
}

func (c *communicationManager) Listen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listener == nil {
		return errors.New("loopback: listen called before bind")
	}
	return nil
}

func (c *communicationManager) ResolveAddress(ctx context.Context, node, service string) error {
	c.mu.Lock()
	c.dialAddr = net.JoinHostPort(node, service)
	c.mu.Unlock()
	c.pushEvent(transport.Event{Kind: transport.EventAddressResolved})
	return nil
}

func (c *communicationManager) ResolveRoute() error {
	c.pushEvent(transport.Event{Kind: transport.EventRouteResolved})
	return nil
}

func (c *communicationManager) AllocateProtectionDomain() (transport.ProtectionDomain, error) {
	return NewProtectionDomain(), nil
}

func (c *communicationManager) CreateCQ(depth uint32) (transport.CompletionQueue, error) {
	return NewCompletionQueue(depth), nil
}

func (c *communicationManager) CreateQP(_ transport.ProtectionDomain, cq transport.CompletionQueue) (transport.QueuePair, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, errors.New("loopback: create QP before connection established")
	}
	return NewQueuePair(conn, cq), nil
}

func (c *communicationManager) ConnectWithData(data transport.ConnectionPrivateData) error {
	c.mu.Lock()
	addr := c.dialAddr
	c.mu.Unlock()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("loopback: dial %s: %w", addr, err)
	}

	peerData, err := exchangePrivateData(conn, data)
	if err != nil {
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.pushEvent(transport.Event{Kind: transport.EventEstablished, PrivateData: peerData})
	return nil
}

func (c *communicationManager) AcceptConnection(ctx context.Context) (transport.CommunicationManager, transport.ConnectionPrivateData, error) {
	c.mu.Lock()
	listener := c.listener
	c.mu.Unlock()
	if listener == nil {
		return nil, transport.ConnectionPrivateData{}, errors.New("loopback: accept called before bind/listen")
	}

	conn, err := acceptWithContext(ctx, listener)
	if err != nil {
		return nil, transport.ConnectionPrivateData{}, err
	}

	var clientData transport.ConnectionPrivateData
	if _, err := io.ReadFull(conn, clientData[:]); err != nil {
		conn.Close()
		return nil, transport.ConnectionPrivateData{}, fmt.Errorf("loopback: read private data: %w", err)
	}

	connected := &communicationManager{
		blocking:        c.blocking,
		events:          make(chan transport.Event, 8),
		conn:            conn,
		pendingPeerData: clientData,
		log:             logrus.WithField("component", "loopback.cm"),
	}
	connected.pushEvent(transport.Event{Kind: transport.EventConnectionRequest, PrivateData: clientData})
	return connected, clientData, nil
}

func (c *communicationManager) AcceptWithData(data transport.ConnectionPrivateData) error {
	c.mu.Lock()
	conn := c.conn
	peerData := c.pendingPeerData
	c.mu.Unlock()
	if conn == nil {
		return errors.New("loopback: accept-with-data called before AcceptConnection")
	}
	if _, err := conn.Write(data[:]); err != nil {
		return fmt.Errorf("loopback: write private data: %w", err)
	}
	c.pushEvent(transport.Event{Kind: transport.EventEstablished, PrivateData: peerData})
	return nil
}

func (c *communicationManager) GetCMEvent(ctx context.Context) (transport.Event, error) {
	if c.blocking {
		select {
		case ev := <-c.events:
			return ev, nil
		case <-ctx.Done():
			return transport.Event{}, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return transport.Event{}, err
	}
	select {
	case ev := <-c.events:
		return ev, nil
	default:
		return transport.Event{}, ErrNoEvent
	}
}

func (c *communicationManager) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	err := conn.Close()
	c.pushEvent(transport.Event{Kind: transport.EventDisconnected})
	return err
}

func (c *communicationManager) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.conn != nil {
		err = c.conn.Close()
	}
	if c.listener != nil {
		if lerr := c.listener.Close(); lerr != nil && err == nil {
			err = lerr
		}
	}
	return err
}

func (c *communicationManager) pushEvent(ev transport.Event) {
	c.events <- ev
}

// exchangePrivateData writes our private data and reads the peer's, in
// that order, over a freshly dialed connection.
func exchangePrivateData(conn net.Conn, ours transport.ConnectionPrivateData) (transport.ConnectionPrivateData, error) {
	if _, err := conn.Write(ours[:]); err != nil {
		return transport.ConnectionPrivateData{}, fmt.Errorf("loopback: write private data: %w", err)
	}
	var theirs transport.ConnectionPrivateData
	if _, err := io.ReadFull(conn, theirs[:]); err != nil {
		return transport.ConnectionPrivateData{}, fmt.Errorf("loopback: read private data: %w", err)
	}
	return theirs, nil
}

func acceptWithContext(ctx context.Context, l net.Listener) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := l.Accept()
		ch <- result{conn, err}
	}()
	select {
	case r := <-ch:
		return r.conn, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
