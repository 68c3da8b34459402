// Package transport defines the collaborator interfaces the I/O queue engine
// drives but does not implement itself: RDMA connection management, queue
// pair posting, completion polling and memory registration. The real
// rdma_cm/ibverbs layer is out of scope for the engine; this package is the
// seam the engine is written against.
package transport

import (
	"context"
	"errors"

	"github.com/runZeroInc/rdmaqueue/pkg/tcpinfo"
)

// ErrNoEvent is returned by a non-blocking CommunicationManager's
// GetCMEvent when no event is currently queued. Blocking implementations
// never return it.
var ErrNoEvent = errors.New("transport: no CM event available")

// ErrPeerClosed is returned by CompletionQueue.Poll once a transport has
// detected that the peer end of the connection is gone (a reader hitting
// EOF, a reset) and no further completions will ever arrive for work
// still outstanding against it.
var ErrPeerClosed = errors.New("transport: peer connection closed")

// Opcode identifies the kind of work a completion reports on.
type Opcode int

const (
	OpSend Opcode = iota
	OpRecv
	OpRDMAWrite
	OpRDMARead
)

func (o Opcode) String() string {
	switch o {
	case OpSend:
		return "SEND"
	case OpRecv:
		return "RECV"
	case OpRDMAWrite:
		return "RDMA_WRITE"
	case OpRDMARead:
		return "RDMA_READ"
	default:
		return "UNKNOWN"
	}
}

// WorkCompletion is the engine's view of a polled completion-queue entry.
type WorkCompletion struct {
	WorkID  uint64
	Opcode  Opcode
	Success bool
	ByteLen uint32
}

// RegisteredMemory is a fixed-size byte region registered against a
// protection domain. The slice returned by Bytes has length equal to the
// buffer's registered capacity; callers that receive fewer bytes than
// capacity must slice it down themselves.
type RegisteredMemory interface {
	Bytes() []byte
	Capacity() uint32
}

// SendItem pairs a work identifier with the buffer and byte length to post
// as a send work request.
type SendItem struct {
	WorkID uint64
	Memory RegisteredMemory
	Length uint32
}

// RecvItem pairs a work identifier with a buffer to post as a receive work
// request. The buffer's full capacity is available to the peer's send.
type RecvItem struct {
	WorkID uint64
	Memory RegisteredMemory
}

// QueuePair posts send and receive work requests for one connection.
type QueuePair interface {
	PostSend(items []SendItem) error
	PostReceive(items []RecvItem) error

	// PublishCreditGrant performs a one-sided write of total (the grantor's
	// monotonically increasing count of receive buffers ever posted) into
	// the peer's credit-grant inbox cell. It completes locally as an
	// RDMA_WRITE work completion; it produces no completion on the peer.
	PublishCreditGrant(total uint64) error

	// PeerCreditGrant non-destructively reads the cumulative total the peer
	// has published into our inbox cell via PublishCreditGrant.
	PeerCreditGrant() uint64

	Close() error
}

// TCPDiagnosable is implemented by queue pairs whose simulated wire rides a
// real TCP connection, letting a caller distinguish a credit-protocol stall
// from a stalled socket underneath it. Not every transport rides TCP, so
// this is optional: callers type-assert a QueuePair against it rather than
// finding it on the interface itself.
type TCPDiagnosable interface {
	TCPInfo() (*tcpinfo.Info, error)
}

// CompletionQueue is polled by the engine's Completion Pipeline.
type CompletionQueue interface {
	// Poll returns any completions available without blocking. An empty,
	// nil-error result means the queue is currently empty.
	Poll() ([]WorkCompletion, error)
	Close() error
}

// ProtectionDomain registers fixed-size memory regions.
type ProtectionDomain interface {
	AllocateMemory(size uint32) (RegisteredMemory, error)
	Close() error
}

// ConnectionPrivateData is the private-data payload exchanged during
// connection establishment: the address-sized identity of the sender's
// credit-grant inbox cell.
type ConnectionPrivateData [8]byte

// CMEvent enumerates the RDMA CM event sequence the engine must drive
// through during connection setup and teardown.
type CMEvent int

const (
	EventAddressResolved CMEvent = iota
	EventRouteResolved
	EventConnectionRequest
	EventEstablished
	EventDisconnected
)

func (e CMEvent) String() string {
	switch e {
	case EventAddressResolved:
		return "AddressResolved"
	case EventRouteResolved:
		return "RouteResolved"
	case EventConnectionRequest:
		return "ConnectionRequest"
	case EventEstablished:
		return "Established"
	case EventDisconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// Event is one CM event, carrying whatever private data accompanied it.
type Event struct {
	Kind        CMEvent
	PrivateData ConnectionPrivateData
}

// CommunicationManager drives RDMA connection-manager setup and teardown
// for one connection identifier. Implementations are expected to expose a
// blocking or non-blocking GetCMEvent depending on the mode the
// CommunicationManager was constructed with.
type CommunicationManager interface {
	Bind(addr string) error
	Listen() error

	// GetCMEvent returns the next CM event. In blocking mode it blocks
	// until one is available or ctx is done; in non-blocking mode it still
	// honors ctx for cancellation but never busy-spins without yielding.
	GetCMEvent(ctx context.Context) (Event, error)

	ResolveAddress(ctx context.Context, node, service string) error
	ResolveRoute() error

	AllocateProtectionDomain() (ProtectionDomain, error)
	CreateCQ(depth uint32) (CompletionQueue, error)
	CreateQP(pd ProtectionDomain, cq CompletionQueue) (QueuePair, error)

	ConnectWithData(data ConnectionPrivateData) error
	AcceptWithData(data ConnectionPrivateData) error

	// AcceptConnection blocks (subject to ctx) for an incoming connection
	// request and returns a new CommunicationManager bound to it, along
	// with the private data the connecting peer sent.
	AcceptConnection(ctx context.Context) (CommunicationManager, ConnectionPrivateData, error)

	Disconnect() error
	Close() error
}
