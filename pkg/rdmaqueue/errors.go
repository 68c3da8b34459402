package rdmaqueue

import "errors"

// Sentinel errors the engine returns, checked with errors.Is by callers.
var (
	// ErrPoolExhausted is returned by Malloc when the fixed memory pool has
	// no free buffers left.
	ErrPoolExhausted = errors.New("rdmaqueue: memory pool exhausted")

	// ErrNotConnected is returned by operations that require an
	// established connection before one has been accepted or connected.
	ErrNotConnected = errors.New("rdmaqueue: queue is not connected")

	// ErrDuplicateWorkID reports a work identifier found already pending:
	// Push returns it directly, and the Push Pipeline fail-stops the
	// connection with it.
	ErrDuplicateWorkID = errors.New("rdmaqueue: work ID already pending")

	// ErrUnsuccessfulCompletion is the fail-stop error recorded on the
	// connection when a polled work completion reports failure; Wait,
	// WaitAny, Push and Pop return it from then on.
	ErrUnsuccessfulCompletion = errors.New("rdmaqueue: work request completed unsuccessfully")

	// ErrUnknownOpcode is returned when a polled completion reports an
	// opcode the pipelines have no handling for.
	ErrUnknownOpcode = errors.New("rdmaqueue: completion queue entry has unknown opcode")

	// ErrPeerClosed is returned once the peer has disconnected and no
	// further completions will arrive for outstanding work.
	ErrPeerClosed = errors.New("rdmaqueue: peer connection closed")

	// ErrQueueClosed is returned by Wait/WaitAny for a token still pending
	// once the queue has been closed.
	ErrQueueClosed = errors.New("rdmaqueue: queue is closed")

	// ErrUnknownToken is returned by Wait/WaitAny when passed a token this
	// queue did not issue, or one already claimed by an earlier Wait/WaitAny.
	ErrUnknownToken = errors.New("rdmaqueue: unrecognized queue token")
)
