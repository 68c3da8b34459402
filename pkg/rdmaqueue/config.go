package rdmaqueue

import "fmt"

// Config holds the tunables of one I/O queue. The field names mirror the
// engine's internal vocabulary rather than raw ibverbs attribute names,
// since every value here is consumed by the engine, not passed through
// verbatim to the transport layer.
type Config struct {
	// RecvWRs is the maximum number of receive work requests posted at
	// once per connection; the Recv-Refill Pipeline never tops up beyond
	// it.
	RecvWRs uint32

	// SendWRs is the maximum number of send work requests the queue pair
	// will have outstanding at once.
	SendWRs uint32

	// CQElements is the completion queue depth.
	CQElements uint32

	// WindowSize is the flow-control window: the Recv-Refill Pipeline posts
	// receives (and grants the peer that much send credit) in batches of up
	// to WindowSize whenever fewer than WindowSize/2 (at least 1) remain
	// posted. Pushes beyond the credit the peer has granted stay queued
	// until it grants more.
	WindowSize uint32

	// BufferSize is the byte capacity of every buffer in the fixed memory
	// pool; it also bounds the maximum payload length Push will accept.
	BufferSize uint32

	// PoolBuffers is the number of fixed buffers the Memory Pool carves out
	// of one protection-domain-backed memory region at Connect/Accept time.
	PoolBuffers uint32

	// Blocking selects whether the underlying CommunicationManager's
	// GetCMEvent call blocks awaiting the next event (true) or returns
	// ErrNoEvent immediately when none is queued (false).
	Blocking bool
}

// DefaultConfig returns reasonable tunables for a connection that doesn't
// need narrower values.
func DefaultConfig() Config {
	return Config{
		RecvWRs:     16,
		SendWRs:     16,
		CQElements:  64,
		WindowSize:  16,
		BufferSize:  4096,
		PoolBuffers: 32,
		Blocking:    true,
	}
}

// Validate rejects configurations the engine cannot satisfy.
func (c Config) Validate() error {
	if c.RecvWRs == 0 {
		return fmt.Errorf("rdmaqueue: RecvWRs must be > 0")
	}
	if c.SendWRs == 0 {
		return fmt.Errorf("rdmaqueue: SendWRs must be > 0")
	}
	if c.CQElements < c.RecvWRs+c.SendWRs {
		return fmt.Errorf("rdmaqueue: CQElements (%d) must be >= RecvWRs+SendWRs (%d)", c.CQElements, c.RecvWRs+c.SendWRs)
	}
	if c.WindowSize == 0 {
		return fmt.Errorf("rdmaqueue: WindowSize must be > 0")
	}
	if c.BufferSize == 0 {
		return fmt.Errorf("rdmaqueue: BufferSize must be > 0")
	}
	if c.PoolBuffers == 0 {
		return fmt.Errorf("rdmaqueue: PoolBuffers must be > 0")
	}
	if c.PoolBuffers < c.RecvWRs {
		return fmt.Errorf("rdmaqueue: PoolBuffers (%d) must be >= RecvWRs (%d)", c.PoolBuffers, c.RecvWRs)
	}
	return nil
}
