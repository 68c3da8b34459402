package rdmaqueue

import (
	"sync"

	"github.com/runZeroInc/rdmaqueue/pkg/transport"
)

// bufferPool is the Memory Pool: a fixed free list of registered buffers
// carved out of one protection-domain allocation at connect time. It never
// grows — once the free list is empty, Malloc reports ErrPoolExhausted
// rather than registering more memory.
type bufferPool struct {
	mu     sync.Mutex
	pd     transport.ProtectionDomain
	free   []transport.RegisteredMemory
	size   uint32
	total  uint32
	inUse  uint32
	region transport.RegisteredMemory
}

// newBufferPool registers one region of count*size bytes and slices it into
// count fixed-size buffers, so the pool has a single allocation and a
// single deregistration for its whole lifetime.
func newBufferPool(pd transport.ProtectionDomain, count, size uint32) (*bufferPool, error) {
	region, err := pd.AllocateMemory(count * size)
	if err != nil {
		return nil, err
	}

	p := &bufferPool{
		pd:     pd,
		size:   size,
		total:  count,
		region: region,
		free:   make([]transport.RegisteredMemory, 0, count),
	}

	backing := region.Bytes()
	for i := uint32(0); i < count; i++ {
		start := i * size
		p.free = append(p.free, &slicedMemory{buf: backing[start : start+size]})
	}
	return p, nil
}

// slicedMemory is a view into a larger registered region; it satisfies
// transport.RegisteredMemory without registering memory of its own, since
// the region it slices is already registered.
type slicedMemory struct {
	buf []byte
}

func (s *slicedMemory) Bytes() []byte    { return s.buf }
func (s *slicedMemory) Capacity() uint32 { return uint32(len(s.buf)) }

// acquire pops one buffer off the free list, or reports ErrPoolExhausted.
func (p *bufferPool) acquire() (transport.RegisteredMemory, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.free)
	if n == 0 {
		return nil, ErrPoolExhausted
	}
	buf := p.free[n-1]
	p.free = p.free[:n-1]
	p.inUse++
	return buf, nil
}

// release returns a buffer to the free list. Callers must not retain buf
// after calling release.
func (p *bufferPool) release(buf transport.RegisteredMemory) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, buf)
	p.inUse--
}

// occupancy reports (buffers in use, total buffers) for metrics.
func (p *bufferPool) occupancy() (uint32, uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse, p.total
}

// close releases the pool's view of its region. The protection domain
// itself is torn down separately by the connection, after the pool and
// the completion queue and queue pair, per the mandated resource release
// order.
func (p *bufferPool) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = nil
	return nil
}
