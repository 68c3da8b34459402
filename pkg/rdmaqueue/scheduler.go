package rdmaqueue

import (
	"runtime"
	"sync"
	"time"
)

// Scheduler owns a registry of connection engines and exposes the poll
// cycle that drives wait/wait_any. It is itself single-threaded per
// connection: nothing here blocks on I/O; "scheduling" a pipeline means
// calling its poll method exactly once.
type Scheduler struct {
	mu    sync.Mutex
	conns map[TaskHandle]*connection
	next  uint64
}

func newScheduler() *Scheduler {
	return &Scheduler{conns: make(map[TaskHandle]*connection)}
}

func (s *Scheduler) register(c *connection) TaskHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	h := TaskHandle(s.next)
	c.handle = h
	s.conns[h] = c
	return h
}

func (s *Scheduler) unregister(h TaskHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, h)
}

func (s *Scheduler) get(h TaskHandle) (*connection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[h]
	return c, ok
}

// pollOnce drives one round of all three pipelines for c, with the
// Recv-Refill Pipeline only scheduled when it reports being below its
// low-water mark.
func (c *connection) pollOnce() {
	c.pollCompletion()
	c.pollPush()
	if c.belowLowWater() {
		c.pollRefill()
	}
}

// waitToken blocks (by repeatedly polling the pipelines, never by
// sleeping) until id resolves, the connection fails, or it is torn down.
// It returns ErrUnknownToken immediately if id was never issued by this
// queue or has already been claimed.
func (c *connection) waitToken(id WorkID) (CompletedRequest, error) {
	start := time.Now()
	defer func() { c.waitBlockedMicros.Add(uint64(time.Since(start).Microseconds())) }()

	if cr, ok := c.results.claim(id); ok {
		return cr, nil
	}
	if !c.results.known(id) {
		return CompletedRequest{}, ErrUnknownToken
	}

	for {
		c.pollCompletion()
		if cr, ok := c.results.claim(id); ok {
			return cr, nil
		}
		if err := c.failure(); err != nil {
			return CompletedRequest{}, err
		}
		if c.isClosed() {
			return CompletedRequest{}, ErrQueueClosed
		}
		c.pollOnce()
		runtime.Gosched()
	}
}

// waitAny blocks until any of ids resolves, returning its index. It
// returns ErrUnknownToken immediately if any id was never issued by this
// queue or has already been claimed.
func (c *connection) waitAny(ids []WorkID) (int, CompletedRequest, error) {
	start := time.Now()
	defer func() { c.waitBlockedMicros.Add(uint64(time.Since(start).Microseconds())) }()

	for i, id := range ids {
		if cr, ok := c.results.claim(id); ok {
			return i, cr, nil
		}
		if !c.results.known(id) {
			return -1, CompletedRequest{}, ErrUnknownToken
		}
	}

	for {
		c.pollCompletion()
		for i, id := range ids {
			if cr, ok := c.results.claim(id); ok {
				return i, cr, nil
			}
		}
		if err := c.failure(); err != nil {
			return -1, CompletedRequest{}, err
		}
		if c.isClosed() {
			return -1, CompletedRequest{}, ErrQueueClosed
		}
		c.pollOnce()
		runtime.Gosched()
	}
}
