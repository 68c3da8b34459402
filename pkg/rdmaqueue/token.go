package rdmaqueue

import (
	"sync"

	"github.com/runZeroInc/rdmaqueue/pkg/transport"
)

// WorkID identifies one Push or background receive-refill operation across
// its posting and its eventual completion.
type WorkID uint64

// QueueToken is returned by Push and Pop and passed to Wait/WaitAny. It is opaque
// to callers; its only purpose is to look itself up in the owning queue's
// result store.
type QueueToken struct {
	id WorkID
}

// CompletedRequest is what Wait/WaitAny hand back once a token resolves.
type CompletedRequest struct {
	Token   QueueToken
	Opcode  transport.Opcode
	Bytes   uint32
	Err     error
	Payload transport.RegisteredMemory
}

// pendingEntry tracks one outstanding push or pop from the moment Push/Pop
// issues its token to the moment its completion is recorded.
type pendingEntry struct {
	memory transport.RegisteredMemory
	opcode transport.Opcode
}

// resultStore holds completions that have arrived but not yet been claimed
// by Wait/WaitAny, plus the set of work IDs still outstanding. A result
// that arrives before anyone waits on it is held, not dropped — Wait must
// still be able to observe it.
type resultStore struct {
	mu sync.Mutex

	nextID  uint64
	pending map[WorkID]pendingEntry
	done    map[WorkID]CompletedRequest
}

func newResultStore() *resultStore {
	return &resultStore{
		pending: make(map[WorkID]pendingEntry),
		done:    make(map[WorkID]CompletedRequest),
	}
}

// allocateID returns a fresh work identifier, guaranteed not to collide
// with any currently pending or unclaimed-done entry.
func (r *resultStore) allocateID() WorkID {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		r.nextID++
		id := WorkID(r.nextID)
		if _, inPending := r.pending[id]; inPending {
			continue
		}
		if _, inDone := r.done[id]; inDone {
			continue
		}
		return id
	}
}

// track registers id as outstanding. Returns ErrDuplicateWorkID if the
// caller somehow reused an ID still in flight.
func (r *resultStore) track(id WorkID, memory transport.RegisteredMemory, opcode transport.Opcode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.pending[id]; exists {
		return ErrDuplicateWorkID
	}
	r.pending[id] = pendingEntry{memory: memory, opcode: opcode}
	return nil
}

// complete moves id from pending to done. It is a no-op (aside from
// logging upstream) if id was never tracked, which happens for background
// receive-refill work the caller never queries directly.
func (r *resultStore) complete(id WorkID, cr CompletedRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[id]; !ok {
		return
	}
	delete(r.pending, id)
	r.done[id] = cr
}

// claim removes and returns a finished completion for id, if present.
func (r *resultStore) claim(id WorkID) (CompletedRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cr, ok := r.done[id]
	if ok {
		delete(r.done, id)
	}
	return cr, ok
}

// known reports whether id is either still outstanding or finished but not
// yet claimed. A token whose id is known to neither map was never issued by
// this queue, or was already claimed by an earlier Wait/WaitAny.
func (r *resultStore) known(id WorkID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[id]; ok {
		return true
	}
	_, ok := r.done[id]
	return ok
}
