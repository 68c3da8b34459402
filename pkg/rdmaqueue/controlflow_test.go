package rdmaqueue

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/runZeroInc/rdmaqueue/pkg/transport"
)

// fakeQueuePair is a minimal transport.QueuePair stand-in that only
// implements the credit-grant cell, for exercising controlFlow in
// isolation from any real or simulated wire.
type fakeQueuePair struct {
	peerTotal uint64
	published []uint64
}

func (f *fakeQueuePair) PostSend([]transport.SendItem) error    { return nil }
func (f *fakeQueuePair) PostReceive([]transport.RecvItem) error { return nil }
func (f *fakeQueuePair) PublishCreditGrant(total uint64) error {
	f.published = append(f.published, total)
	return nil
}
func (f *fakeQueuePair) PeerCreditGrant() uint64 { return f.peerTotal }
func (f *fakeQueuePair) Close() error            { return nil }

func TestControlFlowCumulativeGrantNeverDoubleCounts(t *testing.T) {
	fq := &fakeQueuePair{}
	cf := newControlFlow(fq, 4)

	// Peer posts 3 receives, publishing a cumulative total of 3 before we
	// ever look.
	fq.peerTotal = 3
	granted := cf.acknowledgePeerGrant()
	assert.Equal(t, granted, uint64(3))
	assert.Equal(t, cf.remainingSendCredits(), uint64(3))

	// Peer posts 2 more without us polling in between; the cell now reads
	// 5 (cumulative), not 2 (a delta) — acknowledging must only credit the
	// 2 new ones, not re-credit the first 3.
	fq.peerTotal = 5
	granted = cf.acknowledgePeerGrant()
	assert.Equal(t, granted, uint64(2))
	assert.Equal(t, cf.remainingSendCredits(), uint64(5))

	// A second ack with no new peer activity must be a no-op.
	granted = cf.acknowledgePeerGrant()
	assert.Equal(t, granted, uint64(0))
	assert.Equal(t, cf.remainingSendCredits(), uint64(5))
}

func TestControlFlowConsumeSendCredits(t *testing.T) {
	fq := &fakeQueuePair{peerTotal: 4}
	cf := newControlFlow(fq, 4)

	cf.acknowledgePeerGrant()
	assert.Equal(t, cf.remainingSendCredits(), uint64(4))

	cf.consumeSendCredits(3)
	assert.Equal(t, cf.remainingSendCredits(), uint64(1))

	// Consuming more than available must clamp at zero rather than
	// underflow the unsigned counter.
	cf.consumeSendCredits(5)
	assert.Equal(t, cf.remainingSendCredits(), uint64(0))
}

func TestControlFlowPublishCreditIsCumulative(t *testing.T) {
	fq := &fakeQueuePair{}
	cf := newControlFlow(fq, 4)

	assert.NilError(t, cf.publishCredit(3))
	assert.NilError(t, cf.publishCredit(2))

	assert.DeepEqual(t, fq.published, []uint64{3, 5})
}
