package loopback

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/runZeroInc/rdmaqueue/pkg/kernel"
)

// minBatchedPollKernel is the kernel version above which the loopback
// transport widens its socket buffers for batched receive posting. Below
// it, the transport still works correctly but leaves the (smaller)
// kernel-default socket buffer sizes in place.
var minBatchedPollKernel = kernel.VersionInfo{Kernel: 4, Major: 9, Minor: 0}

var (
	capsOnce          sync.Once
	batchedPollTuning bool
)

// detectCapabilities probes the local kernel version once per process and
// decides whether the wider SO_RCVBUF/SO_SNDBUF tuning in tuneSocketBuffers
// is worth applying. This is a standalone, dependency-light probe (it does
// not pull in a general-purpose kernel-parsing library) so the loopback
// transport's hot path never has to import anything beyond what it already
// needs for raw-fd tuning.
func detectCapabilities() bool {
	capsOnce.Do(func() {
		v, err := kernel.GetKernelVersion()
		if err != nil {
			logrus.WithError(err).Debug("loopback: kernel version probe failed, assuming conservative defaults")
			batchedPollTuning = false
			return
		}
		batchedPollTuning = kernel.CompareKernelVersion(*v, minBatchedPollKernel) >= 0
		logrus.WithFields(logrus.Fields{
			"kernel":        v.String(),
			"batched_polls": batchedPollTuning,
		}).Debug("loopback: detected kernel capabilities")
	})
	return batchedPollTuning
}
