package job

import (
	"sync/atomic"
	"time"
)

// State is a snapshot of a job's last firing.
type State struct {
	// IsRunning is true strictly between the start and end of a firing.
	IsRunning bool
	// IsCancelled is true when the most recent firing lost its timeout race.
	IsCancelled bool

	LastRunDate time.Time
	LastEndDate time.Time

	LastException error
}

// runToken gates firings of one job: a tick that cannot take it is skipped,
// never queued.
type runToken struct {
	inflight atomic.Bool
}

func (t *runToken) tryAcquire() bool {
	return t.inflight.CompareAndSwap(false, true)
}

func (t *runToken) release() {
	t.inflight.Store(false)
}
