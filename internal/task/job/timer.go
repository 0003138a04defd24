package job

import (
	"sync"
	"time"
)

// periodicTimer calls fn after a due time and then every period, each call on
// its own goroutine. Ticks do not wait for the previous call to return.
//
// The next tick is armed before fn runs, so a slow fn sees further ticks
// arrive while it is still executing.
type periodicTimer struct {
	fn func()

	mu      sync.Mutex
	t       *time.Timer
	gen     uint64
	next    time.Time
	period  time.Duration
	stopped bool
}

func newPeriodicTimer(fn func()) *periodicTimer {
	return &periodicTimer{fn: fn}
}

// Change re-arms the timer: first tick after due, then every period.
// A period <= 0 fires once.
func (p *periodicTimer) Change(due, period time.Duration) error {
	if due < 0 {
		due = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrTimerStopped
	}
	if p.t != nil {
		p.t.Stop()
	}
	p.gen++
	p.period = period
	p.next = time.Now().Add(due)
	p.armLocked(p.gen, due)
	return nil
}

// Stop disarms the timer for good. A tick already running is not interrupted.
func (p *periodicTimer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	p.gen++
	if p.t != nil {
		p.t.Stop()
		p.t = nil
	}
}

func (p *periodicTimer) armLocked(gen uint64, d time.Duration) {
	p.t = time.AfterFunc(d, func() { p.tick(gen) })
}

func (p *periodicTimer) tick(gen uint64) {
	p.mu.Lock()
	if p.stopped || gen != p.gen {
		p.mu.Unlock()
		return
	}
	if p.period > 0 {
		// Cadence follows the previous deadline, not the callback latency.
		// Slots missed while the process was stalled are dropped.
		now := time.Now()
		p.next = p.next.Add(p.period)
		for !p.next.After(now) {
			p.next = p.next.Add(p.period)
		}
		p.armLocked(gen, p.next.Sub(now))
	} else {
		p.t = nil
	}
	p.mu.Unlock()

	p.fn()
}
