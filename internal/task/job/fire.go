package job

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"onfly/internal/task/race"
	logx "onfly/pkg/logx"
)

// fire runs on the timer goroutine for every tick.
func (j *Job) fire() {
	if !j.token.tryAcquire() {
		j.skip()
		return
	}
	defer j.token.release()

	id := uuid.NewString()
	h := j.hooks()
	started := time.Now()

	raised := j.run(id, h)
	j.end(id, h, started, raised)
}

func (j *Job) skip() {
	if j.skipLog.Allow() {
		j.log.Debug("job skipped, previous firing still running")
	}
	j.publish(Event{ID: uuid.NewString(), Kind: EventSkipped, Started: time.Now()})
}

// run covers start-of-firing through the timeout race. Nothing it raises
// escapes: the error is reported to on-exception and returned for the end step.
func (j *Job) run(id string, h hooks) (raised error) {
	j.mu.Lock()
	j.state.IsRunning = true
	j.state.IsCancelled = false
	j.state.LastRunDate = time.Now()
	started := j.state.LastRunDate
	j.mu.Unlock()

	defer func() {
		if raised == nil {
			return
		}
		if race.IsCancelled(raised) {
			j.mu.Lock()
			j.state.IsCancelled = true
			j.mu.Unlock()
			j.log.Error("job cancelled", logx.Duration("timeout", h.timeout), logx.Err(raised))
		} else {
			j.log.Error("job failed", logx.Err(raised))
		}
		j.notifyException(h.onException, raised)
	}()

	if err := j.callHook("on-start", h.onStart); err != nil {
		return err
	}
	j.log.Info("job started", logx.String("firing", id))
	j.publish(Event{ID: id, Kind: EventStarted, Started: started})

	cb := j.cb
	return race.Do(j.ctx, h.timeout, func(ctx context.Context) error {
		return cb(ctx, h.timeout)
	})
}

func (j *Job) end(id string, h hooks, started time.Time, raised error) {
	if raised == nil {
		j.log.Info("job ended", logx.String("firing", id))
	} else {
		j.log.Info("job ended with error", logx.String("firing", id))
	}

	j.mu.Lock()
	j.state.LastException = raised
	if j.state.IsRunning {
		j.state.LastEndDate = time.Now()
		j.state.IsRunning = false
	}
	single := j.single
	j.mu.Unlock()

	ev := Event{ID: id, Kind: EventFinished, Started: started, Duration: time.Since(started)}
	if raised != nil {
		ev.Kind = EventFailed
		if race.IsCancelled(raised) {
			ev.Kind = EventCancelled
		}
		ev.Error = race.Describe(raised)
	}
	j.publish(ev)

	var hookErr error
	if single {
		hookErr = j.callHook("on-end", h.onEnd)
		j.Dispose()
	} else {
		j.realign()
		hookErr = j.callHook("on-end", h.onEnd)
	}
	if hookErr != nil {
		j.log.Fatal("on-end hook panicked", logx.Err(hookErr))
		j.mu.Lock()
		j.state.LastException = errors.CombineErrors(raised, hookErr)
		j.mu.Unlock()
	}
}

// realign re-arms the timer from the intended next instant instead of the
// timer's own relative cadence. When already late it only moves the target
// to last start + period and leaves the timer alone.
func (j *Job) realign() {
	defer func() {
		if r := recover(); r != nil {
			j.log.Error("timer realign panicked", logx.Any("panic", r))
		}
	}()

	j.mu.Lock()
	if j.disposed || j.period <= 0 || j.timer == nil {
		j.mu.Unlock()
		return
	}
	period := j.period
	j.lastScheduled = j.lastScheduled.Add(period)
	delay := time.Until(j.lastScheduled)
	if delay <= 0 {
		j.lastScheduled = j.state.LastRunDate.Add(period)
		j.mu.Unlock()
		return
	}
	timer := j.timer
	margin := j.margin
	j.mu.Unlock()

	if err := timer.Change(delay+margin, period); err != nil {
		j.log.Error("timer realign failed", logx.Err(err))
	}
}

func (j *Job) callHook(name string, fn func(*Job)) (err error) {
	if fn == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = hookPanic(name, r)
		}
	}()
	fn(j)
	return nil
}

func (j *Job) notifyException(fn func(error), err error) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			j.log.Error("on-exception hook panicked", logx.Any("panic", r))
		}
	}()
	fn(err)
}
