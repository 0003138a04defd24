package job

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"

	"onfly/internal/task/schedule"
	logx "onfly/pkg/logx"
)

// Schedule arms (or re-arms) the job's timer from the plan s computes now,
// and registers the job.
//
// A recurring job that is already scheduled is re-armed in place. A
// single-shot job can only be scheduled once.
func (j *Job) Schedule(s schedule.Strategy) error {
	if s == nil {
		return errors.Wrap(schedule.ErrInvalidSchedule, "nil strategy")
	}
	if j.cb == nil {
		return errors.Wrapf(ErrNoCallback, "job %q", j.name)
	}
	now := time.Now()
	plan, err := s.Plan(now)
	if err != nil {
		return errors.Wrapf(err, "job %q", j.name)
	}

	j.mu.Lock()
	if j.disposed {
		j.mu.Unlock()
		return errors.Wrapf(ErrDisposed, "job %q", j.name)
	}
	if j.scheduled && (j.single || plan.Single) {
		j.mu.Unlock()
		return errors.Wrapf(ErrAlreadyScheduled, "job %q", j.name)
	}
	if j.timer == nil {
		j.timer = newPeriodicTimer(j.fire)
	}
	timer := j.timer
	if err := timer.Change(plan.DueTime, plan.Period); err != nil {
		j.mu.Unlock()
		return errors.Wrapf(err, "job %q", j.name)
	}
	j.single = plan.Single
	j.dueTime = plan.DueTime
	j.period = plan.Period
	j.firstExecution = now.Add(plan.DueTime)
	j.lastScheduled = j.firstExecution
	j.scheduled = true
	j.mu.Unlock()

	if j.reg != nil {
		j.reg.Add(j)
	}
	j.log.Info("job scheduled",
		logx.Time("first_run", now.Add(plan.DueTime)),
		logx.Duration("period", plan.Period),
		logx.Bool("single", plan.Single),
	)
	return nil
}

// Every fires after due, then every period.
func (j *Job) Every(due, period time.Duration) error {
	return j.Schedule(schedule.Fixed{Delay: due, Period: period})
}

// EveryFrom fires at at (or now if at has passed), then every period.
func (j *Job) EveryFrom(at time.Time, period time.Duration) error {
	return j.Schedule(schedule.Anchored{At: at, Period: period})
}

// Daily fires every day at the time of day of at.
func (j *Job) Daily(at time.Time) error {
	return j.Schedule(schedule.DailyAt(at))
}

// Once fires a single time at at, or right away when immediate is set, then
// disposes the job.
func (j *Job) Once(at time.Time, immediate bool) error {
	return j.Schedule(schedule.Once{At: at, Immediate: immediate})
}

// SpawnOnce schedules a new single-shot job sharing this job's callback,
// timeout, hooks and side channels. The new job is named "<name>[<unix-nanos>]".
func (j *Job) SpawnOnce(at time.Time, immediate bool) (*Job, error) {
	h := j.hooks()
	name := fmt.Sprintf("%s[%d]", j.name, time.Now().UnixNano())
	child := New(name, j.cb,
		WithLogger(j.baseLog),
		WithRegistry(j.reg),
		WithBus(j.bus),
		WithContext(j.ctx),
		WithRealignMargin(j.margin),
	).
		WithTimeout(h.timeout).
		WithOnStart(h.onStart).
		WithOnEnd(h.onEnd).
		WithOnException(h.onException)
	if err := child.Once(at, immediate); err != nil {
		return nil, err
	}
	return child, nil
}

// Dispose stops the timer for good and removes the job from its registry.
// A firing already in flight completes its cycle. Safe to call more than once.
func (j *Job) Dispose() {
	j.mu.Lock()
	if j.disposed {
		j.mu.Unlock()
		return
	}
	j.disposed = true
	j.scheduled = false
	timer := j.timer
	j.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if j.reg != nil {
		j.reg.Remove(j)
	}
	j.log.Warn("job disposed")
	j.publish(Event{Kind: EventDisposed})
}
