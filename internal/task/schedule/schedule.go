package schedule

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
)

// NoRepeat as a Plan period means the job fires once.
const NoRepeat time.Duration = -1

var (
	ErrInvalidSchedule = errors.New("invalid schedule")
	ErrIrregularCron   = errors.New("cron expression has no fixed cadence")
)

// Plan is what the engine arms its timer with.
type Plan struct {
	DueTime time.Duration
	Period  time.Duration
	// Single marks a self-disposing one-shot job.
	Single bool
}

// Repeats reports whether the timer fires more than once.
func (p Plan) Repeats() bool { return p.Period > 0 }

func (p Plan) validate() error {
	if p.DueTime < 0 {
		return errors.Wrapf(ErrInvalidSchedule, "due time %s is negative", p.DueTime)
	}
	if p.Single {
		if p.Period != NoRepeat {
			return errors.Wrapf(ErrInvalidSchedule, "single plan must not repeat (period %s)", p.Period)
		}
		return nil
	}
	if p.Period <= 0 {
		return errors.Wrapf(ErrInvalidSchedule, "period must be > 0, got %s", p.Period)
	}
	return nil
}

// Strategy turns caller parameters into a Plan. Implementations are pure.
type Strategy interface {
	Plan(now time.Time) (Plan, error)
}

// Fixed waits Delay, then repeats every Period.
type Fixed struct {
	Delay  time.Duration
	Period time.Duration
}

func (f Fixed) Plan(time.Time) (Plan, error) {
	p := Plan{DueTime: f.Delay, Period: f.Period}
	return p, p.validate()
}

func (f Fixed) String() string { return fmt.Sprintf("every %s after %s", f.Period, f.Delay) }

// Anchored first fires at At (immediately if At is past), then every Period.
type Anchored struct {
	At     time.Time
	Period time.Duration
}

func (a Anchored) Plan(now time.Time) (Plan, error) {
	p := Plan{DueTime: dueFrom(a.At, now), Period: a.Period}
	return p, p.validate()
}

func (a Anchored) String() string {
	return fmt.Sprintf("every %s from %s", a.Period, a.At.Format(time.RFC3339))
}

// Daily fires every 24h at the wall-clock time of day in Location
// (time.Local when nil).
type Daily struct {
	Hour, Minute, Second int
	Location             *time.Location
}

// DailyAt takes the time of day (and location) from t.
func DailyAt(t time.Time) Daily {
	return Daily{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second(), Location: t.Location()}
}

func (d Daily) Plan(now time.Time) (Plan, error) {
	if d.Hour < 0 || d.Hour > 23 || d.Minute < 0 || d.Minute > 59 || d.Second < 0 || d.Second > 59 {
		return Plan{}, errors.Wrapf(ErrInvalidSchedule, "time of day %02d:%02d:%02d out of range", d.Hour, d.Minute, d.Second)
	}
	loc := d.Location
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	target := time.Date(local.Year(), local.Month(), local.Day(), d.Hour, d.Minute, d.Second, 0, loc)
	if !target.After(local) {
		target = time.Date(local.Year(), local.Month(), local.Day()+1, d.Hour, d.Minute, d.Second, 0, loc)
	}
	return Plan{DueTime: target.Sub(local), Period: 24 * time.Hour}, nil
}

func (d Daily) String() string { return fmt.Sprintf("daily at %02d:%02d:%02d", d.Hour, d.Minute, d.Second) }

// Once fires a single time at At, or right away when Immediate is set or At is past.
type Once struct {
	At        time.Time
	Immediate bool
}

func (o Once) Plan(now time.Time) (Plan, error) {
	p := Plan{Period: NoRepeat, Single: true}
	if !o.Immediate {
		p.DueTime = dueFrom(o.At, now)
	}
	return p, nil
}

func (o Once) String() string {
	if o.Immediate {
		return "once, now"
	}
	return "once at " + o.At.Format(time.RFC3339)
}

func dueFrom(at, now time.Time) time.Duration {
	if at.After(now) {
		return at.Sub(now)
	}
	return 0
}

// Next previews the first n fire instants of s as seen from now.
func Next(s Strategy, now time.Time, n int) ([]time.Time, error) {
	if s == nil {
		return nil, errors.Wrap(ErrInvalidSchedule, "nil strategy")
	}
	p, err := s.Plan(now)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	at := now.Add(p.DueTime)
	out := []time.Time{at}
	if !p.Repeats() {
		return out, nil
	}
	for len(out) < n {
		at = at.Add(p.Period)
		out = append(out, at)
	}
	return out, nil
}
