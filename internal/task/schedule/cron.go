package schedule

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
)

// cronParser accepts 5 fields, an optional leading seconds field, and
// descriptors like @hourly or @every 15m.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// cadenceSamples is how many consecutive gaps must match for a cron expression
// to be accepted as a fixed period.
const cadenceSamples = 3

// Cron aligns the first firing to the next match of Expr and then repeats
// with the gap between matches. Only expressions with a uniform gap are
// accepted, because the engine re-arms with a single fixed period.
type Cron struct {
	Expr     string
	Location *time.Location
}

// ValidateCron reports whether expr parses.
func ValidateCron(expr string) error {
	if _, err := cronParser.Parse(strings.TrimSpace(expr)); err != nil {
		return errors.Wrapf(ErrInvalidSchedule, "cron %q: %v", expr, err)
	}
	return nil
}

func (c Cron) Plan(now time.Time) (Plan, error) {
	expr := strings.TrimSpace(c.Expr)
	if expr == "" {
		return Plan{}, errors.Wrap(ErrInvalidSchedule, "cron expression required")
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return Plan{}, errors.Wrapf(ErrInvalidSchedule, "cron %q: %v", expr, err)
	}
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)

	first := sched.Next(local)
	if first.IsZero() {
		return Plan{}, errors.Wrapf(ErrInvalidSchedule, "cron %q never fires", expr)
	}

	var period time.Duration
	if cd, ok := sched.(cron.ConstantDelaySchedule); ok {
		period = cd.Delay
	} else {
		prev := first
		for i := 0; i < cadenceSamples; i++ {
			next := sched.Next(prev)
			if next.IsZero() {
				return Plan{}, errors.Wrapf(ErrIrregularCron, "cron %q stops firing", expr)
			}
			gap := next.Sub(prev)
			if period == 0 {
				period = gap
			} else if gap != period {
				return Plan{}, errors.Wrapf(ErrIrregularCron, "cron %q: gaps %s and %s", expr, period, gap)
			}
			prev = next
		}
	}
	if period <= 0 {
		return Plan{}, errors.Wrapf(ErrInvalidSchedule, "cron %q: non-positive cadence", expr)
	}
	return Plan{DueTime: dueFrom(first, local), Period: period}, nil
}

func (c Cron) String() string { return "cron " + c.Expr }
