package schedule

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

var (
	reHHMM  = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)
	reClock = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})(?::(\d{2}))?\s*$`)
)

// Parse maps a job-file schedule string onto a Strategy.
//
// Supported forms:
//   - cron:<expr>, or anything containing whitespace or starting with '@'
//     ("*/5 * * * *", "@hourly", "@every 55m")
//   - daily:HH:MM[:SS]            wall-clock time of day, local zone
//   - once:now | once:<RFC3339>   single shot
//   - at:<RFC3339>/<interval>     anchored first run, then fixed period
//   - every:<interval>, interval:<interval>, or a bare interval
//
// An interval is a Go duration ("55m", "2h30m") or HH:MM ("02:30" is two and a
// half hours). Interval schedules come back as Fixed with Delay == Period; the
// caller may override Delay.
func Parse(raw string) (Strategy, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, errors.Wrap(ErrInvalidSchedule, "schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return nil, errors.Wrap(ErrInvalidSchedule, "cron schedule required after 'cron:'")
		}
		return cronStrategy(expr)
	case strings.HasPrefix(low, "daily:"):
		return parseDaily(strings.TrimSpace(s[len("daily:"):]))
	case strings.HasPrefix(low, "once:"):
		return parseOnce(strings.TrimSpace(s[len("once:"):]))
	case strings.HasPrefix(low, "at:"):
		return parseAnchored(strings.TrimSpace(s[len("at:"):]))
	case strings.HasPrefix(low, "interval:"):
		return intervalStrategy(s[len("interval:"):])
	case strings.HasPrefix(low, "every:"):
		return intervalStrategy(s[len("every:"):])
	}

	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return cronStrategy(s)
	}

	if st, err := intervalStrategy(s); err == nil {
		return st, nil
	}
	return nil, errors.Wrapf(ErrInvalidSchedule,
		"unrecognised schedule %q (use cron like '*/5 * * * *', daily:03:00, once:now, HH:MM like '02:30', or duration like '55m')",
		raw,
	)
}

func cronStrategy(expr string) (Strategy, error) {
	if err := ValidateCron(expr); err != nil {
		return nil, err
	}
	return Cron{Expr: expr}, nil
}

func intervalStrategy(v string) (Strategy, error) {
	d, err := parseInterval(v)
	if err != nil {
		return nil, err
	}
	return Fixed{Delay: d, Period: d}, nil
}

func parseDaily(v string) (Strategy, error) {
	m := reClock.FindStringSubmatch(v)
	if m == nil {
		return nil, errors.Wrapf(ErrInvalidSchedule, "invalid daily time %q (want HH:MM or HH:MM:SS)", v)
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	ss := 0
	if m[3] != "" {
		ss, _ = strconv.Atoi(m[3])
	}
	d := Daily{Hour: hh, Minute: mm, Second: ss}
	if _, err := d.Plan(time.Now()); err != nil {
		return nil, err
	}
	return d, nil
}

func parseOnce(v string) (Strategy, error) {
	if strings.EqualFold(v, "now") {
		return Once{Immediate: true}, nil
	}
	at, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidSchedule, "invalid once time %q (want RFC3339 or 'now')", v)
	}
	return Once{At: at}, nil
}

func parseAnchored(v string) (Strategy, error) {
	i := strings.LastIndex(v, "/")
	if i < 0 {
		return nil, errors.Wrapf(ErrInvalidSchedule, "invalid anchored schedule %q (want <RFC3339>/<interval>)", v)
	}
	at, err := time.Parse(time.RFC3339, strings.TrimSpace(v[:i]))
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidSchedule, "invalid anchor time %q", v[:i])
	}
	period, err := parseInterval(v[i+1:])
	if err != nil {
		return nil, err
	}
	return Anchored{At: at, Period: period}, nil
}

func parseInterval(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, errors.Wrap(ErrInvalidSchedule, "interval required")
	}
	if reHHMM.MatchString(v) {
		return parseHHMMDuration(v)
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidSchedule, "invalid interval %q (use HH:MM or Go duration like '55m'/'2h30m')", v)
	}
	if d <= 0 {
		return 0, errors.Wrap(ErrInvalidSchedule, "interval must be > 0")
	}
	return d, nil
}

func parseHHMMDuration(v string) (time.Duration, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, errors.Wrapf(ErrInvalidSchedule, "invalid HH:MM %q", v)
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if mm > 59 {
		return 0, errors.Wrapf(ErrInvalidSchedule, "invalid minutes in %q", v)
	}
	d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	if d <= 0 {
		return 0, errors.Wrap(ErrInvalidSchedule, "interval must be > 0")
	}
	return d, nil
}
