package config

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"onfly/internal/task/schedule"
	logx "onfly/pkg/logx"
)

// Validate checks the whole file and reports every problem at once.
func Validate(ctx context.Context, c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	var probs []string
	add := func(format string, args ...any) { probs = append(probs, fmt.Sprintf(format, args...)) }

	if strings.TrimSpace(c.Logging.Level) != "" {
		if !logx.ValidLevel(c.Logging.Level) {
			add("logging.level: unknown level %q", c.Logging.Level)
		}
	}

	switch c.Storage.Driver {
	case "", "none", "file", "sqlite":
	default:
		add("storage.driver: unknown driver %q (file|sqlite|none)", c.Storage.Driver)
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		add("%v", err)
	}

	if c.Metrics.Enabled && c.Metrics.Path != "" && !strings.HasPrefix(c.Metrics.Path, "/") {
		add("metrics.path: must start with '/'")
	}

	if tg := c.Alerts.Telegram; tg.Enabled {
		if strings.TrimSpace(tg.Token) == "" {
			add("alerts.telegram.token: required when enabled")
		}
		if tg.ChatID == 0 {
			add("alerts.telegram.chat_id: required when enabled")
		}
	}

	seen := make(map[string]int, len(c.Jobs))
	for i, j := range c.Jobs {
		if ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		p := fmt.Sprintf("jobs[%d]", i)
		name := strings.TrimSpace(j.Name)
		if name == "" {
			add("%s.name: required", p)
		} else if prev, dup := seen[name]; dup {
			add("%s.name: %q already used by jobs[%d]", p, name, prev)
		} else {
			seen[name] = i
			p = fmt.Sprintf("jobs[%d](%s)", i, name)
		}
		if _, err := j.Strategy(); err != nil {
			add("%s.schedule: %v", p, err)
		}
		if _, err := ParseDurationField(p+".timeout", j.Timeout); err != nil {
			add("%v", err)
		}
		validateAction(p+".action", j.Action, add)
	}

	if len(probs) == 0 {
		return nil
	}
	return errors.Newf("invalid config:\n  - %s", strings.Join(probs, "\n  - "))
}

func validateAction(p string, a ActionConfig, add func(string, ...any)) {
	switch a.Kind {
	case ActionLog:
	case ActionExec:
		if len(a.Command) == 0 || strings.TrimSpace(a.Command[0]) == "" {
			add("%s.command: required for exec", p)
		}
	case ActionHTTP:
		u, err := url.Parse(a.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			add("%s.url: absolute http(s) url required, got %q", p, a.URL)
		}
		if a.ExpectStatus != 0 && (a.ExpectStatus < 100 || a.ExpectStatus > 599) {
			add("%s.expect_status: %d is not an HTTP status", p, a.ExpectStatus)
		}
	case ActionSpeedtest:
		if a.Servers < 0 {
			add("%s.servers: must be >= 0", p)
		}
	case ActionUnit:
		if strings.TrimSpace(a.Unit) == "" {
			add("%s.unit: required for unit", p)
		}
	case "":
		add("%s.kind: required", p)
	default:
		add("%s.kind: unknown action %q", p, a.Kind)
	}
}

// Strategy resolves the job's schedule string, delay override and spread.
func (j JobConfig) Strategy() (schedule.Strategy, error) {
	st, err := schedule.Parse(j.Schedule)
	if err != nil {
		return nil, err
	}
	delay, err := ParseDurationField("delay", j.Delay)
	if err != nil {
		return nil, err
	}
	f, ok := st.(schedule.Fixed)
	if !ok {
		if delay > 0 || j.Spread {
			return nil, errors.Newf("delay and spread only apply to interval schedules")
		}
		return st, nil
	}
	if strings.TrimSpace(j.Delay) != "" {
		f.Delay = delay
	}
	if j.Spread {
		f, _ = schedule.Spread(f, j.Name, schedule.MaxStartupSpread)
	}
	return f, nil
}

// TimeoutOrDefault returns the job timeout, or def when unset.
func (j JobConfig) TimeoutOrDefault(def time.Duration) time.Duration {
	d, err := ParseDurationOrDefault("timeout", j.Timeout, def)
	if err != nil {
		return def
	}
	return d
}
