package config

import (
	"reflect"
	"sort"

	logx "onfly/pkg/logx"
)

// JobDiff lists job names by how they changed between two configs.
type JobDiff struct {
	Added   []string
	Removed []string
	Changed []string
}

func (d JobDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// DiffJobs compares job declarations by name.
func DiffJobs(oldCfg, newCfg *Config) JobDiff {
	oldJobs := jobsByName(oldCfg)
	newJobs := jobsByName(newCfg)

	var d JobDiff
	for name, nj := range newJobs {
		oj, ok := oldJobs[name]
		switch {
		case !ok:
			d.Added = append(d.Added, name)
		case !reflect.DeepEqual(oj, nj):
			d.Changed = append(d.Changed, name)
		}
	}
	for name := range oldJobs {
		if _, ok := newJobs[name]; !ok {
			d.Removed = append(d.Removed, name)
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Strings(d.Changed)
	return d
}

func jobsByName(c *Config) map[string]JobConfig {
	if c == nil {
		return nil
	}
	m := make(map[string]JobConfig, len(c.Jobs))
	for _, j := range c.Jobs {
		m[j.Name] = j
	}
	return m
}

// SummarizeChange returns the top-level sections that changed, plus log
// fields that are safe to print (never the telegram token).
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var changed []string
	var attrs []logx.Field

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs, logx.String("logging.level", newCfg.Logging.Level))
	}
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage.driver", newCfg.Storage.Driver))
	}
	if oldCfg.Metrics != newCfg.Metrics {
		changed = append(changed, "metrics")
		attrs = append(attrs, logx.Bool("metrics.enabled", newCfg.Metrics.Enabled))
	}
	if oldCfg.Alerts != newCfg.Alerts {
		changed = append(changed, "alerts")
		attrs = append(attrs, logx.Bool("alerts.telegram.enabled", newCfg.Alerts.Telegram.Enabled))
	}
	if oldCfg.Systemd != newCfg.Systemd {
		changed = append(changed, "systemd")
	}
	if d := DiffJobs(oldCfg, newCfg); !d.Empty() {
		changed = append(changed, "jobs")
		attrs = append(attrs,
			logx.Any("jobs.added", d.Added),
			logx.Any("jobs.removed", d.Removed),
			logx.Any("jobs.changed", d.Changed),
		)
	}
	return changed, attrs
}
