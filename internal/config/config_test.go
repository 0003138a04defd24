package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onfly/internal/task/schedule"
)

const sampleYAML = `
logging: { level: debug, console: true }
storage: { driver: file, path: ./h.jsonl }
metrics: { enabled: true }
systemd: { notify: true, watchdog: true }
jobs:
  - name: heartbeat
    schedule: "every:30s"
    delay: 1s
    timeout: 10s
    action: { kind: log, message: alive }
  - name: nightly
    schedule: "daily:03:00"
    action: { kind: exec, command: [/bin/true] }
  - name: api
    schedule: "1m"
    action: { kind: http, url: "http://127.0.0.1:8080/healthz" }
`

func TestDecodeYAML(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("jobs.yaml", []byte(sampleYAML))
	require.NoError(t, err)
	require.NoError(t, Validate(context.Background(), cfg))

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Equal(t, DefaultMetricsAddr, cfg.Metrics.Addr)
	assert.Equal(t, DefaultMetricsPath, cfg.Metrics.Path)
	require.Len(t, cfg.Jobs, 3)

	hb := cfg.Jobs[0]
	st, err := hb.Strategy()
	require.NoError(t, err)
	assert.Equal(t, schedule.Fixed{Delay: time.Second, Period: 30 * time.Second}, st)
	assert.Equal(t, 10*time.Second, hb.TimeoutOrDefault(time.Hour))
	assert.Equal(t, time.Hour, cfg.Jobs[1].TimeoutOrDefault(time.Hour))

	api := cfg.Jobs[2].Action
	assert.Equal(t, "GET", api.Method)
	assert.Equal(t, 200, api.ExpectStatus)
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	_, err := Decode("jobs.yaml", []byte("jobs:\n  - name: x\n    shedule: 1m\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shedule")

	_, err = Decode("jobs.json", []byte(`{"jobs":[]} {"jobs":[]}`))
	require.Error(t, err)
}

func TestValidateCollectsProblems(t *testing.T) {
	t.Parallel()
	cfg := &Config{
		Logging: LoggingConfig{Level: "loud"},
		Storage: StorageConfig{Driver: "postgres"},
		Alerts:  AlertsConfig{Telegram: TelegramAlerts{Enabled: true}},
		Jobs: []JobConfig{
			{Name: "a", Schedule: "1m", Action: ActionConfig{Kind: ActionLog}},
			{Name: "a", Schedule: "1m", Action: ActionConfig{Kind: ActionLog}},
			{Name: "b", Schedule: "whenever", Action: ActionConfig{Kind: "teleport"}},
			{Name: "c", Schedule: "daily:03:00", Delay: "5s", Action: ActionConfig{Kind: ActionExec}},
			{Name: "d", Schedule: "1m", Timeout: "soon", Action: ActionConfig{Kind: ActionHTTP, URL: "/relative"}},
		},
	}
	err := Validate(context.Background(), cfg)
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"logging.level",
		"storage.driver",
		"alerts.telegram.token",
		"alerts.telegram.chat_id",
		`"a" already used by jobs[0]`,
		"jobs[2](b).schedule",
		`unknown action "teleport"`,
		"jobs[3](c).schedule",
		"jobs[3](c).action.command",
		"jobs[4](d).timeout",
		"jobs[4](d).action.url",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestSpreadOnlyDelaysFirstRun(t *testing.T) {
	t.Parallel()
	j := JobConfig{Name: "s", Schedule: "every:10s", Delay: "0s", Spread: true}
	st, err := j.Strategy()
	require.NoError(t, err)
	f := st.(schedule.Fixed)
	assert.Equal(t, 10*time.Second, f.Period)
	assert.GreaterOrEqual(t, f.Delay, time.Duration(0))
	assert.Less(t, f.Delay, 10*time.Second)
}

func TestDiffJobs(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{Jobs: []JobConfig{{Name: "a", Schedule: "1m"}, {Name: "b", Schedule: "1m"}}}
	newCfg := &Config{Jobs: []JobConfig{{Name: "b", Schedule: "2m"}, {Name: "c", Schedule: "1m"}}}
	d := DiffJobs(oldCfg, newCfg)
	assert.Equal(t, []string{"c"}, d.Added)
	assert.Equal(t, []string{"a"}, d.Removed)
	assert.Equal(t, []string{"b"}, d.Changed)

	sections, _ := SummarizeChange(oldCfg, newCfg)
	assert.Equal(t, []string{"jobs"}, sections)
	assert.True(t, DiffJobs(newCfg, newCfg).Empty())
}

func TestManagerWatchPublishesReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.yaml")
	write := func(body string) {
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	write("jobs:\n  - name: a\n    schedule: 1m\n    action: { kind: log }\n")

	m := NewManager(path)
	cfg, err := m.Load()
	require.NoError(t, err)
	require.Len(t, cfg.Jobs, 1)

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Watch(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	write("jobs:\n  - name: a\n    schedule: 1m\n    action: { kind: log }\n  - name: b\n    schedule: 2m\n    action: { kind: log }\n")

	select {
	case got := <-ch:
		require.Len(t, got.Jobs, 2)
		assert.Same(t, got, m.Get())
	case <-time.After(5 * time.Second):
		t.Fatal("no reload published")
	}

	// Invalid content is rejected and the committed config is kept.
	write("jobs:\n  - name: a\n    schedule: nope\n    action: { kind: log }\n")
	select {
	case got := <-ch:
		t.Fatalf("unexpected publish: %+v", got)
	case <-time.After(700 * time.Millisecond):
	}
	assert.Len(t, m.Get().Jobs, 2)
}

func TestManagerCustomValidator(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jobs:\n  - name: a\n    schedule: 1m\n    action: { kind: log }\n"), 0o644))

	m := NewManager(path)
	var seen int
	m.SetValidator(func(ctx context.Context, cfg *Config) error {
		seen = len(cfg.Jobs)
		return errors.New("vetoed")
	})
	_, err := m.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vetoed")
	assert.Equal(t, 1, seen)
	assert.Nil(t, m.Get())

	// nil disables validation, so even a bad schedule is committed.
	require.NoError(t, os.WriteFile(path, []byte("jobs:\n  - name: a\n    schedule: nope\n    action: { kind: log }\n"), 0o644))
	m.SetValidator(nil)
	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Same(t, cfg, m.Get())
}
