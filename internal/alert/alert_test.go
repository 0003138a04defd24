package alert

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onfly/internal/eventbus"
	"onfly/internal/task/job"
	logx "onfly/pkg/logx"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSender) Send(_ context.Context, text string) error {
	f.mu.Lock()
	f.sent = append(f.sent, text)
	f.mu.Unlock()
	return nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func outcome(kind, name, msg string) eventbus.Event {
	return eventbus.Event{Type: kind, Data: job.Event{Kind: kind, Job: name, Error: msg, Duration: 1500 * time.Millisecond}}
}

func TestHandleSendsOnlyFailures(t *testing.T) {
	t.Parallel()
	fs := &fakeSender{}
	n := NewNotifier(fs, 100, logx.Nop())
	ctx := context.Background()

	n.Handle(ctx, outcome(job.EventFinished, "ok", ""))
	n.Handle(ctx, outcome(job.EventFailed, "backup", "exit status 1"))
	n.Handle(ctx, outcome(job.EventCancelled, "backup", "timed out"))

	got := fs.texts()
	require.Len(t, got, 2)
	assert.Contains(t, got[0], "backup failed")
	assert.Contains(t, got[0], "exit status 1")
	assert.Contains(t, got[0], "1.5s")
	assert.Contains(t, got[1], "backup cancelled")
}

func TestHandleRateLimitsAndReportsSuppressed(t *testing.T) {
	t.Parallel()
	fs := &fakeSender{}
	n := NewNotifier(fs, 1, logx.Nop())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		n.Handle(ctx, outcome(job.EventFailed, "noisy", "boom"))
	}
	require.Len(t, fs.texts(), 1)

	time.Sleep(1100 * time.Millisecond)
	n.Handle(ctx, outcome(job.EventFailed, "noisy", "boom"))
	got := fs.texts()
	require.Len(t, got, 2)
	assert.Contains(t, got[1], "3 earlier alerts suppressed")
}

func TestRunConsumesBus(t *testing.T) {
	t.Parallel()
	fs := &fakeSender{}
	n := NewNotifier(fs, 100, logx.Nop())
	bus := eventbus.New()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx, bus) }()

	require.Eventually(t, func() bool {
		bus.Publish(outcome(job.EventFailed, "j", "x"))
		return len(fs.texts()) > 0
	}, 2*time.Second, 20*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestNewTelegramRejectsMissingFields(t *testing.T) {
	t.Parallel()
	_, err := NewTelegram(Config{})
	require.Error(t, err)
	_, err = NewTelegram(Config{Token: "123:abc"})
	require.Error(t, err)
}
