package metrics

import (
	"context"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onfly/internal/eventbus"
	"onfly/internal/task/job"
	logx "onfly/pkg/logx"
)

func ev(kind, name string, d time.Duration) eventbus.Event {
	return eventbus.Event{Type: kind, Data: job.Event{Kind: kind, Job: name, Duration: d}}
}

func TestCountersFollowEvents(t *testing.T) {
	t.Parallel()
	c := New(func() int { return 3 })

	c.Observe(ev(job.EventStarted, "a", 0))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.running.WithLabelValues("a")))

	c.Observe(ev(job.EventFinished, "a", 20*time.Millisecond))
	c.Observe(ev(job.EventFailed, "a", time.Second))
	c.Observe(ev(job.EventCancelled, "b", 2*time.Second))
	c.Observe(ev(job.EventSkipped, "b", 0))
	c.Observe(ev(job.EventSkipped, "b", 0))
	c.Observe(eventbus.Event{Type: "job.finished", Data: "not a job event"})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.firings.WithLabelValues("a", "finished")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.firings.WithLabelValues("a", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.firings.WithLabelValues("b", "cancelled")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.skips.WithLabelValues("b")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.running.WithLabelValues("a")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.duration))
}

func TestHandlerExposesSeries(t *testing.T) {
	t.Parallel()
	c := New(func() int { return 7 })
	c.Observe(ev(job.EventFinished, "heartbeat", time.Millisecond))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `onfly_job_firings_total{job="heartbeat",outcome="finished"} 1`)
	assert.Contains(t, body, "onfly_jobs_scheduled 7")
	assert.True(t, strings.Contains(body, "go_goroutines"))
}

func TestServeReportsBusyPort(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	c := New(func() int { return 0 })
	err = c.Serve(context.Background(), ServeOptions{Addr: ln.Addr().String()}, logx.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics listen "+ln.Addr().String())
}
