// Package metrics exposes job lifecycle counters to Prometheus.
package metrics

import (
	"context"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"onfly/internal/eventbus"
	"onfly/internal/task/job"
	logx "onfly/pkg/logx"
)

const namespace = "onfly"

// Collector turns job.* bus events into Prometheus series.
type Collector struct {
	reg *prometheus.Registry

	firings  *prometheus.CounterVec
	skips    *prometheus.CounterVec
	running  *prometheus.GaugeVec
	duration *prometheus.HistogramVec
}

// New registers the collectors on a private registry. jobs, when non-nil,
// backs the onfly_jobs_scheduled gauge.
func New(jobs func() int) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	c := &Collector{
		reg: reg,
		firings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_firings_total",
			Help:      "Completed firings by job and outcome (finished, failed, cancelled).",
		}, []string{"job", "outcome"}),
		skips: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_skips_total",
			Help:      "Timer ticks skipped because the previous firing was still running.",
		}, []string{"job"}),
		running: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_running",
			Help:      "1 while a firing of the job is in flight.",
		}, []string{"job"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Firing duration from start to end.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 9),
		}, []string{"job"}),
	}
	if jobs != nil {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_scheduled",
			Help:      "Jobs currently registered.",
		}, func() float64 { return float64(jobs()) })
	}
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// Run consumes bus events until ctx is done.
func (c *Collector) Run(ctx context.Context, bus eventbus.Bus) error {
	return eventbus.Consume(ctx, bus, 512, c.Observe, "job.")
}

// Observe applies one bus event.
func (c *Collector) Observe(e eventbus.Event) {
	ev, ok := e.Data.(job.Event)
	if !ok {
		return
	}
	switch ev.Kind {
	case job.EventStarted:
		c.running.WithLabelValues(ev.Job).Set(1)
	case job.EventFinished, job.EventFailed, job.EventCancelled:
		outcome := ev.Kind[len("job."):]
		c.firings.WithLabelValues(ev.Job, outcome).Inc()
		c.duration.WithLabelValues(ev.Job).Observe(ev.Duration.Seconds())
		c.running.WithLabelValues(ev.Job).Set(0)
	case job.EventSkipped:
		c.skips.WithLabelValues(ev.Job).Inc()
	case job.EventDisposed:
		c.running.DeleteLabelValues(ev.Job)
	}
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{Registry: c.reg})
}

// ServeOptions configures the metrics listener.
type ServeOptions struct {
	Addr string
	Path string
	// Pprof mounts net/http/pprof under /debug/pprof/ on the same listener.
	Pprof bool
}

// Serve exposes the handler until ctx is done.
func (c *Collector) Serve(ctx context.Context, opts ServeOptions, log logx.Logger) error {
	addr, path := opts.Addr, opts.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, c.Handler())
	if opts.Pprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "metrics listen %s", addr)
	}
	log.Info("metrics listening",
		logx.String("addr", ln.Addr().String()), logx.String("path", path), logx.Bool("pprof", opts.Pprof))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "metrics serve")
	}
}
