package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"onfly/internal/alert"
	"onfly/internal/config"
	"onfly/internal/eventbus"
	"onfly/internal/metrics"
	"onfly/internal/runtime/supervisor"
	"onfly/internal/storage"
	"onfly/internal/task/job"
	logx "onfly/pkg/logx"
)

// metricsMaxRestarts bounds retries of the metrics listener; a port that
// stays taken surfaces as a fatal error instead of looping forever.
const metricsMaxRestarts = 10

// App owns the daemon: the job file, the jobs declared in it and the
// consumers of their lifecycle events.
type App struct {
	cfgm *config.Manager
	cfg  *config.Config

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store   storage.Store
	metrics *metrics.Collector
	alerts  *alert.Notifier

	jobs *job.Registry

	mu     sync.Mutex
	byName map[string]*job.Job

	sup      *supervisor.Supervisor
	watchdog *job.Job
}

// New loads and validates the job file and opens storage. Nothing runs until
// Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfgm.SetValidator(validateBuildable)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logs, log := logx.NewService(mapLogConfig(cfg))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	a := &App{
		cfgm:   cfgm,
		cfg:    cfg,
		log:    log,
		logs:   logs,
		bus:    eventbus.New(),
		jobs:   job.NewRegistry(),
		byName: map[string]*job.Job{},
	}

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		_ = logs.Close()
		return nil, err
	}
	st, err := storage.Open(sc, log)
	if err != nil {
		_ = logs.Close()
		return nil, err
	}
	if st != nil {
		a.store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	if cfg.Metrics.Enabled {
		a.metrics = metrics.New(a.jobs.Len)
	}

	if tg := cfg.Alerts.Telegram; tg.Enabled {
		sender, err := alert.NewTelegram(mapAlertConfig(cfg))
		if err != nil {
			// Alerts are best-effort; a bad token must not keep jobs from running.
			log.Warn("telegram alerts disabled", logx.Err(err))
		} else {
			a.alerts = alert.NewNotifier(sender, tg.RatePerSec, log.With(logx.String("comp", "alert")))
			log.Info("telegram alerts enabled", logx.Int64("chat_id", tg.ChatID), logx.Int("thread_id", tg.ThreadID))
		}
	}
	return a, nil
}

func (a *App) Bus() eventbus.Bus      { return a.bus }
func (a *App) Jobs() *job.Registry    { return a.jobs }
func (a *App) Store() storage.Store   { return a.store }
func (a *App) Config() *config.Config { return a.cfgm.Get() }

// Done is closed when the app context is cancelled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start launches the event consumers, the config watcher and every declared
// job, then reports readiness to systemd.
func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return errors.New("app already started")
	}
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)
	sctx := a.sup.Context()

	if a.store != nil {
		rec := storage.NewRecorder(a.store, a.log.With(logx.String("comp", "history")))
		a.sup.GoRestart("history.recorder", func(c context.Context) error { return rec.Run(c, a.bus) })
	}
	if a.metrics != nil {
		m := a.metrics
		opts := metrics.ServeOptions{Addr: a.cfg.Metrics.Addr, Path: a.cfg.Metrics.Path, Pprof: a.cfg.Metrics.Pprof}
		a.sup.GoRestart("metrics.collector", func(c context.Context) error { return m.Run(c, a.bus) })
		a.sup.GoRestart("metrics.http", func(c context.Context) error {
			return m.Serve(c, opts, a.log.With(logx.String("comp", "metrics")))
		}, supervisor.WithRestartBackoff(time.Second, time.Minute), supervisor.WithMaxRestarts(metricsMaxRestarts))
	}
	if a.alerts != nil {
		n := a.alerts
		a.sup.GoRestart("alerts.telegram", func(c context.Context) error { return n.Run(c, a.bus) })
	}

	a.sup.Go("eventbus.log", func(c context.Context) error {
		return eventbus.Consume(c, a.bus, 128, func(e eventbus.Event) {
			if a.log.Enabled(logx.LevelTrace) {
				a.log.Trace("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		})
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		return a.reloadLoop(c, sub)
	})
	a.sup.GoRestart("config.watch", a.cfgm.Watch, supervisor.WithRestartBackoff(time.Second, time.Minute))

	if err := a.applyJobs(sctx, nil, a.cfg); err != nil {
		a.log.Warn("some jobs failed to schedule", logx.Err(err))
	}

	if err := a.startSystemd(sctx, a.cfg.Systemd); err != nil {
		a.log.Warn("systemd notify failed", logx.Err(err))
	}
	a.log.Info("started", logx.Int("jobs", a.jobs.Len()), logx.String("config", a.cfgm.Path()))
	return nil
}

func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) error {
	last := a.cfg
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case next, ok := <-sub:
			if !ok {
				return nil
			}
			// Coalesce bursts: only the newest config matters.
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						next = newer
					}
				default:
					drained = true
				}
			}
			a.applyConfig(ctx, last, next)
			last = next
		}
	}
}

func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	sections, attrs := config.SummarizeChange(prev, next)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("applying config change", fields...)

	for _, s := range sections {
		switch s {
		case "logging":
			a.logs.Apply(mapLogConfig(next))
		case "storage", "metrics", "alerts", "systemd":
			a.log.Warn(s + " config changed; restart required for changes to take effect")
		}
	}
	if err := a.applyJobs(ctx, prev, next); err != nil {
		a.log.Warn("some jobs failed to schedule", logx.Err(err))
	}
}

// StopReason says why the daemon is stopping.
type StopReason string

const (
	StopSignal     StopReason = "signal"
	StopFatalError StopReason = "fatal_error"
)

// Stop disposes every job, stops the supervised loops and closes storage.
// Each step is bounded so one stuck component cannot stall shutdown.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	notifyStopping(a.cfg.Systemd)

	// In-flight firings see their context cancelled while jobs are disposed.
	a.sup.Cancel()

	var errs error
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		start := time.Now()
		if err := fn(stepCtx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			errs = errors.CombineErrors(errs, errors.Wrap(err, name))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	step("jobs", time.Second, func(context.Context) error {
		a.disposeAll()
		return nil
	})
	step("supervisor", 3*time.Second, a.sup.Wait)
	for _, ls := range a.sup.Snapshot() {
		if ls.Restarts == 0 && ls.Panics == 0 && ls.LastErr == "" {
			continue
		}
		a.log.Info("loop summary",
			logx.String("name", ls.Name),
			logx.Int("restarts", ls.Restarts),
			logx.Int("panics", ls.Panics),
			logx.String("last_err", ls.LastErr))
	}
	step("storage", time.Second, func(context.Context) error {
		if a.store == nil {
			return nil
		}
		return a.store.Close()
	})
	a.log.Info("stopped")
	_ = a.logs.Close()
	return errs
}
