package app

import (
	"context"

	"github.com/cockroachdb/errors"

	"onfly/internal/action"
	"onfly/internal/config"
	"onfly/internal/task/job"
	logx "onfly/pkg/logx"
)

// applyJobs reconciles running jobs with next. Removed and changed jobs are
// disposed; added and changed ones are built and scheduled fresh. A job that
// fails to build is reported and skipped; the rest still run.
func (a *App) applyJobs(ctx context.Context, prev, next *config.Config) error {
	d := config.DiffJobs(prev, next)
	decl := make(map[string]config.JobConfig, len(next.Jobs))
	for _, jc := range next.Jobs {
		decl[jc.Name] = jc
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, name := range append(append([]string(nil), d.Removed...), d.Changed...) {
		if j := a.byName[name]; j != nil {
			j.Dispose()
			delete(a.byName, name)
		}
	}

	var errs error
	for _, name := range append(append([]string(nil), d.Changed...), d.Added...) {
		j, err := a.buildJob(ctx, decl[name])
		if err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "job %q", name))
			continue
		}
		a.byName[name] = j
	}
	if !d.Empty() {
		a.log.Debug("jobs reconciled",
			logx.Any("added", d.Added), logx.Any("removed", d.Removed), logx.Any("changed", d.Changed))
	}
	return errs
}

// validateBuildable runs config.Validate and then builds every action once,
// so a reload whose actions cannot be constructed is rejected as a whole.
func validateBuildable(ctx context.Context, cfg *config.Config) error {
	if err := config.Validate(ctx, cfg); err != nil {
		return err
	}
	var errs error
	for i, jc := range cfg.Jobs {
		if _, err := action.Build(jc.Action, logx.Nop()); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "jobs[%d](%s).action", i, jc.Name))
		}
	}
	return errs
}

func (a *App) buildJob(ctx context.Context, jc config.JobConfig) (*job.Job, error) {
	strategy, err := jc.Strategy()
	if err != nil {
		return nil, err
	}
	cb, err := action.Build(jc.Action, a.log.With(logx.String("job", jc.Name), logx.String("action", jc.Action.Kind)))
	if err != nil {
		return nil, err
	}
	j := job.New(jc.Name, cb,
		job.WithLogger(a.log.With(logx.String("comp", "job"))),
		job.WithRegistry(a.jobs),
		job.WithBus(a.bus),
		job.WithContext(ctx),
	).WithTimeout(jc.TimeoutOrDefault(job.DefaultTimeout))
	if err := j.Schedule(strategy); err != nil {
		return nil, err
	}
	return j, nil
}

func (a *App) disposeAll() {
	a.mu.Lock()
	for name, j := range a.byName {
		j.Dispose()
		delete(a.byName, name)
	}
	wd := a.watchdog
	a.mu.Unlock()
	if wd != nil {
		wd.Dispose()
	}
	// Jobs registered by other callers (SpawnOnce children) go too.
	for _, j := range a.jobs.All() {
		j.Dispose()
	}
}
