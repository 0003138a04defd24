// Package action builds job callbacks from the declarative action blocks of
// the job file.
package action

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"onfly/internal/config"
	"onfly/internal/task/job"
	logx "onfly/pkg/logx"
)

// ErrUnknownKind is returned for an action kind with no builder.
var ErrUnknownKind = errors.New("unknown action kind")

// Build returns the callback for one action. log should already carry the
// job name.
func Build(a config.ActionConfig, log logx.Logger) (job.Callback, error) {
	switch a.Kind {
	case config.ActionLog:
		return Log(a.Message, log), nil
	case config.ActionExec:
		return Exec(a.Command, a.Dir, log)
	case config.ActionHTTP:
		return HTTP(a.URL, a.Method, a.ExpectStatus, nil)
	case config.ActionSpeedtest:
		return Speedtest(NewSpeedtestRunner(SpeedtestConfig{Servers: a.Servers}), log), nil
	case config.ActionUnit:
		return Unit(NewUnitControl(), a.Unit, a.Restart, log)
	default:
		return nil, errors.Wrapf(ErrUnknownKind, "%q", a.Kind)
	}
}

// Log writes message at info level on every firing.
func Log(message string, log logx.Logger) job.Callback {
	return func(ctx context.Context, timeout time.Duration) error {
		log.Info(message, logx.Duration("timeout", timeout))
		return ctx.Err()
	}
}
