package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"onfly/internal/config"
	"onfly/internal/task/job"
	"onfly/internal/task/schedule"
	logx "onfly/pkg/logx"
)

const watchdogJobName = "systemd.watchdog"

// startSystemd sends READY=1 and, when the unit sets WatchdogSec, schedules a
// job that pings the watchdog at half the interval. Both are no-ops outside
// systemd.
func (a *App) startSystemd(ctx context.Context, cfg config.SystemdConfig) error {
	if cfg.Notify {
		sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
		if err != nil {
			return err
		}
		a.log.Debug("sd_notify ready", logx.Bool("sent", sent))
	}
	if !cfg.Watchdog {
		return nil
	}
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return err
	}
	period := max(interval/2, time.Second)
	wd := job.New(watchdogJobName, func(context.Context, time.Duration) error {
		_, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		return err
	}, job.WithLogger(a.log.With(logx.String("comp", "job"))), job.WithBus(a.bus), job.WithContext(ctx)).
		WithTimeout(period)
	if err := wd.Schedule(schedule.Fixed{Delay: 0, Period: period}); err != nil {
		return err
	}
	a.mu.Lock()
	a.watchdog = wd
	a.mu.Unlock()
	a.log.Info("systemd watchdog enabled", logx.Duration("interval", interval), logx.Duration("ping_every", period))
	return nil
}

func notifyStopping(cfg config.SystemdConfig) {
	if cfg.Notify {
		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	}
}
