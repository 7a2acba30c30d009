package app

import (
	"context"
	"errors"
	"time"

	"giveawaybot/internal/config"
	"giveawaybot/internal/storage"
	"giveawaybot/pkg/logx"
)

const (
	jobSweep  = "giveaway.sweep"
	jobBackup = "storage.backup"
)

// registerJobs upserts the periodic jobs for cfg. Called at start and on
// every reload.
func (a *App) registerJobs(cfg *config.Config) error {
	gs, err := mapGiveawayConfig(cfg)
	if err != nil {
		return err
	}
	if err := a.sched.AddInterval(jobSweep, gs.sweep, 2*time.Minute, a.sweepJob); err != nil {
		return err
	}

	if !cfg.Backup.BackupEnabled() {
		if a.sched.Remove(jobBackup) {
			a.log.Info("scheduled backups disabled")
		}
		return nil
	}
	return a.sched.AddSchedule(jobBackup, backupSchedule(cfg), 5*time.Minute, a.backupJob)
}

func (a *App) sweepJob(ctx context.Context) error {
	rep := a.timers.Sweep(ctx)
	fields := []logx.Field{
		logx.Int("open", rep.Open),
		logx.Int("ended", rep.Ended),
		logx.Int("failed", rep.Failed),
		logx.Int("purged", rep.Purged),
	}
	if rep.Ended+rep.Failed+rep.Purged == 0 {
		a.log.Debug("giveaway sweep", fields...)
		return nil
	}
	a.log.Info("giveaway sweep", fields...)
	return nil
}

func (a *App) backupJob(ctx context.Context) error {
	_, err := a.runBackup(ctx)
	if errors.Is(err, storage.ErrDisabled) {
		return nil
	}
	return err
}
