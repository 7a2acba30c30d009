package app

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"giveawaybot/internal/config"
	"giveawaybot/internal/giveaway"
	"giveawaybot/internal/observability/status"
	"giveawaybot/internal/storage"
	"giveawaybot/internal/task/engine"
	"giveawaybot/internal/task/scheduler"
	"giveawaybot/pkg/logx"
)

const (
	defaultStorageDir     = "./data"
	defaultBackupSchedule = "@every 6h"
	defaultCooldown       = 3 * time.Second
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "", "file":
		if path == "" {
			path = defaultStorageDir
		}
		return storage.Config{Driver: "file", Path: path}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			path = filepath.Join(defaultStorageDir, "giveawaybot.db")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, nil
	case "redis":
		addr := strings.TrimSpace(sc.Addr)
		if addr == "" {
			addr = "127.0.0.1:6379"
		}
		return storage.Config{Driver: "redis", Addr: addr, Password: sc.Password, DB: sc.DB, Prefix: sc.Prefix}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

// backupDir is backup.dir, or a backups folder next to the data.
func backupDir(cfg *config.Config) string {
	if d := strings.TrimSpace(cfg.Backup.Dir); d != "" {
		return d
	}
	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return filepath.Join(defaultStorageDir, "backups")
	}
	switch sc.Driver {
	case "file":
		return filepath.Join(sc.Path, "backups")
	case "sqlite":
		return filepath.Join(filepath.Dir(sc.Path), "backups")
	default:
		return filepath.Join(defaultStorageDir, "backups")
	}
}

func backupSchedule(cfg *config.Config) string {
	if s := strings.TrimSpace(cfg.Backup.Schedule); s != "" {
		return s
	}
	return defaultBackupSchedule
}

func mapTaskEngineConfig(cfg *config.Config) (engine.Config, error) {
	te := cfg.TaskEngine
	defTimeout, err := config.ParseDurationOrDefault("task_engine.default_timeout", te.DefaultTimeout, 30*time.Second)
	if err != nil {
		return engine.Config{}, err
	}
	maxQueueDelay, err := config.ParseDurationField("task_engine.max_queue_delay", te.MaxQueueDelay)
	if err != nil {
		return engine.Config{}, err
	}
	cooldown, err := config.ParseDurationOrDefault("task_engine.circuit_cooldown", te.CircuitCooldown, 5*time.Second)
	if err != nil {
		return engine.Config{}, err
	}
	out := engine.Config{
		Enabled:        true,
		Workers:        te.Workers,
		QueueSize:      te.QueueSize,
		DefaultTimeout: defTimeout,
		MaxQueueDelay:  maxQueueDelay,
		HistorySize:    te.HistorySize,
		RetryMax:       te.RetryMax,
		CircuitTrip:    te.CircuitTrip,
		CircuitBase:    cooldown,
	}
	if out.Workers <= 0 {
		out.Workers = 2
	}
	if out.QueueSize <= 0 {
		out.QueueSize = 256
	}
	if out.HistorySize <= 0 {
		out.HistorySize = 200
	}
	if out.RetryMax == 0 {
		out.RetryMax = 3
	}
	return out, nil
}

type giveawaySettings struct {
	service giveaway.Config
	timers  giveaway.SchedulerConfig
	sweep   time.Duration
}

func mapGiveawayConfig(cfg *config.Config) (giveawaySettings, error) {
	gc := cfg.Giveaway
	var (
		out giveawaySettings
		err error
	)
	if out.sweep, err = config.ParseDurationOrDefault("giveaway.sweep_interval", gc.SweepInterval, time.Hour); err != nil {
		return out, err
	}
	if out.timers.ExpiredGrace, err = config.ParseDurationKeepZero("giveaway.expired_grace", gc.ExpiredGrace, time.Second); err != nil {
		return out, err
	}
	if out.timers.EndTimeout, err = config.ParseDurationOrDefault("giveaway.end_timeout", gc.EndTimeout, 30*time.Second); err != nil {
		return out, err
	}
	if out.service.Retention, err = config.ParseDurationKeepZero("giveaway.retention", gc.Retention, 7*24*time.Hour); err != nil {
		return out, err
	}
	if out.service.MaxDuration, err = config.ParseDurationOrDefault("giveaway.max_duration", gc.MaxDuration, 30*24*time.Hour); err != nil {
		return out, err
	}
	out.service.MaxWinners = gc.MaxWinners
	out.timers.EndConcurrency = gc.EndConcurrency
	if out.timers.EndConcurrency <= 0 {
		out.timers.EndConcurrency = 1
	}
	return out, nil
}

func mapCooldown(cfg *config.Config) (time.Duration, error) {
	return config.ParseDurationKeepZero("telegram.cooldown", cfg.Telegram.Cooldown, defaultCooldown)
}

func mapStatusConfig(cfg *config.Config) (status.Config, error) {
	hc := cfg.HTTP
	read, err := config.ParseDurationOrDefault("http.read_timeout", hc.ReadTimeout, 5*time.Second)
	if err != nil {
		return status.Config{}, err
	}
	write, err := config.ParseDurationOrDefault("http.write_timeout", hc.WriteTimeout, 10*time.Second)
	if err != nil {
		return status.Config{}, err
	}
	return status.Config{
		Enabled:       hc.Enabled,
		Addr:          hc.Addr,
		Token:         hc.Token,
		AllowInsecure: hc.AllowInsecure,
		ReadTimeout:   read,
		WriteTimeout:  write,
		IdleTimeout:   60 * time.Second,
	}, nil
}

// validate rejects configs the services cannot apply. It runs before every
// hot reload commit, on top of config.Validate.
func validate(cfg *config.Config) error {
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := mapTaskEngineConfig(cfg); err != nil {
		return err
	}
	if _, err := mapGiveawayConfig(cfg); err != nil {
		return err
	}
	if _, err := mapCooldown(cfg); err != nil {
		return err
	}
	if _, err := mapStatusConfig(cfg); err != nil {
		return err
	}
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
		}
	}
	if cfg.Backup.BackupEnabled() {
		if _, err := scheduler.ParseSchedule(backupSchedule(cfg)); err != nil {
			return fmt.Errorf("backup.schedule: %w", err)
		}
	}
	return nil
}
