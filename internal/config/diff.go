package config

import (
	"reflect"
	"strings"

	logx "giveawaybot/pkg/logx"
)

// SummarizeConfigChange lists changed sections and returns log fields that
// describe them. Secrets (tokens, passwords) are reported only as "set".
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)
	ts := strings.TrimSpace

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if ts(ot.PollTimeout) != ts(nt.PollTimeout) || ts(ot.Cooldown) != ts(nt.Cooldown) ||
		!reflect.DeepEqual(ot.OwnerUserIDs, nt.OwnerUserIDs) || ts(ot.GroupLog) != ts(nt.GroupLog) ||
		ts(ot.Token) != ts(nt.Token) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.String("telegram.poll_timeout", ts(nt.PollTimeout)),
			logx.String("telegram.cooldown", ts(nt.Cooldown)),
			logx.Int("telegram.owner_count", len(nt.OwnerUserIDs)),
			logx.Bool("telegram.group_log_set", ts(nt.GroupLog) != ""),
			logx.Bool("telegram.token_changed", ts(ot.Token) != ts(nt.Token)),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs, logx.String("scheduler.timezone", newCfg.Scheduler.Timezone))
	}

	if oldCfg.TaskEngine != newCfg.TaskEngine {
		changed = append(changed, "task_engine")
		attrs = append(attrs,
			logx.Int("task_engine.workers", newCfg.TaskEngine.Workers),
			logx.Int("task_engine.queue_size", newCfg.TaskEngine.QueueSize),
			logx.Int("task_engine.retry_max", newCfg.TaskEngine.RetryMax),
		)
	}

	oldSt, newSt := oldCfg.Storage, newCfg.Storage
	oldSt.Password, newSt.Password = "", ""
	if oldSt != newSt || oldCfg.Storage.Password != newCfg.Storage.Password {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newSt.Driver),
			logx.String("storage.path", newSt.Path),
			logx.String("storage.addr", newSt.Addr),
		)
	}

	if oldCfg.Giveaway != newCfg.Giveaway {
		changed = append(changed, "giveaway")
		g := newCfg.Giveaway
		attrs = append(attrs,
			logx.String("giveaway.sweep_interval", g.SweepInterval),
			logx.String("giveaway.retention", g.Retention),
			logx.Int("giveaway.max_winners", g.MaxWinners),
		)
	}

	if oldCfg.Moderation != newCfg.Moderation {
		changed = append(changed, "moderation")
		attrs = append(attrs, logx.Int("moderation.max_warns", newCfg.Moderation.MaxWarns))
	}

	ob, nb := oldCfg.Backup, newCfg.Backup
	if ob.BackupEnabled() != nb.BackupEnabled() || ob.KeepSets() != nb.KeepSets() ||
		ts(ob.Schedule) != ts(nb.Schedule) || ts(ob.Dir) != ts(nb.Dir) {
		changed = append(changed, "backup")
		attrs = append(attrs,
			logx.Bool("backup.enabled", nb.BackupEnabled()),
			logx.String("backup.schedule", nb.Schedule),
			logx.Int("backup.keep", nb.KeepSets()),
		)
	}

	oh, nh := oldCfg.HTTP, newCfg.HTTP
	if oh.Enabled != nh.Enabled || ts(oh.Addr) != ts(nh.Addr) || oh.AllowInsecure != nh.AllowInsecure ||
		ts(oh.ReadTimeout) != ts(nh.ReadTimeout) || ts(oh.WriteTimeout) != ts(nh.WriteTimeout) ||
		(ts(oh.Token) != "") != (ts(nh.Token) != "") {
		changed = append(changed, "http")
		attrs = append(attrs,
			logx.Bool("http.enabled", nh.Enabled),
			logx.String("http.addr", ts(nh.Addr)),
			logx.Bool("http.token_set", ts(nh.Token) != ""),
		)
	}

	return changed, attrs
}
