package app

import (
	"context"
	"strings"

	"giveawaybot/internal/config"
	"giveawaybot/internal/member"
	"giveawaybot/internal/task/scheduler"
	"giveawaybot/pkg/logx"
)

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	defer a.cfgm.Unsubscribe(sub)
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: only the newest config is applied.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
				default:
					break drain
				}
			}
			a.applyConfig(ctx, last, cfg)
			last = cfg
		}
	}
}

func (a *App) applyConfig(ctx context.Context, prev, cfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, cfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	for _, key := range restartKeys(prev, cfg) {
		a.log.Warn("config key changed; restart required for it to take effect", logx.String("key", key))
	}

	a.setLogTarget(cfg.Telegram.GroupLog)
	a.logs.Apply(mapLogConfig(cfg))

	a.router.SetOwners(cfg.Telegram.OwnerUserIDs)
	if cd, err := mapCooldown(cfg); err == nil {
		a.cool.SetInterval(cd)
	}
	a.members.Apply(member.Config{MaxWarns: cfg.Moderation.MaxWarns})

	if ec, err := mapTaskEngineConfig(cfg); err != nil {
		a.log.Warn("invalid task_engine config; keeping previous", logx.Err(err))
	} else {
		a.engine.Apply(ctx, ec)
	}
	a.sched.Apply(scheduler.Config{Timezone: cfg.Scheduler.Timezone})

	if err := a.registerJobs(cfg); err != nil {
		a.log.Warn("periodic jobs not updated", logx.Err(err))
	}

	if sc, err := mapStatusConfig(cfg); err != nil {
		a.log.Warn("invalid http config; keeping previous", logx.Err(err))
	} else {
		a.status.Reconfigure(ctx, sc)
	}

	a.pm.Apply(ctx, cfg)

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// restartKeys lists changed settings that are only read in New.
func restartKeys(prev, cfg *config.Config) []string {
	var out []string
	if strings.TrimSpace(prev.Telegram.Token) != strings.TrimSpace(cfg.Telegram.Token) {
		out = append(out, "telegram.token")
	}
	if prev.Telegram.PollTimeout != cfg.Telegram.PollTimeout {
		out = append(out, "telegram.poll_timeout")
	}
	if prev.Storage != cfg.Storage {
		out = append(out, "storage")
	}
	pg, ng := prev.Giveaway, cfg.Giveaway
	pg.SweepInterval, ng.SweepInterval = "", ""
	if pg != ng {
		out = append(out, "giveaway")
	}
	return out
}
