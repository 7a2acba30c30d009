// Package app wires the services together and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"giveawaybot/internal/config"
	"giveawaybot/internal/eventbus"
	"giveawaybot/internal/giveaway"
	"giveawaybot/internal/member"
	"giveawaybot/internal/observability/status"
	"giveawaybot/internal/plugin"
	rtsup "giveawaybot/internal/runtime/supervisor"
	"giveawaybot/internal/storage"
	"giveawaybot/internal/task/engine"
	"giveawaybot/internal/task/scheduler"
	kit "giveawaybot/internal/transport"
	telegram "giveawaybot/internal/transport/telegram/adapter"
	"giveawaybot/internal/transport/telegram/router"
	"giveawaybot/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	logTo atomic.Pointer[kit.ChatTarget]
	bus   *eventbus.MemBus
	store storage.Store

	adapter *telegram.Adapter
	router  *router.Manager
	cool    *router.Cooldown

	engine  *engine.Service
	sched   *scheduler.Service
	members *member.Service
	gsvc    *giveaway.Service
	timers  *giveaway.Scheduler
	status  *status.Service
	pm      *plugin.Manager

	startedAt time.Time
	updates   chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error { return validate(cfg) })
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	a := &App{
		cfgm:      cfgm,
		startedAt: time.Now(),
		updates:   make(chan kit.Update, 256),
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	ad, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: pollTimeout}, bootLog)
	if err != nil {
		return nil, err
	}
	a.adapter = ad

	// The target is set before logx.New so the first Apply sees it.
	a.setLogTarget(cfg.Telegram.GroupLog)
	logSvc, root := logx.New(mapLogConfig(cfg), logx.ChatSinkFunc(a.sendLog))
	a.logs = logSvc
	a.log = root.With(logx.String("comp", "app"))
	cfgm.SetLogger(root.With(logx.String("comp", "config")))

	a.bus = eventbus.New()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	st, err := storage.Open(sc, root.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	a.store = st
	a.log.Info("storage opened", logx.String("driver", sc.Driver))

	engCfg, err := mapTaskEngineConfig(cfg)
	if err != nil {
		return nil, a.closeOnError(err)
	}
	a.engine = engine.New(engCfg, root.With(logx.String("comp", "taskengine")), a.bus)
	a.sched = scheduler.New(scheduler.Config{Timezone: cfg.Scheduler.Timezone}, a.engine,
		root.With(logx.String("comp", "scheduler")), a.bus)

	a.members = member.New(st, member.Config{MaxWarns: cfg.Moderation.MaxWarns}, root.With(logx.String("comp", "members")))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gs, err := mapGiveawayConfig(cfg)
	if err != nil {
		return nil, a.closeOnError(err)
	}
	a.gsvc = giveaway.NewService(st, a.members, nil, gs.service, root.With(logx.String("comp", "giveaway")),
		giveaway.WithBus(a.bus), giveaway.WithMetrics(giveaway.NewMetrics(reg)))
	a.timers = giveaway.NewScheduler(a.gsvc, a.sched, gs.timers)

	cd, err := mapCooldown(cfg)
	if err != nil {
		return nil, a.closeOnError(err)
	}
	a.cool = router.NewCooldown(cd)
	a.router = router.New(root.With(logx.String("comp", "router")), ad, cfg.Telegram.OwnerUserIDs, a.cool)

	a.pm = plugin.NewManager(root, plugin.Deps{
		Logger:    root,
		Adapter:   ad,
		Config:    cfgm,
		Bus:       a.bus,
		Store:     st,
		Giveaways: a.gsvc,
		Timers:    a.timers,
		Members:   a.members,
		Scheduler: a.sched,
		Backup:    a.runBackup,
		StartedAt: a.startedAt,
	}, a.router)

	stc, err := mapStatusConfig(cfg)
	if err != nil {
		return nil, a.closeOnError(err)
	}
	a.status = status.New(stc, a.stats, reg, a.startedAt, root)
	return a, nil
}

func (a *App) closeOnError(err error) error {
	if a.store != nil {
		_ = a.store.Close()
	}
	return err
}

// Plugins is where main registers the plugin set before Start.
func (a *App) Plugins() *plugin.Manager { return a.pm }

// Done is closed when the app supervisor context is canceled.
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

func (a *App) setLogTarget(ref string) {
	if strings.TrimSpace(ref) == "" {
		a.logTo.Store(nil)
		return
	}
	chatID, threadID, err := config.ParseChatRef(ref)
	if err != nil {
		a.logTo.Store(nil)
		return
	}
	a.logTo.Store(&kit.ChatTarget{ChatID: chatID, ThreadID: threadID})
}

func (a *App) sendLog(ctx context.Context, text string) error {
	to := a.logTo.Load()
	if to == nil {
		return nil
	}
	return a.adapter.SendLog(ctx, *to, text)
}

func (a *App) stats(ctx context.Context) status.Stats {
	return status.Stats{
		OpenGiveaways: len(a.gsvc.List(ctx)),
		PendingTimers: a.timers.Pending(),
	}
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	run := a.sup.Context()

	a.engine.Start(run)
	a.sched.Start(run)

	// Plugins install the announcer, so they start before expired
	// giveaways are ended.
	a.pm.StartAll(run)
	scheduled, expired := a.timers.Recover(run)
	a.log.Info("giveaway timers restored", logx.Int("scheduled", scheduled), logx.Int("expired", expired))

	if err := a.registerJobs(a.cfgm.Get()); err != nil {
		return err
	}

	if err := a.adapter.Start(run, a.updates); err != nil {
		return err
	}
	a.sup.Go("router.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) { a.reloadLoop(c, sub) })
	a.sup.Go("config.watch", func(c context.Context) error { return a.cfgm.Watch(c) })

	if a.status.Enabled() {
		a.status.Start(run)
	}

	a.notifyReady()
	a.log.Info("app started", logx.Int("owners", len(a.cfgm.Get().Telegram.OwnerUserIDs)))
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	notifyStopping(a.log)
	a.sup.Cancel()

	a.step(ctx, "plugins", 4*time.Second, func(c context.Context) error { a.pm.StopAll(c); return nil })
	a.step(ctx, "scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	a.step(ctx, "taskengine", 2*time.Second, func(c context.Context) error { a.engine.Stop(c); return nil })
	a.step(ctx, "status", time.Second, func(c context.Context) error { a.status.Stop(c); return nil })
	a.step(ctx, "adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	a.step(ctx, "storage", time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	a.step(ctx, "supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	return a.logs.Close()
}

// step runs one shutdown step bounded by max and by the caller's deadline.
// A step that overruns is logged and left behind.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem < max {
			max = rem
		}
	}
	if max <= 0 {
		a.log.Warn("stop step skipped, no time left", logx.String("name", name))
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		go func() {
			err := <-done
			a.log.Info("stop step finished after deadline",
				logx.String("name", name), logx.Duration("took", time.Since(start)), logx.Err(err))
		}()
	}
}

// runBackup writes one backup set and prunes old sets.
func (a *App) runBackup(ctx context.Context) ([]string, error) {
	cfg := a.cfgm.Get()
	dir := backupDir(cfg)
	files, err := storage.Backup(ctx, a.store, dir, time.Now())
	if err != nil {
		return nil, err
	}
	removed, err := storage.PruneBackups(dir, cfg.Backup.KeepSets())
	if err != nil {
		a.log.Warn("backup prune failed", logx.String("dir", dir), logx.Err(err))
	}
	a.log.Info("backup written",
		logx.String("dir", filepath.Clean(dir)), logx.Int("files", len(files)), logx.Int("pruned", removed))
	return files, nil
}
