// Package plugin hosts chat command sets. A plugin contributes commands and
// callback routes to the router and owns its background goroutines through a
// per-plugin supervisor.
package plugin

import (
	"context"
	"errors"
	"time"

	"giveawaybot/internal/config"
	"giveawaybot/internal/eventbus"
	"giveawaybot/internal/giveaway"
	"giveawaybot/internal/member"
	rtsup "giveawaybot/internal/runtime/supervisor"
	"giveawaybot/internal/storage"
	"giveawaybot/internal/task/scheduler"
	kit "giveawaybot/internal/transport"
	"giveawaybot/internal/transport/telegram/router"
	"giveawaybot/pkg/logx"
)

type Plugin interface {
	Name() string
	Init(ctx context.Context, deps Deps) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Commands() []router.Command
}

type CallbackProvider interface {
	Callbacks() []router.CallbackRoute
}

// ConfigurablePlugin is notified after a config reload was committed.
type ConfigurablePlugin interface {
	OnConfigChange(ctx context.Context, cfg *config.Config) error
}

// Deps are the shared services handed to every plugin.
type Deps struct {
	Logger    logx.Logger
	Adapter   kit.Adapter
	Config    *config.ConfigManager
	Bus       eventbus.Bus
	Store     storage.Store
	Giveaways *giveaway.Service
	Timers    *giveaway.Scheduler
	Members   *member.Service
	Scheduler *scheduler.Service
	// Backup runs one backup set now and returns the written files.
	Backup func(ctx context.Context) ([]string, error)
	// Plugins reports plugin states. NewManager fills it when unset.
	Plugins   func(ctx context.Context) []Status
	StartedAt time.Time
}

// Base carries the common plugin plumbing. Embed it and call InitBase from
// Init, StartBase from Start and StopBase from Stop.
type Base struct {
	Log    logx.Logger
	Deps   Deps
	Runner *rtsup.Supervisor
	name   string
	ctx    context.Context
}

func (b *Base) InitBase(deps Deps, name string) {
	b.Deps = deps
	b.name = name
	log := deps.Logger
	if log.IsZero() {
		log = logx.Nop()
	}
	b.Log = log.With(logx.String("plugin", name))
}

func (b *Base) StartBase(ctx context.Context) {
	b.ctx = ctx
	b.Runner = rtsup.New(ctx, rtsup.WithLogger(b.Log), rtsup.WithCancelOnError(false))
}

func (b *Base) StopBase(ctx context.Context) error {
	if b.Runner == nil {
		return nil
	}
	b.Runner.Cancel()
	err := b.Runner.Wait(ctx)
	b.Runner = nil
	return err
}

// Context is canceled when the plugin stops.
func (b *Base) Context() context.Context {
	if b.ctx == nil {
		return context.Background()
	}
	return b.ctx
}

// Health is "ok" while the plugin runs.
func (b *Base) Health(ctx context.Context) (string, error) {
	if b.ctx == nil {
		return "not_started", nil
	}
	if err := b.ctx.Err(); err != nil {
		return "stopped", err
	}
	return "ok", nil
}

// Audit appends an audit entry. Failures are logged only.
func (b *Base) Audit(ctx context.Context, e storage.AuditEntry) {
	if b.Deps.Store == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	if err := storage.AppendAudit(ctx, b.Deps.Store, e); err != nil && !errors.Is(err, storage.ErrDisabled) {
		b.Log.Warn("audit append failed", logx.String("action", e.Action), logx.Err(err))
	}
}

func (b *Base) Publish(typ string, data any) { eventbus.Emit(b.Deps.Bus, typ, data) }

// Owners returns the configured owner ids.
func (b *Base) Owners() []int64 {
	if b.Deps.Config == nil {
		return nil
	}
	if cfg := b.Deps.Config.Get(); cfg != nil {
		return cfg.Telegram.OwnerUserIDs
	}
	return nil
}
