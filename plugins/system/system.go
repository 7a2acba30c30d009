// Package system holds the self-service and operator commands: registration,
// verification, status and on-demand backups.
package system

import (
	"context"
	"errors"
	"time"

	"giveawaybot/internal/plugin"
	"giveawaybot/internal/transport/telegram/router"
	"giveawaybot/pkg/tgui"
)

type Plugin struct {
	plugin.Base
	startedAt time.Time
}

func New() *Plugin             { return &Plugin{} }
func (p *Plugin) Name() string { return "system" }

func (p *Plugin) Init(ctx context.Context, deps plugin.Deps) error {
	p.InitBase(deps, p.Name())
	if deps.Members == nil {
		return errors.New("member service is required")
	}
	p.startedAt = deps.StartedAt
	if p.startedAt.IsZero() {
		p.startedAt = time.Now()
	}
	return nil
}

func (p *Plugin) Start(ctx context.Context) error {
	p.StartBase(ctx)
	return nil
}

func (p *Plugin) Stop(ctx context.Context) error { return p.StopBase(ctx) }

func (p *Plugin) Commands() []router.Command {
	return []router.Command{
		{
			Route:       "ping",
			Description: "health check",
			Usage:       "/ping",
			Handle: func(ctx context.Context, req *router.Request) error {
				return req.Reply(ctx, "pong")
			},
		},
		{
			Route:       "register",
			Description: "register to join giveaways",
			Usage:       "/register",
			Handle:      p.cmdRegister,
		},
		{
			Route:       "verify",
			Description: "verify your registration",
			Usage:       "/verify",
			Handle:      p.cmdVerify,
		},
		{
			Route:       "status",
			Aliases:     []string{"uptime"},
			Description: "bot status",
			Usage:       "/status",
			Handle:      p.cmdStatus,
		},
		{
			Route:       "tasks",
			Aliases:     []string{"sched"},
			Description: "list scheduled jobs and pending timers",
			Usage:       "/tasks",
			Access:      router.AccessOwnerOnly,
			Handle:      p.cmdTasks,
		},
		{
			Route:       "backup",
			Description: "write a backup now",
			Usage:       "/backup",
			Access:      router.AccessOwnerOnly,
			Timeout:     2 * time.Minute,
			Handle:      p.cmdBackup,
		},
	}
}

func (p *Plugin) Callbacks() []router.CallbackRoute {
	return []router.CallbackRoute{
		{Plugin: "sys", Action: "verify", Handle: p.cbVerify},
	}
}

func verifyKeyboard() tgui.Keyboard {
	return tgui.Keyboard{}.Row(tgui.Btn("✅ Verify", tgui.Data("sys", "verify", "")))
}
