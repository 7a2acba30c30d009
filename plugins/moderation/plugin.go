// Package moderation provides warn, mute and ban commands backed by the
// member warn history. Reaching the warn limit bans the user.
package moderation

import (
	"context"
	"errors"
	"sync"
	"time"

	"giveawaybot/internal/config"
	"giveawaybot/internal/plugin"
	kit "giveawaybot/internal/transport"
	"giveawaybot/internal/transport/telegram/router"
	"giveawaybot/pkg/durationx"
	"giveawaybot/pkg/logx"
)

const defaultMute = 10 * time.Minute

type Plugin struct {
	plugin.Base

	mu          sync.RWMutex
	muteMax     time.Duration
	muteDefault time.Duration
}

func New() *Plugin {
	return &Plugin{muteMax: durationx.MuteMax, muteDefault: defaultMute}
}

func (p *Plugin) Name() string { return "moderation" }

func (p *Plugin) Init(ctx context.Context, deps plugin.Deps) error {
	p.InitBase(deps, p.Name())
	if deps.Members == nil || deps.Adapter == nil {
		return errors.New("member service and adapter are required")
	}
	if deps.Config != nil {
		if cfg := deps.Config.Get(); cfg != nil {
			return p.applyConfig(cfg.Moderation)
		}
	}
	return nil
}

func (p *Plugin) Start(ctx context.Context) error {
	p.StartBase(ctx)
	return nil
}

func (p *Plugin) Stop(ctx context.Context) error { return p.StopBase(ctx) }

func (p *Plugin) OnConfigChange(ctx context.Context, cfg *config.Config) error {
	return p.applyConfig(cfg.Moderation)
}

func (p *Plugin) applyConfig(mc config.ModerationConfig) error {
	maxD, err := config.ParseDurationOrDefault("moderation.mute_max", mc.MuteMax, durationx.MuteMax)
	if err != nil {
		return err
	}
	def, err := config.ParseDurationOrDefault("moderation.mute_default", mc.MuteDefault, defaultMute)
	if err != nil {
		return err
	}
	maxD = min(maxD, durationx.MuteMax)
	def = min(def, maxD)

	p.mu.Lock()
	p.muteMax, p.muteDefault = maxD, def
	p.mu.Unlock()
	p.Log.Debug("moderation settings applied", logx.Duration("mute_max", maxD), logx.Duration("mute_default", def))
	return nil
}

func (p *Plugin) muteOptions() durationx.Options {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return durationx.Options{Max: p.muteMax, Default: p.muteDefault}
}

func (p *Plugin) moderator() (kit.Moderator, bool) {
	m, ok := p.Deps.Adapter.(kit.Moderator)
	return m, ok
}

func (p *Plugin) Commands() []router.Command {
	return []router.Command{
		{
			Route:       "warn",
			Description: "warn a user",
			Usage:       "/warn <user_id> [reason...] (or reply to a message)",
			Access:      router.AccessOwnerOnly,
			Handle:      p.cmdWarn,
		},
		{
			Route:       "unwarn",
			Description: "remove a warning",
			Usage:       "/unwarn <user_id> <n|all> (or reply with <n|all>)",
			Access:      router.AccessOwnerOnly,
			Handle:      p.cmdUnwarn,
		},
		{
			Route:       "warnings",
			Aliases:     []string{"warns"},
			Description: "show warnings",
			Usage:       "/warnings [user_id]",
			Handle:      p.cmdWarnings,
		},
		{
			Route:       "mute",
			Description: "mute a user for a while",
			Usage:       "/mute <user_id> [duration] [reason...]",
			Access:      router.AccessOwnerOnly,
			Handle:      p.cmdMute,
		},
		{
			Route:       "unmute",
			Description: "lift a mute",
			Usage:       "/unmute <user_id>",
			Access:      router.AccessOwnerOnly,
			Handle:      p.cmdUnmute,
		},
		{
			Route:       "ban",
			Description: "ban a user from this chat",
			Usage:       "/ban <user_id> [reason...]",
			Access:      router.AccessOwnerOnly,
			Handle:      p.cmdBan,
		},
	}
}
