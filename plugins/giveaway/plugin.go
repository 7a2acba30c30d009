// Package giveaway is the chat surface of the giveaway engine: commands to
// start, end, reroll and list giveaways, and the entry button callback.
package giveaway

import (
	"context"
	"errors"

	gw "giveawaybot/internal/giveaway"
	"giveawaybot/internal/plugin"
	"giveawaybot/internal/transport/telegram/router"
	"giveawaybot/pkg/logx"
)

type Plugin struct {
	plugin.Base
	ann *Announcer
}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return "giveaway" }

func (p *Plugin) Init(ctx context.Context, deps plugin.Deps) error {
	p.InitBase(deps, p.Name())
	if deps.Giveaways == nil || deps.Adapter == nil {
		return errors.New("giveaway service and adapter are required")
	}
	var names NameFunc
	if deps.Members != nil {
		names = deps.Members.DisplayName
	}
	p.ann = NewAnnouncer(deps.Adapter, p.Log, names)
	deps.Giveaways.SetAnnouncer(p.ann)
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
			Route:       "giveaway",
			Aliases:     []string{"gstart"},
			Description: "start a giveaway in this chat",
			Usage:       "/giveaway <duration> <winners> <prize...>",
			Access:      router.AccessOwnerOnly,
			Handle:      p.cmdStart,
		},
		{
			Route:       "gend",
			Description: "end a giveaway now",
			Usage:       "/gend <id>",
			Access:      router.AccessOwnerOnly,
			Handle:      p.cmdEnd,
		},
		{
			Route:       "greroll",
			Description: "draw extra winners for an ended giveaway",
			Usage:       "/greroll <id> [count]",
			Access:      router.AccessOwnerOnly,
			Handle:      p.cmdReroll,
		},
		{
			Route:       "giveaways",
			Aliases:     []string{"glist"},
			Description: "list active giveaways",
			Usage:       "/giveaways",
			Handle:      p.cmdList,
		},
	}
}

func (p *Plugin) Callbacks() []router.CallbackRoute {
	return []router.CallbackRoute{
		{Plugin: "gw", Action: "enter", Handle: p.cbEnter},
	}
}

func (p *Plugin) cbEnter(ctx context.Context, req *router.Request) (string, error) {
	n, err := p.Deps.Giveaways.Enter(ctx, req.Payload, req.From.ID)
	if err == nil && p.Deps.Members != nil {
		if nerr := p.Deps.Members.SetName(ctx, req.From.ID, req.From.DisplayName()); nerr != nil {
			p.Log.Warn("member name not saved", logx.Int64("user", req.From.ID), logx.Err(nerr))
		}
	}
	reply := gw.EntryReply(n, err)
	if errors.Is(err, gw.ErrStore) {
		return reply, err
	}
	return reply, nil
}
