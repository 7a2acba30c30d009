package moderation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"giveawaybot/internal/member"
	"giveawaybot/internal/storage"
	kit "giveawaybot/internal/transport"
	"giveawaybot/internal/transport/telegram/router"
	"giveawaybot/pkg/durationx"
	"giveawaybot/pkg/logx"
	"giveawaybot/pkg/tgui"
)

const msgNoModerator = "⚠️ This chat backend cannot moderate members."

// target picks the user a command acts on: the author of the replied-to
// message, or a numeric id in the first argument. rest holds the remaining
// arguments.
func target(req *router.Request) (u kit.User, rest []string, ok bool) {
	if req.ReplyTo != nil && req.ReplyTo.ID != 0 {
		return *req.ReplyTo, req.Args, true
	}
	if len(req.Args) == 0 {
		return kit.User{}, nil, false
	}
	id, err := strconv.ParseInt(req.Args[0], 10, 64)
	if err != nil || id == 0 {
		return kit.User{}, nil, false
	}
	return kit.User{ID: id}, req.Args[1:], true
}

func mention(u kit.User) tgui.H { return tgui.Mention(u.DisplayName(), u.ID) }

// resolveTarget replies with usage when no target is given and refuses to
// act on owners.
func (p *Plugin) resolveTarget(ctx context.Context, req *router.Request, usage string) (kit.User, []string, bool) {
	u, rest, ok := target(req)
	if !ok {
		_ = req.Reply(ctx, "Usage: "+usage)
		return kit.User{}, nil, false
	}
	if slices.Contains(req.Owners, u.ID) {
		_ = req.Reply(ctx, "Owners cannot be moderated.")
		return kit.User{}, nil, false
	}
	return u, rest, true
}

func (p *Plugin) audit(ctx context.Context, req *router.Request, action string, u kit.User, detail string, err error) {
	e := storage.AuditEntry{
		ActorID: req.From.ID,
		ChatID:  req.Chat.ChatID,
		Action:  action,
		Target:  strconv.FormatInt(u.ID, 10),
		Detail:  detail,
	}
	if err != nil {
		e.Error = err.Error()
	}
	p.Audit(ctx, e)
}

func (p *Plugin) cmdWarn(ctx context.Context, req *router.Request) error {
	u, rest, ok := p.resolveTarget(ctx, req, "/warn <user_id> [reason...] (or reply to a message)")
	if !ok {
		return nil
	}
	reason := strings.Join(rest, " ")
	count, limit, err := p.Deps.Members.Warn(ctx, u.ID, req.From.ID, reason)
	if err != nil {
		_ = req.Reply(ctx, "⚠️ Could not save the warning, try again.")
		return err
	}
	if strings.TrimSpace(reason) == "" {
		reason = member.DefaultWarnReason
	}
	p.audit(ctx, req, "member.warn", u, reason, nil)

	maxWarns := p.Deps.Members.MaxWarns()
	msg := tgui.JoinH("\n",
		tgui.Raw("⚠️ ")+mention(u)+tgui.Raw(fmt.Sprintf(" has been warned (%d/%d).", count, maxWarns)),
		tgui.Raw("Reason: ")+tgui.Esc(reason),
	)
	if _, err := req.ReplyHTML(ctx, msg, nil); err != nil {
		return err
	}
	if !limit {
		return nil
	}

	mod, ok := p.moderator()
	if !ok {
		return req.Reply(ctx, msgNoModerator)
	}
	banErr := mod.BanMember(ctx, req.Chat.ChatID, u.ID)
	p.audit(ctx, req, "member.autoban", u, fmt.Sprintf("%d warnings", count), banErr)
	if banErr != nil {
		req.Logger.Warn("auto-ban failed", logx.Int64("user", u.ID), logx.Err(banErr))
		_ = req.Reply(ctx, "⚠️ Warn limit reached but the ban failed. Check the bot's admin rights.")
		return banErr
	}
	_, err = req.ReplyHTML(ctx, tgui.Raw("🔨 ")+mention(u)+tgui.Raw(fmt.Sprintf(" reached %d warnings and was banned.", count)), nil)
	return err
}

func (p *Plugin) cmdUnwarn(ctx context.Context, req *router.Request) error {
	const usage = "/unwarn <user_id> <n|all> (or reply with <n|all>)"
	u, rest, ok := p.resolveTarget(ctx, req, usage)
	if !ok {
		return nil
	}
	if len(rest) == 0 {
		return req.Reply(ctx, "Usage: "+usage)
	}
	idx := 0
	if !strings.EqualFold(rest[0], "all") {
		n, err := strconv.Atoi(rest[0])
		if err != nil || n <= 0 {
			return req.Reply(ctx, "Pass a warning number or all.")
		}
		idx = n
	}
	removed, remaining, err := p.Deps.Members.Unwarn(ctx, u.ID, idx)
	switch {
	case errors.Is(err, member.ErrNoWarnings):
		return req.Reply(ctx, "That user has no warnings.")
	case errors.Is(err, member.ErrInvalidWarnIndex):
		return req.Reply(ctx, "❌ "+strings.TrimPrefix(err.Error(), member.ErrInvalidWarnIndex.Error()+": "))
	case err != nil:
		_ = req.Reply(ctx, "⚠️ Could not update warnings, try again.")
		return err
	}
	p.audit(ctx, req, "member.unwarn", u, fmt.Sprintf("removed %d", len(removed)), nil)
	_, err = req.ReplyHTML(ctx, tgui.Raw("✅ Removed "+plural(len(removed), "warning")+" from ")+mention(u)+
		tgui.Raw(fmt.Sprintf(". %d left.", remaining)), nil)
	return err
}

func (p *Plugin) cmdWarnings(ctx context.Context, req *router.Request) error {
	u, _, ok := target(req)
	if !ok {
		u = req.From
	}
	warns := p.Deps.Members.Warnings(ctx, u.ID)
	if len(warns) == 0 {
		_, err := req.ReplyHTML(ctx, mention(u)+tgui.Raw(" has no warnings."), nil)
		return err
	}
	lines := []tgui.H{
		mention(u) + tgui.Raw(fmt.Sprintf(" has %d/%d warnings:", len(warns), p.Deps.Members.MaxWarns())),
	}
	for i, w := range warns {
		at := time.UnixMilli(w.AtMs).UTC().Format("2006-01-02")
		lines = append(lines, tgui.Raw(fmt.Sprintf("%d. ", i+1))+tgui.Esc(w.Reason)+tgui.Raw(" ")+tgui.I(at))
	}
	_, err := req.ReplyHTML(ctx, tgui.JoinH("\n", lines...), nil)
	return err
}

func (p *Plugin) cmdMute(ctx context.Context, req *router.Request) error {
	u, rest, ok := p.resolveTarget(ctx, req, "/mute <user_id> [duration] [reason...]")
	if !ok {
		return nil
	}
	opt := p.muteOptions()
	d := opt.Default
	if len(rest) > 0 && looksLikeDuration(rest[0]) {
		v, ok := durationx.Parse(rest[0], durationx.Options{Max: opt.Max})
		if !ok {
			return req.Reply(ctx, "Invalid duration. Use e.g. 10m, 2h or 1d, at most "+durationx.Humanize(opt.Max)+".")
		}
		d, rest = v, rest[1:]
	}
	mod, ok := p.moderator()
	if !ok {
		return req.Reply(ctx, msgNoModerator)
	}
	until := time.Now().Add(d)
	err := mod.RestrictMember(ctx, req.Chat.ChatID, u.ID, until)
	p.audit(ctx, req, "member.mute", u, strings.TrimSpace(durationx.Humanize(d)+" "+strings.Join(rest, " ")), err)
	if err != nil {
		_ = req.Reply(ctx, "⚠️ Mute failed. Check the bot's admin rights.")
		return err
	}
	msg := tgui.Raw("🔇 ") + mention(u) + tgui.Raw(" muted for "+durationx.Humanize(d)+".")
	if len(rest) > 0 {
		msg += tgui.Raw("\nReason: ") + tgui.Esc(strings.Join(rest, " "))
	}
	_, err = req.ReplyHTML(ctx, msg, nil)
	return err
}

func (p *Plugin) cmdUnmute(ctx context.Context, req *router.Request) error {
	u, _, ok := p.resolveTarget(ctx, req, "/unmute <user_id>")
	if !ok {
		return nil
	}
	mod, ok := p.moderator()
	if !ok {
		return req.Reply(ctx, msgNoModerator)
	}
	err := mod.UnrestrictMember(ctx, req.Chat.ChatID, u.ID)
	p.audit(ctx, req, "member.unmute", u, "", err)
	if err != nil {
		_ = req.Reply(ctx, "⚠️ Unmute failed. Check the bot's admin rights.")
		return err
	}
	_, err = req.ReplyHTML(ctx, tgui.Raw("🔊 ")+mention(u)+tgui.Raw(" can speak again."), nil)
	return err
}

func (p *Plugin) cmdBan(ctx context.Context, req *router.Request) error {
	u, rest, ok := p.resolveTarget(ctx, req, "/ban <user_id> [reason...]")
	if !ok {
		return nil
	}
	mod, ok := p.moderator()
	if !ok {
		return req.Reply(ctx, msgNoModerator)
	}
	reason := strings.Join(rest, " ")
	err := mod.BanMember(ctx, req.Chat.ChatID, u.ID)
	p.audit(ctx, req, "member.ban", u, reason, err)
	if err != nil {
		_ = req.Reply(ctx, "⚠️ Ban failed. Check the bot's admin rights.")
		return err
	}
	msg := tgui.Raw("🔨 ") + mention(u) + tgui.Raw(" has been banned.")
	if reason != "" {
		msg += tgui.Raw("\nReason: ") + tgui.Esc(reason)
	}
	_, err = req.ReplyHTML(ctx, msg, nil)
	return err
}

// looksLikeDuration reports whether s starts with a digit. Anything else is
// the first word of a reason.
func looksLikeDuration(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}
