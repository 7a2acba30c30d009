package giveaway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	gw "giveawaybot/internal/giveaway"
	"giveawaybot/internal/storage"
	"giveawaybot/internal/transport/telegram/router"
	"giveawaybot/pkg/durationx"
	"giveawaybot/pkg/logx"
)

// minIDPrefix is the shortest id prefix accepted in place of a full id.
const minIDPrefix = 4

var errAmbiguous = errors.New("ambiguous giveaway id")

func (p *Plugin) cmdStart(ctx context.Context, req *router.Request) error {
	if len(req.Args) < 3 {
		return req.Reply(ctx, "Usage: /giveaway <duration> <winners> <prize...>\nExample: /giveaway 1h 2 Steam gift card")
	}
	dur, ok := durationx.Parse(req.Args[0], durationx.Options{})
	if !ok {
		return req.Reply(ctx, "Invalid duration. Use e.g. 30m, 2h, 1d or a number of minutes.")
	}
	winners, err := strconv.Atoi(req.Args[1])
	if err != nil || winners <= 0 {
		return req.Reply(ctx, "Winners must be a positive number.")
	}
	prize := strings.Join(req.Args[2:], " ")

	promo, err := p.Deps.Giveaways.Create(ctx, gw.CreateInput{
		Channel:  gw.ChannelRef{ChatID: req.Chat.ChatID, ThreadID: req.Chat.ThreadID},
		Prize:    prize,
		Duration: dur,
		Winners:  winners,
		HostID:   req.From.ID,
	})
	switch {
	case errors.Is(err, gw.ErrInvalid):
		return req.Reply(ctx, "❌ "+strings.TrimPrefix(err.Error(), gw.ErrInvalid.Error()+": "))
	case err != nil:
		_ = req.Reply(ctx, "⚠️ Could not save the giveaway, try again.")
		return err
	}

	if err := p.post(ctx, req, promo); err != nil {
		return err
	}
	p.Audit(ctx, storage.AuditEntry{
		ActorID: req.From.ID,
		ChatID:  req.Chat.ChatID,
		Action:  "giveaway.create",
		Target:  promo.ID,
		Detail:  fmt.Sprintf("%s, %d winners, %s", promo.Prize, promo.WinnerCount, durationx.Humanize(dur)),
	})
	return nil
}

// post publishes the entry message and attaches it to promo. A short
// giveaway can end before the attach lands; its post is closed here then.
func (p *Plugin) post(ctx context.Context, req *router.Request, promo gw.Promotion) error {
	ref, err := req.ReplyHTML(ctx, gw.OpenText(promo, time.Now()), gw.EntryKeyboard(promo.ID))
	if err != nil {
		return fmt.Errorf("post giveaway %s: %w", promo.ID, err)
	}
	cur, err := p.Deps.Giveaways.AttachMessage(ctx, promo.ID, ref.MessageID)
	if err != nil {
		req.Logger.Warn("attach giveaway message failed", logx.String("id", promo.ID), logx.Err(err))
	}
	if cur.Ended {
		cur.MessageID = ref.MessageID
		p.ann.ClosePost(ctx, cur)
	}
	return nil
}

// resolveID accepts a full id or a unique prefix of at least minIDPrefix chars.
func (p *Plugin) resolveID(ctx context.Context, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if _, ok := p.Deps.Giveaways.Get(ctx, arg); ok {
		return arg, nil
	}
	if len(arg) < minIDPrefix {
		return "", gw.ErrNotFound
	}
	found := ""
	for id := range p.Deps.Giveaways.Repository().All(ctx) {
		if !strings.HasPrefix(id, arg) {
			continue
		}
		if found != "" {
			return "", errAmbiguous
		}
		found = id
	}
	if found == "" {
		return "", gw.ErrNotFound
	}
	return found, nil
}

func (p *Plugin) idArg(ctx context.Context, req *router.Request, usage string) (string, bool) {
	if len(req.Args) == 0 {
		_ = req.Reply(ctx, "Usage: "+usage)
		return "", false
	}
	id, err := p.resolveID(ctx, req.Args[0])
	switch {
	case errors.Is(err, errAmbiguous):
		_ = req.Reply(ctx, "That id prefix matches several giveaways, use more characters.")
		return "", false
	case err != nil:
		_ = req.Reply(ctx, "❌ Giveaway not found.")
		return "", false
	}
	return id, true
}

func (p *Plugin) cmdEnd(ctx context.Context, req *router.Request) error {
	id, ok := p.idArg(ctx, req, "/gend <id>")
	if !ok {
		return nil
	}
	res, err := p.Deps.Giveaways.End(ctx, id)
	switch {
	case errors.Is(err, gw.ErrNotFound):
		return req.Reply(ctx, "❌ Giveaway not found.")
	case err != nil:
		_ = req.Reply(ctx, "⚠️ Could not close the giveaway, it will be retried automatically.")
		return err
	case res.AlreadyEnded:
		return req.Reply(ctx, "ℹ️ That giveaway has already ended.")
	}
	p.Audit(ctx, storage.AuditEntry{ActorID: req.From.ID, ChatID: req.Chat.ChatID, Action: "giveaway.end", Target: id})
	if res.Promotion.Channel.ChatID != req.Chat.ChatID {
		return req.Reply(ctx, fmt.Sprintf("✅ Ended, %d winner(s) drawn.", len(res.Promotion.Winners)))
	}
	return nil
}

func (p *Plugin) cmdReroll(ctx context.Context, req *router.Request) error {
	id, ok := p.idArg(ctx, req, "/greroll <id> [count]")
	if !ok {
		return nil
	}
	n := 1
	if len(req.Args) > 1 {
		v, err := strconv.Atoi(req.Args[1])
		if err != nil || v <= 0 {
			return req.Reply(ctx, "Count must be a positive number.")
		}
		n = v
	}
	picked, err := p.Deps.Giveaways.Reroll(ctx, id, n)
	switch {
	case errors.Is(err, gw.ErrNotFound):
		return req.Reply(ctx, "❌ Giveaway not found.")
	case errors.Is(err, gw.ErrNotEnded):
		return req.Reply(ctx, "⏳ That giveaway is still running.")
	case errors.Is(err, gw.ErrNoCandidates):
		return req.Reply(ctx, "Nobody is left to draw.")
	case err != nil:
		_ = req.Reply(ctx, "⚠️ Could not save the reroll, try again.")
		return err
	}
	p.Audit(ctx, storage.AuditEntry{
		ActorID: req.From.ID,
		ChatID:  req.Chat.ChatID,
		Action:  "giveaway.reroll",
		Target:  id,
		Detail:  fmt.Sprint(picked),
	})
	return nil
}

func (p *Plugin) cmdList(ctx context.Context, req *router.Request) error {
	_, err := req.ReplyHTML(ctx, gw.ListText(p.Deps.Giveaways.List(ctx), time.Now()), nil)
	return err
}
