package giveaway

import (
	"context"
	"fmt"

	gw "giveawaybot/internal/giveaway"
	kit "giveawaybot/internal/transport"
	"giveawaybot/pkg/logx"
	"giveawaybot/pkg/tgui"
)

// NameFunc resolves a user id to a display name, empty when unknown.
type NameFunc func(ctx context.Context, userID int64) string

// Announcer posts giveaway results to the giveaway's chat and strips the
// entry button from the original post.
type Announcer struct {
	ad    kit.Adapter
	log   logx.Logger
	names NameFunc
}

var _ gw.Announcer = (*Announcer)(nil)

func NewAnnouncer(ad kit.Adapter, log logx.Logger, names NameFunc) *Announcer {
	return &Announcer{ad: ad, log: log, names: names}
}

func target(p gw.Promotion) kit.ChatTarget {
	return kit.ChatTarget{ChatID: p.Channel.ChatID, ThreadID: p.Channel.ThreadID}
}

func (a *Announcer) resolver(ctx context.Context) func(int64) string {
	if a.names == nil {
		return nil
	}
	return func(id int64) string { return a.names(ctx, id) }
}

// ClosePost replaces the entry post of an ended giveaway with its result,
// dropping the entry button. Without a posted message it does nothing.
func (a *Announcer) ClosePost(ctx context.Context, p gw.Promotion) {
	if p.MessageID == 0 || !p.Ended {
		return
	}
	ref := kit.MessageRef{ChatID: p.Channel.ChatID, ThreadID: p.Channel.ThreadID, MessageID: p.MessageID}
	closed := tgui.I("This giveaway has ended.") + tgui.Raw("\n\n") + gw.ResultText(p, a.resolver(ctx))
	if err := a.ad.EditText(ctx, ref, closed.String(), kit.HTML()); err != nil {
		a.log.Warn("closing giveaway post failed", logx.String("id", p.ID), logx.Err(err))
	}
}

func (a *Announcer) AnnounceResult(ctx context.Context, p gw.Promotion) error {
	a.ClosePost(ctx, p)
	text := gw.ResultText(p, a.resolver(ctx))
	if _, err := a.ad.SendText(ctx, target(p), text.String(), kit.HTML()); err != nil {
		return fmt.Errorf("announce %s: %w", p.ID, err)
	}
	return nil
}

func (a *Announcer) AnnounceReroll(ctx context.Context, p gw.Promotion, winners []int64) error {
	if _, err := a.ad.SendText(ctx, target(p), gw.RerollText(p, winners, a.resolver(ctx)).String(), kit.HTML()); err != nil {
		return fmt.Errorf("announce reroll %s: %w", p.ID, err)
	}
	return nil
}
