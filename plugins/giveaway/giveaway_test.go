package giveaway

import (
	"context"
	"strings"
	"testing"
	"time"

	gw "giveawaybot/internal/giveaway"
	"giveawaybot/internal/member"
	"giveawaybot/internal/plugin"
	"giveawaybot/internal/storage"
	kit "giveawaybot/internal/transport"
	"giveawaybot/internal/transport/telegram/router"
	"giveawaybot/internal/transport/transporttest"
	"giveawaybot/pkg/logx"
)

const (
	chatID  = int64(-100)
	ownerID = int64(1)
)

type fixture struct {
	p   *Plugin
	svc *gw.Service
	ad  *transporttest.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := storage.Open(storage.Config{Driver: "file", Path: t.TempDir()}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ad := transporttest.New()
	svc := gw.NewService(st, gw.EligibilityFunc(func(context.Context, int64) bool { return true }), nil, gw.Config{}, logx.Nop())
	p := New()
	if err := p.Init(context.Background(), plugin.Deps{Adapter: ad, Giveaways: svc, Store: st}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return &fixture{p: p, svc: svc, ad: ad}
}

func (f *fixture) req(from int64, args ...string) *router.Request {
	return &router.Request{
		Chat:    kit.ChatTarget{ChatID: chatID},
		From:    kit.User{ID: from},
		Args:    args,
		Adapter: f.ad,
		Logger:  logx.Nop(),
		Owners:  []int64{ownerID},
	}
}

func TestStartEnterEnd(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if err := f.p.cmdStart(ctx, f.req(ownerID, "1h", "2", "Steam", "key")); err != nil {
		t.Fatalf("cmdStart: %v", err)
	}
	open := f.svc.List(ctx)
	if len(open) != 1 || open[0].Prize != "Steam key" || open[0].WinnerCount != 2 {
		t.Fatalf("open = %+v", open)
	}
	promo := open[0]
	post := f.ad.Last()
	if len(post.Opt.Keyboard) != 1 || post.Opt.Keyboard[0][0].Data != gw.EntryData(promo.ID) {
		t.Fatalf("entry keyboard = %+v", post.Opt.Keyboard)
	}
	if promo.MessageID == 0 {
		t.Fatalf("posted message id was not attached")
	}

	cb := f.req(7)
	cb.Payload = promo.ID
	reply, err := f.p.cbEnter(ctx, cb)
	if err != nil || !strings.Contains(reply, "1 participants") {
		t.Fatalf("enter reply = %q err=%v", reply, err)
	}
	if reply, _ := f.p.cbEnter(ctx, cb); !strings.Contains(reply, "already entered") {
		t.Fatalf("second entry reply = %q", reply)
	}

	if err := f.p.cmdEnd(ctx, f.req(ownerID, promo.ID[:8])); err != nil {
		t.Fatalf("cmdEnd: %v", err)
	}
	ended, ok := f.svc.Get(ctx, promo.ID)
	if !ok || !ended.Ended || len(ended.Winners) != 1 || ended.Winners[0] != 7 {
		t.Fatalf("ended = %+v", ended)
	}
	edits := f.ad.Edited()
	if len(edits) != 1 || edits[0].Ref.MessageID != promo.MessageID || !edits[0].Opt.Keyboard.Empty() {
		t.Fatalf("edits = %+v", edits)
	}
	if !strings.Contains(f.ad.Last().Text, "GIVEAWAY ENDED") {
		t.Fatalf("result not announced: %q", f.ad.Last().Text)
	}

	if err := f.p.cmdEnd(ctx, f.req(ownerID, promo.ID)); err != nil {
		t.Fatalf("second cmdEnd: %v", err)
	}
	if !strings.Contains(f.ad.Last().Text, "already ended") {
		t.Fatalf("second end reply = %q", f.ad.Last().Text)
	}

	reply, _ = f.p.cbEnter(ctx, cb)
	if !strings.Contains(reply, "already ended") {
		t.Fatalf("late entry reply = %q", reply)
	}
}

func TestStartRejectsBadInput(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"1h", "1"}, "Usage"},
		{[]string{"soon", "1", "x"}, "Invalid duration"},
		{[]string{"1h", "zero", "x"}, "positive"},
		{[]string{"1h", "99", "x"}, "at most 20 winners"},
		{[]string{"90d", "1", "x"}, "duration above"},
	}
	for _, tt := range tests {
		if err := f.p.cmdStart(ctx, f.req(ownerID, tt.args...)); err != nil {
			t.Fatalf("cmdStart(%v): %v", tt.args, err)
		}
		if got := f.ad.Last().Text; !strings.Contains(got, tt.want) {
			t.Fatalf("cmdStart(%v) reply = %q, want %q", tt.args, got, tt.want)
		}
	}
	if n := len(f.svc.List(ctx)); n != 0 {
		t.Fatalf("%d giveaways created from bad input", n)
	}
}

func TestRerollAndList(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, gw.CreateInput{Channel: gw.ChannelRef{ChatID: chatID}, Prize: "Nitro", Duration: time.Hour})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.p.cmdList(ctx, f.req(5)); err != nil || !strings.Contains(f.ad.Last().Text, "Nitro") {
		t.Fatalf("list = %q err=%v", f.ad.Last().Text, err)
	}

	if err := f.p.cmdReroll(ctx, f.req(ownerID, p.ID)); err != nil {
		t.Fatalf("cmdReroll: %v", err)
	}
	if !strings.Contains(f.ad.Last().Text, "still running") {
		t.Fatalf("reroll on open = %q", f.ad.Last().Text)
	}

	for _, u := range []int64{11, 12} {
		if _, err := f.svc.Enter(ctx, p.ID, u); err != nil {
			t.Fatalf("Enter: %v", err)
		}
	}
	if _, err := f.svc.End(ctx, p.ID); err != nil {
		t.Fatalf("End: %v", err)
	}
	if err := f.p.cmdReroll(ctx, f.req(ownerID, p.ID, "1")); err != nil {
		t.Fatalf("cmdReroll: %v", err)
	}
	if !strings.Contains(f.ad.Last().Text, "REROLL") {
		t.Fatalf("reroll announcement = %q", f.ad.Last().Text)
	}
	if err := f.p.cmdReroll(ctx, f.req(ownerID, p.ID)); err != nil {
		t.Fatalf("cmdReroll: %v", err)
	}
	if !strings.Contains(f.ad.Last().Text, "Nobody is left") {
		t.Fatalf("exhausted reroll = %q", f.ad.Last().Text)
	}

	if err := f.p.cmdEnd(ctx, f.req(ownerID, "nope")); err != nil {
		t.Fatalf("cmdEnd: %v", err)
	}
	if !strings.Contains(f.ad.Last().Text, "not found") {
		t.Fatalf("unknown id reply = %q", f.ad.Last().Text)
	}
}

func TestResultMentionsWinnerByName(t *testing.T) {
	t.Parallel()
	st, err := storage.Open(storage.Config{Driver: "file", Path: t.TempDir()}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	ctx := context.Background()

	members := member.New(st, member.Config{}, logx.Nop())
	if err := members.Register(ctx, 7, chatID); err != nil {
		t.Fatalf("Register: %v", err)
	}
	ad := transporttest.New()
	svc := gw.NewService(st, members, nil, gw.Config{}, logx.Nop())
	p := New()
	if err := p.Init(ctx, plugin.Deps{Adapter: ad, Giveaways: svc, Members: members, Store: st}); err != nil {
		t.Fatalf("Init: %v", err)
	}

	promo, err := svc.Create(ctx, gw.CreateInput{Channel: gw.ChannelRef{ChatID: chatID}, Prize: "Mug", Duration: time.Hour, Winners: 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	cb := &router.Request{
		Chat:    kit.ChatTarget{ChatID: chatID},
		From:    kit.User{ID: 7, FirstName: "Alice"},
		Payload: promo.ID,
		Adapter: ad,
		Logger:  logx.Nop(),
	}
	if reply, err := p.cbEnter(ctx, cb); err != nil || !strings.Contains(reply, "Entered") {
		t.Fatalf("enter reply = %q err=%v", reply, err)
	}
	if _, err := svc.End(ctx, promo.ID); err != nil {
		t.Fatalf("End: %v", err)
	}
	if got := ad.Last().Text; !strings.Contains(got, `<a href="tg://user?id=7">Alice</a>`) {
		t.Fatalf("result = %q", got)
	}
}

// Scenario: the giveaway ends between Create and the entry post being
// attached. The post must still lose its entry button.
func TestPostClosesGiveawayEndedBeforeAttach(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	promo, err := f.svc.Create(ctx, gw.CreateInput{Channel: gw.ChannelRef{ChatID: chatID}, Prize: "Key", Duration: time.Hour, Winners: 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.End(ctx, promo.ID); err != nil {
		t.Fatalf("End: %v", err)
	}
	if n := len(f.ad.Edited()); n != 0 {
		t.Fatalf("nothing posted yet, edits=%d", n)
	}

	if err := f.p.post(ctx, f.req(ownerID), promo); err != nil {
		t.Fatalf("post: %v", err)
	}
	got, _ := f.svc.Get(ctx, promo.ID)
	if got.MessageID == 0 {
		t.Fatalf("message id not attached")
	}
	edits := f.ad.Edited()
	if len(edits) != 1 || edits[0].Ref.MessageID != got.MessageID || !edits[0].Opt.Keyboard.Empty() {
		t.Fatalf("edits = %+v", edits)
	}
	if !strings.Contains(edits[0].Text, "has ended") {
		t.Fatalf("closed post = %q", edits[0].Text)
	}
}
