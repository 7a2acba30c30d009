package moderation

import (
	"context"
	"strings"
	"testing"
	"time"

	"giveawaybot/internal/config"
	"giveawaybot/internal/member"
	"giveawaybot/internal/plugin"
	"giveawaybot/internal/storage"
	kit "giveawaybot/internal/transport"
	"giveawaybot/internal/transport/telegram/router"
	"giveawaybot/internal/transport/transporttest"
	"giveawaybot/pkg/logx"
)

const (
	chatID  = int64(-200)
	ownerID = int64(1)
)

type fixture struct {
	p  *Plugin
	ad *transporttest.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := storage.Open(storage.Config{Driver: "file", Path: t.TempDir()}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ad := transporttest.New()
	p := New()
	deps := plugin.Deps{Adapter: ad, Store: st, Members: member.New(st, member.Config{MaxWarns: 2}, logx.Nop())}
	if err := p.Init(context.Background(), deps); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return &fixture{p: p, ad: ad}
}

func (f *fixture) req(args ...string) *router.Request {
	return &router.Request{
		Chat:    kit.ChatTarget{ChatID: chatID},
		From:    kit.User{ID: ownerID},
		Args:    args,
		Adapter: f.ad,
		Logger:  logx.Nop(),
		Owners:  []int64{ownerID},
	}
}

func (f *fixture) last(t *testing.T) string {
	t.Helper()
	return f.ad.Last().Text
}

func TestWarnLimitBans(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if err := f.p.cmdWarn(ctx, f.req("5", "spam")); err != nil {
		t.Fatalf("cmdWarn: %v", err)
	}
	if got := f.last(t); !strings.Contains(got, "(1/2)") || !strings.Contains(got, "spam") {
		t.Fatalf("first warn reply = %q", got)
	}
	if n := len(f.ad.Actions()); n != 0 {
		t.Fatalf("%d moderation actions after first warn", n)
	}

	if err := f.p.cmdWarn(ctx, f.req("5")); err != nil {
		t.Fatalf("cmdWarn: %v", err)
	}
	acts := f.ad.Actions()
	if len(acts) != 1 || acts[0].Kind != "ban" || acts[0].UserID != 5 || acts[0].ChatID != chatID {
		t.Fatalf("actions = %+v", acts)
	}
	if got := f.last(t); !strings.Contains(got, "was banned") {
		t.Fatalf("ban reply = %q", got)
	}
}

func TestTargetResolution(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *router.Request
		want string
	}{
		{"no target", f.req(), "Usage"},
		{"not a number", f.req("bob"), "Usage"},
		{"owner", f.req("1", "x"), "Owners cannot"},
	}
	for _, tt := range tests {
		if err := f.p.cmdWarn(ctx, tt.req); err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got := f.last(t); !strings.Contains(got, tt.want) {
			t.Fatalf("%s: reply = %q, want %q", tt.name, got, tt.want)
		}
	}

	r := f.req("rude")
	r.ReplyTo = &kit.User{ID: 9, FirstName: "Eve"}
	if err := f.p.cmdWarn(ctx, r); err != nil {
		t.Fatalf("cmdWarn reply: %v", err)
	}
	if got := f.last(t); !strings.Contains(got, "Eve") || !strings.Contains(got, "rude") {
		t.Fatalf("reply-target warn = %q", got)
	}
}

func TestUnwarnAndWarnings(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if err := f.p.cmdWarn(ctx, f.req("6", "off", "topic")); err != nil {
		t.Fatalf("cmdWarn: %v", err)
	}
	w := f.req()
	w.ReplyTo = &kit.User{ID: 6}
	w.From = kit.User{ID: 6}
	if err := f.p.cmdWarnings(ctx, w); err != nil {
		t.Fatalf("cmdWarnings: %v", err)
	}
	if got := f.last(t); !strings.Contains(got, "1/2") || !strings.Contains(got, "off topic") {
		t.Fatalf("warnings = %q", got)
	}

	steps := []struct {
		args []string
		want string
	}{
		{[]string{"6"}, "Usage"},
		{[]string{"6", "x"}, "warning number"},
		{[]string{"6", "3"}, "use 1..1 or all"},
		{[]string{"6", "all"}, "Removed 1 warning"},
		{[]string{"6", "all"}, "no warnings"},
	}
	for _, s := range steps {
		if err := f.p.cmdUnwarn(ctx, f.req(s.args...)); err != nil {
			t.Fatalf("cmdUnwarn(%v): %v", s.args, err)
		}
		if got := f.last(t); !strings.Contains(got, s.want) {
			t.Fatalf("cmdUnwarn(%v) = %q, want %q", s.args, got, s.want)
		}
	}
}

func TestMute(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	before := time.Now()
	if err := f.p.cmdMute(ctx, f.req("5", "2h", "flood")); err != nil {
		t.Fatalf("cmdMute: %v", err)
	}
	acts := f.ad.Actions()
	if len(acts) != 1 || acts[0].Kind != "restrict" {
		t.Fatalf("actions = %+v", acts)
	}
	if until := acts[0].Until; until.Before(before.Add(2*time.Hour)) || until.After(time.Now().Add(2*time.Hour)) {
		t.Fatalf("until = %v", until)
	}
	if got := f.last(t); !strings.Contains(got, "2 hours") || !strings.Contains(got, "flood") {
		t.Fatalf("mute reply = %q", got)
	}

	if err := f.p.cmdMute(ctx, f.req("5", "spam")); err != nil {
		t.Fatalf("cmdMute: %v", err)
	}
	if got := f.last(t); !strings.Contains(got, "10 minutes") || !strings.Contains(got, "spam") {
		t.Fatalf("default mute reply = %q", got)
	}

	if err := f.p.cmdMute(ctx, f.req("5", "30d")); err != nil {
		t.Fatalf("cmdMute: %v", err)
	}
	if got := f.last(t); !strings.Contains(got, "Invalid duration") {
		t.Fatalf("over-ceiling reply = %q", got)
	}

	if err := f.p.applyConfig(config.ModerationConfig{MuteMax: "1h", MuteDefault: "5m"}); err != nil {
		t.Fatalf("applyConfig: %v", err)
	}
	if err := f.p.cmdMute(ctx, f.req("5", "2h")); err != nil {
		t.Fatalf("cmdMute: %v", err)
	}
	if got := f.last(t); !strings.Contains(got, "at most 1 hour") {
		t.Fatalf("configured ceiling reply = %q", got)
	}

	if err := f.p.cmdUnmute(ctx, f.req("5")); err != nil {
		t.Fatalf("cmdUnmute: %v", err)
	}
	acts = f.ad.Actions()
	if last := acts[len(acts)-1]; last.Kind != "unrestrict" || last.UserID != 5 {
		t.Fatalf("last action = %+v", last)
	}
}

func TestBan(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	if err := f.p.cmdBan(context.Background(), f.req("8", "scam", "links")); err != nil {
		t.Fatalf("cmdBan: %v", err)
	}
	acts := f.ad.Actions()
	if len(acts) != 1 || acts[0].Kind != "ban" || acts[0].UserID != 8 {
		t.Fatalf("actions = %+v", acts)
	}
	if got := f.last(t); !strings.Contains(got, "scam links") {
		t.Fatalf("ban reply = %q", got)
	}
}
