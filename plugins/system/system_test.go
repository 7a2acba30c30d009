package system

import (
	"context"
	"errors"
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

const ownerID = int64(1)

type fixture struct {
	p       *Plugin
	ad      *transporttest.Recorder
	members *member.Service
	st      storage.Store
}

func newFixture(t *testing.T, mutate func(*plugin.Deps)) *fixture {
	t.Helper()
	st, err := storage.Open(storage.Config{Driver: "file", Path: t.TempDir()}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ad := transporttest.New()
	members := member.New(st, member.Config{}, logx.Nop())
	deps := plugin.Deps{
		Adapter:   ad,
		Store:     st,
		Members:   members,
		Giveaways: gw.NewService(st, members, nil, gw.Config{}, logx.Nop()),
		StartedAt: time.Now().Add(-90 * time.Minute),
	}
	if mutate != nil {
		mutate(&deps)
	}
	p := New()
	if err := p.Init(context.Background(), deps); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return &fixture{p: p, ad: ad, members: members, st: st}
}

func (f *fixture) req(from int64) *router.Request {
	return &router.Request{
		Chat:    kit.ChatTarget{ChatID: -300},
		From:    kit.User{ID: from, FirstName: "Ana"},
		Adapter: f.ad,
		Logger:  logx.Nop(),
		Owners:  []int64{ownerID},
	}
}

func TestRegisterVerify(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()

	if answer, _ := f.p.cbVerify(ctx, f.req(7)); !strings.Contains(answer, "/register first") {
		t.Fatalf("verify before register = %q", answer)
	}
	if err := f.p.cmdRegister(ctx, f.req(7)); err != nil {
		t.Fatalf("cmdRegister: %v", err)
	}
	last := f.ad.Last()
	if !strings.Contains(last.Text, "registered") || len(last.Opt.Keyboard) != 1 || last.Opt.Keyboard[0][0].Data != "sys:verify" {
		t.Fatalf("register reply = %+v", last)
	}
	if !f.members.Eligible(ctx, 7) {
		t.Fatalf("registered user should be eligible")
	}

	if answer, err := f.p.cbVerify(ctx, f.req(7)); err != nil || !strings.Contains(answer, "Verified") {
		t.Fatalf("verify = %q err=%v", answer, err)
	}
	if err := f.p.cmdVerify(ctx, f.req(7)); err != nil {
		t.Fatalf("cmdVerify: %v", err)
	}
	if got := f.ad.Last().Text; !strings.Contains(got, "already verified") {
		t.Fatalf("second verify = %q", got)
	}
	if err := f.p.cmdRegister(ctx, f.req(7)); err != nil {
		t.Fatalf("cmdRegister: %v", err)
	}
	if got := f.ad.Last().Text; !strings.Contains(got, "already registered and verified") {
		t.Fatalf("second register = %q", got)
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(d *plugin.Deps) {
		d.Plugins = func(context.Context) []plugin.Status {
			return []plugin.Status{{Name: "giveaway", Running: true}, {Name: "moderation", Err: "init: boom"}}
		}
	})
	ctx := context.Background()
	if err := f.members.Register(ctx, 3, -300); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := f.p.Deps.Giveaways.Create(ctx, gw.CreateInput{Channel: gw.ChannelRef{ChatID: -300}, Prize: "x", Duration: time.Hour}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := f.p.cmdStatus(ctx, f.req(9)); err != nil {
		t.Fatalf("cmdStatus: %v", err)
	}
	public := f.ad.Last().Text
	for _, want := range []string{"1 hour and 30 minutes", "Open giveaways: 1", "1 registered, 0 verified"} {
		if !strings.Contains(public, want) {
			t.Fatalf("status missing %q:\n%s", want, public)
		}
	}
	if strings.Contains(public, "Plugins") {
		t.Fatalf("plugin list is owner-only:\n%s", public)
	}

	if err := f.p.cmdStatus(ctx, f.req(ownerID)); err != nil {
		t.Fatalf("cmdStatus: %v", err)
	}
	if owner := f.ad.Last().Text; !strings.Contains(owner, "⛔ moderation: init: boom") || !strings.Contains(owner, "goroutines") {
		t.Fatalf("owner status:\n%s", owner)
	}
}

func TestBackup(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	var st storage.Store
	f := newFixture(t, func(d *plugin.Deps) {
		st = d.Store
		d.Backup = func(ctx context.Context) ([]string, error) {
			return storage.Backup(ctx, st, dir, time.Now())
		}
	})
	ctx := context.Background()
	if err := f.members.Register(ctx, 3, -300); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := f.p.cmdBackup(ctx, f.req(ownerID)); err != nil {
		t.Fatalf("cmdBackup: %v", err)
	}
	if got := f.ad.Last().Text; !strings.Contains(got, "Backup written") || !strings.Contains(got, "users_") {
		t.Fatalf("backup reply = %q", got)
	}

	failing := newFixture(t, func(d *plugin.Deps) {
		d.Backup = func(context.Context) ([]string, error) { return nil, errors.New("disk full") }
	})
	if err := failing.p.cmdBackup(ctx, failing.req(ownerID)); err == nil {
		t.Fatalf("expected backup error")
	}
	if got := failing.ad.Last().Text; !strings.Contains(got, "disk full") {
		t.Fatalf("failure reply = %q", got)
	}
}
