package system

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"giveawaybot/internal/member"
	"giveawaybot/internal/storage"
	"giveawaybot/internal/transport/telegram/router"
	"giveawaybot/pkg/durationx"
	"giveawaybot/pkg/logx"
	"giveawaybot/pkg/tgui"
)

func (p *Plugin) cmdRegister(ctx context.Context, req *router.Request) error {
	err := p.Deps.Members.Register(ctx, req.From.ID, req.Chat.ChatID)
	if err == nil || errors.Is(err, member.ErrAlreadyRegistered) {
		if nerr := p.Deps.Members.SetName(ctx, req.From.ID, req.From.DisplayName()); nerr != nil {
			p.Log.Warn("member name not saved", logx.Int64("user", req.From.ID), logx.Err(nerr))
		}
	}
	switch {
	case errors.Is(err, member.ErrAlreadyRegistered):
		if prof, _ := p.Deps.Members.Get(ctx, req.From.ID); !prof.Verified {
			_, err := req.ReplyHTML(ctx, tgui.Raw("✅ You are already registered. Tap Verify to finish."), verifyKeyboard())
			return err
		}
		return req.Reply(ctx, "✅ You are already registered and verified.")
	case err != nil:
		_ = req.Reply(ctx, "⚠️ Could not save your registration, try again.")
		return err
	}
	p.Audit(ctx, storage.AuditEntry{ActorID: req.From.ID, ChatID: req.Chat.ChatID, Action: "member.register"})
	msg := tgui.JoinH("\n",
		tgui.Raw("🎉 ")+tgui.Mention(req.From.DisplayName(), req.From.ID)+tgui.Raw(", you are registered and can now join giveaways."),
		tgui.Raw("By registering you agree to follow the chat rules."),
		tgui.I("Tap Verify to complete your profile."),
	)
	_, err = req.ReplyHTML(ctx, msg, verifyKeyboard())
	return err
}

// verify marks the caller verified and returns the user-facing answer.
func (p *Plugin) verify(ctx context.Context, req *router.Request) (string, error) {
	err := p.Deps.Members.Verify(ctx, req.From.ID)
	switch {
	case errors.Is(err, member.ErrNotRegistered):
		return "❌ You need to /register first.", nil
	case errors.Is(err, member.ErrAlreadyVerified):
		return "✅ You are already verified.", nil
	case err != nil:
		return "⚠️ Could not save, try again.", err
	}
	p.Audit(ctx, storage.AuditEntry{ActorID: req.From.ID, ChatID: req.Chat.ChatID, Action: "member.verify"})
	return "✅ Verified. Welcome aboard!", nil
}

func (p *Plugin) cmdVerify(ctx context.Context, req *router.Request) error {
	answer, err := p.verify(ctx, req)
	if rerr := req.Reply(ctx, answer); err == nil {
		err = rerr
	}
	return err
}

func (p *Plugin) cbVerify(ctx context.Context, req *router.Request) (string, error) {
	return p.verify(ctx, req)
}

func (p *Plugin) cmdStatus(ctx context.Context, req *router.Request) error {
	_, err := req.ReplyHTML(ctx, p.statusText(ctx, req.IsOwner()), nil)
	return err
}

func (p *Plugin) statusText(ctx context.Context, detailed bool) tgui.H {
	lines := []tgui.H{
		tgui.B("🤖 Bot status"),
		tgui.Raw("Uptime: ") + tgui.Esc(durationx.Humanize(time.Since(p.startedAt))),
	}
	if g := p.Deps.Giveaways; g != nil {
		lines = append(lines, tgui.Raw("Open giveaways: "+humanize.Comma(int64(len(g.List(ctx))))))
	}
	if t := p.Deps.Timers; t != nil {
		lines = append(lines, tgui.Raw(fmt.Sprintf("Pending timers: %d", t.Pending())))
	}
	reg, ver := p.Deps.Members.Stats(ctx)
	lines = append(lines, tgui.Raw(fmt.Sprintf("Members: %s registered, %s verified", humanize.Comma(int64(reg)), humanize.Comma(int64(ver)))))

	if s := p.Deps.Scheduler; s != nil {
		snap := s.Snapshot()
		state := "stopped"
		if snap.Running {
			state = "running"
		}
		lines = append(lines, tgui.Raw(fmt.Sprintf("Scheduler: %s, %d jobs, %d one-shot", state, len(snap.Schedules), len(snap.Once))))
		if detailed {
			e := snap.Engine
			lines = append(lines, tgui.Raw(fmt.Sprintf("Task engine: %d workers, queue %d/%d, in flight %d, dropped %d, circuits open %d",
				e.Workers, e.QueueLen, e.QueueCap, e.InFlight, e.Dropped, e.CircuitsOpen)))
		}
	}
	if !detailed {
		return tgui.JoinH("\n", lines...)
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	lines = append(lines,
		tgui.Raw(fmt.Sprintf("Memory: %s alloc, %s sys, %d goroutines",
			humanize.IBytes(m.Alloc), humanize.IBytes(m.Sys), runtime.NumGoroutine())),
	)
	if p.Deps.Plugins != nil {
		lines = append(lines, tgui.B("Plugins"))
		for _, st := range p.Deps.Plugins(ctx) {
			icon := "✅"
			switch {
			case !st.Running:
				icon = "⛔"
			case st.Err != "":
				icon = "⚠️"
			}
			line := tgui.Raw(icon+" ") + tgui.Esc(st.Name)
			if st.Err != "" {
				line += tgui.Raw(": ") + tgui.Esc(tgui.TruncRunes(st.Err, 120))
			}
			lines = append(lines, line)
		}
	}
	return tgui.JoinH("\n", lines...)
}

func (p *Plugin) cmdTasks(ctx context.Context, req *router.Request) error {
	s := p.Deps.Scheduler
	if s == nil {
		return req.Reply(ctx, "scheduler is disabled")
	}
	snap := s.Snapshot()
	sort.Slice(snap.Schedules, func(i, j int) bool { return snap.Schedules[i].Name < snap.Schedules[j].Name })
	sort.Slice(snap.Once, func(i, j int) bool { return snap.Once[i].At.Before(snap.Once[j].At) })

	now := time.Now()
	tz := snap.Timezone
	if tz == "" {
		tz = "local"
	}
	lines := []string{"⏱ scheduled jobs (" + tz + "):"}
	if len(snap.Schedules) == 0 {
		lines = append(lines, "- none")
	}
	for _, t := range snap.Schedules {
		next := "-"
		if !t.Next.IsZero() {
			next = humanize.RelTime(t.Next, now, "ago", "from now")
		}
		lines = append(lines, fmt.Sprintf("- %s: %s, next %s", t.Name, t.Spec, next))
	}
	lines = append(lines, fmt.Sprintf("⏲ one-shot timers: %d", len(snap.Once)))
	for i, o := range snap.Once {
		if i == 10 {
			lines = append(lines, fmt.Sprintf("… and %d more", len(snap.Once)-i))
			break
		}
		lines = append(lines, fmt.Sprintf("- %s %s", o.Name, humanize.RelTime(o.At, now, "ago", "from now")))
	}
	return req.Reply(ctx, strings.Join(lines, "\n"))
}

func (p *Plugin) cmdBackup(ctx context.Context, req *router.Request) error {
	if p.Deps.Backup == nil {
		return req.Reply(ctx, "Backups are disabled.")
	}
	start := time.Now()
	files, err := p.Deps.Backup(ctx)
	took := time.Since(start)
	e := storage.AuditEntry{
		ActorID:  req.From.ID,
		ChatID:   req.Chat.ChatID,
		Action:   "backup.run",
		Duration: took.Milliseconds(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	p.Audit(ctx, e)
	switch {
	case errors.Is(err, storage.ErrDisabled):
		return req.Reply(ctx, "Storage is disabled, nothing to back up.")
	case err != nil:
		req.Logger.Warn("backup failed", logx.Err(err))
		_ = req.Reply(ctx, "⚠️ Backup failed: "+err.Error())
		return err
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	return req.Reply(ctx, fmt.Sprintf("💾 Backup written in %s:\n%s", took.Round(time.Millisecond), strings.Join(names, "\n")))
}
