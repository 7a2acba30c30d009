package member

import (
	"context"
	"errors"
	"testing"
	"time"

	"giveawaybot/internal/storage"
	logx "giveawaybot/pkg/logx"
)

func newService(t *testing.T) *Service {
	t.Helper()
	st, err := storage.Open(storage.Config{Driver: "file", Path: t.TempDir()}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	s := New(st, Config{MaxWarns: 3}, logx.Nop())
	s.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return s
}

func TestRegisterVerifyEligible(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newService(t)

	if s.Eligible(ctx, 1) {
		t.Fatalf("unknown user should not be eligible")
	}
	if err := s.Verify(ctx, 1); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("Verify before Register err=%v", err)
	}
	if err := s.Register(ctx, 1, -100); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Register(ctx, 1, -100); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("second Register err=%v", err)
	}
	if !s.Eligible(ctx, 1) {
		t.Fatalf("registered user should be eligible")
	}
	if err := s.Verify(ctx, 1); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := s.Verify(ctx, 1); !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("second Verify err=%v", err)
	}

	p, ok := s.Get(ctx, 1)
	if !ok || !p.Registered || !p.Verified || p.ChatID != -100 || p.RegisteredAtMs != 1_700_000_000_000 {
		t.Fatalf("profile=%+v ok=%v", p, ok)
	}
	if reg, ver := s.Stats(ctx); reg != 1 || ver != 1 {
		t.Fatalf("Stats=%d,%d", reg, ver)
	}
}

func TestSetNameOnlyForKnownMembers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newService(t)

	if err := s.SetName(ctx, 5, "Ghost"); err != nil {
		t.Fatalf("SetName unknown: %v", err)
	}
	if _, ok := s.Get(ctx, 5); ok {
		t.Fatalf("SetName created a profile for an unknown user")
	}

	if err := s.Register(ctx, 5, -100); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.SetName(ctx, 5, "  Alice "); err != nil {
		t.Fatalf("SetName: %v", err)
	}
	if got := s.DisplayName(ctx, 5); got != "Alice" {
		t.Fatalf("DisplayName=%q", got)
	}
	if err := s.SetName(ctx, 5, ""); err != nil || s.DisplayName(ctx, 5) != "Alice" {
		t.Fatalf("blank name should keep the old one, got %q err=%v", s.DisplayName(ctx, 5), err)
	}
	if p, _ := s.Get(ctx, 5); !p.Registered || p.ChatID != -100 {
		t.Fatalf("SetName clobbered profile: %+v", p)
	}
}

func TestWarnLimitAndUnwarn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newService(t)

	for i, reason := range []string{"spam", "", "flood"} {
		n, limit, err := s.Warn(ctx, 7, 99, reason)
		if err != nil {
			t.Fatalf("Warn: %v", err)
		}
		if n != i+1 || limit != (n >= 3) {
			t.Fatalf("warn %d: count=%d limit=%v", i, n, limit)
		}
	}
	ws := s.Warnings(ctx, 7)
	if len(ws) != 3 || ws[1].Reason != DefaultWarnReason || ws[0].ModeratorID != 99 {
		t.Fatalf("warnings=%+v", ws)
	}

	if _, _, err := s.Unwarn(ctx, 7, 4); !errors.Is(err, ErrInvalidWarnIndex) {
		t.Fatalf("out of range err=%v", err)
	}
	removed, left, err := s.Unwarn(ctx, 7, 2)
	if err != nil || left != 2 || len(removed) != 1 || removed[0].Reason != DefaultWarnReason {
		t.Fatalf("Unwarn(2) removed=%+v left=%d err=%v", removed, left, err)
	}
	if ws := s.Warnings(ctx, 7); ws[0].Reason != "spam" || ws[1].Reason != "flood" {
		t.Fatalf("order after unwarn=%+v", ws)
	}
	removed, left, err = s.Unwarn(ctx, 7, 0)
	if err != nil || left != 0 || len(removed) != 2 {
		t.Fatalf("Unwarn(all) removed=%d left=%d err=%v", len(removed), left, err)
	}
	if _, _, err := s.Unwarn(ctx, 7, 0); !errors.Is(err, ErrNoWarnings) {
		t.Fatalf("Unwarn on empty err=%v", err)
	}
}
