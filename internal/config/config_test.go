package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestParseJSONAndYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	js := writeFile(t, dir, "config.json", `{
		"telegram": {"token": "abc", "owner_user_ids": [1, 2], "group_log": "-100:7"},
		"storage": {"driver": "file", "path": "./data"},
		"giveaway": {"sweep_interval": "30m", "max_winners": 5}
	}`)
	yml := writeFile(t, dir, "config.yaml", `
telegram:
  token: abc
  owner_user_ids: [1, 2]
  group_log: "-100:7"
storage:
  driver: file
  path: ./data
giveaway:
  sweep_interval: 30m
  max_winners: 5
`)

	var got []*Config
	for _, p := range []string{js, yml} {
		m := NewConfigManager(p)
		m.SetEnviron(map[string]string{})
		cfg, err := m.Load()
		if err != nil {
			t.Fatalf("Load(%s): %v", filepath.Base(p), err)
		}
		if m.Get() != cfg {
			t.Fatalf("Get should return committed config")
		}
		got = append(got, cfg)
	}
	for _, cfg := range got {
		if cfg.Telegram.Token != "abc" || len(cfg.Telegram.OwnerUserIDs) != 2 {
			t.Fatalf("telegram mismatch: %+v", cfg.Telegram)
		}
		if cfg.Giveaway.SweepInterval != "30m" || cfg.Giveaway.MaxWinners != 5 {
			t.Fatalf("giveaway mismatch: %+v", cfg.Giveaway)
		}
	}
}

func TestParseRejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		want string
	}{
		{"unknown field", `{"telegram":{"token":"x"},"pprof":{}}`, "unknown field"},
		{"trailing data", `{"telegram":{"token":"x"}} {}`, "trailing data"},
		{"missing token", `{}`, "telegram.token"},
		{"bad duration", `{"telegram":{"token":"x"},"giveaway":{"sweep_interval":"soon"}}`, "giveaway.sweep_interval"},
		{"negative duration", `{"telegram":{"token":"x"},"moderation":{"mute_max":"-1h"}}`, "moderation.mute_max"},
		{"unknown driver", `{"telegram":{"token":"x"},"storage":{"driver":"mongo"}}`, "storage.driver"},
		{"bad group log", `{"telegram":{"token":"x","group_log":"abc"}}`, "telegram.group_log"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := writeFile(t, t.TempDir(), "config.json", tc.body)
			m := NewConfigManager(p)
			m.SetEnviron(map[string]string{})
			_, err := m.Parse()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Parse err=%v want containing %q", err, tc.want)
			}
		})
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Parallel()

	p := writeFile(t, t.TempDir(), "config.json", `{"telegram":{"token":"file"},"storage":{"driver":"file"}}`)
	m := NewConfigManager(p)
	m.SetEnviron(map[string]string{
		"BOT_TOKEN":          "env-token",
		"BOT_OWNER_IDS":      "10,20",
		"BOT_STORAGE_DRIVER": "redis",
		"BOT_REDIS_ADDR":     "127.0.0.1:6379",
	})
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Fatalf("token=%q", cfg.Telegram.Token)
	}
	if len(cfg.Telegram.OwnerUserIDs) != 2 || cfg.Telegram.OwnerUserIDs[1] != 20 {
		t.Fatalf("owners=%v", cfg.Telegram.OwnerUserIDs)
	}
	if cfg.Storage.Driver != "redis" || cfg.Storage.Addr != "127.0.0.1:6379" {
		t.Fatalf("storage=%+v", cfg.Storage)
	}
}

func TestParseChatRef(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		chat    int64
		thread  int
		wantErr bool
	}{
		{"", 0, 0, false},
		{"-1001234", -1001234, 0, false},
		{"-1001234:55", -1001234, 55, false},
		{"x", 0, 0, true},
		{"-1:y", 0, 0, true},
	}
	for _, tc := range cases {
		chat, thread, err := ParseChatRef(tc.in)
		if (err != nil) != tc.wantErr || chat != tc.chat || thread != tc.thread {
			t.Fatalf("ParseChatRef(%q)=(%d,%d,%v)", tc.in, chat, thread, err)
		}
	}
}

func TestDurationHelpers(t *testing.T) {
	t.Parallel()

	d, err := ParseDurationOrDefault("x", "", time.Hour)
	if err != nil || d != time.Hour {
		t.Fatalf("default: %v %v", d, err)
	}
	d, err = ParseDurationOrDefault("x", "0s", time.Hour)
	if err != nil || d != time.Hour {
		t.Fatalf("zero falls back: %v %v", d, err)
	}
	d, err = ParseDurationKeepZero("x", "0s", time.Hour)
	if err != nil || d != 0 {
		t.Fatalf("keep zero: %v %v", d, err)
	}
	if _, err := ParseDurationField("x", "nope"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestBackupDefaults(t *testing.T) {
	t.Parallel()

	var b BackupConfig
	if !b.BackupEnabled() || b.KeepSets() != 20 {
		t.Fatalf("defaults: enabled=%v keep=%d", b.BackupEnabled(), b.KeepSets())
	}
	off, keep := false, 0
	b = BackupConfig{Enabled: &off, Keep: &keep}
	if b.BackupEnabled() || b.KeepSets() != 0 {
		t.Fatalf("explicit: enabled=%v keep=%d", b.BackupEnabled(), b.KeepSets())
	}
}

func TestSummarizeConfigChangeHidesSecrets(t *testing.T) {
	t.Parallel()

	oldCfg := &Config{Telegram: TelegramConfig{Token: "a"}, Storage: StorageConfig{Driver: "redis", Password: "p1"}}
	newCfg := &Config{Telegram: TelegramConfig{Token: "b"}, Storage: StorageConfig{Driver: "redis", Password: "p2"}}
	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	if strings.Join(changed, ",") != "telegram,storage" {
		t.Fatalf("changed=%v", changed)
	}
	if len(attrs) == 0 {
		t.Fatalf("expected attrs")
	}

	changed, _ = SummarizeConfigChange(newCfg, newCfg)
	if len(changed) != 0 {
		t.Fatalf("identical configs reported changes: %v", changed)
	}
}

func TestReloadPublishesOnlyOnChange(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := writeFile(t, dir, "config.json", `{"telegram":{"token":"x"}}`)
	m := NewConfigManager(p)
	m.SetEnviron(map[string]string{})
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx := context.Background()
	if m.reload(ctx) {
		t.Fatalf("unchanged file should not publish")
	}

	writeFile(t, dir, "config.json", `{"telegram":{"token":"x","cooldown":"5s"}}`)
	if !m.reload(ctx) {
		t.Fatalf("changed file should publish")
	}
	select {
	case cfg := <-ch:
		if cfg.Telegram.Cooldown != "5s" {
			t.Fatalf("published cfg=%+v", cfg.Telegram)
		}
	default:
		t.Fatalf("expected published config")
	}

	m.SetValidator(func(ctx context.Context, cfg *Config) error { return context.DeadlineExceeded })
	writeFile(t, dir, "config.json", `{"telegram":{"token":"x","cooldown":"9s"}}`)
	if m.reload(ctx) {
		t.Fatalf("validator rejection should block publish")
	}
	if m.Get().Telegram.Cooldown != "5s" {
		t.Fatalf("rejected config was committed")
	}
}
