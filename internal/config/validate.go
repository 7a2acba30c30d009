package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Validate checks fields that can be rejected without touching the
// outside world. It runs on load and before every hot reload commit.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	dur := func(path, raw string) {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		errs = append(errs, errors.New("telegram.token: required (or set BOT_TOKEN)"))
	}
	if _, _, err := ParseChatRef(cfg.Telegram.GroupLog); err != nil {
		errs = append(errs, fmt.Errorf("telegram.group_log: %w", err))
	}
	dur("telegram.poll_timeout", cfg.Telegram.PollTimeout)
	dur("telegram.cooldown", cfg.Telegram.Cooldown)

	dur("task_engine.default_timeout", cfg.TaskEngine.DefaultTimeout)
	dur("task_engine.max_queue_delay", cfg.TaskEngine.MaxQueueDelay)
	dur("task_engine.circuit_cooldown", cfg.TaskEngine.CircuitCooldown)
	if cfg.TaskEngine.Workers < 0 || cfg.TaskEngine.QueueSize < 0 || cfg.TaskEngine.RetryMax < 0 {
		errs = append(errs, errors.New("task_engine: workers, queue_size and retry_max must be >= 0"))
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "file", "sqlite", "sqlite3", "redis":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}
	dur("storage.busy_timeout", cfg.Storage.BusyTimeout)

	dur("giveaway.sweep_interval", cfg.Giveaway.SweepInterval)
	dur("giveaway.expired_grace", cfg.Giveaway.ExpiredGrace)
	dur("giveaway.retention", cfg.Giveaway.Retention)
	dur("giveaway.max_duration", cfg.Giveaway.MaxDuration)
	dur("giveaway.end_timeout", cfg.Giveaway.EndTimeout)
	if cfg.Giveaway.MaxWinners < 0 {
		errs = append(errs, errors.New("giveaway.max_winners: must be >= 0"))
	}

	dur("moderation.mute_max", cfg.Moderation.MuteMax)
	dur("moderation.mute_default", cfg.Moderation.MuteDefault)
	if cfg.Moderation.MaxWarns < 0 {
		errs = append(errs, errors.New("moderation.max_warns: must be >= 0"))
	}

	dur("http.read_timeout", cfg.HTTP.ReadTimeout)
	dur("http.write_timeout", cfg.HTTP.WriteTimeout)

	return errors.Join(errs...)
}

// ParseChatRef parses "<chat_id>" or "<chat_id>:<thread_id>". Empty input
// yields zeros.
func ParseChatRef(s string) (chatID int64, threadID int, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, nil
	}
	head, tail, hasThread := strings.Cut(s, ":")
	chatID, err = strconv.ParseInt(strings.TrimSpace(head), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid chat id %q", head)
	}
	if hasThread {
		threadID, err = strconv.Atoi(strings.TrimSpace(tail))
		if err != nil || threadID < 0 {
			return 0, 0, fmt.Errorf("invalid thread id %q", tail)
		}
	}
	return chatID, threadID, nil
}
