// Package member owns user profiles: registration, verification and the
// warn history used by moderation.
package member

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"giveawaybot/internal/storage"
	"giveawaybot/pkg/keylock"
	logx "giveawaybot/pkg/logx"
)

var (
	ErrAlreadyRegistered = errors.New("member: already registered")
	ErrNotRegistered     = errors.New("member: not registered")
	ErrAlreadyVerified   = errors.New("member: already verified")
	ErrNoWarnings        = errors.New("member: no warnings")
	ErrInvalidWarnIndex  = errors.New("member: invalid warn index")
	ErrStore             = errors.New("member: store write failed")
)

const DefaultWarnReason = "no reason given"

type Warn struct {
	Reason      string `json:"reason"`
	ModeratorID int64  `json:"moderator_id"`
	AtMs        int64  `json:"at_ms"`
}

type Profile struct {
	// Name is the last display name seen; used when mentioning the member.
	Name           string `json:"name,omitempty"`
	Registered     bool   `json:"registered"`
	RegisteredAtMs int64  `json:"registered_at_ms,omitempty"`
	ChatID         int64  `json:"chat_id,omitempty"`
	Verified       bool   `json:"verified"`
	VerifiedAtMs   int64  `json:"verified_at_ms,omitempty"`
	Warns          []Warn `json:"warns"`
}

type Config struct {
	MaxWarns int
}

type Service struct {
	st       storage.Store
	log      logx.Logger
	maxWarns atomic.Int64
	locks    *keylock.Locker
	now      func() time.Time
}

func New(st storage.Store, cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		st:    st,
		log:   log.With(logx.String("comp", "member")),
		locks: keylock.New(),
		now:   time.Now,
	}
	s.Apply(cfg)
	return s
}

// Apply swaps the warn limit. It affects the next Warn only.
func (s *Service) Apply(cfg Config) {
	if cfg.MaxWarns <= 0 {
		cfg.MaxWarns = 3
	}
	s.maxWarns.Store(int64(cfg.MaxWarns))
}

func (s *Service) MaxWarns() int { return int(s.maxWarns.Load()) }

func key(userID int64) string { return strconv.FormatInt(userID, 10) }

// Get returns the stored profile. A read failure is logged and reads as
// absent.
func (s *Service) Get(ctx context.Context, userID int64) (Profile, bool) {
	raw, err := s.st.Get(ctx, storage.Users, key(userID))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("profile read failed", logx.Int64("user", userID), logx.Err(err))
		}
		return Profile{}, false
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		s.log.Warn("profile decode failed", logx.Int64("user", userID), logx.Err(err))
		return Profile{}, false
	}
	return p, true
}

func (s *Service) put(ctx context.Context, userID int64, p Profile) error {
	b, err := json.Marshal(p)
	if err == nil {
		err = s.st.Put(ctx, storage.Users, key(userID), b)
	}
	if err != nil {
		s.log.Error("profile write failed", logx.Int64("user", userID), logx.Err(err))
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	return nil
}

// update runs fn on the profile under the user's lock and persists it when
// fn returns nil.
func (s *Service) update(ctx context.Context, userID int64, fn func(p *Profile) error) (Profile, error) {
	unlock := s.locks.Lock(key(userID))
	defer unlock()

	p, _ := s.Get(ctx, userID)
	if err := fn(&p); err != nil {
		return p, err
	}
	return p, s.put(ctx, userID, p)
}

func (s *Service) Register(ctx context.Context, userID, chatID int64) error {
	_, err := s.update(ctx, userID, func(p *Profile) error {
		if p.Registered {
			return ErrAlreadyRegistered
		}
		p.Registered = true
		p.RegisteredAtMs = s.now().UnixMilli()
		p.ChatID = chatID
		return nil
	})
	return err
}

// SetName records the member's display name. Unknown users are ignored.
func (s *Service) SetName(ctx context.Context, userID int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	if p, ok := s.Get(ctx, userID); !ok || p.Name == name {
		return nil
	}
	_, err := s.update(ctx, userID, func(p *Profile) error {
		p.Name = name
		return nil
	})
	return err
}

// DisplayName is the stored name, empty when unknown.
func (s *Service) DisplayName(ctx context.Context, userID int64) string {
	p, _ := s.Get(ctx, userID)
	return p.Name
}

func (s *Service) Verify(ctx context.Context, userID int64) error {
	_, err := s.update(ctx, userID, func(p *Profile) error {
		switch {
		case !p.Registered:
			return ErrNotRegistered
		case p.Verified:
			return ErrAlreadyVerified
		}
		p.Verified = true
		p.VerifiedAtMs = s.now().UnixMilli()
		return nil
	})
	return err
}

// Eligible reports whether userID may enter giveaways.
func (s *Service) Eligible(ctx context.Context, userID int64) bool {
	p, ok := s.Get(ctx, userID)
	return ok && p.Registered
}

// Warn appends a warning. limitReached is true once the count reaches the
// configured maximum; banning is up to the caller.
func (s *Service) Warn(ctx context.Context, userID, moderatorID int64, reason string) (count int, limitReached bool, err error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultWarnReason
	}
	p, err := s.update(ctx, userID, func(p *Profile) error {
		p.Warns = append(p.Warns, Warn{Reason: reason, ModeratorID: moderatorID, AtMs: s.now().UnixMilli()})
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return len(p.Warns), len(p.Warns) >= s.MaxWarns(), nil
}

// Unwarn removes the 1-based warn index, or every warn when index is 0.
// It returns the removed warns and how many remain.
func (s *Service) Unwarn(ctx context.Context, userID int64, index int) (removed []Warn, remaining int, err error) {
	p, err := s.update(ctx, userID, func(p *Profile) error {
		if len(p.Warns) == 0 {
			return ErrNoWarnings
		}
		if index == 0 {
			removed = p.Warns
			p.Warns = []Warn{}
			return nil
		}
		if index < 0 || index > len(p.Warns) {
			return fmt.Errorf("%w: use 1..%d or all", ErrInvalidWarnIndex, len(p.Warns))
		}
		removed = []Warn{p.Warns[index-1]}
		p.Warns = append(p.Warns[:index-1:index-1], p.Warns[index:]...)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return removed, len(p.Warns), nil
}

func (s *Service) Warnings(ctx context.Context, userID int64) []Warn {
	p, _ := s.Get(ctx, userID)
	return p.Warns
}

// Stats counts stored profiles for /status.
func (s *Service) Stats(ctx context.Context) (registered, verified int) {
	all, err := s.st.All(ctx, storage.Users)
	if err != nil {
		s.log.Warn("profile scan failed", logx.Err(err))
		return 0, 0
	}
	for _, raw := range all {
		var p Profile
		if json.Unmarshal(raw, &p) != nil {
			continue
		}
		if p.Registered {
			registered++
		}
		if p.Verified {
			verified++
		}
	}
	return registered, verified
}
