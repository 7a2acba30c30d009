package giveaway

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"giveawaybot/internal/eventbus"
	"giveawaybot/internal/storage"
	"giveawaybot/pkg/keylock"
	logx "giveawaybot/pkg/logx"
)

// Eligibility decides whether a user may enter.
type Eligibility interface {
	Eligible(ctx context.Context, userID int64) bool
}

type EligibilityFunc func(ctx context.Context, userID int64) bool

func (f EligibilityFunc) Eligible(ctx context.Context, userID int64) bool { return f(ctx, userID) }

// Announcer posts results. Failures are logged by the caller and never undo
// a committed termination.
type Announcer interface {
	AnnounceResult(ctx context.Context, p Promotion) error
	AnnounceReroll(ctx context.Context, p Promotion, winners []int64) error
}

// timers is the part of Scheduler the service calls back into.
type timers interface {
	ScheduleOrRun(p Promotion)
	Cancel(id string) bool
}

type Config struct {
	MaxWinners  int
	MaxDuration time.Duration
	Retention   time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxWinners <= 0 {
		c.MaxWinners = 20
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = 30 * 24 * time.Hour
	}
	return c
}

type Option func(*Service)

// WithRandSource makes winner draws deterministic.
func WithRandSource(src rand.Source) Option {
	return func(s *Service) { s.drawer = newDrawer(src) }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithBus(b eventbus.Bus) Option {
	return func(s *Service) { s.bus = b }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

type Service struct {
	repo   *Repository
	locks  *keylock.Locker
	elig   Eligibility
	ann    Announcer
	timers timers

	cfg     Config
	log     logx.Logger
	bus     eventbus.Bus
	metrics *Metrics
	drawer  *drawer
	now     func() time.Time
	newID   func() string
}

func NewService(st storage.Store, elig Eligibility, ann Announcer, cfg Config, log logx.Logger, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "giveaway"))
	s := &Service{
		repo:  NewRepository(st, log),
		locks: keylock.New(),
		elig:  elig,
		ann:   ann,
		cfg:   cfg.withDefaults(),
		log:   log,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	if s.drawer == nil {
		s.drawer = newDrawer(nil)
	}
	return s
}

// SetAnnouncer replaces the announcer; the transport is usually built after
// the service.
func (s *Service) SetAnnouncer(a Announcer) { s.ann = a }

func (s *Service) Repository() *Repository { return s.repo }

type CreateInput struct {
	Channel  ChannelRef
	Prize    string
	Duration time.Duration
	Winners  int
	HostID   int64
}

// Create persists a new open promotion and hands it to the timer table.
func (s *Service) Create(ctx context.Context, in CreateInput) (Promotion, error) {
	prize := strings.TrimSpace(in.Prize)
	switch {
	case prize == "":
		return Promotion{}, fmt.Errorf("%w: prize required", ErrInvalid)
	case in.Duration <= 0:
		return Promotion{}, fmt.Errorf("%w: duration must be positive", ErrInvalid)
	case in.Duration > s.cfg.MaxDuration:
		return Promotion{}, fmt.Errorf("%w: duration above %s", ErrInvalid, s.cfg.MaxDuration)
	}
	winners := in.Winners
	if winners <= 0 {
		winners = 1
	}
	if winners > s.cfg.MaxWinners {
		return Promotion{}, fmt.Errorf("%w: at most %d winners", ErrInvalid, s.cfg.MaxWinners)
	}

	now := s.now()
	p := Promotion{
		ID:           s.newID(),
		Channel:      in.Channel,
		Prize:        prize,
		EndTimeMs:    now.Add(in.Duration).UnixMilli(),
		WinnerCount:  winners,
		HostID:       in.HostID,
		CreatedAtMs:  now.UnixMilli(),
		Participants: []int64{},
		Winners:      []int64{},
	}
	if !s.repo.Put(ctx, p) {
		return Promotion{}, ErrStore
	}
	s.log.Info("giveaway created", logx.String("id", p.ID), logx.String("prize", p.Prize), logx.Time("ends", p.EndTime()), logx.Int("winners", winners))
	s.metrics.created()
	eventbus.Emit(s.bus, "giveaway.created", p)
	if s.timers != nil {
		s.timers.ScheduleOrRun(p)
	}
	return p, nil
}

// AttachMessage records the posted message so the result can be rendered
// into it. The promotion may already have ended by then; the caller closes
// the post itself when the returned promotion is Ended.
func (s *Service) AttachMessage(ctx context.Context, id string, messageID int) (Promotion, error) {
	unlock := s.locks.Lock(id)
	defer unlock()
	p, ok := s.repo.Get(ctx, id)
	if !ok {
		return Promotion{}, ErrNotFound
	}
	p.MessageID = messageID
	if !s.repo.Put(ctx, p) {
		return p, ErrStore
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (Promotion, bool) {
	return s.repo.Get(ctx, id)
}

// Enter adds userID to the promotion and returns the new participant count.
// Rejections come in this order: ErrNotFound, ErrEnded, ErrAlreadyEntered,
// ErrNotEligible.
func (s *Service) Enter(ctx context.Context, id string, userID int64) (int, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	p, ok := s.repo.Get(ctx, id)
	switch {
	case !ok:
		return 0, ErrNotFound
	case p.Ended:
		return 0, ErrEnded
	case p.HasParticipant(userID):
		return len(p.Participants), ErrAlreadyEntered
	case s.elig != nil && !s.elig.Eligible(ctx, userID):
		return 0, ErrNotEligible
	}

	p.Participants = append(p.Participants, userID)
	if !s.repo.Put(ctx, p) {
		return 0, ErrStore
	}
	n := len(p.Participants)
	s.log.Debug("giveaway entered", logx.String("id", id), logx.Int64("user", userID), logx.Int("participants", n))
	s.metrics.entered()
	eventbus.Emit(s.bus, "giveaway.entered", map[string]any{"id": id, "user": userID, "participants": n})
	return n, nil
}

// End is the only path that closes a promotion. It is safe to call any
// number of times from any trigger: a missing record is ErrNotFound, an
// ended one returns AlreadyEnded. When the write fails the record stays open
// and ErrStore is returned; the next sweep tries again.
func (s *Service) End(ctx context.Context, id string) (Result, error) {
	unlock := s.locks.Lock(id)
	p, ok := s.repo.Get(ctx, id)
	if !ok {
		unlock()
		return Result{}, ErrNotFound
	}
	if p.Ended {
		unlock()
		return Result{Promotion: p, AlreadyEnded: true}, nil
	}

	p.Winners = s.drawer.draw(p.Participants, p.WinnerCount)
	p.Ended = true
	p.EndedAtMs = s.now().UnixMilli()
	if !s.repo.Put(ctx, p) {
		unlock()
		s.metrics.endFailed()
		return Result{}, ErrStore
	}
	unlock()

	if s.timers != nil {
		s.timers.Cancel(id)
	}
	s.log.Info("giveaway ended",
		logx.String("id", id),
		logx.Int("participants", len(p.Participants)),
		logx.Any("winners", p.Winners),
	)
	s.metrics.ended()
	eventbus.Emit(s.bus, "giveaway.ended", p)

	if s.ann != nil {
		if err := s.ann.AnnounceResult(ctx, p); err != nil {
			s.log.Warn("giveaway announce failed", logx.String("id", id), logx.Err(err))
		}
	}
	return Result{Promotion: p}, nil
}

// Reroll draws n extra winners among participants who have not won yet and
// appends them to Winners.
func (s *Service) Reroll(ctx context.Context, id string, n int) ([]int64, error) {
	if n <= 0 {
		n = 1
	}
	unlock := s.locks.Lock(id)
	p, ok := s.repo.Get(ctx, id)
	switch {
	case !ok:
		unlock()
		return nil, ErrNotFound
	case !p.Ended:
		unlock()
		return nil, ErrNotEnded
	}
	pool := candidates(p.Participants, p.Winners)
	if len(pool) == 0 {
		unlock()
		return nil, ErrNoCandidates
	}
	picked := s.drawer.draw(pool, n)
	p.Winners = append(p.Winners, picked...)
	if !s.repo.Put(ctx, p) {
		unlock()
		return nil, ErrStore
	}
	unlock()

	s.log.Info("giveaway rerolled", logx.String("id", id), logx.Any("winners", picked))
	if s.ann != nil {
		if err := s.ann.AnnounceReroll(ctx, p, picked); err != nil {
			s.log.Warn("giveaway reroll announce failed", logx.String("id", id), logx.Err(err))
		}
	}
	return picked, nil
}

// List returns open promotions, soonest end first.
func (s *Service) List(ctx context.Context) []Promotion {
	var out []Promotion
	for _, p := range s.repo.All(ctx) {
		if !p.Ended {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EndTimeMs == out[j].EndTimeMs {
			return out[i].ID < out[j].ID
		}
		return out[i].EndTimeMs < out[j].EndTimeMs
	})
	s.metrics.setOpen(len(out))
	return out
}

// Purge deletes promotions closed for longer than the retention window and
// returns how many were removed. Retention <= 0 disables it.
func (s *Service) Purge(ctx context.Context, now time.Time) int {
	if s.cfg.Retention <= 0 {
		return 0
	}
	cutoff := now.Add(-s.cfg.Retention).UnixMilli()
	removed := 0
	for id, p := range s.repo.All(ctx) {
		if !p.Ended || p.EndTimeMs >= cutoff {
			continue
		}
		if s.purgeOne(ctx, id, cutoff) {
			removed++
		}
	}
	if removed > 0 {
		s.log.Info("giveaways purged", logx.Int("removed", removed), logx.Duration("retention", s.cfg.Retention))
		s.metrics.purged(removed)
	}
	return removed
}

// purgeOne re-checks under the id lock before deleting.
func (s *Service) purgeOne(ctx context.Context, id string, cutoff int64) bool {
	unlock := s.locks.Lock(id)
	defer unlock()
	p, ok := s.repo.Get(ctx, id)
	if !ok || !p.Ended || p.EndTimeMs >= cutoff {
		return false
	}
	return s.repo.Delete(ctx, id)
}
