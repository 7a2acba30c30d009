package giveaway

import (
	"context"
	"errors"
	"strings"
	"time"

	"giveawaybot/internal/task/engine"
	"giveawaybot/internal/task/scheduler"
	logx "giveawaybot/pkg/logx"
)

const timerPrefix = "giveaway:"

// Trigger is the one-shot part of the task scheduler.
type Trigger interface {
	AddOnce(name string, at time.Time, timeout time.Duration, opt scheduler.TaskOptions, job scheduler.Job) error
	Remove(name string) bool
	Pending(prefix string) []scheduler.OnceInfo
}

type SchedulerConfig struct {
	// ExpiredGrace delays termination of promotions found already expired.
	ExpiredGrace time.Duration
	// EndTimeout bounds one termination run.
	EndTimeout time.Duration
	// EndConcurrency caps terminations running at once; 0 means no cap.
	EndConcurrency int
}

// endGroup is the engine concurrency key shared by all termination jobs.
const endGroup = "giveaway.end"

// Scheduler is the timer table: one pending one-shot per open promotion,
// rebuilt from the store by Recover and backed up by Sweep. The store wins
// whenever it disagrees with the table.
type Scheduler struct {
	svc  *Service
	trig Trigger
	cfg  SchedulerConfig
	log  logx.Logger
	now  func() time.Time
}

// NewScheduler wires itself into svc so Create arms a timer.
func NewScheduler(svc *Service, trig Trigger, cfg SchedulerConfig) *Scheduler {
	if cfg.ExpiredGrace < 0 {
		cfg.ExpiredGrace = 0
	}
	if cfg.EndTimeout <= 0 {
		cfg.EndTimeout = 30 * time.Second
	}
	s := &Scheduler{
		svc:  svc,
		trig: trig,
		cfg:  cfg,
		log:  svc.log.With(logx.String("sub", "timers")),
		now:  svc.now,
	}
	svc.timers = s
	return s
}

func timerName(id string) string { return timerPrefix + id }

// ScheduleOrRun arms a timer at the end time, or dispatches termination
// after the grace delay when the promotion has already expired. It never
// blocks on termination.
func (s *Scheduler) ScheduleOrRun(p Promotion) {
	if p.Ended {
		return
	}
	now := s.now()
	at := p.EndTime()
	expired := p.Expired(now)
	if expired {
		at = now.Add(s.cfg.ExpiredGrace)
	}

	id := p.ID
	opt := scheduler.TaskOptions{
		Overlap:          scheduler.OverlapSkipIfRunning,
		ConcurrencyKey:   endGroup,
		ConcurrencyLimit: s.cfg.EndConcurrency,
	}
	err := s.trig.AddOnce(timerName(id), at, s.cfg.EndTimeout, opt, func(ctx context.Context) error {
		return s.endJob(ctx, id)
	})
	if err != nil {
		s.log.Error("timer arm failed", logx.String("id", id), logx.Err(err))
		return
	}
	s.svc.metrics.setPending(s.Pending())
	s.log.Debug("timer armed", logx.String("id", id), logx.Time("at", at), logx.Bool("expired", expired))
}

// endJob runs on the task engine. Store failures are not retried here;
// the sweep picks the promotion up again.
func (s *Scheduler) endJob(ctx context.Context, id string) error {
	_, err := s.svc.End(ctx, id)
	s.svc.metrics.setPending(s.Pending())
	if err == nil || errors.Is(err, ErrNotFound) {
		return nil
	}
	return engine.NoRetry(err)
}

// Cancel removes a pending timer.
func (s *Scheduler) Cancel(id string) bool {
	ok := s.trig.Remove(timerName(id))
	if ok {
		s.svc.metrics.setPending(s.Pending())
	}
	return ok
}

// Pending is the number of armed timers.
func (s *Scheduler) Pending() int {
	return len(s.trig.Pending(timerPrefix))
}

// PendingIDs lists promotion ids with an armed timer.
func (s *Scheduler) PendingIDs() []string {
	infos := s.trig.Pending(timerPrefix)
	ids := make([]string, 0, len(infos))
	for _, in := range infos {
		ids = append(ids, strings.TrimPrefix(in.Name, timerPrefix))
	}
	return ids
}

// Recover is the startup pass. Every open promotion gets a timer; expired
// ones get an immediate (grace-delayed) termination.
func (s *Scheduler) Recover(ctx context.Context) (scheduled, expired int) {
	now := s.now()
	open := 0
	for _, p := range s.svc.repo.All(ctx) {
		if p.Ended {
			continue
		}
		open++
		if p.Expired(now) {
			expired++
		} else {
			scheduled++
		}
		s.ScheduleOrRun(p)
	}
	s.svc.metrics.setOpen(open)
	s.log.Info("giveaway timers recovered", logx.Int("scheduled", scheduled), logx.Int("expired", expired))
	return scheduled, expired
}

// SweepReport is what one sweep did.
type SweepReport struct {
	Open   int
	Ended  int
	Failed int
	Purged int
}

// Sweep ends every open promotion past its end time, then applies
// retention.
func (s *Scheduler) Sweep(ctx context.Context) SweepReport {
	now := s.now()
	var rep SweepReport
	for id, p := range s.svc.repo.All(ctx) {
		if p.Ended {
			continue
		}
		if !p.Expired(now) {
			rep.Open++
			continue
		}
		res, err := s.svc.End(ctx, id)
		switch {
		case err != nil && !errors.Is(err, ErrNotFound):
			rep.Failed++
			rep.Open++
			s.log.Warn("sweep termination failed", logx.String("id", id), logx.Err(err))
		case err == nil && !res.AlreadyEnded:
			rep.Ended++
		}
	}
	rep.Purged = s.svc.Purge(ctx, now)

	s.svc.metrics.setOpen(rep.Open)
	s.svc.metrics.recovered(rep.Ended)
	s.svc.metrics.setPending(s.Pending())
	if rep.Ended > 0 || rep.Failed > 0 || rep.Purged > 0 {
		s.log.Info("giveaway sweep", logx.Int("ended", rep.Ended), logx.Int("failed", rep.Failed), logx.Int("purged", rep.Purged), logx.Int("open", rep.Open))
	} else {
		s.log.Debug("giveaway sweep", logx.Int("open", rep.Open))
	}
	return rep
}
