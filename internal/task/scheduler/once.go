package scheduler

import (
	"errors"
	"sort"
	"strings"
	"time"

	"giveawaybot/internal/task/engine"
	logx "giveawaybot/pkg/logx"
)

// AddOnce schedules job to be enqueued once at at. A second AddOnce with the
// same name replaces the first; a callback from a replaced timer is a no-op.
// A time in the past fires immediately.
func (s *Service) AddOnce(name string, at time.Time, timeout time.Duration, opt TaskOptions, job Job) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errNameRequired
	}
	if at.IsZero() {
		return errors.New("once: time required")
	}
	if job == nil {
		return errors.New("once: job required")
	}

	s.mu.Lock()
	s.removeScheduleLocked(name)
	s.mu.Unlock()

	s.tmu.Lock()
	defer s.tmu.Unlock()
	if old := s.once[name]; old != nil && old.timer != nil {
		old.timer.Stop()
	}
	s.onceSeq++
	d := &onceDef{at: at, timeout: timeout, opt: opt, job: job, ver: s.onceSeq}
	s.once[name] = d
	if s.running {
		s.armLocked(name, d)
	}
	return nil
}

const (
	onceRetryBase = 250 * time.Millisecond
	onceRetryMax  = 30 * time.Second
)

func onceRetryDelay(retries int) time.Duration {
	d := onceRetryBase
	for i := 1; i < retries && d < onceRetryMax; i++ {
		d *= 2
	}
	return min(d, onceRetryMax)
}

// armLocked starts the timer for d. A fired one-shot stays pending until
// the engine has accepted its task: a full queue blocks the submit, other
// refusals re-arm it with backoff, and a Stop keeps it for the next Start.
func (s *Service) armLocked(name string, d *onceDef) {
	ver := d.ver
	d.timer = time.AfterFunc(max(time.Until(d.at), 0), func() {
		s.tmu.Lock()
		cur := s.once[name]
		if cur == nil || cur.ver != ver || !s.running {
			s.tmu.Unlock()
			return
		}
		ctx, at, retries := s.runCtx, cur.at, cur.retries
		s.tmu.Unlock()

		s.log.Debug("once fired", logx.String("name", name), logx.Time("at", at), logx.Int("retries", retries))
		err := s.submit(ctx, name, d.timeout, d.opt, d.job)

		s.tmu.Lock()
		defer s.tmu.Unlock()
		cur = s.once[name]
		if cur == nil || cur.ver != ver {
			return
		}
		switch {
		case err == nil || errors.Is(err, engine.ErrOverlapSkip):
			delete(s.once, name)
		case !s.running:
			cur.timer = nil
		case ctx.Err() != nil:
			// A later Start has re-armed it.
		default:
			s.reportEnqueueError(name, err)
			cur.retries++
			cur.at = time.Now().Add(onceRetryDelay(cur.retries))
			s.armLocked(name, cur)
		}
	})
}

// Remove drops every schedule and one-shot named name.
func (s *Service) Remove(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	s.mu.Lock()
	removed := s.removeScheduleLocked(name)
	s.mu.Unlock()

	s.tmu.Lock()
	if d := s.once[name]; d != nil {
		if d.timer != nil {
			d.timer.Stop()
		}
		delete(s.once, name)
		removed = true
	}
	s.tmu.Unlock()

	if removed {
		s.log.Debug("schedule removed", logx.String("name", name))
	}
	return removed
}

// Pending lists one-shots whose names start with prefix, soonest first.
func (s *Service) Pending(prefix string) []OnceInfo {
	s.tmu.Lock()
	out := make([]OnceInfo, 0, len(s.once))
	for name, d := range s.once {
		if strings.HasPrefix(name, prefix) {
			out = append(out, OnceInfo{Name: name, At: d.at})
		}
	}
	s.tmu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].Name < out[j].Name
		}
		return out[i].At.Before(out[j].At)
	})
	return out
}
