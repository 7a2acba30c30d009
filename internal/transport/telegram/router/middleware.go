package router

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"giveawaybot/pkg/logx"
)

type Middleware func(next HandlerFunc) HandlerFunc

// ErrCooldown is returned by the cooldown middleware when a user sends
// commands faster than allowed.
var ErrCooldown = errors.New("router: cooldown")

func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

func MWTimeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		if d <= 0 {
			return next
		}
		return func(ctx context.Context, req *Request) error {
			cctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(cctx, req)
		}
	}
}

func MWPanicRecover(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger := log
					if req != nil && !req.Logger.IsZero() {
						logger = req.Logger
					}
					logger.Error("panic recovered", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return next(ctx, req)
		}
	}
}

func MWRequestLog(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			logger := log
			if !req.Logger.IsZero() {
				logger = req.Logger
			}
			err := next(ctx, req)
			d := time.Since(start)

			fields := []logx.Field{
				logx.String("kind", string(req.Update.Kind)),
				logx.String("cmd", req.Command),
				logx.Duration("dur", d),
			}
			switch {
			case errors.Is(err, ErrCooldown):
				logger.Debug("request throttled", fields...)
			case err != nil:
				logger.Warn("request failed", append(fields, logx.Err(err))...)
			case d >= 750*time.Millisecond:
				logger.Info("request ok", fields...)
			default:
				logger.Debug("request ok", fields...)
			}
			return err
		}
	}
}

// Cooldown keeps one token bucket per user: a burst of one command, refilled
// every interval. Owners are exempt. Idle buckets are dropped by Prune.
type Cooldown struct {
	mu      sync.Mutex
	every   time.Duration
	buckets map[int64]*bucket
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewCooldown(every time.Duration) *Cooldown {
	return &Cooldown{every: every, buckets: map[int64]*bucket{}}
}

// SetInterval changes the spacing for new and existing users.
func (c *Cooldown) SetInterval(every time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if every == c.every {
		return
	}
	c.every = every
	clear(c.buckets)
}

// Allow reports whether userID may run a command at now.
func (c *Cooldown) Allow(userID int64, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.every <= 0 {
		return true
	}
	b, ok := c.buckets[userID]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Every(c.every), 1)}
		c.buckets[userID] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// Prune drops buckets not used since before cutoff.
func (c *Cooldown) Prune(cutoff time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, b := range c.buckets {
		if b.seen.Before(cutoff) {
			delete(c.buckets, id)
			n++
		}
	}
	return n
}

func (c *Cooldown) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buckets)
}

func MWCooldown(c *Cooldown) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		if c == nil {
			return next
		}
		return func(ctx context.Context, req *Request) error {
			if req.IsOwner() || c.Allow(req.From.ID, time.Now()) {
				return next(ctx, req)
			}
			return ErrCooldown
		}
	}
}
