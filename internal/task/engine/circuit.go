package engine

import (
	"strings"
	"sync"
	"time"
)

// circuit counts consecutive final failures of one task key. Past the trip
// count the key is refused at enqueue for a cooldown that doubles with each
// further failure.
type circuit struct {
	fails     int
	openUntil time.Time
	lastFail  time.Time
}

type circuitPolicy struct {
	trip       int
	base       time.Duration
	max        time.Duration
	resetAfter time.Duration
}

func (p circuitPolicy) enabled() bool { return p.trip > 0 }

func circuitPolicyFor(cfg Config, opt TaskOptions) circuitPolicy {
	trip := cfg.CircuitTrip
	switch {
	case trip < 0 || opt.CircuitTrip < 0:
		return circuitPolicy{}
	case opt.CircuitTrip > 0:
		trip = opt.CircuitTrip
	case trip == 0:
		trip = 5
	}
	p := circuitPolicy{trip: trip, base: cfg.CircuitBase, max: cfg.CircuitMax, resetAfter: cfg.CircuitResetAfter}
	if p.base <= 0 {
		p.base = 5 * time.Second
	}
	if p.max <= 0 {
		p.max = 2 * time.Minute
	}
	if p.resetAfter <= 0 {
		p.resetAfter = 5 * time.Minute
	}
	return p
}

type circuits struct {
	mu sync.Mutex
	m  map[string]*circuit
}

func circuitKey(key, name string) string {
	if k := strings.TrimSpace(key); k != "" {
		return k
	}
	return name
}

func (cs *circuits) getLocked(key string) *circuit {
	if cs.m == nil {
		cs.m = map[string]*circuit{}
	}
	c := cs.m[key]
	if c == nil {
		c = &circuit{}
		cs.m[key] = c
	}
	return c
}

func (c *circuit) expire(now time.Time, p circuitPolicy) {
	if !c.lastFail.IsZero() && now.Sub(c.lastFail) > p.resetAfter {
		*c = circuit{}
	}
}

// open reports whether key is refused at now, and until when.
func (cs *circuits) open(now time.Time, key string, p circuitPolicy) (bool, time.Time) {
	if !p.enabled() {
		return false, time.Time{}
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	c := cs.m[key]
	if c == nil {
		return false, time.Time{}
	}
	c.expire(now, p)
	if now.Before(c.openUntil) {
		return true, c.openUntil
	}
	return false, time.Time{}
}

// record folds the final result of one run into the key's circuit.
func (cs *circuits) record(now time.Time, key string, p circuitPolicy, err error) {
	if !p.enabled() {
		return
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if err == nil {
		delete(cs.m, key)
		return
	}
	c := cs.getLocked(key)
	c.expire(now, p)
	c.fails++
	c.lastFail = now
	if c.fails < p.trip {
		return
	}
	d := p.base
	for i := p.trip; i < c.fails && d < p.max; i++ {
		d *= 2
	}
	c.openUntil = now.Add(min(d, p.max))
}

// counts returns tracked keys and how many are open.
func (cs *circuits) counts(now time.Time) (total, open int) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for _, c := range cs.m {
		total++
		if now.Before(c.openUntil) {
			open++
		}
	}
	return total, open
}
