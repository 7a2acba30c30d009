package engine

import (
	"strings"
	"sync"
	"time"
)

// groupWait is how long a worker holds a dequeued task waiting for its
// group before putting it back.
const groupWait = 10 * time.Millisecond

// groupSem caps concurrent runs sharing a ConcurrencyKey. The limit is fixed
// at first use; later tasks asking for another limit share the first one.
type groupSem struct {
	ch chan struct{}
}

func newGroupSem(limit int) *groupSem {
	g := &groupSem{ch: make(chan struct{}, max(limit, 1))}
	for i := 0; i < cap(g.ch); i++ {
		g.ch <- struct{}{}
	}
	return g
}

func (g *groupSem) acquire(wait time.Duration) bool {
	select {
	case <-g.ch:
		return true
	default:
	}
	if wait <= 0 {
		return false
	}
	tmr := time.NewTimer(wait)
	defer tmr.Stop()
	select {
	case <-g.ch:
		return true
	case <-tmr.C:
		return false
	}
}

func (g *groupSem) release() {
	select {
	case g.ch <- struct{}{}:
	default:
	}
}

type groups struct {
	mu sync.Mutex
	m  map[string]*groupSem
}

// get returns nil when the task is not limited.
func (gs *groups) get(key, name string, limit int) *groupSem {
	if limit <= 0 {
		return nil
	}
	k := strings.TrimSpace(key)
	if k == "" {
		k = name
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()
	if gs.m == nil {
		gs.m = map[string]*groupSem{}
	}
	g := gs.m[k]
	if g == nil {
		g = newGroupSem(limit)
		gs.m[k] = g
	}
	return g
}
