package giveaway

import (
	"math/rand/v2"
	"slices"
	"sync"
)

// drawer picks winners uniformly without replacement. rand.Rand is not safe
// for concurrent use, hence the mutex.
type drawer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newDrawer(src rand.Source) *drawer {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &drawer{rng: rand.New(src)}
}

// draw returns min(n, len(pool)) distinct entries in draw order using a
// partial Fisher-Yates shuffle over a copy of pool.
func (d *drawer) draw(pool []int64, n int) []int64 {
	c := slices.Clone(pool)
	n = min(n, len(c))
	if n <= 0 {
		return []int64{}
	}
	d.mu.Lock()
	for i := 0; i < n; i++ {
		j := i + d.rng.IntN(len(c)-i)
		c[i], c[j] = c[j], c[i]
	}
	d.mu.Unlock()
	return c[:n:n]
}

// candidates returns participants that are not in exclude, in entry order.
func candidates(participants, exclude []int64) []int64 {
	out := make([]int64, 0, len(participants))
	for _, id := range participants {
		if !slices.Contains(exclude, id) {
			out = append(out, id)
		}
	}
	return out
}
