package giveaway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"giveawaybot/internal/storage"
	"giveawaybot/internal/task/engine"
	"giveawaybot/internal/task/scheduler"
	logx "giveawaybot/pkg/logx"
)

type flakyStore struct {
	storage.Store
	failPuts atomic.Bool
}

func (f *flakyStore) Put(ctx context.Context, coll storage.Collection, key string, doc json.RawMessage) error {
	if f.failPuts.Load() {
		return errors.New("disk full")
	}
	return f.Store.Put(ctx, coll, key, doc)
}

type fakeAnnouncer struct {
	mu      sync.Mutex
	results []Promotion
	rerolls [][]int64
	err     error
	delay   time.Duration
}

func (a *fakeAnnouncer) AnnounceResult(_ context.Context, p Promotion) error {
	time.Sleep(a.delay)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = append(a.results, p)
	return a.err
}

func (a *fakeAnnouncer) AnnounceReroll(_ context.Context, _ Promotion, w []int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rerolls = append(a.rerolls, w)
	return a.err
}

func (a *fakeAnnouncer) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.results)
}

type armed struct {
	at  time.Time
	job scheduler.Job
}

type fakeTrigger struct {
	mu    sync.Mutex
	items map[string]armed
}

func newFakeTrigger() *fakeTrigger { return &fakeTrigger{items: map[string]armed{}} }

func (f *fakeTrigger) AddOnce(name string, at time.Time, _ time.Duration, _ scheduler.TaskOptions, job scheduler.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[name] = armed{at: at, job: job}
	return nil
}

func (f *fakeTrigger) Remove(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.items[name]
	delete(f.items, name)
	return ok
}

func (f *fakeTrigger) Pending(prefix string) []scheduler.OnceInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []scheduler.OnceInfo
	for name, a := range f.items {
		if strings.HasPrefix(name, prefix) {
			out = append(out, scheduler.OnceInfo{Name: name, At: a.at})
		}
	}
	return out
}

func (f *fakeTrigger) get(name string) (armed, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.items[name]
	return a, ok
}

// fire simulates the timer: the entry is consumed, then the job runs.
func (f *fakeTrigger) fire(t *testing.T, name string) error {
	t.Helper()
	f.mu.Lock()
	a, ok := f.items[name]
	delete(f.items, name)
	f.mu.Unlock()
	if !ok {
		t.Fatalf("no timer %q", name)
	}
	return a.job(context.Background())
}

type fixture struct {
	svc   *Service
	sched *Scheduler
	trig  *fakeTrigger
	ann   *fakeAnnouncer
	store *flakyStore
	clock *time.Time
}

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, registered ...int64) *fixture {
	t.Helper()
	st, err := storage.Open(storage.Config{Driver: "file", Path: t.TempDir()}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	f := &fixture{store: &flakyStore{Store: st}, ann: &fakeAnnouncer{}, trig: newFakeTrigger()}
	now := t0
	f.clock = &now
	elig := EligibilityFunc(func(_ context.Context, id int64) bool { return slices.Contains(registered, id) })
	seq := 0
	f.svc = NewService(f.store, elig, f.ann, Config{Retention: 7 * 24 * time.Hour}, logx.Nop(),
		WithRandSource(rand.NewPCG(1, 2)),
		WithClock(func() time.Time { return *f.clock }),
		WithIDGenerator(func() string { seq++; return fmt.Sprintf("g%d", seq) }),
	)
	f.sched = NewScheduler(f.svc, f.trig, SchedulerConfig{ExpiredGrace: time.Second})
	return f
}

func (f *fixture) create(t *testing.T, d time.Duration, winners int) Promotion {
	t.Helper()
	p, err := f.svc.Create(context.Background(), CreateInput{Channel: ChannelRef{ChatID: -1}, Prize: "Nitro", Duration: d, Winners: winners})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return p
}

func TestCreateValidatesAndArmsTimer(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	bad := []CreateInput{
		{Prize: " ", Duration: time.Minute},
		{Prize: "x", Duration: 0},
		{Prize: "x", Duration: 31 * 24 * time.Hour},
		{Prize: "x", Duration: time.Minute, Winners: 21},
	}
	for _, in := range bad {
		if _, err := f.svc.Create(ctx, in); !errors.Is(err, ErrInvalid) {
			t.Fatalf("Create(%+v) err=%v", in, err)
		}
	}

	p := f.create(t, 2*time.Second, 0)
	if p.ID != "g1" || p.WinnerCount != 1 || p.Ended || len(p.Participants) != 0 {
		t.Fatalf("promotion=%+v", p)
	}
	if p.EndTimeMs != t0.Add(2*time.Second).UnixMilli() {
		t.Fatalf("EndTimeMs=%d", p.EndTimeMs)
	}
	a, ok := f.trig.get("giveaway:g1")
	if !ok || !a.at.Equal(p.EndTime()) {
		t.Fatalf("timer=%+v ok=%v", a, ok)
	}
	if stored, ok := f.svc.Get(ctx, "g1"); !ok || stored.Prize != "Nitro" {
		t.Fatalf("stored=%+v ok=%v", stored, ok)
	}
}

func TestEnterOutcomes(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 1, 2)
	ctx := context.Background()
	p := f.create(t, time.Hour, 1)

	if _, err := f.svc.Enter(ctx, "missing", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing err=%v", err)
	}
	if _, err := f.svc.Enter(ctx, p.ID, 99); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("unregistered err=%v", err)
	}
	n, err := f.svc.Enter(ctx, p.ID, 1)
	if err != nil || n != 1 {
		t.Fatalf("first entry n=%d err=%v", n, err)
	}
	if _, err := f.svc.Enter(ctx, p.ID, 1); !errors.Is(err, ErrAlreadyEntered) {
		t.Fatalf("duplicate entry err=%v", err)
	}

	if _, err := f.svc.End(ctx, p.ID); err != nil {
		t.Fatalf("End: %v", err)
	}
	if _, err := f.svc.Enter(ctx, p.ID, 2); !errors.Is(err, ErrEnded) {
		t.Fatalf("entry after end err=%v", err)
	}
	got, _ := f.svc.Get(ctx, p.ID)
	if !slices.Equal(got.Participants, []int64{1}) {
		t.Fatalf("participants=%v", got.Participants)
	}
}

func TestEnterConcurrentNoDuplicates(t *testing.T) {
	t.Parallel()
	users := make([]int64, 20)
	for i := range users {
		users[i] = int64(i + 1)
	}
	f := newFixture(t, users...)
	p := f.create(t, time.Hour, 3)

	var wg sync.WaitGroup
	for _, u := range users {
		for k := 0; k < 3; k++ {
			wg.Add(1)
			go func(u int64) {
				defer wg.Done()
				_, _ = f.svc.Enter(context.Background(), p.ID, u)
			}(u)
		}
	}
	wg.Wait()

	got, _ := f.svc.Get(context.Background(), p.ID)
	if len(got.Participants) != len(users) {
		t.Fatalf("participants=%v", got.Participants)
	}
	seen := map[int64]bool{}
	for _, u := range got.Participants {
		if seen[u] {
			t.Fatalf("duplicate participant %d", u)
		}
		seen[u] = true
	}
}

func TestEnterRacesEnd(t *testing.T) {
	t.Parallel()
	users := make([]int64, 30)
	for i := range users {
		users[i] = int64(i + 1)
	}
	f := newFixture(t, users...)
	ctx := context.Background()

	for round := 0; round < 10; round++ {
		p := f.create(t, time.Hour, 3)
		var (
			mu       sync.Mutex
			accepted []int64
			wg       sync.WaitGroup
		)
		for _, u := range users {
			wg.Add(1)
			go func(u int64) {
				defer wg.Done()
				_, err := f.svc.Enter(ctx, p.ID, u)
				switch {
				case err == nil:
					mu.Lock()
					accepted = append(accepted, u)
					mu.Unlock()
				case !errors.Is(err, ErrEnded):
					t.Errorf("Enter(%d): %v", u, err)
				}
			}(u)
		}
		for k := 0; k < 5; k++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := f.svc.End(ctx, p.ID); err != nil {
					t.Errorf("End: %v", err)
				}
			}()
		}
		wg.Wait()

		got, _ := f.svc.Get(ctx, p.ID)
		if !got.Ended {
			t.Fatalf("round %d: not ended", round)
		}
		slices.Sort(accepted)
		stored := slices.Clone(got.Participants)
		slices.Sort(stored)
		if !slices.Equal(stored, accepted) {
			t.Fatalf("round %d: stored=%v accepted=%v", round, stored, accepted)
		}
		for _, w := range got.Winners {
			if !slices.Contains(accepted, w) {
				t.Fatalf("round %d: winner %d never entered", round, w)
			}
		}
		if n := f.ann.count(); n != round+1 {
			t.Fatalf("round %d: announcements=%d", round, n)
		}
	}
}

func TestEndIsIdempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 1, 2, 3, 4)
	ctx := context.Background()
	p := f.create(t, time.Hour, 2)
	for _, u := range []int64{1, 2, 3, 4} {
		if _, err := f.svc.Enter(ctx, p.ID, u); err != nil {
			t.Fatalf("Enter: %v", err)
		}
	}

	first, err := f.svc.End(ctx, p.ID)
	if err != nil || first.AlreadyEnded {
		t.Fatalf("first End=%+v err=%v", first, err)
	}
	w := first.Promotion.Winners
	if len(w) != 2 || w[0] == w[1] {
		t.Fatalf("winners=%v", w)
	}
	if _, ok := f.trig.get("giveaway:" + p.ID); ok {
		t.Fatalf("manual end should cancel the pending timer")
	}

	second, err := f.svc.End(ctx, p.ID)
	if err != nil || !second.AlreadyEnded {
		t.Fatalf("second End=%+v err=%v", second, err)
	}
	if !slices.Equal(second.Promotion.Winners, w) || !second.Promotion.Ended {
		t.Fatalf("second End changed state: %+v", second.Promotion)
	}
	if n := f.ann.count(); n != 1 {
		t.Fatalf("announced %d times", n)
	}
	if _, err := f.svc.End(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("End missing err=%v", err)
	}
}

func TestEndWithoutParticipants(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	p := f.create(t, time.Hour, 3)

	res, err := f.svc.End(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if !res.Promotion.Ended || len(res.Promotion.Winners) != 0 || res.Promotion.Winners == nil {
		t.Fatalf("promotion=%+v", res.Promotion)
	}
	if f.ann.count() != 1 {
		t.Fatalf("nobody-entered result should still be announced")
	}
}

func TestAnnounceFailureKeepsClosedState(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 1)
	f.ann.err = errors.New("chat unreachable")
	p := f.create(t, time.Hour, 1)
	_, _ = f.svc.Enter(context.Background(), p.ID, 1)

	if _, err := f.svc.End(context.Background(), p.ID); err != nil {
		t.Fatalf("announce failure must not fail End: %v", err)
	}
	got, _ := f.svc.Get(context.Background(), p.ID)
	if !got.Ended || !slices.Equal(got.Winners, []int64{1}) {
		t.Fatalf("stored=%+v", got)
	}
}

func TestStoreFailureLeavesOpenUntilSweep(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, time.Minute, 1)
	*f.clock = t0.Add(2 * time.Minute)

	f.store.failPuts.Store(true)
	err := f.trig.fire(t, "giveaway:"+p.ID)
	if !engine.IsNoRetry(err) || !errors.Is(err, ErrStore) {
		t.Fatalf("timer job err=%v", err)
	}
	if got, _ := f.svc.Get(ctx, p.ID); got.Ended {
		t.Fatalf("failed write must leave promotion open")
	}
	if rep := f.sched.Sweep(ctx); rep.Failed != 1 || rep.Ended != 0 {
		t.Fatalf("sweep while failing=%+v", rep)
	}

	f.store.failPuts.Store(false)
	if rep := f.sched.Sweep(ctx); rep.Ended != 1 || rep.Open != 0 {
		t.Fatalf("sweep after recovery=%+v", rep)
	}
	if got, _ := f.svc.Get(ctx, p.ID); !got.Ended {
		t.Fatalf("sweep should close the promotion")
	}
}

func TestRecoverSchedulesFutureAndDispatchesExpired(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	future := f.create(t, time.Hour, 1)
	past := f.create(t, time.Minute, 1)
	closed := f.create(t, time.Minute, 1)
	if _, err := f.svc.End(ctx, closed.ID); err != nil {
		t.Fatalf("End: %v", err)
	}

	// Restart: timers are gone, the store is not.
	f.trig = newFakeTrigger()
	f.sched = NewScheduler(f.svc, f.trig, SchedulerConfig{ExpiredGrace: time.Second})
	*f.clock = t0.Add(10 * time.Minute)

	scheduled, expired := f.sched.Recover(ctx)
	if scheduled != 1 || expired != 1 {
		t.Fatalf("Recover scheduled=%d expired=%d", scheduled, expired)
	}
	if a, ok := f.trig.get("giveaway:" + future.ID); !ok || !a.at.Equal(future.EndTime()) {
		t.Fatalf("future timer=%+v ok=%v", a, ok)
	}
	a, ok := f.trig.get("giveaway:" + past.ID)
	if !ok || !a.at.Equal(t0.Add(10*time.Minute+time.Second)) {
		t.Fatalf("expired timer=%+v ok=%v", a, ok)
	}
	if _, ok := f.trig.get("giveaway:" + closed.ID); ok {
		t.Fatalf("closed promotion must not be scheduled")
	}
	if n := f.sched.Pending(); n != 2 {
		t.Fatalf("Pending=%d", n)
	}

	if err := f.trig.fire(t, "giveaway:"+past.ID); err != nil {
		t.Fatalf("expired job: %v", err)
	}
	if got, _ := f.svc.Get(ctx, past.ID); !got.Ended {
		t.Fatalf("expired promotion should end without a sweep")
	}
}

func TestSweepCoversLostTimer(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, time.Minute, 1)
	other := f.create(t, time.Hour, 1)

	f.sched.Cancel(p.ID)
	*f.clock = t0.Add(5 * time.Minute)

	rep := f.sched.Sweep(ctx)
	if rep.Ended != 1 || rep.Open != 1 {
		t.Fatalf("sweep=%+v", rep)
	}
	if got, _ := f.svc.Get(ctx, p.ID); !got.Ended {
		t.Fatalf("lost-timer promotion should be closed by the sweep")
	}
	if got, _ := f.svc.Get(ctx, other.ID); got.Ended {
		t.Fatalf("future promotion must stay open")
	}
}

func TestPurgeRetention(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	old := f.create(t, time.Minute, 1)
	recent := f.create(t, 6*24*time.Hour, 1)
	open := f.create(t, 20*24*time.Hour, 1)
	for _, id := range []string{old.ID, recent.ID} {
		if _, err := f.svc.End(ctx, id); err != nil {
			t.Fatalf("End: %v", err)
		}
	}

	if n := f.svc.Purge(ctx, t0.Add(7*24*time.Hour+2*time.Minute)); n != 1 {
		t.Fatalf("Purge removed %d", n)
	}
	if _, ok := f.svc.Get(ctx, old.ID); ok {
		t.Fatalf("old closed promotion should be purged")
	}
	for _, id := range []string{recent.ID, open.ID} {
		if _, ok := f.svc.Get(ctx, id); !ok {
			t.Fatalf("%s should be kept", id)
		}
	}
}

func TestReroll(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 1, 2, 3)
	ctx := context.Background()
	p := f.create(t, time.Hour, 1)

	if _, err := f.svc.Reroll(ctx, p.ID, 1); !errors.Is(err, ErrNotEnded) {
		t.Fatalf("reroll on open err=%v", err)
	}
	for _, u := range []int64{1, 2, 3} {
		_, _ = f.svc.Enter(ctx, p.ID, u)
	}
	res, _ := f.svc.End(ctx, p.ID)

	picked, err := f.svc.Reroll(ctx, p.ID, 5)
	if err != nil || len(picked) != 2 {
		t.Fatalf("Reroll picked=%v err=%v", picked, err)
	}
	if slices.Contains(picked, res.Promotion.Winners[0]) {
		t.Fatalf("reroll picked an existing winner: %v", picked)
	}
	got, _ := f.svc.Get(ctx, p.ID)
	if len(got.Winners) != 3 || !got.Ended {
		t.Fatalf("stored=%+v", got)
	}
	if _, err := f.svc.Reroll(ctx, p.ID, 1); !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("exhausted reroll err=%v", err)
	}
	if _, err := f.svc.Reroll(ctx, "missing", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing reroll err=%v", err)
	}
}

func TestDrawWithoutReplacement(t *testing.T) {
	t.Parallel()
	d := newDrawer(rand.NewPCG(7, 7))
	pool := []int64{10, 20, 30, 40, 50}

	for n := 0; n <= 7; n++ {
		got := d.draw(pool, n)
		if len(got) != min(n, len(pool)) {
			t.Fatalf("draw(%d) len=%d", n, len(got))
		}
		seen := map[int64]bool{}
		for _, id := range got {
			if seen[id] || !slices.Contains(pool, id) {
				t.Fatalf("draw(%d)=%v", n, got)
			}
			seen[id] = true
		}
	}
	if !slices.Equal(pool, []int64{10, 20, 30, 40, 50}) {
		t.Fatalf("draw must not mutate the pool: %v", pool)
	}
	if got := candidates([]int64{1, 2, 3, 4}, []int64{2, 4}); !slices.Equal(got, []int64{1, 3}) {
		t.Fatalf("candidates=%v", got)
	}
}

// Scenario: a two-second giveaway driven by the real scheduler and engine.
func TestTimerEndsPromotion(t *testing.T) {
	t.Parallel()
	st, err := storage.Open(storage.Config{Driver: "file", Path: t.TempDir()}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	eng := engine.New(engine.Config{Enabled: true, Workers: 2}, logx.Nop(), nil)
	eng.Start(context.Background())
	defer eng.Stop(context.Background())
	trig := scheduler.New(scheduler.Config{}, eng, logx.Nop(), nil)
	trig.Start(context.Background())
	defer trig.Stop(context.Background())

	ann := &fakeAnnouncer{}
	svc := NewService(st, EligibilityFunc(func(context.Context, int64) bool { return true }), ann, Config{}, logx.Nop())
	NewScheduler(svc, trig, SchedulerConfig{})

	ctx := context.Background()
	p, err := svc.Create(ctx, CreateInput{Prize: "Mug", Duration: 300 * time.Millisecond, Winners: 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if n, err := svc.Enter(ctx, p.ID, 42); err != nil || n != 1 {
		t.Fatalf("Enter n=%d err=%v", n, err)
	}
	if _, err := svc.Enter(ctx, p.ID, 42); !errors.Is(err, ErrAlreadyEntered) {
		t.Fatalf("second Enter err=%v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for ann.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	got, _ := svc.Get(ctx, p.ID)
	if !got.Ended || !slices.Equal(got.Winners, []int64{42}) {
		t.Fatalf("after expiry=%+v", got)
	}
}

// Scenario: more expired giveaways at startup than the engine queue holds.
// Every one must end from its timer alone, without a sweep.
func TestRecoverBurstLargerThanQueue(t *testing.T) {
	t.Parallel()
	st, err := storage.Open(storage.Config{Driver: "file", Path: t.TempDir()}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	var past atomic.Bool
	past.Store(true)
	clock := func() time.Time {
		if past.Load() {
			return time.Now().Add(-time.Hour)
		}
		return time.Now()
	}
	ann := &fakeAnnouncer{delay: 20 * time.Millisecond}
	svc := NewService(st, EligibilityFunc(func(context.Context, int64) bool { return true }), ann, Config{}, logx.Nop(),
		WithClock(clock))

	ctx := context.Background()
	const n = 20
	for i := 0; i < n; i++ {
		if _, err := svc.Create(ctx, CreateInput{Prize: "Key", Duration: time.Minute, Winners: 1}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	past.Store(false)

	eng := engine.New(engine.Config{Enabled: true, Workers: 1, QueueSize: 4}, logx.Nop(), nil)
	eng.Start(ctx)
	defer eng.Stop(context.Background())
	trig := scheduler.New(scheduler.Config{}, eng, logx.Nop(), nil)
	trig.Start(ctx)
	defer trig.Stop(context.Background())

	timers := NewScheduler(svc, trig, SchedulerConfig{ExpiredGrace: 10 * time.Millisecond})
	if scheduled, expired := timers.Recover(ctx); scheduled != 0 || expired != n {
		t.Fatalf("Recover scheduled=%d expired=%d", scheduled, expired)
	}

	deadline := time.Now().Add(10 * time.Second)
	for ann.count() < n && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if got := ann.count(); got != n {
		t.Fatalf("announced=%d of %d, pending timers=%d", got, n, timers.Pending())
	}
	if open := len(svc.List(ctx)); open != 0 {
		t.Fatalf("%d giveaways still open", open)
	}
}

func TestEntryReplyTexts(t *testing.T) {
	t.Parallel()
	cases := []struct {
		n    int
		err  error
		want string
	}{
		{3, nil, "✅ Entered! 3 participants."},
		{0, ErrNotFound, "❌ Giveaway not found."},
		{0, ErrEnded, "⏰ This giveaway has already ended."},
		{1, ErrAlreadyEntered, "ℹ️ You have already entered."},
		{0, ErrNotEligible, "📝 You are not eligible. Register first with /register."},
	}
	for _, tc := range cases {
		if got := EntryReply(tc.n, tc.err); got != tc.want {
			t.Fatalf("EntryReply(%v)=%q", tc.err, got)
		}
	}

	p := Promotion{Prize: "A & B", Participants: []int64{}, Winners: []int64{}}
	if got := string(ResultText(p, nil)); got != "<b>🎉 GIVEAWAY ENDED</b>\nPrize: <b>A &amp; B</b>\nNobody entered, so there is no winner." {
		t.Fatalf("ResultText=%q", got)
	}
	p.Participants = []int64{5, 6}
	p.Winners = []int64{6}
	want := "<b>🎉 GIVEAWAY ENDED</b>\nPrize: <b>A &amp; B</b>\nParticipants: 2\n1st: <a href=\"tg://user?id=6\">Bob</a>"
	if got := string(ResultText(p, func(int64) string { return "Bob" })); got != want {
		t.Fatalf("ResultText=%q", got)
	}
}
