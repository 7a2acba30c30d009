package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"giveawaybot/internal/eventbus"
	"giveawaybot/internal/task/engine"
	logx "giveawaybot/pkg/logx"
)

type Config struct {
	Timezone string // IANA name, empty means Local
}

type TaskOptions = engine.TaskOptions

type HistoryItem = engine.HistoryItem

const (
	OverlapAllow         = engine.OverlapAllow
	OverlapSkipIfRunning = engine.OverlapSkipIfRunning
)

// Job is what a schedule runs.
type Job func(ctx context.Context) error

type scheduleDef struct {
	name          string
	spec          string
	timeout       time.Duration
	job           Job
	opt           TaskOptions
	entryID       cron.EntryID
	startupSpread time.Duration
}

// onceDef survives Stop so the timer can be rebuilt on the next Start.
type onceDef struct {
	at      time.Time
	timeout time.Duration
	opt     TaskOptions
	job     Job
	ver     uint64
	timer   *time.Timer
	retries int
}

type Service struct {
	mu  sync.Mutex
	log logx.Logger
	cfg Config
	loc *time.Location
	bus eventbus.Bus

	engine *engine.Service

	parser cron.Parser
	c      *cron.Cron
	defs   []scheduleDef

	enqMu       sync.Mutex
	lastEnqWarn map[string]time.Time

	// Guarded by tmu, never by mu.
	tmu     sync.Mutex
	once    map[string]*onceDef
	onceSeq uint64
	running bool
	runCtx  context.Context
	stopRun context.CancelFunc
}

type ScheduleInfo struct {
	Name    string        `json:"name"`
	Spec    string        `json:"spec"`
	Timeout time.Duration `json:"timeout"`
	Next    time.Time     `json:"next"`
	Prev    time.Time     `json:"prev"`
}

// OnceInfo describes a pending one-shot trigger.
type OnceInfo struct {
	Name string    `json:"name"`
	At   time.Time `json:"at"`
}

type Snapshot struct {
	Timezone  string          `json:"timezone"`
	Running   bool            `json:"running"`
	Schedules []ScheduleInfo  `json:"schedules"`
	Once      []OnceInfo      `json:"once"`
	Engine    engine.Snapshot `json:"engine"`
}
