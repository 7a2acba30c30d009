package plugin

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"giveawaybot/internal/config"
	"giveawaybot/internal/eventbus"
	"giveawaybot/internal/transport/telegram/router"
	"giveawaybot/pkg/logx"
)

type HealthChecker interface {
	Health(ctx context.Context) (status string, err error)
}

type event struct {
	Plugin string `json:"plugin"`
	Stage  string `json:"stage,omitempty"`
	Err    string `json:"err,omitempty"`
	TookMS int64  `json:"took_ms,omitempty"`
}

// Status is one row of Manager.Snapshot.
type Status struct {
	Name     string `json:"name"`
	Running  bool   `json:"running"`
	Commands int    `json:"commands"`
	Health   string `json:"health,omitempty"`
	Err      string `json:"err,omitempty"`
}

// Manager initialises, starts and stops plugins and installs their commands
// into the router.
type Manager struct {
	mu      sync.Mutex
	log     logx.Logger
	deps    Deps
	router  *router.Manager
	order   []string
	reg     map[string]Plugin
	running map[string]bool
	errs    map[string]string
}

func NewManager(log logx.Logger, deps Deps, r *router.Manager) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	m := &Manager{
		log:     log.With(logx.String("comp", "plugins")),
		deps:    deps,
		router:  r,
		reg:     map[string]Plugin{},
		running: map[string]bool{},
		errs:    map[string]string{},
	}
	if m.deps.Plugins == nil {
		m.deps.Plugins = m.Snapshot
	}
	return m
}

func (m *Manager) Register(ps ...Plugin) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range ps {
		if _, dup := m.reg[p.Name()]; !dup {
			m.order = append(m.order, p.Name())
		}
		m.reg[p.Name()] = p
	}
}

func (m *Manager) emit(typ string, ev event) { eventbus.Emit(m.deps.Bus, typ, ev) }

// guard runs fn and turns a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn()
}

// StartAll initialises and starts every plugin, then installs the commands
// of the running ones. A failing plugin is logged and left out.
func (m *Manager) StartAll(ctx context.Context) {
	m.mu.Lock()
	names := append([]string(nil), m.order...)
	m.mu.Unlock()

	for _, name := range names {
		m.mu.Lock()
		p := m.reg[name]
		m.mu.Unlock()

		start := time.Now()
		err := guard(func() error {
			if err := p.Init(ctx, m.deps); err != nil {
				return fmt.Errorf("init: %w", err)
			}
			if err := p.Start(ctx); err != nil {
				return fmt.Errorf("start: %w", err)
			}
			return nil
		})
		took := time.Since(start)

		m.mu.Lock()
		if err != nil {
			m.errs[name] = err.Error()
		} else {
			delete(m.errs, name)
			m.running[name] = true
		}
		m.mu.Unlock()

		if err != nil {
			m.log.Error("plugin failed to start", logx.String("plugin", name), logx.Err(err))
			m.emit("plugin.failed", event{Plugin: name, Stage: "start", Err: err.Error()})
			continue
		}
		m.log.Info("plugin started", logx.String("plugin", name), logx.Duration("took", took))
		m.emit("plugin.started", event{Plugin: name, TookMS: took.Milliseconds()})
	}
	m.refreshRegistry(ctx)
}

func (m *Manager) refreshRegistry(ctx context.Context) {
	if m.router == nil {
		return
	}
	var (
		cmds []router.Command
		cbs  []router.CallbackRoute
	)
	m.mu.Lock()
	for _, name := range m.order {
		if !m.running[name] {
			continue
		}
		p := m.reg[name]
		for _, c := range p.Commands() {
			c.Plugin = name
			cmds = append(cmds, c)
		}
		if cp, ok := p.(CallbackProvider); ok {
			cbs = append(cbs, cp.Callbacks()...)
		}
	}
	m.mu.Unlock()
	m.router.SetRegistry(ctx, cmds, cbs)
}

// StopAll stops running plugins in reverse start order.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.Lock()
	names := append([]string(nil), m.order...)
	m.mu.Unlock()

	for i := len(names) - 1; i >= 0; i-- {
		name := names[i]
		m.mu.Lock()
		p, running := m.reg[name], m.running[name]
		m.running[name] = false
		m.mu.Unlock()
		if !running {
			continue
		}
		if err := guard(func() error { return p.Stop(ctx) }); err != nil {
			m.log.Warn("plugin stop error", logx.String("plugin", name), logx.Err(err))
		}
		m.emit("plugin.stopped", event{Plugin: name})
	}
}

// Apply forwards a committed config to plugins that care.
func (m *Manager) Apply(ctx context.Context, cfg *config.Config) {
	m.mu.Lock()
	var targets []ConfigurablePlugin
	var names []string
	for _, name := range m.order {
		if cp, ok := m.reg[name].(ConfigurablePlugin); ok && m.running[name] {
			targets = append(targets, cp)
			names = append(names, name)
		}
	}
	m.mu.Unlock()

	for i, cp := range targets {
		if err := guard(func() error { return cp.OnConfigChange(ctx, cfg) }); err != nil {
			m.log.Warn("plugin config change failed", logx.String("plugin", names[i]), logx.Err(err))
		}
	}
}

// Snapshot reports every registered plugin, sorted by name.
func (m *Manager) Snapshot(ctx context.Context) []Status {
	m.mu.Lock()
	out := make([]Status, 0, len(m.reg))
	checks := map[string]HealthChecker{}
	for name, p := range m.reg {
		st := Status{Name: name, Running: m.running[name], Commands: len(p.Commands()), Err: m.errs[name]}
		if hc, ok := p.(HealthChecker); ok && st.Running {
			checks[name] = hc
		}
		out = append(out, st)
	}
	m.mu.Unlock()

	for i := range out {
		hc, ok := checks[out[i].Name]
		if !ok {
			continue
		}
		hctx, cancel := context.WithTimeout(ctx, time.Second)
		status, err := hc.Health(hctx)
		cancel()
		out[i].Health = status
		if err != nil {
			out[i].Err = err.Error()
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
