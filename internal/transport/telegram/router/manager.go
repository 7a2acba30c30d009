package router

import (
	"context"
	"errors"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	rtsup "giveawaybot/internal/runtime/supervisor"
	kit "giveawaybot/internal/transport"
	"giveawaybot/pkg/logx"
	"giveawaybot/pkg/tgui"
)

const (
	msgUnknown      = "Unknown command. Try /help"
	msgUnauthorized = "⛔ This command is for bot owners only."
	msgBusy         = "Busy, try again in a moment."
	msgCooldown     = "⏳ Slow down a little."
)

// Manager routes chat updates to commands and callback handlers and runs
// them on a bounded worker pool.
type Manager struct {
	mu     sync.RWMutex
	root   *cmdNode
	alias  map[string]*cmdNode
	owners []int64

	cbMu      sync.RWMutex
	callbacks map[string]map[string]CallbackRoute // plugin -> action -> route

	log      logx.Logger
	adapter  kit.Adapter
	cooldown *Cooldown

	runMu sync.Mutex
	sup   *rtsup.Supervisor
	jobs  chan func()
}

func New(log logx.Logger, adapter kit.Adapter, owners []int64, cooldown *Cooldown) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{
		root:      newRoot(),
		alias:     map[string]*cmdNode{},
		owners:    append([]int64(nil), owners...),
		callbacks: map[string]map[string]CallbackRoute{},
		log:       log,
		adapter:   adapter,
		cooldown:  cooldown,
		jobs:      make(chan func(), 256),
	}
}

// Supervisor returns the worker pool supervisor (nil if not running).
func (m *Manager) Supervisor() *rtsup.Supervisor {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	return m.sup
}

// SetOwners replaces the owner list. Safe during hot reload.
func (m *Manager) SetOwners(owners []int64) {
	cp := append([]int64(nil), owners...)
	m.mu.Lock()
	m.owners = cp
	m.mu.Unlock()
}

func (m *Manager) ownersSnapshot() []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int64(nil), m.owners...)
}

// SetRegistry installs the command and callback tables. A /help command is
// always added. Returns the menu entries derived from the commands, which are
// also pushed to the adapter when it supports a command menu.
func (m *Manager) SetRegistry(ctx context.Context, cmds []Command, cbs []CallbackRoute) []kit.BotCommand {
	cmds = append(cmds, Command{
		Route:       "help",
		Aliases:     []string{"h"},
		Description: "show help",
		Usage:       "/help [cmd] [sub...]",
		Handle: func(ctx context.Context, req *Request) error {
			_, err := req.ReplyHTML(ctx, m.helpText(req.Args), nil)
			return err
		},
	})

	root := newRoot()
	alias := map[string]*cmdNode{}
	var leaves []Command
	for _, c := range cmds {
		route := splitRoute(c.Route)
		if len(route) == 0 || c.Handle == nil {
			continue
		}
		leaf := root.add(route, c)
		leaves = append(leaves, c)

		// Menu names are [a-z0-9_]; register the underscored form of
		// multi-token or unsafe routes. The plain single token is never an
		// alias, or it would shadow its own subcommands.
		if menu, ok := menuName(route); ok && (len(route) > 1 || menu != route[0]) {
			if _, exists := alias[menu]; !exists {
				alias[menu] = leaf
			}
		}
		for _, a := range c.Aliases {
			a = strings.TrimSpace(a)
			if a == "" || strings.Contains(a, " ") {
				continue
			}
			alias[a] = leaf
			if sa := sanitizeCommand(a); sa != "" {
				if _, exists := alias[sa]; !exists {
					alias[sa] = leaf
				}
			}
		}
	}

	cb := map[string]map[string]CallbackRoute{}
	for _, r := range cbs {
		p, a := strings.TrimSpace(r.Plugin), strings.TrimSpace(r.Action)
		if p == "" || a == "" || r.Handle == nil {
			continue
		}
		if cb[p] == nil {
			cb[p] = map[string]CallbackRoute{}
		}
		cb[p][a] = r
	}

	m.mu.Lock()
	m.root, m.alias = root, alias
	m.mu.Unlock()
	m.cbMu.Lock()
	m.callbacks = cb
	m.cbMu.Unlock()

	menu := buildMenu(root, leaves)
	if up, ok := m.adapter.(kit.CommandMenuUpdater); ok {
		go func() {
			uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := up.UpdateMenuCommands(uctx, menu); err != nil {
				m.log.Warn("menu update failed", logx.Err(err))
			}
		}()
	}
	return menu
}

// DispatchLoop consumes updates until ctx is done or updates is closed.
func (m *Manager) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	workers := max(runtime.NumCPU(), 2)
	sup := rtsup.New(ctx,
		rtsup.WithLogger(m.log.With(logx.String("comp", "telegram.router"))),
		rtsup.WithCancelOnError(false),
	)
	m.runMu.Lock()
	m.sup = sup
	m.runMu.Unlock()
	m.log.Info("command dispatcher started", logx.Int("workers", workers), logx.Int("job_queue_cap", cap(m.jobs)))

	for i := 0; i < workers; i++ {
		sup.GoRestart("command.worker."+strconv.Itoa(i), m.work,
			rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			rtsup.WithPublishFirstError(true),
			rtsup.WithStopOnCleanExit(true),
		)
	}
	if m.cooldown != nil {
		sup.Go0("cooldown.prune", func(c context.Context) {
			t := time.NewTicker(10 * time.Minute)
			defer t.Stop()
			for {
				select {
				case <-c.Done():
					return
				case now := <-t.C:
					m.cooldown.Prune(now.Add(-10 * time.Minute))
				}
			}
		})
	}

	defer func() {
		sup.Cancel()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		m.runMu.Lock()
		m.sup = nil
		m.runMu.Unlock()
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			m.route(ctx, up)
		}
	}
}

func (m *Manager) work(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case job := <-m.jobs:
			func() {
				defer func() {
					if r := recover(); r != nil {
						m.log.Error("panic in command job", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
					}
				}()
				job()
			}()
		}
	}
}

func (m *Manager) tryEnqueue(fn func()) bool {
	select {
	case m.jobs <- fn:
		return true
	default:
		return false
	}
}

func (m *Manager) route(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		m.routeMessage(ctx, up)
	case kit.UpdateCallback:
		m.routeCallback(ctx, up)
	}
}

// resolve maps a command line to a command node. It returns the node, the
// matched path and the remaining args; node is nil for unknown commands.
func (m *Manager) resolve(text string) (*cmdNode, []string, []string) {
	parts := tokenizeCommandLine(text)
	if len(parts) == 0 {
		return nil, nil, nil
	}
	word, _, _ := strings.Cut(strings.TrimPrefix(parts[0], "/"), "@")
	args := parts[1:]

	m.mu.RLock()
	root, alias := m.root, m.alias
	m.mu.RUnlock()

	if leaf, ok := alias[word]; ok && leaf.cmd != nil {
		return leaf, splitRoute(leaf.cmd.Route), args
	}
	cur, ok := root.child(word)
	if !ok {
		return nil, nil, args
	}
	path := []string{word}
	for len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		next, ok := cur.child(args[0])
		if !ok {
			break
		}
		cur = next
		path = append(path, args[0])
		args = args[1:]
	}
	return cur, path, args
}

func (m *Manager) routeMessage(ctx context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil || !strings.HasPrefix(strings.TrimSpace(msg.Text), "/") {
		return
	}
	to := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	node, path, args := m.resolve(msg.Text)
	if node == nil {
		if !msg.IsGroup {
			_, _ = m.adapter.SendText(ctx, to, msgUnknown, nil)
		}
		return
	}
	if node.cmd == nil {
		_, _ = m.adapter.SendText(ctx, to, m.helpText(path).String(), kit.HTML())
		return
	}
	cmd := *node.cmd
	owners := m.ownersSnapshot()
	req := &Request{
		Update:    up,
		Chat:      to,
		From:      msg.From,
		MessageID: msg.ID,
		ReplyTo:   msg.ReplyTo,
		Path:      path,
		Command:   cmd.Route,
		RawArgs:   args,
		ReqID:     newReqID(),
		Adapter:   m.adapter,
		Owners:    owners,
	}
	req.Args, req.Flags, req.BoolFlags = parseFlags(args)
	req.Logger = m.requestLogger(req)

	if cmd.Access == AccessOwnerOnly && !req.IsOwner() {
		_, _ = m.adapter.SendText(ctx, to, msgUnauthorized, nil)
		return
	}

	final := Chain(cmd.Handle,
		MWPanicRecover(m.log),
		MWRequestLog(m.log),
		MWCooldown(m.cooldown),
		MWTimeout(cmd.Timeout),
	)
	if !m.tryEnqueue(func() {
		if err := final(ctx, req); errors.Is(err, ErrCooldown) {
			_ = req.Reply(ctx, msgCooldown)
		}
	}) {
		_, _ = m.adapter.SendText(ctx, to, msgBusy, nil)
	}
}

func (m *Manager) routeCallback(ctx context.Context, up kit.Update) {
	cb := up.Callback
	if cb == nil {
		return
	}
	plugin, action, payload, ok := tgui.ParseData(cb.Data)
	if !ok {
		return
	}
	m.cbMu.RLock()
	route, ok := m.callbacks[plugin][action]
	m.cbMu.RUnlock()
	if !ok {
		_ = m.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}

	req := &Request{
		Update:    up,
		Chat:      kit.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID},
		From:      cb.From,
		MessageID: cb.MessageID,
		Command:   "cb:" + plugin + ":" + action,
		Payload:   payload,
		ReqID:     newReqID(),
		Adapter:   m.adapter,
		Owners:    m.ownersSnapshot(),
	}
	req.Logger = m.requestLogger(req)
	if route.OwnerOnly && !req.IsOwner() {
		_ = m.adapter.AnswerCallback(ctx, cb.ID, "forbidden")
		return
	}

	var answer string
	h := func(c context.Context, r *Request) error {
		var err error
		answer, err = route.Handle(c, r)
		return err
	}
	final := Chain(h, MWPanicRecover(m.log), MWRequestLog(m.log), MWTimeout(route.Timeout))
	if !m.tryEnqueue(func() {
		_ = final(ctx, req)
		_ = m.adapter.AnswerCallback(ctx, cb.ID, answer)
	}) {
		_ = m.adapter.AnswerCallback(ctx, cb.ID, msgBusy)
	}
}

func (m *Manager) requestLogger(req *Request) logx.Logger {
	return m.log.With(
		logx.String("rid", req.ReqID),
		logx.Int64("chat_id", req.Chat.ChatID),
		logx.Int("thread_id", req.Chat.ThreadID),
		logx.Int64("from_id", req.From.ID),
		logx.String("cmd", req.Command),
	)
}
