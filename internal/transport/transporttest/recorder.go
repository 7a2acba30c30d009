// Package transporttest provides an in-memory chat adapter for tests.
package transporttest

import (
	"context"
	"sync"
	"time"

	kit "giveawaybot/internal/transport"
)

type Sent struct {
	To   kit.ChatTarget
	Text string
	Opt  kit.SendOptions
}

type Edited struct {
	Ref  kit.MessageRef
	Text string
	Opt  kit.SendOptions
}

// Action is a recorded moderation call.
type Action struct {
	Kind   string // "ban", "restrict" or "unrestrict"
	ChatID int64
	UserID int64
	Until  time.Time
}

// Recorder implements transport.Adapter and transport.Moderator. Messages
// get increasing ids starting at 100.
type Recorder struct {
	mu      sync.Mutex
	nextID  int
	sent    []Sent
	edited  []Edited
	answers []string
	actions []Action

	// SendErr, when set, fails every SendText.
	SendErr error
}

var (
	_ kit.Adapter   = (*Recorder)(nil)
	_ kit.Moderator = (*Recorder)(nil)
)

func New() *Recorder { return &Recorder{nextID: 100} }

func (r *Recorder) Start(context.Context, chan<- kit.Update) error { return nil }
func (r *Recorder) Stop(context.Context) error                     { return nil }

func optOf(opt *kit.SendOptions) kit.SendOptions {
	if opt == nil {
		return kit.SendOptions{}
	}
	return *opt
}

func (r *Recorder) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SendErr != nil {
		return kit.MessageRef{}, r.SendErr
	}
	r.nextID++
	r.sent = append(r.sent, Sent{To: to, Text: text, Opt: optOf(opt)})
	return kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: r.nextID}, nil
}

func (r *Recorder) EditText(_ context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edited = append(r.edited, Edited{Ref: ref, Text: text, Opt: optOf(opt)})
	return nil
}

func (r *Recorder) AnswerCallback(_ context.Context, _ string, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answers = append(r.answers, text)
	return nil
}

func (r *Recorder) record(a Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, a)
	return nil
}

func (r *Recorder) BanMember(_ context.Context, chatID, userID int64) error {
	return r.record(Action{Kind: "ban", ChatID: chatID, UserID: userID})
}

func (r *Recorder) RestrictMember(_ context.Context, chatID, userID int64, until time.Time) error {
	return r.record(Action{Kind: "restrict", ChatID: chatID, UserID: userID, Until: until})
}

func (r *Recorder) UnrestrictMember(_ context.Context, chatID, userID int64) error {
	return r.record(Action{Kind: "unrestrict", ChatID: chatID, UserID: userID})
}

func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// Last returns the most recent sent message, or the zero value.
func (r *Recorder) Last() Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return Sent{}
	}
	return r.sent[len(r.sent)-1]
}

func (r *Recorder) Edited() []Edited {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Edited(nil), r.edited...)
}

func (r *Recorder) Actions() []Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Action(nil), r.actions...)
}
