package router

import (
	"context"
	"slices"
	"time"

	kit "giveawaybot/internal/transport"
	"giveawaybot/pkg/logx"
	"giveawaybot/pkg/tgui"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Command struct {
	// Route is a space-separated command path, e.g. "giveaway" or "backup now".
	Route       string
	Aliases     []string // root-level aliases
	Description string
	Usage       string
	Access      Access

	Plugin  string
	Timeout time.Duration // per-command override
	Handle  HandlerFunc
}

// CallbackRoute handles inline button data "<plugin>:<action>:<payload>".
// Callbacks are open to everyone unless OwnerOnly is set.
type CallbackRoute struct {
	Plugin    string
	Action    string
	OwnerOnly bool
	Timeout   time.Duration
	// Handle returns the text shown to the user as the callback answer.
	Handle func(ctx context.Context, req *Request) (string, error)
}

type Request struct {
	Update kit.Update
	Chat   kit.ChatTarget
	From   kit.User
	// MessageID is the command message, or the message carrying the button.
	MessageID int
	ReplyTo   *kit.User

	Path    []string // matched command path tokens
	Command string   // route or "cb:<plugin>:<action>"
	Args    []string // positional arguments
	RawArgs []string
	Payload string // callback payload

	Flags     map[string]string
	BoolFlags map[string]bool
	ReqID     string

	Adapter kit.Adapter
	Logger  logx.Logger
	Owners  []int64
}

func (r *Request) IsOwner() bool { return slices.Contains(r.Owners, r.From.ID) }

// Reply sends plain text to the request's chat.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, &kit.SendOptions{DisablePreview: true})
	return err
}

// ReplyHTML sends tgui markup with an optional keyboard.
func (r *Request) ReplyHTML(ctx context.Context, h tgui.H, kb tgui.Keyboard) (kit.MessageRef, error) {
	opt := kit.HTML()
	opt.Keyboard = kb
	return r.Adapter.SendText(ctx, r.Chat, h.String(), opt)
}
