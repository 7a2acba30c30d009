// Package giveaway is the promotion lifecycle engine: the durable record,
// entries, exactly-once termination and the timer table that drives it.
package giveaway

import (
	"errors"
	"slices"
	"time"
)

var (
	ErrNotFound       = errors.New("giveaway not found")
	ErrEnded          = errors.New("giveaway already ended")
	ErrNotEnded       = errors.New("giveaway has not ended")
	ErrAlreadyEntered = errors.New("already entered")
	ErrNotEligible    = errors.New("not eligible")
	ErrNoCandidates   = errors.New("no participants left to draw")
	ErrStore          = errors.New("giveaway store write failed")
	ErrInvalid        = errors.New("invalid giveaway")
)

// ChannelRef is where a promotion is posted and announced.
type ChannelRef struct {
	ChatID   int64 `json:"chat_id"`
	ThreadID int   `json:"thread_id,omitempty"`
}

// Promotion is one giveaway. ID, Channel, Prize and EndTimeMs never change
// after creation. Participants only grow while Ended is false, and Ended
// never goes back to false.
type Promotion struct {
	ID           string     `json:"id"`
	Channel      ChannelRef `json:"channel"`
	Prize        string     `json:"prize"`
	EndTimeMs    int64      `json:"end_time_ms"`
	WinnerCount  int        `json:"winner_count"`
	HostID       int64      `json:"host_id,omitempty"`
	MessageID    int        `json:"message_id,omitempty"`
	CreatedAtMs  int64      `json:"created_at_ms"`
	Participants []int64    `json:"participants"`
	Ended        bool       `json:"ended"`
	EndedAtMs    int64      `json:"ended_at_ms,omitempty"`
	Winners      []int64    `json:"winners"`
}

func (p Promotion) EndTime() time.Time { return time.UnixMilli(p.EndTimeMs) }

// Expired reports whether the end time is at or before now.
func (p Promotion) Expired(now time.Time) bool { return p.EndTimeMs <= now.UnixMilli() }

func (p Promotion) HasParticipant(userID int64) bool {
	return slices.Contains(p.Participants, userID)
}

// normalize replaces nil slices so stored records always carry [] instead
// of null.
func (p *Promotion) normalize() {
	if p.Participants == nil {
		p.Participants = []int64{}
	}
	if p.Winners == nil {
		p.Winners = []int64{}
	}
}

// Result is what End returns.
type Result struct {
	Promotion    Promotion
	AlreadyEnded bool
}
