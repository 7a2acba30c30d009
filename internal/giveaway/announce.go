package giveaway

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"giveawaybot/pkg/tgui"
)

// Texts rendered for the chat surface. Every function returns HTML-safe
// markup for Telegram's HTML parse mode.

// EntryData is the callback payload of the entry button.
func EntryData(id string) string { return tgui.Data("gw", "enter", id) }

func EntryKeyboard(id string) tgui.Keyboard {
	return tgui.Keyboard{}.Row(tgui.Btn("🎉 Enter", EntryData(id)))
}

// OpenText is the body of a live giveaway post.
func OpenText(p Promotion, now time.Time) tgui.H {
	lines := []tgui.H{
		tgui.B("🎁 GIVEAWAY"),
		tgui.Raw("Prize: ") + tgui.B(p.Prize),
		tgui.Raw(fmt.Sprintf("Winners: %d", p.WinnerCount)),
		tgui.Raw("Ends: ") + tgui.Esc(humanize.RelTime(p.EndTime(), now, "ago", "from now")) +
			tgui.Raw(" (") + tgui.Code(p.EndTime().UTC().Format("2006-01-02 15:04 MST")) + tgui.Raw(")"),
		tgui.Raw("Press the button below to enter. Registration is required."),
	}
	return tgui.JoinH("\n", lines...)
}

// ResultText announces the winners, or that nobody entered.
func ResultText(p Promotion, names func(int64) string) tgui.H {
	head := tgui.B("🎉 GIVEAWAY ENDED") + tgui.Raw("\nPrize: ") + tgui.B(p.Prize)
	if len(p.Participants) == 0 || len(p.Winners) == 0 {
		return head + tgui.Raw("\nNobody entered, so there is no winner.")
	}
	return head + tgui.Raw(fmt.Sprintf("\nParticipants: %s\n", humanize.Comma(int64(len(p.Participants))))) +
		winnerLines(p.Winners, 1, names)
}

// RerollText announces extra winners; first is the place of the first one.
func RerollText(p Promotion, picked []int64, names func(int64) string) tgui.H {
	first := len(p.Winners) - len(picked) + 1
	return tgui.B("🔁 REROLL") + tgui.Raw("\nPrize: ") + tgui.B(p.Prize) + tgui.Raw("\n") +
		winnerLines(picked, first, names)
}

func winnerLines(ids []int64, firstPlace int, names func(int64) string) tgui.H {
	var b strings.Builder
	for i, id := range ids {
		if i > 0 {
			b.WriteString("\n")
		}
		name := ""
		if names != nil {
			name = names(id)
		}
		b.WriteString(humanize.Ordinal(firstPlace + i))
		b.WriteString(": ")
		b.WriteString(string(tgui.Mention(name, id)))
	}
	return tgui.Raw(b.String())
}

// ListText renders /giveaways.
func ListText(ps []Promotion, now time.Time) tgui.H {
	if len(ps) == 0 {
		return tgui.Raw("No active giveaways.")
	}
	lines := []tgui.H{tgui.B(fmt.Sprintf("Active giveaways (%d)", len(ps)))}
	for _, p := range ps {
		lines = append(lines, tgui.Raw("• ")+tgui.B(p.Prize)+
			tgui.Raw(fmt.Sprintf(" · %d entries · ends ", len(p.Participants)))+
			tgui.Esc(humanize.RelTime(p.EndTime(), now, "ago", "from now"))+
			tgui.Raw("\n  id: ")+tgui.Code(p.ID))
	}
	return tgui.JoinH("\n", lines...)
}

// EntryReply is the callback answer for an Enter outcome.
func EntryReply(count int, err error) string {
	switch {
	case err == nil:
		return fmt.Sprintf("✅ Entered! %d participants.", count)
	case errors.Is(err, ErrNotFound):
		return "❌ Giveaway not found."
	case errors.Is(err, ErrEnded):
		return "⏰ This giveaway has already ended."
	case errors.Is(err, ErrAlreadyEntered):
		return "ℹ️ You have already entered."
	case errors.Is(err, ErrNotEligible):
		return "📝 You are not eligible. Register first with /register."
	default:
		return "⚠️ Could not save your entry, try again."
	}
}
