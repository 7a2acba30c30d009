package adapter

import (
	"strings"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"giveawaybot/pkg/tgui"
)

func TestSplitTextShortIsUntouched(t *testing.T) {
	t.Parallel()
	got := splitText("hello\nworld", 100, "")
	if len(got) != 1 || got[0] != "hello\nworld" {
		t.Fatalf("got %q", got)
	}
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	t.Parallel()
	s := strings.Repeat("a", 8) + "\n" + strings.Repeat("b", 8)
	got := splitText(s, 10, "")
	if len(got) != 2 || got[0] != strings.Repeat("a", 8) || got[1] != strings.Repeat("b", 8) {
		t.Fatalf("got %q", got)
	}
}

func TestSplitTextAvoidsHTMLTags(t *testing.T) {
	t.Parallel()
	s := "xxxxxx<b>bold</b>"
	got := splitText(s, 8, "HTML")
	if got[0] != "xxxxxx" {
		t.Fatalf("first chunk = %q", got[0])
	}
	if strings.Join(got, "") != s {
		t.Fatalf("chunks lose text: %q", got)
	}
}

func TestSplitTextHardCut(t *testing.T) {
	t.Parallel()
	got := splitText(strings.Repeat("z", 25), 10, "")
	if len(got) != 3 || len(got[2]) != 5 {
		t.Fatalf("got %q", got)
	}
}

func TestToMarkup(t *testing.T) {
	t.Parallel()
	if toMarkup(nil) != nil || toMarkup(tgui.Keyboard{{}}) != nil {
		t.Fatalf("empty keyboards must produce no markup")
	}
	k := tgui.Keyboard{}.Row(tgui.Btn("Enter", "gw:enter:1"), tgui.URLBtn("Site", "https://example.org"))
	m := toMarkup(k)
	if m == nil || len(m.InlineKeyboard) != 1 || len(m.InlineKeyboard[0]) != 2 {
		t.Fatalf("markup = %+v", m)
	}
	if b := m.InlineKeyboard[0][0]; b.Text != "Enter" || b.Data != "gw:enter:1" {
		t.Fatalf("button = %+v", b)
	}
	if m.InlineKeyboard[0][1].URL != "https://example.org" {
		t.Fatalf("url button = %+v", m.InlineKeyboard[0][1])
	}
}

func TestRestrictUntilClamps(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	tests := []struct {
		name  string
		until time.Time
		want  time.Time
	}{
		{"too short", now.Add(time.Second), now.Add(minRestrict)},
		{"in range", now.Add(10 * time.Minute), now.Add(10 * time.Minute)},
		{"too long", now.Add(400 * 24 * time.Hour), now.Add(maxRestrict)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := restrictUntil(tt.until, now); got != tt.want.Unix() {
				t.Fatalf("got %d want %d", got, tt.want.Unix())
			}
		})
	}
}

func TestToMessageReply(t *testing.T) {
	t.Parallel()
	m := &tele.Message{
		ID:      7,
		Chat:    &tele.Chat{ID: -100, Type: tele.ChatSuperGroup},
		Sender:  &tele.User{ID: 1, FirstName: "Mod"},
		Text:    "/warn spam",
		ReplyTo: &tele.Message{Sender: &tele.User{ID: 2, Username: "spammer"}},
	}
	got := toMessage(m)
	if !got.IsGroup || got.ChatID != -100 || got.From.ID != 1 {
		t.Fatalf("message = %+v", got)
	}
	if got.ReplyTo == nil || got.ReplyTo.ID != 2 || got.ReplyTo.DisplayName() != "@spammer" {
		t.Fatalf("reply = %+v", got.ReplyTo)
	}
}
