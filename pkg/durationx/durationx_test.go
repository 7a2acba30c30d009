package durationx

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	t.Parallel()

	mute := Options{Max: MuteMax, Default: 10 * time.Minute}
	cases := []struct {
		name   string
		in     string
		opt    Options
		want   time.Duration
		wantOK bool
	}{
		{"bare minutes", "90", mute, 90 * time.Minute, true},
		{"bare zero", "0", mute, 0, false},
		{"seconds", "45s", mute, 45 * time.Second, true},
		{"minutes", "15m", mute, 15 * time.Minute, true},
		{"min suffix", "15MIN", mute, 15 * time.Minute, true},
		{"hours", "2h", mute, 2 * time.Hour, true},
		{"days upper", "3D", mute, 3 * Day, true},
		{"zero unit", "0h", mute, 0, false},
		{"at ceiling", "28d", mute, 28 * Day, true},
		{"above ceiling", "29d", mute, 0, false},
		{"bare above ceiling", "40321", mute, 0, false},
		{"garbage uses default", "soon", mute, 10 * time.Minute, true},
		{"garbage without default", "soon", Options{}, 0, false},
		{"negative looks like garbage", "-5m", Options{}, 0, false},
		{"empty", "  ", mute, 0, false},
		{"no ceiling", "400d", Options{}, 400 * Day, true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Parse(tc.in, tc.opt)
			if ok != tc.wantOK || got != tc.want {
				t.Fatalf("Parse(%q)=(%v,%v) want (%v,%v)", tc.in, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestHumanize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   time.Duration
		want string
	}{
		{500 * time.Millisecond, "0 seconds"},
		{time.Second, "1 second"},
		{90 * time.Second, "1 minute and 30 seconds"},
		{2*Day + 3*time.Hour + 4*time.Minute, "2 days and 3 hours"},
		{Day + 5*time.Minute, "1 day and 5 minutes"},
		{3 * time.Hour, "3 hours"},
	}
	for _, tc := range cases {
		if got := Humanize(tc.in); got != tc.want {
			t.Fatalf("Humanize(%v)=%q want %q", tc.in, got, tc.want)
		}
	}
}
