// Package durationx parses the short human durations used in chat commands
// ("30m", "2h", "7d", "90") and renders durations back as text.
package durationx

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const Day = 24 * time.Hour

// MuteMax is the longest restriction chat platforms accept.
const MuteMax = 28 * Day

var unitRe = regexp.MustCompile(`(?i)^(\d+)(s|m|h|d|min)$`)

type Options struct {
	// Max rejects results above it. Zero disables the ceiling.
	Max time.Duration
	// Default is returned for input that does not look like a duration.
	Default time.Duration
}

// Parse reads s as a duration. A bare number means minutes. Zero, negative
// and over-ceiling values are rejected. Unrecognized input yields
// opt.Default, which is itself rejected when not positive.
func Parse(s string, opt Options) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	if isDigits(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false
		}
		return bound(n, time.Minute, opt.Max)
	}

	m := unitRe.FindStringSubmatch(s)
	if m == nil {
		if opt.Default <= 0 {
			return 0, false
		}
		return opt.Default, true
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	var unit time.Duration
	switch strings.ToLower(m[2]) {
	case "s":
		unit = time.Second
	case "m", "min":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = Day
	}
	return bound(n, unit, opt.Max)
}

func bound(n int64, unit, maxD time.Duration) (time.Duration, bool) {
	if n <= 0 || n > int64(math.MaxInt64/unit) {
		return 0, false
	}
	d := time.Duration(n) * unit
	if maxD > 0 && d > maxD {
		return 0, false
	}
	return d, true
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// Humanize renders d using at most the two largest non-zero units, e.g.
// "2 days and 3 hours". Anything under a second is "0 seconds".
func Humanize(d time.Duration) string {
	if d < time.Second {
		return "0 seconds"
	}
	type unit struct {
		size time.Duration
		name string
	}
	units := []unit{{Day, "day"}, {time.Hour, "hour"}, {time.Minute, "minute"}, {time.Second, "second"}}

	parts := make([]string, 0, 2)
	rest := d
	for _, u := range units {
		if len(parts) == 2 {
			break
		}
		n := int64(rest / u.size)
		rest -= time.Duration(n) * u.size
		if n == 0 {
			continue
		}
		name := u.name
		if n != 1 {
			name += "s"
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, name))
	}
	return strings.Join(parts, " and ")
}
