package solve

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Format renders a recorded time the way the time list shows it:
// "12.34", "1:02.34", "14.34+" for +2 and "DNF".
func Format(t time.Duration, p Penalty) string {
	return FormatSolve(Solve{Time: t, Penalty: p}, DefaultPlusTwo)
}

// FormatSolve is Format with a configurable +2 length.
func FormatSolve(s Solve, plusTwo time.Duration) string {
	r := EffectiveTime(s, plusTwo)
	switch {
	case r.DNF:
		return "DNF"
	case s.Penalty == PlusTwo:
		return FormatDuration(r.Time) + "+"
	default:
		return FormatDuration(r.Time)
	}
}

// FormatDuration renders a duration to centiseconds.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	cs := (d + 5*time.Millisecond) / (10 * time.Millisecond)
	mins := cs / 6000
	secs := (cs % 6000) / 100
	frac := cs % 100

	if mins > 0 {
		return fmt.Sprintf("%d:%02d.%02d", mins, secs, frac)
	}
	return fmt.Sprintf("%d.%02d", secs, frac)
}

// FormatResult renders an optional scored time: "-" when absent, "DNF" when dnf.
func FormatResult(t *time.Duration, dnf bool) string {
	if dnf {
		return "DNF"
	}
	if t == nil {
		return "-"
	}
	return FormatDuration(*t)
}

// ParseTime parses "12.34", "1:02.34" or "1:02".
func ParseTime(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty time")
	}

	var mins int64
	rest := s
	if i := strings.IndexByte(s, ':'); i >= 0 {
		m, err := strconv.ParseInt(s[:i], 10, 64)
		if err != nil || m < 0 {
			return 0, fmt.Errorf("invalid minutes in %q", s)
		}
		mins = m
		rest = s[i+1:]
	}

	secs, err := strconv.ParseFloat(rest, 64)
	if err != nil || secs < 0 {
		return 0, fmt.Errorf("invalid seconds in %q", s)
	}
	if mins > 0 && secs >= 60 {
		return 0, fmt.Errorf("seconds out of range in %q", s)
	}

	return time.Duration(mins)*time.Minute + Seconds(secs), nil
}

// ParseEntry parses a typed solve: a time, a time with a trailing "+" for
// +2, or "DNF". penalty applies when the entry carries none of its own.
func ParseEntry(s string, penalty Penalty) (Solve, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "dnf") {
		return New(0, DNF), nil
	}
	if t, ok := strings.CutSuffix(s, "+"); ok {
		s = t
		if penalty == None {
			penalty = PlusTwo
		}
	}
	d, err := ParseTime(s)
	if err != nil {
		return Solve{}, err
	}
	return New(d, penalty), nil
}
