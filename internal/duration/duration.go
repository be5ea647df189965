// Package duration provides parsing for human-readable duration strings.
package duration

import (
	"fmt"
	"strings"
	"time"
)

// Parse parses durations in Go syntax ("90m", "1h30m") as well as the
// day and week shorthands used in config files ("1d", "2w", "30days").
func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("negative duration: %s", s)
		}
		return d, nil
	}

	var n int
	var unit string
	if _, err := fmt.Sscanf(s, "%d%s", &n, &unit); err != nil {
		return 0, fmt.Errorf("invalid duration format: %s (use e.g., 30m, 24h, 1d, 1w)", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative duration: %s", s)
	}

	switch unit {
	case "min", "mins":
		return time.Duration(n) * time.Minute, nil
	case "hr", "hrs", "hour", "hours":
		return time.Duration(n) * time.Hour, nil
	case "d", "day", "days":
		return time.Duration(n) * 24 * time.Hour, nil
	case "w", "wk", "wks", "week", "weeks":
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown duration unit: %s", unit)
	}
}

// Format renders d using the largest whole unit that represents it
// exactly, so a parsed "1d" prints back as "24 hours".
func Format(d time.Duration) string {
	switch {
	case d == 0:
		return "0s"
	case d%(24*time.Hour) == 0 && d >= 48*time.Hour:
		return fmt.Sprintf("%d days", d/(24*time.Hour))
	case d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// ageUnits are the steps of Age, largest first.
var ageUnits = []struct {
	size   time.Duration
	suffix string
}{
	{30 * 24 * time.Hour, "mo"},
	{7 * 24 * time.Hour, "w"},
	{24 * time.Hour, "d"},
	{time.Hour, "h"},
	{time.Minute, "m"},
}

// Age renders how long ago something happened in compact form: "now",
// "5m", "2h", "3d", "2w", "3mo". The value is truncated, never rounded up.
func Age(d time.Duration) string {
	for _, u := range ageUnits {
		if d >= u.size {
			return fmt.Sprintf("%d%s", d/u.size, u.suffix)
		}
	}
	return "now"
}
