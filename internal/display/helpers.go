package display

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

func humanDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}

	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	parts := []string{}
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if days == 0 && minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}

	return strings.Join(parts, " ")
}

// parseTZ parses a timezone string: IANA name ("Asia/Jakarta") or numeric
// offset ("+7", "-5"). Anything else falls back to the local zone.
func parseTZ(tz string) *time.Location {
	if tz == "" {
		return time.Local
	}
	if loc, err := time.LoadLocation(tz); err == nil {
		return loc
	}
	tz = strings.TrimSpace(tz)
	if offset, err := strconv.Atoi(tz); err == nil && offset >= -12 && offset <= 14 {
		name := fmt.Sprintf("UTC%+d", offset)
		return time.FixedZone(name, offset*3600)
	}
	return time.Local
}

func zoneLabel(t time.Time) string {
	_, offset := t.Zone()
	hours := offset / 3600
	minutes := (offset % 3600) / 60
	if minutes == 0 {
		return fmt.Sprintf("UTC%+d", hours)
	}
	return fmt.Sprintf("UTC%+d:%02d", hours, abs(minutes))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
