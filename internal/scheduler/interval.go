package scheduler

import (
	"strconv"
	"strings"
	"time"
)

// ParseIntervalDuration parses a round interval. Go durations ("1500ms",
// "30s") and the day/week forms "1d", "1w" are accepted; "" and "0" mean
// back-to-back rounds. Returns (0, false) on invalid input.
func ParseIntervalDuration(interval string) (time.Duration, bool) {
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" || interval == "0" {
		return 0, true
	}
	if d, err := time.ParseDuration(interval); err == nil {
		if d < 0 {
			return 0, false
		}
		return d, true
	}
	unit := interval[len(interval)-1]
	numStr := strings.TrimSpace(interval[:len(interval)-1])
	if numStr == "" {
		return 0, false
	}
	n, err := strconv.Atoi(numStr)
	if err != nil || n <= 0 {
		return 0, false
	}
	switch unit {
	case 'd':
		return time.Duration(n) * 24 * time.Hour, true
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, true
	default:
		return 0, false
	}
}
