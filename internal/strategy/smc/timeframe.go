package smc

import (
	"sort"
	"strconv"
	"time"
)

// ParseTimeframe converts labels like "1m", "4h", "1d" or "1w" to a duration.
func ParseTimeframe(tf string) (time.Duration, bool) {
	if len(tf) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(tf[:len(tf)-1])
	if err != nil || n <= 0 {
		return 0, false
	}
	var unit time.Duration
	switch tf[len(tf)-1] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return 0, false
	}
	return time.Duration(n) * unit, true
}

// SortTimeframes returns a copy ordered fastest first. Unparseable labels
// sort last, keeping their relative order.
func SortTimeframes(tfs []string) []string {
	out := make([]string, len(tfs))
	copy(out, tfs)
	sort.SliceStable(out, func(i, j int) bool {
		di, okI := ParseTimeframe(out[i])
		dj, okJ := ParseTimeframe(out[j])
		if okI != okJ {
			return okI
		}
		return di < dj
	})
	return out
}
