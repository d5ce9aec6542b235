package market

import (
	"strconv"
	"time"
)

// IntervalDuration parses a kline interval like "15m", "1h" or "3d" into a
// duration. The second return is false for intervals it cannot express.
func IntervalDuration(interval string) (time.Duration, bool) {
	if len(interval) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || n <= 0 {
		return 0, false
	}
	switch interval[len(interval)-1] {
	case 'm':
		return time.Duration(n) * time.Minute, true
	case 'h':
		return time.Duration(n) * time.Hour, true
	case 'd':
		return time.Duration(n) * 24 * time.Hour, true
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, true
	default:
		return 0, false
	}
}
