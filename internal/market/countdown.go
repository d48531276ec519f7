package market

import (
	"fmt"
	"math"
	"time"
)

// Sentinel is shown instead of a negative or meaningless countdown.
const Sentinel = "--:--:--"

// ReopenDelay separates the daily close from the next candle's open.
const ReopenDelay = time.Hour

// TimeUntilDailyBoundary returns the time until the next daily close (midnight at
// serverHours from UTC) and until the reopen one hour later.
func TimeUntilDailyBoundary(now time.Time, serverHours int) (untilClose, untilOpen time.Duration) {
	closeAt := NextDailyClose(now, serverHours)
	u := now.UTC()
	untilClose = closeAt.Sub(u)
	untilOpen = closeAt.Add(ReopenDelay).Sub(u)
	return untilClose, untilOpen
}

// NextDailyClose returns the first instant strictly after now at which the clock at
// serverHours from UTC reads 00:00.
func NextDailyClose(now time.Time, serverHours int) time.Time {
	u := now.UTC()
	h := ((24-serverHours)%24 + 24) % 24
	closeAt := time.Date(u.Year(), u.Month(), u.Day(), h, 0, 0, 0, time.UTC)
	if !closeAt.After(u) {
		closeAt = closeAt.AddDate(0, 0, 1)
	}
	return closeAt
}

// FormatDuration renders d as zero-padded HH:MM:SS, truncated to whole seconds.
// Hours are not wrapped at 24.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return Sentinel
	}
	return formatSeconds(int64(d / time.Second))
}

// FormatMillis is FormatDuration for a raw millisecond count; NaN and infinities map to
// the sentinel.
func FormatMillis(ms float64) string {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms < 0 {
		return Sentinel
	}
	secs := math.Floor(ms / 1000)
	if secs > math.MaxInt64/2 {
		return Sentinel
	}
	return formatSeconds(int64(secs))
}

func formatSeconds(total int64) string {
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
