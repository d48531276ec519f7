package market

import "time"

// CurrentOffsetTime returns now as seen on a wall clock offsetHours from UTC.
// The host's own zone plays no part.
func CurrentOffsetTime(now time.Time, offsetHours int) time.Time {
	return now.In(time.FixedZone("", offsetHours*3600))
}

// FormatClock renders the time of day as HH:MM:SS.
func FormatClock(t time.Time) string {
	return t.Format("15:04:05")
}
