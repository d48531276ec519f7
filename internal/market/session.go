package market

import "time"

// IsSessionActive reports whether s is open at the given UTC hour and minute.
// The window is [Start, End); when Start > End it wraps past midnight.
func IsSessionActive(s Session, hour, minute int) bool {
	t := float64(hour) + float64(minute)/60
	start, end := float64(s.Start), float64(s.End)
	if s.Start > s.End {
		return t >= start || t < end
	}
	return t >= start && t < end
}

// OverlapActive is true only while both sessions are independently active.
func OverlapActive(a, b Session, hour, minute int) bool {
	return IsSessionActive(a, hour, minute) && IsSessionActive(b, hour, minute)
}

// TimeUntilNextSessionBoundary returns the time from now until the session's next start.
// The candidate is today's start; it only moves to tomorrow once the UTC hour has reached
// End. While a session is running the candidate is already in the past and the result is
// negative, which FormatDuration renders as the sentinel.
func TimeUntilNextSessionBoundary(s Session, now time.Time) time.Duration {
	u := now.UTC()
	target := time.Date(u.Year(), u.Month(), u.Day(), s.Start, 0, 0, 0, time.UTC)
	if u.Hour() >= s.End {
		target = target.AddDate(0, 0, 1)
	}
	return target.Sub(u)
}

// TimeUntilSessionClose returns the time until an active session's End, or -1 when the
// session is closed.
func TimeUntilSessionClose(s Session, now time.Time) time.Duration {
	u := now.UTC()
	if !IsSessionActive(s, u.Hour(), u.Minute()) {
		return -1
	}
	end := time.Date(u.Year(), u.Month(), u.Day(), s.End, 0, 0, 0, time.UTC)
	if !end.After(u) {
		end = end.AddDate(0, 0, 1)
	}
	return end.Sub(u)
}
