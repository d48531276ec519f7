package sqlite

import "time"

// fixedRFC3339Nano is a fixed-width RFC3339 with 9-digit nanoseconds.
// This makes TEXT ordering match time ordering.
const fixedRFC3339Nano = "2006-01-02T15:04:05.000000000Z07:00"

func formatTS(t time.Time) string {
	return t.UTC().Format(fixedRFC3339Nano)
}

func parseTS(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
