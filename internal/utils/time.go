package utils

import (
	"time"
)

const (
	layoutDate     = "2006-01-02"
	layoutDateTime = "2006-01-02 15:04:05"
)

// Clock lets services be driven by a fixed time in tests.
type Clock func() time.Time

// NowUTC returns current time in UTC.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// Now calls c, or NowUTC when c is nil.
func (c Clock) Now() time.Time {
	if c == nil {
		return NowUTC()
	}
	return c()
}

// FormatDate formats time to YYYY-MM-DD in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(layoutDate)
}

// FormatDateTime formats time to "YYYY-MM-DD HH:MM:SS" in UTC.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format(layoutDateTime)
}
