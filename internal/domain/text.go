package domain

import (
	"strings"
	"time"
)

// Clean trims surrounding whitespace.
func Clean(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeJobCode trims and upper-cases a job-code tag.
func NormalizeJobCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// SameJobCode compares two job-code tags case-insensitively after
// trimming. Two empty tags match.
func SameJobCode(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Clock supplies wall-clock time to the engines.
type Clock interface {
	Now() time.Time
}

// IDGenerator supplies unique record ids.
type IDGenerator interface {
	Generate() string
}

// SystemClock reads the host clock.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time { return time.Now() }

// Midday returns 12:00 UTC on the calendar day of t. Payments entered
// without a date are stamped with it so the day survives any timezone.
func Midday(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}
