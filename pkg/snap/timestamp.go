package snap

import (
	"fmt"
	"regexp"
	"time"
)

// TimestampLayout is the ISO-8601 layout BRI expects: second precision
// with a numeric UTC offset, e.g. 2025-01-01T00:00:00+07:00.
const TimestampLayout = "2006-01-02T15:04:05-07:00"

// jakarta is the zone used for outbound timestamps (WIB, UTC+7).
var jakarta = time.FixedZone("WIB", 7*3600)

var timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}[+-]\d{2}:\d{2}$`)

// ISO8601Now formats the current time for X-TIMESTAMP headers.
func ISO8601Now() string {
	return ISO8601At(time.Now())
}

// ISO8601At formats t in WIB with the SNAP timestamp layout.
func ISO8601At(t time.Time) string {
	return t.In(jakarta).Format(TimestampLayout)
}

// ValidTimestampFormat reports whether s matches the SNAP timestamp shape.
// Used by the inbound token endpoint before any cryptographic work.
func ValidTimestampFormat(s string) bool {
	return timestampPattern.MatchString(s)
}

// ParseTimestamp strictly parses a SNAP timestamp: the value must parse
// with the exact layout and round-trip to the identical string.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("timestamp cannot be empty")
	}
	t, err := time.Parse(TimestampLayout, s)
	if err != nil || t.Format(TimestampLayout) != s {
		return time.Time{}, fmt.Errorf("invalid timestamp format, expected %s", TimestampLayout)
	}
	return t, nil
}

// ValidateExpiredDate parses a VA expiry timestamp and enforces BRI's
// rule that it lies at least 15 minutes in the future.
func ValidateExpiredDate(s string, now time.Time) (time.Time, error) {
	t, err := ParseTimestamp(s)
	if err != nil {
		return time.Time{}, err
	}
	min := now.Add(15 * time.Minute)
	if t.Before(min) {
		return time.Time{}, fmt.Errorf("expiredDate must be at least 15 minutes in the future, minimum allowed: %s", ISO8601At(min))
	}
	return t, nil
}

var reportDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidateReportDate checks a report date is YYYY-MM-DD and a real
// calendar date.
func ValidateReportDate(date string) error {
	if !reportDatePattern.MatchString(date) {
		return fmt.Errorf("invalid date format, expected YYYY-MM-DD, example: %s", time.Now().Format("2006-01-02"))
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("invalid date value: %s", date)
	}
	return nil
}
