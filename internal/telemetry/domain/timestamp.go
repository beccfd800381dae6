package telemetry

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// maxEpochMillis bounds the representable instant range to +-100,000,000 days.
const maxEpochMillis = 8_640_000_000_000_000

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02T15:04",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// datePrefix marks strings that claim to be a calendar date. Those never
// fall back to the digit scan, which would read the year as milliseconds.
var datePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// NormalizeTimestamp parses raw into an absolute instant.
//
// A standard date-time representation is tried first. If none matches, the
// first contiguous run of digits is read as epoch milliseconds. Later digit
// runs are never consulted. A value starting with YYYY-MM-DD that matches no
// layout is invalid.
func NormalizeTimestamp(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, ErrInvalidTimestamp
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	if datePrefix.MatchString(value) {
		return time.Time{}, ErrInvalidTimestamp
	}
	return epochFromDigits(value)
}

func epochFromDigits(value string) (time.Time, error) {
	start := strings.IndexFunc(value, isDigit)
	if start < 0 {
		return time.Time{}, ErrInvalidTimestamp
	}
	end := start
	for end < len(value) && isDigit(rune(value[end])) {
		end++
	}
	ms, err := strconv.ParseInt(value[start:end], 10, 64)
	if err != nil || ms > maxEpochMillis {
		return time.Time{}, ErrInvalidTimestamp
	}
	return time.UnixMilli(ms).UTC(), nil
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
