package telemetry

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-15T10:30:00Z", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"2024-01-15T10:30:00.250Z", time.Date(2024, 1, 15, 10, 30, 0, 250_000_000, time.UTC)},
		{"2024-01-15T12:30:00+02:00", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"2024-01-15 10:30:00", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"2024-01-15T10:30Z", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"2024-01-15T16:00:00+0530", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"2024-01-15T10:30:00.000+0000", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"2024-01-15 10:30:00 +0000 UTC", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC).String(), time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"garbage123456789", time.UnixMilli(123456789).UTC()},
		{"1705314600000", time.UnixMilli(1705314600000).UTC()},
		{"ts=17 part=99", time.UnixMilli(17).UTC()},
	}
	for _, tc := range cases {
		got, err := NormalizeTimestamp(tc.in)
		if err != nil {
			t.Fatalf("NormalizeTimestamp(%q): %v", tc.in, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("NormalizeTimestamp(%q) = %s want %s", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeTimestampInvalid(t *testing.T) {
	for _, in := range []string{"no digits here", "", "   ", "99999999999999999999", "2024-01-15 at noon", "2024-01-15T25:99"} {
		if _, err := NormalizeTimestamp(in); !errors.Is(err, ErrInvalidTimestamp) {
			t.Fatalf("NormalizeTimestamp(%q) expected ErrInvalidTimestamp, got %v", in, err)
		}
	}
}
