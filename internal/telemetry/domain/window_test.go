package telemetry

import (
	"errors"
	"testing"
	"time"
)

func recordsAt(now time.Time, ages ...time.Duration) []Record {
	out := make([]Record, 0, len(ages))
	for _, age := range ages {
		out = append(out, NewRecord(now.Add(-age)).With(FieldPower, 1))
	}
	return out
}

func TestFilterByWindow(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	records := recordsAt(now, 8*24*time.Hour, 2*24*time.Hour, 2*time.Hour, time.Hour, time.Minute, -time.Hour)

	cases := []struct {
		window Window
		want   int
	}{
		{WindowHour, 3},
		{WindowDay, 4},
		{WindowWeek, 5},
		{WindowAll, 6},
	}
	for _, tc := range cases {
		got := FilterByWindow(records, tc.window, now)
		if len(got) != tc.want {
			t.Fatalf("%s: expected %d records, got %d", tc.window, tc.want, len(got))
		}
		for i := 1; i < len(got); i++ {
			if got[i].At.Before(got[i-1].At) {
				t.Fatalf("%s: order not preserved", tc.window)
			}
		}
	}
}

func TestFilterByWindowAllReturnsInputUnchanged(t *testing.T) {
	now := time.Now()
	records := recordsAt(now, 3*time.Hour, 2*time.Hour, time.Hour)
	got := FilterByWindow(records, WindowAll, now)
	for i := range records {
		if got[i] != records[i] {
			t.Fatalf("record %d changed", i)
		}
	}
}

func TestFilterByWindowEmptyIsNotNil(t *testing.T) {
	now := time.Now()
	got := FilterByWindow(recordsAt(now, 48*time.Hour), WindowHour, now)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", got)
	}
}

func TestParseWindow(t *testing.T) {
	if w, err := ParseWindow(""); err != nil || w != WindowHour {
		t.Fatalf("expected default hour, got %s %v", w, err)
	}
	if w, err := ParseWindow("WEEK"); err != nil || w != WindowWeek {
		t.Fatalf("expected week, got %s %v", w, err)
	}
	if _, err := ParseWindow("month"); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
}
