package telemetry

import (
	"strings"
	"time"
)

// Window is a named rolling time range measured back from now.
type Window string

const (
	WindowHour Window = "hour"
	WindowDay  Window = "day"
	WindowWeek Window = "week"
	WindowAll  Window = "all"
)

// DefaultWindow is used when no window is requested.
const DefaultWindow = WindowHour

// ParseWindow resolves a window name. An empty name selects DefaultWindow.
func ParseWindow(value string) (Window, error) {
	switch Window(strings.ToLower(strings.TrimSpace(value))) {
	case "":
		return DefaultWindow, nil
	case WindowHour:
		return WindowHour, nil
	case WindowDay:
		return WindowDay, nil
	case WindowWeek:
		return WindowWeek, nil
	case WindowAll:
		return WindowAll, nil
	default:
		return "", ErrInvalidWindow
	}
}

// Threshold returns the window length. bounded is false for WindowAll.
func (w Window) Threshold() (threshold time.Duration, bounded bool) {
	switch w {
	case WindowHour:
		return time.Hour, true
	case WindowDay:
		return 24 * time.Hour, true
	case WindowWeek:
		return 7 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// TimeUnit is the chart axis unit that suits the window.
func (w Window) TimeUnit() string {
	switch w {
	case WindowHour:
		return "minute"
	case WindowDay:
		return "hour"
	default:
		return "day"
	}
}

// FilterByWindow keeps the records whose age relative to now is within the
// window. Records stamped after now are kept. Input order is preserved and the
// result is never nil.
func FilterByWindow(records []Record, w Window, now time.Time) []Record {
	threshold, bounded := w.Threshold()
	if !bounded {
		out := make([]Record, len(records))
		copy(out, records)
		return out
	}
	limit := threshold.Milliseconds()
	out := make([]Record, 0, len(records))
	for _, record := range records {
		if now.UnixMilli()-record.At.UnixMilli() <= limit {
			out = append(out, record)
		}
	}
	return out
}
