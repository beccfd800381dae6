package telemetry

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTimestamp is returned when neither a date-time layout nor the epoch fallback applies.
	ErrInvalidTimestamp = errors.New("telemetry: invalid timestamp")
	// ErrInvalidWindow is returned for an unknown window name.
	ErrInvalidWindow = errors.New("telemetry: invalid window")
	// ErrInvalidPage is returned for a negative index or an unsupported page size.
	ErrInvalidPage = errors.New("telemetry: invalid page")
	// ErrUnknownField is returned for a field other than Current, Voltage or Power.
	ErrUnknownField = errors.New("telemetry: unknown field")
)

// FetchError reports a failed fetch for a single poll tick.
type FetchError struct {
	SourceID string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("telemetry: fetch %s: %v", e.SourceID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
