package telemetry

import (
	"context"
	"time"
)

// MeasurementName is the measurement that carries device energy readings.
const MeasurementName = "Measurements"

// Observation is one raw reading as delivered by a telemetry source.
type Observation struct {
	Measurement string
	Device      string
	Field       string
	Value       any
	Timestamp   string
}

// Measurement is a raw device reading written by the ingest path.
type Measurement struct {
	DeviceID string
	PointKey string
	TS       time.Time

	ValueNumeric *float64
	ValueText    *string
	Quality      string
}

// Source loads raw observations for one device.
type Source interface {
	Fetch(ctx context.Context, sourceID string, lookback time.Duration) ([]Observation, error)
}

// MeasurementRepository persists raw readings.
type MeasurementRepository interface {
	InsertMeasurements(ctx context.Context, measurements []Measurement) error
}
