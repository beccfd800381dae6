package application

import (
	"context"
	"sync"
	"time"

	telemetry "greengauge/internal/telemetry/domain"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type stubSource struct {
	mu           sync.Mutex
	calls        int
	observations []telemetry.Observation
	err          error
	// release, when set, blocks every fetch until it is closed.
	release chan struct{}
	started chan struct{}
}

func (s *stubSource) Fetch(ctx context.Context, sourceID string, lookback time.Duration) ([]telemetry.Observation, error) {
	s.mu.Lock()
	s.calls++
	release := s.release
	started := s.started
	s.mu.Unlock()
	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if release != nil {
		<-release
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.observations, nil
}

func (s *stubSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func sampleObservations(device string) []telemetry.Observation {
	return []telemetry.Observation{
		{Measurement: telemetry.MeasurementName, Device: device, Field: "Power", Value: 100.0, Timestamp: "2024-01-15T10:00:00Z"},
		{Measurement: telemetry.MeasurementName, Device: device, Field: "Current", Value: "0.5", Timestamp: "2024-01-15T10:00:00Z"},
		{Measurement: telemetry.MeasurementName, Device: device, Field: "Power", Value: 120.0, Timestamp: "2024-01-15T10:30:00Z"},
		{Measurement: telemetry.MeasurementName, Device: device, Field: "Voltage", Value: "n/a", Timestamp: "2024-01-15T10:30:00Z"},
		{Measurement: telemetry.MeasurementName, Device: device, Field: "Power", Value: 90.0, Timestamp: "not a time"},
	}
}
