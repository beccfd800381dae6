package influx

import (
	"context"
	"errors"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"greengauge/internal/telemetry/domain"
)

type writeFunc func(ctx context.Context, points ...*write.Point) error

// Writer stores ingested measurements as points of MeasurementName tagged by
// device, the layout Source reads back.
type Writer struct {
	write writeFunc
}

var _ telemetry.MeasurementRepository = (*Writer)(nil)

// NewWriter constructs a blocking writer for bucket.
func NewWriter(client influxdb2.Client, org, bucket string) (*Writer, error) {
	if client == nil {
		return nil, errors.New("influx writer: nil client")
	}
	if org == "" || bucket == "" {
		return nil, errors.New("influx writer: org and bucket are required")
	}
	writeAPI := client.WriteAPIBlocking(org, bucket)
	return &Writer{write: writeAPI.WritePoint}, nil
}

// InsertMeasurements writes one point per measurement.
func (w *Writer) InsertMeasurements(ctx context.Context, measurements []telemetry.Measurement) error {
	if w == nil || w.write == nil {
		return errors.New("influx writer: not configured")
	}
	points := ToPoints(measurements)
	if len(points) == 0 {
		return nil
	}
	return w.write(ctx, points...)
}

// ToPoints converts measurements, skipping those without a value.
func ToPoints(measurements []telemetry.Measurement) []*write.Point {
	points := make([]*write.Point, 0, len(measurements))
	for _, m := range measurements {
		var value any
		switch {
		case m.ValueNumeric != nil:
			value = *m.ValueNumeric
		case m.ValueText != nil:
			value = *m.ValueText
		default:
			continue
		}
		tags := map[string]string{"device": m.DeviceID}
		if m.Quality != "" {
			tags["quality"] = m.Quality
		}
		points = append(points, influxdb2.NewPoint(
			telemetry.MeasurementName,
			tags,
			map[string]interface{}{m.PointKey: value},
			m.TS,
		))
	}
	return points
}
