package influx

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/query"

	"greengauge/internal/telemetry/domain"
)

// rowReader is the part of *api.QueryTableResult the source consumes.
type rowReader interface {
	Next() bool
	Record() *query.FluxRecord
	Err() error
	Close() error
}

type queryFunc func(ctx context.Context, flux string) (rowReader, error)

// Source reads device observations from an InfluxDB bucket with Flux.
type Source struct {
	bucket string
	query  queryFunc
}

var _ telemetry.Source = (*Source)(nil)

// NewSource constructs a source on top of an InfluxDB client.
func NewSource(client influxdb2.Client, org, bucket string) (*Source, error) {
	if client == nil {
		return nil, errors.New("influx source: nil client")
	}
	if org == "" || bucket == "" {
		return nil, errors.New("influx source: org and bucket are required")
	}
	queryAPI := client.QueryAPI(org)
	return newSource(bucket, func(ctx context.Context, flux string) (rowReader, error) {
		result, err := queryAPI.Query(ctx, flux)
		if err != nil {
			return nil, err
		}
		return result, nil
	}), nil
}

func newSource(bucket string, fn queryFunc) *Source {
	return &Source{bucket: bucket, query: fn}
}

// Fetch returns every Current, Voltage and Power value of the device within lookback.
func (s *Source) Fetch(ctx context.Context, sourceID string, lookback time.Duration) ([]telemetry.Observation, error) {
	if s == nil || s.query == nil {
		return nil, errors.New("influx source: not configured")
	}
	if sourceID == "" || lookback <= 0 {
		return nil, errors.New("influx source: invalid arguments")
	}

	rows, err := s.query(ctx, BuildFlux(s.bucket, sourceID, lookback))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	observations := make([]telemetry.Observation, 0)
	for rows.Next() {
		record := rows.Record()
		if record == nil {
			continue
		}
		device, _ := record.ValueByKey("device").(string)
		observations = append(observations, telemetry.Observation{
			Measurement: record.Measurement(),
			Device:      device,
			Field:       record.Field(),
			Value:       record.Value(),
			Timestamp:   formatTime(record.Time()),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return observations, nil
}

// BuildFlux renders the device query.
func BuildFlux(bucket, sourceID string, lookback time.Duration) string {
	return fmt.Sprintf(`from(bucket: %s)
  |> range(start: -%ds)
  |> filter(fn: (r) => r._measurement == %s)
  |> filter(fn: (r) => r.device == %s)
  |> filter(fn: (r) => r._field == %s or r._field == %s or r._field == %s)
  |> filter(fn: (r) => exists r._value)
  |> yield(name: "filtered_data")`,
		strconv.Quote(bucket),
		int64(lookback/time.Second),
		strconv.Quote(telemetry.MeasurementName),
		strconv.Quote(sourceID),
		strconv.Quote(string(telemetry.FieldCurrent)),
		strconv.Quote(string(telemetry.FieldPower)),
		strconv.Quote(string(telemetry.FieldVoltage)),
	)
}

// formatTime leaves a zero time empty so grouping drops the row.
func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339Nano)
}
