package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"greengauge/internal/telemetry/domain"
)

const defaultTelemetryTable = "telemetry_points"

// TelemetryQuery loads raw observations from Postgres.
type TelemetryQuery struct {
	db    *sql.DB
	table string
	now   func() time.Time
}

var _ telemetry.Source = (*TelemetryQuery)(nil)

// NewTelemetryQuery constructs a query with default table name.
func NewTelemetryQuery(db *sql.DB, opts ...QueryOption) *TelemetryQuery {
	query := &TelemetryQuery{db: db, table: defaultTelemetryTable, now: time.Now}
	for _, opt := range opts {
		opt(query)
	}
	return query
}

// Fetch returns the device's Current, Voltage and Power rows of the last lookback.
// Rows come back as observations; grouping happens downstream.
func (q *TelemetryQuery) Fetch(ctx context.Context, sourceID string, lookback time.Duration) ([]telemetry.Observation, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("telemetry query: nil db")
	}
	if sourceID == "" || lookback <= 0 {
		return nil, errors.New("telemetry query: invalid arguments")
	}

	query := fmt.Sprintf(`
SELECT ts, point_key, value_numeric, value_text
FROM %s
WHERE device_id = $1
	AND ts >= $2
	AND point_key IN ($3, $4, $5)
ORDER BY ts ASC`, q.table)

	start := q.now().UTC().Add(-lookback)
	rows, err := q.db.QueryContext(ctx, query, sourceID, start,
		string(telemetry.FieldCurrent), string(telemetry.FieldVoltage), string(telemetry.FieldPower))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	observations := make([]telemetry.Observation, 0)
	for rows.Next() {
		var ts time.Time
		var pointKey string
		var numeric sql.NullFloat64
		var text sql.NullString
		if err := rows.Scan(&ts, &pointKey, &numeric, &text); err != nil {
			return nil, err
		}
		var value any
		switch {
		case numeric.Valid:
			value = numeric.Float64
		case text.Valid:
			value = text.String
		default:
			continue
		}
		observations = append(observations, telemetry.Observation{
			Measurement: telemetry.MeasurementName,
			Device:      sourceID,
			Field:       pointKey,
			Value:       value,
			Timestamp:   ts.UTC().Format(time.RFC3339Nano),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return observations, nil
}

// QueryOption configures the telemetry query.
type QueryOption func(*TelemetryQuery)

// WithQueryTable overrides the default table name for queries.
func WithQueryTable(table string) QueryOption {
	return func(query *TelemetryQuery) {
		if query != nil && table != "" {
			query.table = table
		}
	}
}

// WithClock overrides the clock used to resolve the lookback start.
func WithClock(now func() time.Time) QueryOption {
	return func(query *TelemetryQuery) {
		if query != nil && now != nil {
			query.now = now
		}
	}
}
