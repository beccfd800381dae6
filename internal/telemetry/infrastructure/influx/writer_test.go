package influx

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"greengauge/internal/telemetry/domain"
)

func TestWriterConvertsMeasurements(t *testing.T) {
	var written []*write.Point
	writer := &Writer{write: func(ctx context.Context, points ...*write.Point) error {
		written = append(written, points...)
		return nil
	}}

	power := 100.5
	text := "n/a"
	ts := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	err := writer.InsertMeasurements(context.Background(), []telemetry.Measurement{
		{DeviceID: "KETTLE", PointKey: "Power", TS: ts, ValueNumeric: &power},
		{DeviceID: "KETTLE", PointKey: "Voltage", TS: ts, ValueText: &text},
		{DeviceID: "KETTLE", PointKey: "Current", TS: ts},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if len(written) != 2 {
		t.Fatalf("expected 2 points, got %d", len(written))
	}
	line := write.PointToLineProtocol(written[0], time.Second)
	if !strings.HasPrefix(line, "Measurements,device=KETTLE Power=100.5 1705314600") {
		t.Fatalf("unexpected line protocol %q", line)
	}
}

func TestWriterPropagatesErrors(t *testing.T) {
	writer := &Writer{write: func(ctx context.Context, points ...*write.Point) error {
		return errors.New("unauthorized")
	}}
	value := 1.0
	err := writer.InsertMeasurements(context.Background(), []telemetry.Measurement{
		{DeviceID: "KETTLE", PointKey: "Power", TS: time.Now(), ValueNumeric: &value},
	})
	if err == nil {
		t.Fatalf("expected write error")
	}
}
