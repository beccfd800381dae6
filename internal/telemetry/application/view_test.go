package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"greengauge/internal/settlement/infrastructure/pricing"
	telemetry "greengauge/internal/telemetry/domain"
)

func newTestBuilder(t *testing.T) *ViewBuilder {
	t.Helper()
	tariffs, err := pricing.NewFixedPriceProvider(6.15, "INR")
	if err != nil {
		t.Fatalf("tariffs: %v", err)
	}
	builder, err := NewViewBuilder(tariffs, "INR")
	if err != nil {
		t.Fatalf("builder: %v", err)
	}
	return builder
}

func hourlySnapshot(start time.Time, hours int) Snapshot {
	records := make([]telemetry.Record, 0, hours)
	for i := 0; i < hours; i++ {
		records = append(records, telemetry.NewRecord(start.Add(time.Duration(i)*time.Hour)).
			With(telemetry.FieldPower, float64(100+i)).
			With(telemetry.FieldCurrent, 0.456))
	}
	return Snapshot{Device: "kettle", Generation: 3, Records: records}
}

func TestBuildViewWindowsChartButNotTable(t *testing.T) {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	snapshot := hourlySnapshot(start, 12)
	now := start.Add(11*time.Hour + 30*time.Minute)

	metrics, err := ParseMetrics([]string{"Power"})
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	view, err := newTestBuilder(t).Build(context.Background(), kettle, snapshot, ViewRequest{
		Window:  telemetry.WindowHour,
		Page:    telemetry.NewPage().WithIndex(2),
		Metrics: metrics,
		Now:     now,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if len(view.Series) != 1 || view.Series[0].Field != telemetry.FieldPower {
		t.Fatalf("expected only the Power series, got %+v", view.Series)
	}
	if len(view.Series[0].Points) != 1 || view.Series[0].Points[0].Value != 111 {
		t.Fatalf("expected one windowed point of 111W, got %+v", view.Series[0].Points)
	}
	if view.Empty || view.Latest.Power != 111 || view.Latest.Voltage != 0 {
		t.Fatalf("unexpected latest reading: %+v", view.Latest)
	}

	if view.Table.Total != 12 || len(view.Table.Items) != 2 || view.Table.EmptyRows != 3 {
		t.Fatalf("unexpected table page: total=%d items=%d empty=%d", view.Table.Total, len(view.Table.Items), view.Table.EmptyRows)
	}
	row := view.Table.Items[0]
	if row.Current != "0.46" || row.Voltage != "0.00" || row.Power != "110.00" {
		t.Fatalf("unexpected row formatting: %+v", row)
	}
	if row.Time != "Mon, Jan 15, 2024, 10:00:00 AM" {
		t.Fatalf("unexpected readable time %q", row.Time)
	}

	// 11 hours at 6.3 W and 6.15 per kWh.
	if view.Cost.DurationDisplay != "11.00" || view.Cost.CostDisplay != "0.4262" {
		t.Fatalf("unexpected cost: %+v", view.Cost)
	}
	if view.Generation != 3 || view.TimeUnit != "minute" {
		t.Fatalf("unexpected view header: gen=%d unit=%s", view.Generation, view.TimeUnit)
	}
}

func TestBuildViewEmptyWindow(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	snapshot := hourlySnapshot(start, 3)
	view, err := newTestBuilder(t).Build(context.Background(), kettle, snapshot, ViewRequest{
		Window: telemetry.WindowDay,
		Page:   telemetry.NewPage(),
		Now:    start.Add(30 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !view.Empty || view.EmptyMessage != EmptyWindowMessage {
		t.Fatalf("expected empty window flag, got %+v", view)
	}
	if view.Latest.At != nil || view.Latest.Power != 0 {
		t.Fatalf("expected zero latest reading, got %+v", view.Latest)
	}
	if len(view.Series) != len(telemetry.Fields) {
		t.Fatalf("expected every series enabled by default, got %d", len(view.Series))
	}
	if view.Table.Total != 3 {
		t.Fatalf("expected table to keep all records, got %d", view.Table.Total)
	}
}

func TestBuildViewCarriesFetchError(t *testing.T) {
	snapshot := Snapshot{
		Device:  "kettle",
		Records: []telemetry.Record{},
		Err:     &telemetry.FetchError{SourceID: "KETTLE", Err: errors.New("timeout")},
	}
	view, err := newTestBuilder(t).Build(context.Background(), kettle, snapshot, ViewRequest{Now: time.Now()})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if view.Error == "" || !view.Empty {
		t.Fatalf("expected error surfaced with empty view, got %+v", view)
	}
	if view.Cost.Cost != 0 || view.Cost.DurationDisplay != "0.00" {
		t.Fatalf("expected zero cost, got %+v", view.Cost)
	}
}

func TestParseMetricsRejectsUnknownField(t *testing.T) {
	if _, err := ParseMetrics([]string{"Power", "Frequency"}); !errors.Is(err, telemetry.ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
	all, err := ParseMetrics(nil)
	if err != nil || !all.Has(telemetry.FieldVoltage) {
		t.Fatalf("expected all metrics, got %v err=%v", all, err)
	}
}
