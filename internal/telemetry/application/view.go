package application

import (
	"context"
	"errors"
	"time"

	"github.com/chrispappas/golang-generics-set/set"
	"github.com/shopspring/decimal"

	masterdata "greengauge/internal/masterdata/domain"
	settlement "greengauge/internal/settlement/domain"
	telemetry "greengauge/internal/telemetry/domain"
)

const (
	// EmptyWindowMessage is shown instead of a chart when no record falls in the window.
	EmptyWindowMessage = "No data available for the selected time period"
	// ReadableTimeLayout formats table timestamps.
	ReadableTimeLayout = "Mon, Jan 2, 2006, 03:04:05 PM"

	tableValuePlaces = 2
)

// ViewRequest is the viewer state applied to one snapshot.
type ViewRequest struct {
	Window  telemetry.Window
	Page    telemetry.Page
	Metrics set.Set[telemetry.Field]
	Now     time.Time
	// Location renders table timestamps. Nil means UTC.
	Location *time.Location
}

// AllMetrics enables every field.
func AllMetrics() set.Set[telemetry.Field] {
	return set.FromSlice(telemetry.Fields)
}

// ParseMetrics reads a list of field names. An empty list enables every field.
func ParseMetrics(values []string) (set.Set[telemetry.Field], error) {
	if len(values) == 0 {
		return AllMetrics(), nil
	}
	fields := make([]telemetry.Field, 0, len(values))
	for _, value := range values {
		field, err := telemetry.ParseField(value)
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}
	return set.FromSlice(fields), nil
}

// SeriesPoint is one chart sample.
type SeriesPoint struct {
	At    time.Time `json:"at"`
	Value float64   `json:"value"`
}

// Series is the chart line of one field.
type Series struct {
	Field  telemetry.Field `json:"field"`
	Unit   string          `json:"unit"`
	Points []SeriesPoint   `json:"points"`
}

// Latest is the most recent windowed reading. Every value is 0 when the
// window is empty.
type Latest struct {
	At      *time.Time `json:"at,omitempty"`
	Current float64    `json:"current"`
	Voltage float64    `json:"voltage"`
	Power   float64    `json:"power"`
}

// TableRow is one formatted table line.
type TableRow struct {
	At      time.Time `json:"at"`
	Time    string    `json:"time"`
	Current string    `json:"current"`
	Voltage string    `json:"voltage"`
	Power   string    `json:"power"`
}

// View is everything a dashboard renders for one device.
type View struct {
	Device       masterdata.Device              `json:"device"`
	Window       telemetry.Window               `json:"window"`
	TimeUnit     string                         `json:"time_unit"`
	Generation   uint64                         `json:"generation"`
	FetchedAt    time.Time                      `json:"fetched_at"`
	Series       []Series                       `json:"series"`
	Latest       Latest                         `json:"latest"`
	Empty        bool                           `json:"empty"`
	EmptyMessage string                         `json:"empty_message,omitempty"`
	Table        telemetry.PageResult[TableRow] `json:"table"`
	Cost         settlement.CostEstimate        `json:"cost"`
	Stats        telemetry.GroupStats           `json:"stats"`
	Error        string                         `json:"error,omitempty"`
}

// ViewBuilder turns snapshots into views.
type ViewBuilder struct {
	tariffs  settlement.TariffProvider
	currency string
}

// NewViewBuilder constructs a view builder.
func NewViewBuilder(tariffs settlement.TariffProvider, currency string) (*ViewBuilder, error) {
	if tariffs == nil {
		return nil, settlement.ErrNilTariff
	}
	if currency == "" {
		currency = settlement.DefaultCurrency
	}
	return &ViewBuilder{tariffs: tariffs, currency: currency}, nil
}

// Build applies req to snapshot. The chart and latest reading use the
// windowed records; the table and cost use the whole series.
func (b *ViewBuilder) Build(ctx context.Context, device masterdata.Device, snapshot Snapshot, req ViewRequest) (View, error) {
	if b == nil {
		return View{}, errors.New("view: nil builder")
	}
	if req.Window == "" {
		req.Window = telemetry.DefaultWindow
	}
	if req.Metrics == nil {
		req.Metrics = AllMetrics()
	}
	if req.Now.IsZero() {
		req.Now = time.Now().UTC()
	}
	location := req.Location
	if location == nil {
		location = time.UTC
	}

	view := View{
		Device:     device,
		Window:     req.Window,
		TimeUnit:   req.Window.TimeUnit(),
		Generation: snapshot.Generation,
		FetchedAt:  snapshot.FetchedAt,
		Stats:      snapshot.Stats,
	}
	if snapshot.Err != nil {
		view.Error = snapshot.Err.Error()
	}

	windowed := telemetry.FilterByWindow(snapshot.Records, req.Window, req.Now)
	view.Series = buildSeries(windowed, req.Metrics)
	view.Empty = len(windowed) == 0
	if view.Empty {
		view.EmptyMessage = EmptyWindowMessage
	} else {
		last := windowed[len(windowed)-1]
		at := last.At
		view.Latest = Latest{At: &at, Current: last.Current, Voltage: last.Voltage, Power: last.Power}
	}

	rows := make([]TableRow, 0, len(snapshot.Records))
	for _, record := range snapshot.Records {
		rows = append(rows, FormatRow(record, location))
	}
	view.Table = telemetry.Paginate(rows, req.Page)

	cost, err := b.estimate(ctx, device, snapshot.Records, req.Now)
	if err != nil {
		return View{}, err
	}
	view.Cost = cost
	return view, nil
}

func (b *ViewBuilder) estimate(ctx context.Context, device masterdata.Device, records []telemetry.Record, now time.Time) (settlement.CostEstimate, error) {
	instants := make([]time.Time, 0, len(records))
	for _, record := range records {
		instants = append(instants, record.At)
	}
	tariff, err := b.tariffs.PriceAt(ctx, device.Key, now)
	if err != nil {
		return settlement.CostEstimate{}, err
	}
	return settlement.NewCostEstimate(settlement.SeriesDurationHours(instants), device.Watts, tariff, b.currency)
}

func buildSeries(records []telemetry.Record, enabled set.Set[telemetry.Field]) []Series {
	series := make([]Series, 0, len(telemetry.Fields))
	for _, field := range telemetry.Fields {
		if !enabled.Has(field) {
			continue
		}
		points := make([]SeriesPoint, 0, len(records))
		for _, record := range records {
			points = append(points, SeriesPoint{At: record.At, Value: record.Value(field)})
		}
		series = append(series, Series{Field: field, Unit: field.Unit(), Points: points})
	}
	return series
}

// FormatRow renders a record for the readings table. Absent fields show as 0.00.
func FormatRow(record telemetry.Record, location *time.Location) TableRow {
	if location == nil {
		location = time.UTC
	}
	return TableRow{
		At:      record.At,
		Time:    record.At.In(location).Format(ReadableTimeLayout),
		Current: formatValue(record.Current),
		Voltage: formatValue(record.Voltage),
		Power:   formatValue(record.Power),
	}
}

func formatValue(value float64) string {
	return decimal.NewFromFloat(value).StringFixed(tableValuePlaces)
}
