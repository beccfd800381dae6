package settlement

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultTariff is the price per kWh used when none is configured.
	DefaultTariff = 6.15
	// DefaultCurrency labels DefaultTariff.
	DefaultCurrency = "INR"

	durationDisplayPlaces = 2
	costDisplayPlaces     = 4
)

// TariffProvider resolves the price per kWh for a device at an instant.
type TariffProvider interface {
	PriceAt(ctx context.Context, subjectID string, at time.Time) (float64, error)
}

// CostEstimate is the running cost of a device over a loaded series.
type CostEstimate struct {
	DurationHours float64 `json:"duration_hours"`
	Watts         float64 `json:"watts"`
	Tariff        float64 `json:"tariff"`
	Currency      string  `json:"currency"`
	Cost          float64 `json:"cost"`
	// Display strings are rounded for presentation only.
	DurationDisplay string `json:"duration_display"`
	CostDisplay     string `json:"cost_display"`
}

// EstimateCost returns durationHours * watts * tariff / 1000.
func EstimateCost(durationHours, watts, tariff float64) float64 {
	return durationHours * watts * tariff / 1000
}

// NewCostEstimate computes the estimate and its rounded display values.
func NewCostEstimate(durationHours, watts, tariff float64, currency string) (CostEstimate, error) {
	for _, value := range []float64{durationHours, watts, tariff} {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return CostEstimate{}, ErrNonFiniteValue
		}
		if value < 0 {
			return CostEstimate{}, ErrNegativeValue
		}
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	cost := EstimateCost(durationHours, watts, tariff)
	return CostEstimate{
		DurationHours:   durationHours,
		Watts:           watts,
		Tariff:          tariff,
		Currency:        currency,
		Cost:            cost,
		DurationDisplay: decimal.NewFromFloat(durationHours).StringFixed(durationDisplayPlaces),
		CostDisplay:     decimal.NewFromFloat(cost).StringFixed(costDisplayPlaces),
	}, nil
}

// SeriesDurationHours is the absolute span between the first and last
// instants, in hours. Fewer than two instants span zero hours.
func SeriesDurationHours(instants []time.Time) float64 {
	if len(instants) < 2 {
		return 0
	}
	// Millisecond arithmetic; time.Duration overflows past about 292 years.
	diff := instants[len(instants)-1].UnixMilli() - instants[0].UnixMilli()
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) / float64(time.Hour.Milliseconds())
}
