package pricing

import (
	"context"
	"errors"
	"math"
	"time"

	settlement "greengauge/internal/settlement/domain"
)

// FixedPriceProvider returns a fixed price per kWh.
type FixedPriceProvider struct {
	price    float64
	currency string
}

var _ settlement.TariffProvider = (*FixedPriceProvider)(nil)

// NewFixedPriceProvider constructs the provider.
func NewFixedPriceProvider(price float64, currency string) (*FixedPriceProvider, error) {
	if price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return nil, errors.New("price provider: price must be a finite non-negative number")
	}
	if currency == "" {
		currency = settlement.DefaultCurrency
	}
	return &FixedPriceProvider{price: price, currency: currency}, nil
}

// PriceAt returns the configured fixed price.
func (p *FixedPriceProvider) PriceAt(ctx context.Context, subjectID string, at time.Time) (float64, error) {
	_ = ctx
	_ = subjectID
	_ = at
	return p.price, nil
}

// Currency returns the configured currency code.
func (p *FixedPriceProvider) Currency() string {
	if p == nil {
		return settlement.DefaultCurrency
	}
	return p.currency
}
