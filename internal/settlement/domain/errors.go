package settlement

import "errors"

var (
	// ErrNegativeValue is returned when a negative duration, wattage or tariff is provided.
	ErrNegativeValue = errors.New("settlement: negative value")
	// ErrNonFiniteValue is returned for a NaN or infinite duration, wattage or tariff.
	ErrNonFiniteValue = errors.New("settlement: non-finite value")
	// ErrNilTariff is returned when no tariff provider is configured.
	ErrNilTariff = errors.New("settlement: nil tariff provider")
)
