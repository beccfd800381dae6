package telemetry

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Coerce converts v into a finite number. Anything that is not a finite
// number or numeric text becomes 0.
func Coerce(v any) float64 {
	f, _ := CoerceChecked(v)
	return f
}

// CoerceChecked is Coerce that also reports whether v actually carried a
// finite number. ok is false whenever the result was defaulted to 0.
func CoerceChecked(v any) (float64, bool) {
	var f float64
	switch value := v.(type) {
	case float64:
		f = value
	case float32:
		f = float64(value)
	case int:
		f = float64(value)
	case int8:
		f = float64(value)
	case int16:
		f = float64(value)
	case int32:
		f = float64(value)
	case int64:
		f = float64(value)
	case uint:
		f = float64(value)
	case uint8:
		f = float64(value)
	case uint16:
		f = float64(value)
	case uint32:
		f = float64(value)
	case uint64:
		f = float64(value)
	case json.Number:
		parsed, err := value.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		return parseNumeric(value)
	case *float64:
		if value == nil {
			return 0, false
		}
		f = *value
	case *string:
		if value == nil {
			return 0, false
		}
		return parseNumeric(*value)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseNumeric(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
