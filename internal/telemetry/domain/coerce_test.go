package telemetry

import (
	"encoding/json"
	"math"
	"testing"
)

func TestCoerce(t *testing.T) {
	text := "7.5"
	num := 3.25
	cases := []struct {
		name string
		in   any
		want float64
		ok   bool
	}{
		{"float", 12.5, 12.5, true},
		{"int", 42, 42, true},
		{"uint8", uint8(7), 7, true},
		{"numeric string", "42.5", 42.5, true},
		{"padded string", "  10 ", 10, true},
		{"exponent", "1e3", 1000, true},
		{"json number", json.Number("2.5"), 2.5, true},
		{"string pointer", &text, 7.5, true},
		{"float pointer", &num, 3.25, true},
		{"empty string", "", 0, false},
		{"garbage", "abc", 0, false},
		{"nil", nil, 0, false},
		{"nil float pointer", (*float64)(nil), 0, false},
		{"nan", math.NaN(), 0, false},
		{"inf", math.Inf(1), 0, false},
		{"neg inf", math.Inf(-1), 0, false},
		{"text inf", "Inf", 0, false},
		{"text nan", "NaN", 0, false},
		{"bool", true, 0, false},
		{"object", map[string]any{"v": 1}, 0, false},
		{"slice", []int{1}, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := CoerceChecked(tc.in)
			if got != tc.want || ok != tc.ok {
				t.Fatalf("CoerceChecked(%v) = %v,%v want %v,%v", tc.in, got, ok, tc.want, tc.ok)
			}
			if math.IsNaN(Coerce(tc.in)) || math.IsInf(Coerce(tc.in), 0) {
				t.Fatalf("Coerce(%v) not finite", tc.in)
			}
		})
	}
}

func TestCoerceTrueZeroIsValid(t *testing.T) {
	got, ok := CoerceChecked("0")
	if got != 0 || !ok {
		t.Fatalf("expected real zero, got %v ok=%v", got, ok)
	}
}
