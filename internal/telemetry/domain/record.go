package telemetry

import "time"

// Field names one of the three electrical quantities a device reports.
type Field string

const (
	FieldCurrent Field = "Current"
	FieldVoltage Field = "Voltage"
	FieldPower   Field = "Power"
)

// Fields lists every supported field in display order.
var Fields = []Field{FieldCurrent, FieldVoltage, FieldPower}

// ParseField validates a field name.
func ParseField(value string) (Field, error) {
	switch Field(value) {
	case FieldCurrent, FieldVoltage, FieldPower:
		return Field(value), nil
	default:
		return "", ErrUnknownField
	}
}

// Unit returns the display unit of the field.
func (f Field) Unit() string {
	switch f {
	case FieldCurrent:
		return "A"
	case FieldVoltage:
		return "V"
	case FieldPower:
		return "W"
	default:
		return ""
	}
}

func (f Field) bit() uint8 {
	switch f {
	case FieldCurrent:
		return 1 << 0
	case FieldVoltage:
		return 1 << 1
	case FieldPower:
		return 1 << 2
	default:
		return 0
	}
}

// Record is every field observed for one instant. Missing fields read as 0.
type Record struct {
	At      time.Time
	Current float64
	Voltage float64
	Power   float64

	present uint8
}

// NewRecord builds a record with no fields observed.
func NewRecord(at time.Time) Record {
	return Record{At: at}
}

// Has reports whether the field was observed.
func (r Record) Has(f Field) bool {
	bit := f.bit()
	return bit != 0 && r.present&bit != 0
}

// Value returns the field value, 0 when absent.
func (r Record) Value(f Field) float64 {
	switch f {
	case FieldCurrent:
		return r.Current
	case FieldVoltage:
		return r.Voltage
	case FieldPower:
		return r.Power
	default:
		return 0
	}
}

// With returns a copy of r with the field set.
func (r Record) With(f Field, value float64) Record {
	switch f {
	case FieldCurrent:
		r.Current = value
	case FieldVoltage:
		r.Voltage = value
	case FieldPower:
		r.Power = value
	default:
		return r
	}
	r.present |= f.bit()
	return r
}
