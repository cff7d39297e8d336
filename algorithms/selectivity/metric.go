package selectivity

import (
	"fmt"
	"math"
	"strconv"

	"github.com/RyanBlaney/tracequant/algorithms/common"
)

// Kind tags what a Metric holds
type Kind uint8

const (
	// KindExcluded means nothing survived to be measured. It is the zero Kind.
	KindExcluded Kind = iota
	// KindValue carries a finite number
	KindValue
	// KindUndefined is a ratio over a zero or missing denominator
	KindUndefined
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindUndefined:
		return "undefined"
	default:
		return "excluded"
	}
}

// Metric is a computed per-trace quantity that may be absent for a known
// reason. Callers switch on Kind instead of testing for NaN or Inf.
type Metric struct {
	kind  Kind
	value float64
}

// Value wraps x. Non-finite input becomes Undefined.
func Value(x float64) Metric {
	if !common.IsFinite(x) {
		return Undefined()
	}
	return Metric{kind: KindValue, value: x}
}

// Undefined is the sentinel for a ratio with a zero denominator
func Undefined() Metric {
	return Metric{kind: KindUndefined}
}

// Excluded marks a metric with no surviving samples
func Excluded() Metric {
	return Metric{}
}

// Kind returns the metric's tag
func (m Metric) Kind() Kind { return m.kind }

// IsValue reports whether the metric carries a number
func (m Metric) IsValue() bool { return m.kind == KindValue }

// Float returns the number and whether there is one
func (m Metric) Float() (float64, bool) {
	return m.value, m.kind == KindValue
}

// Mean averages values; an empty slice is Excluded
func Mean(values []float64) Metric {
	if len(values) == 0 {
		return Excluded()
	}
	return Value(common.Mean(values))
}

// String renders the table encoding: shortest float, "inf", or empty
func (m Metric) String() string {
	switch m.kind {
	case KindValue:
		return strconv.FormatFloat(m.value, 'g', -1, 64)
	case KindUndefined:
		return "inf"
	default:
		return ""
	}
}

// MarshalText implements encoding.TextMarshaler with the table encoding
func (m Metric) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (m *Metric) UnmarshalText(text []byte) error {
	parsed, err := ParseMetric(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMetric reverses String
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "":
		return Excluded(), nil
	case "inf", "Inf", "+Inf":
		return Undefined(), nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Metric{}, fmt.Errorf("parse metric %q: %w", s, err)
	}
	if math.IsNaN(v) {
		return Excluded(), nil
	}
	return Value(v), nil
}
