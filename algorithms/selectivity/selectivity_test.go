package selectivity

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/tracequant/config"
)

func TestMetricEncoding(t *testing.T) {
	assert.Equal(t, "0.25", Value(0.25).String())
	assert.Equal(t, "3", Value(3).String())
	assert.Equal(t, "inf", Undefined().String())
	assert.Equal(t, "", Excluded().String())

	assert.Equal(t, KindUndefined, Value(math.Inf(1)).Kind())
	assert.Equal(t, KindUndefined, Value(math.NaN()).Kind())
	assert.Equal(t, KindExcluded, Metric{}.Kind(), "zero metric is excluded")

	for _, m := range []Metric{Value(1.5), Value(-2e-7), Undefined(), Excluded()} {
		parsed, err := ParseMetric(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}

	_, err := ParseMetric("abc")
	assert.Error(t, err)
}

func TestMetricJSON(t *testing.T) {
	data, err := json.Marshal(Summary{Category: "Dots", MeanArea: Value(2), MeanPeak: Undefined()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"category":"Dots","mean_area":"2","mean_peak":"inf","responses":0}`, string(data))

	var s Summary
	require.NoError(t, json.Unmarshal(data, &s))
	assert.Equal(t, Value(2), s.MeanArea)
	assert.Equal(t, Undefined(), s.MeanPeak)
}

func TestMean(t *testing.T) {
	assert.Equal(t, Excluded(), Mean(nil))
	assert.Equal(t, Value(2), Mean([]float64{1, 2, 3}))
}

func TestRatio(t *testing.T) {
	tests := []struct {
		name     string
		num, den Metric
		want     Metric
	}{
		{"plain", Value(3), Value(4), Value(0.75)},
		{"zero denominator", Value(3.5), Value(0), Undefined()},
		{"excluded denominator", Value(3.5), Excluded(), Undefined()},
		{"both excluded", Excluded(), Excluded(), Undefined()},
		{"excluded numerator", Excluded(), Value(2), Excluded()},
		{"zero numerator", Value(0), Value(2), Value(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Ratio(tt.num, tt.den))
		})
	}
}

func TestWinner(t *testing.T) {
	assert.Equal(t, "A", Winner(Value(2), Value(1), "A", "B"))
	assert.Equal(t, "B", Winner(Value(1), Value(2), "A", "B"))
	assert.Equal(t, "B", Winner(Value(1), Value(1), "A", "B"), "tie")
	assert.Equal(t, "A", Winner(Value(1), Excluded(), "A", "B"))
	assert.Equal(t, "B", Winner(Excluded(), Excluded(), "A", "B"))
}

func TestAssignHalfOpen(t *testing.T) {
	dots := []config.Bin{config.NewBin(0, 0.5), config.NewBin(0.5, 1)}
	loom := []config.Bin{config.NewBin(1, 2), config.NewBin(2, 4), config.NewBin(4, math.Inf(1))}

	bin, ok := Assign(Value(0.75), dots)
	require.True(t, ok)
	assert.Equal(t, "[0.5, 1)", bin.String())

	_, ok = Assign(Value(1.0), dots)
	assert.False(t, ok, "upper bound is exclusive")

	bin, ok = Assign(Value(1.0), loom)
	require.True(t, ok)
	assert.Equal(t, "[1, 2)", bin.String())

	bin, ok = Assign(Value(1e9), loom)
	require.True(t, ok)
	assert.Equal(t, "[4, inf)", bin.String())

	_, ok = Assign(Undefined(), loom)
	assert.False(t, ok)
	_, ok = Assign(Excluded(), loom)
	assert.False(t, ok)
}

func TestEvaluate(t *testing.T) {
	schedule := config.DotsLoomSchedule()

	sel := Evaluate([]Summary{
		{Category: "Dots", MeanArea: Value(4), MeanPeak: Value(0.2)},
		{Category: "Loom", MeanArea: Value(3), MeanPeak: Value(0.5)},
	}, schedule)

	assert.Equal(t, Value(0.75), sel.AreaIndex)
	assert.Equal(t, Value(2.5), sel.PeakIndex)

	assert.Equal(t, Assignment{Category: "Dots", Bin: config.NewBin(0.5, 1), OK: true}, sel.AreaBin)
	assert.Equal(t, Assignment{Category: "Loom", Bin: config.NewBin(2, 4), OK: true}, sel.PeakBin)
}

func TestEvaluateZeroDenominator(t *testing.T) {
	sel := Evaluate([]Summary{
		{Category: "Loom", MeanArea: Value(3.5), MeanPeak: Value(1)},
	}, config.DotsLoomSchedule())

	assert.Equal(t, Undefined(), sel.AreaIndex)
	assert.Equal(t, "Loom", sel.AreaBin.Category)
	assert.False(t, sel.AreaBin.OK)
}
