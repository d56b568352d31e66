package forecast

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		label string
		want  Period
		ok    bool
	}{
		{"2024Q3", Period{2024, 3}, true},
		{" 2023q1 ", Period{2023, 1}, true},
		{"2024Q5", Period{}, false},
		{"2024Q0", Period{}, false},
		{"2024-3", Period{}, false},
		{"24Q1", Period{}, false},
		{"", Period{}, false},
	}

	for _, tc := range tests {
		got, err := ParsePeriod(tc.label)
		if !tc.ok {
			var malformed *MalformedPeriodError
			assert.True(t, errors.As(err, &malformed), "label %q", tc.label)
			continue
		}
		require.NoError(t, err, "label %q", tc.label)
		assert.Equal(t, tc.want, got)
	}
}

func TestPeriodArithmetic(t *testing.T) {
	p := Period{2023, 4}
	assert.Equal(t, Period{2024, 1}, p.Next())
	assert.Equal(t, Period{2024, 3}, p.Add(3))
	assert.Equal(t, Period{2022, 4}, p.Add(-4))
	assert.Equal(t, Period{2023, 1}, p.Add(-3))
	assert.True(t, Period{2023, 3}.Before(p))
	assert.Equal(t, 0, p.Compare(Period{2023, 4}))
	assert.Equal(t, "2023Q4", p.String())
	assert.Equal(t, time.Date(2023, time.October, 1, 0, 0, 0, 0, time.UTC), p.Start())
	assert.Equal(t, Period{2025, 2}, PeriodOf(time.Date(2025, time.June, 30, 12, 0, 0, 0, time.UTC)))
}

func TestPrepareOrdersAndDerivesFeatures(t *testing.T) {
	series, err := Prepare([]Observation{
		{Period: "2024Q2", Value: 20},
		{Period: "2023Q4", Value: 5},
		{Period: "2024Q1", Value: 10},
	})
	require.NoError(t, err)
	require.Equal(t, 3, series.Len())

	assert.Equal(t, []float64{5, 10, 20}, series.Values())
	assert.Equal(t, Period{2024, 2}, series.Last().Period)
	for _, p := range series.Points {
		assert.True(t, p.IsActual)
	}

	features := series.Features()
	assert.Equal(t, 0.0, features[0].Trend)
	assert.Equal(t, 2.0, features[2].Trend)
	assert.Equal(t, 2023.0, features[0].Year)
	assert.InDelta(t, -1.0, features[2].SeasonalCos, 1e-12)
}

func TestFeaturesAtSeasonalEncoding(t *testing.T) {
	for q := 1; q <= 4; q++ {
		f := FeaturesAt(0, Period{2024, q})
		angle := 2 * math.Pi * float64(q) / 4
		assert.InDelta(t, math.Sin(angle), f.SeasonalSin, 1e-12)
		assert.InDelta(t, math.Cos(angle), f.SeasonalCos, 1e-12)
		assert.Equal(t, 2024.0, f.Year)
	}
}

func TestPrepareRejectsBadInput(t *testing.T) {
	_, err := Prepare(nil)
	assert.ErrorIs(t, err, ErrEmptySeries)

	var malformed *MalformedPeriodError
	_, err = Prepare([]Observation{{Period: "2024-Q1", Value: 1}})
	assert.ErrorAs(t, err, &malformed)

	_, err = Prepare([]Observation{{Period: "2024Q1", Value: 1}, {Period: "2024Q1", Value: 2}})
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "duplicate period", malformed.Reason)

	_, err = Prepare([]Observation{{Period: "2024Q1", Value: math.NaN()}})
	assert.ErrorAs(t, err, &malformed)
}

func TestFuturePeriods(t *testing.T) {
	series, err := Prepare([]Observation{{Period: "2024Q3", Value: 1}, {Period: "2024Q4", Value: 2}})
	require.NoError(t, err)
	assert.Equal(t, []Period{{2025, 1}, {2025, 2}, {2025, 3}}, series.FuturePeriods(3))
}
