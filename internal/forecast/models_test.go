package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPrepare(t *testing.T, labels []string, values []float64) Series {
	t.Helper()
	require.Equal(t, len(labels), len(values))
	raw := make([]Observation, len(labels))
	for i := range labels {
		raw[i] = Observation{Period: labels[i], Value: values[i]}
	}
	series, err := Prepare(raw)
	require.NoError(t, err)
	return series
}

func TestDecompositionFollowsLinearTrend(t *testing.T) {
	series := mustPrepare(t, []string{"2024Q1", "2024Q2", "2024Q3"}, []float64{50, 60, 70})

	est := FitDecomposition(series, DefaultConfig(), 3)
	require.True(t, est.Available(), "fit error: %v", est.Err)
	require.Len(t, est.Points, 3)

	want := []float64{80, 90, 100}
	for i, p := range est.Points {
		assert.InDelta(t, want[i], p.Value, 2, "step %d", i+1)
		assert.True(t, p.HasBounds)
		assert.Less(t, p.Lower, p.Value)
		assert.Greater(t, p.Upper, p.Value)
		assert.InDelta(t, p.Value, p.Trend+p.Seasonal, 1e-9)
	}
	// Without a full year of history there are no seasonal terms.
	assert.Zero(t, est.Points[0].Seasonal)
}

func TestDecompositionTwoPoints(t *testing.T) {
	series := mustPrepare(t, []string{"2024Q1", "2024Q2"}, []float64{50, 80})

	est := FitDecomposition(series, DefaultConfig(), 2)
	require.True(t, est.Available(), "fit error: %v", est.Err)
	assert.InDelta(t, 110, est.Points[0].Value, 3)
	assert.InDelta(t, 140, est.Points[1].Value, 4)
}

func TestDecompositionIntervalWidensWithHorizon(t *testing.T) {
	series := mustPrepare(t,
		[]string{"2022Q1", "2022Q2", "2022Q3", "2022Q4", "2023Q1", "2023Q2", "2023Q3", "2023Q4"},
		[]float64{100, 112, 104, 125, 118, 131, 122, 140})

	est := FitDecomposition(series, DefaultConfig(), 4)
	require.True(t, est.Available(), "fit error: %v", est.Err)

	first := est.Points[0].Upper - est.Points[0].Lower
	last := est.Points[3].Upper - est.Points[3].Lower
	assert.GreaterOrEqual(t, last, first)
}

func TestDecompositionRejectsDegenerateSeries(t *testing.T) {
	for name, values := range map[string][]float64{
		"identical": {50, 50},
		"zeros":     {0, 0, 0, 0},
	} {
		labels := []string{"2024Q1", "2024Q2", "2024Q3", "2024Q4"}[:len(values)]
		est := FitDecomposition(mustPrepare(t, labels, values), DefaultConfig(), 2)
		assert.False(t, est.Available(), name)
		require.NotNil(t, est.Err, name)
		assert.Equal(t, ModelDecomposition, est.Err.Model)
	}

	single := mustPrepare(t, []string{"2024Q1"}, []float64{10})
	assert.False(t, FitDecomposition(single, DefaultConfig(), 2).Available())
}

func TestPolynomialFitsLinearHistory(t *testing.T) {
	series := mustPrepare(t, []string{"2024Q1", "2024Q2", "2024Q3", "2024Q4"}, []float64{10, 20, 30, 40})

	est := FitPolynomial(series, 2)
	require.True(t, est.Available(), "fit error: %v", est.Err)
	require.Len(t, est.Points, 2)
	require.NotNil(t, est.Performance)
	require.NotNil(t, est.Performance.R2)
	require.NotNil(t, est.Performance.Accuracy)

	assert.InDelta(t, 1.0, *est.Performance.R2, 1e-6)
	assert.InDelta(t, 100.0, *est.Performance.Accuracy, 1e-4)
	assert.InDelta(t, 0.0, est.Performance.MAE, 1e-3)
	assert.Equal(t, Period{2025, 1}, est.Points[0].Period)
	for _, p := range est.Points {
		assert.False(t, p.HasBounds)
	}
}

func TestPolynomialRejectsDegenerateSeries(t *testing.T) {
	est := FitPolynomial(mustPrepare(t, []string{"2024Q1", "2024Q2"}, []float64{50, 50}), 2)
	assert.False(t, est.Available())
	require.NotNil(t, est.Err)
	assert.Equal(t, ModelPolynomial, est.Err.Model)
	assert.Nil(t, est.Performance)

	est = FitPolynomial(mustPrepare(t, []string{"2024Q1"}, []float64{50}), 2)
	assert.False(t, est.Available())
}

func TestPolynomialIsDeterministic(t *testing.T) {
	series := mustPrepare(t,
		[]string{"2023Q1", "2023Q2", "2023Q3", "2023Q4", "2024Q1", "2024Q2"},
		[]float64{100, 110, 105, 120, 115, 130})

	a := FitPolynomial(series, 2)
	b := FitPolynomial(series, 2)
	require.True(t, a.Available())
	assert.Equal(t, a.Points, b.Points)
	assert.Equal(t, a.Performance, b.Performance)
}

func TestPolynomialTermsOrder(t *testing.T) {
	terms := polynomialTerms(Features{Trend: 2, SeasonalSin: 3, SeasonalCos: 5, Year: 7})
	assert.Equal(t, []float64{
		2, 3, 5, 7,
		4, 6, 10, 14,
		9, 15, 21,
		25, 35,
		49,
	}, terms)
}

func TestNaiveExtrapolatesMeanStep(t *testing.T) {
	series := mustPrepare(t,
		[]string{"2023Q1", "2023Q2", "2023Q3", "2023Q4", "2024Q1"},
		[]float64{10, 20, 40, 70, 110})

	points, err := Naive(series, 2, 4)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.InDelta(t, 140, points[0].Value, 1e-9)
	assert.InDelta(t, 170, points[1].Value, 1e-9)
	assert.Equal(t, Period{2024, 3}, points[1].Period)
}

func TestNaiveShortSeries(t *testing.T) {
	series := mustPrepare(t, []string{"2024Q1", "2024Q2"}, []float64{50, 50})
	points, err := Naive(series, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, 50.0, points[0].Value)
	assert.Equal(t, 50.0, points[1].Value)

	_, err = Naive(mustPrepare(t, []string{"2024Q1"}, []float64{50}), 2, 4)
	assert.ErrorIs(t, err, ErrInsufficientData)
}
