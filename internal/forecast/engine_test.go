package forecast

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)
	return engine
}

func scenarioSeries() []Observation {
	return []Observation{
		{Period: "2023Q1", Value: 100},
		{Period: "2023Q2", Value: 110},
		{Period: "2023Q3", Value: 105},
		{Period: "2023Q4", Value: 120},
		{Period: "2024Q1", Value: 115},
		{Period: "2024Q2", Value: 130},
	}
}

func TestEngineUpwardScenario(t *testing.T) {
	result, err := newTestEngine(t).Forecast(scenarioSeries(), 2)
	require.NoError(t, err)

	require.Len(t, result.Predictions, 2)
	assert.Equal(t, Period{2024, 3}, result.Predictions[0].Period)
	assert.Equal(t, Period{2024, 4}, result.Predictions[1].Period)
	assert.Equal(t, TierEnsemble, result.Tier)
	assert.Equal(t, []State{StateTryDecomposition, StateTryPolynomial, StateDone}, result.Trace)
	assert.True(t, result.Models.Decomposition)
	assert.True(t, result.Models.Polynomial)
	require.NotNil(t, result.Performance)

	for _, p := range result.Predictions {
		assert.GreaterOrEqual(t, p.Value, 100.0)
		assert.LessOrEqual(t, p.Value, 160.0)
		assert.Equal(t, ConfidenceHigh, p.Confidence)

		require.NotNil(t, p.Decomposition)
		require.NotNil(t, p.Polynomial)
		want := math.Round(math.Max(0, 0.6*(*p.Decomposition)+0.4*(*p.Polynomial)))
		assert.InDelta(t, want, p.Value, 1e-9)
	}
}

func TestEngineIdenticalPointsFallBackToNaive(t *testing.T) {
	result, err := newTestEngine(t).Forecast([]Observation{
		{Period: "2024Q1", Value: 50},
		{Period: "2024Q2", Value: 50},
	}, 2)
	require.NoError(t, err)

	assert.Equal(t, TierNaiveTrend, result.Tier)
	assert.Equal(t, []State{StateTryDecomposition, StateTryPolynomial, StateTryNaive, StateDone}, result.Trace)
	assert.Len(t, result.Failures, 2)
	assert.Nil(t, result.Performance)
	require.Len(t, result.Predictions, 2)
	for _, p := range result.Predictions {
		assert.Equal(t, 50.0, p.Value)
		assert.Equal(t, ConfidenceLow, p.Confidence)
		assert.Nil(t, p.Decomposition)
		assert.Nil(t, p.Polynomial)
		assert.LessOrEqual(t, p.Lower, p.Value)
		assert.GreaterOrEqual(t, p.Upper, p.Value)
	}
}

func TestEngineFallsBackToPolynomialWhenDecompositionFails(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxIterations = 1
	engine, err := NewEngine(cfg, zerolog.Nop())
	require.NoError(t, err)

	result, err := engine.Forecast(scenarioSeries(), 2)
	require.NoError(t, err)

	assert.Equal(t, TierPolynomialOnly, result.Tier)
	assert.Equal(t, []State{StateTryDecomposition, StateTryPolynomial, StateDone}, result.Trace)
	assert.False(t, result.Models.Decomposition)
	assert.True(t, result.Models.Polynomial)
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0], "converge")
	require.NotNil(t, result.Performance)

	require.Len(t, result.Predictions, 2)
	assert.Equal(t, Period{2024, 3}, result.Predictions[0].Period)
	for _, p := range result.Predictions {
		assert.Equal(t, ConfidenceMedium, p.Confidence)
		assert.Nil(t, p.Decomposition)
		require.NotNil(t, p.Polynomial)
		assert.Equal(t, math.Round(math.Max(0, *p.Polynomial)), p.Value)
		// 15% band around the unrounded value, then rounded
		assert.InDelta(t, 0.85*p.Value, p.Lower, 1)
		assert.InDelta(t, 1.15*p.Value, p.Upper, 1)
		assert.LessOrEqual(t, p.Lower, p.Value)
		assert.LessOrEqual(t, p.Value, p.Upper)
	}
}

func TestEngineSinglePointIsInsufficient(t *testing.T) {
	result, err := newTestEngine(t).Forecast([]Observation{{Period: "2024Q1", Value: 10}}, 2)
	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.Nil(t, result)
}

func TestEngineRejectsBadInput(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Forecast(nil, 2)
	assert.ErrorIs(t, err, ErrEmptySeries)

	var malformed *MalformedPeriodError
	_, err = engine.Forecast([]Observation{{Period: "Q1-2024", Value: 1}}, 2)
	assert.ErrorAs(t, err, &malformed)

	_, err = engine.ForecastSeries(Series{}, 2)
	assert.ErrorIs(t, err, ErrEmptySeries)
}

func TestEngineProperties(t *testing.T) {
	engine := newTestEngine(t)
	cases := map[string][]float64{
		"seasonal":  {100, 140, 90, 130, 110, 150, 100, 145},
		"declining": {400, 300, 200, 100},
		"flat-ish":  {10, 10, 10, 11},
		"large":     {2.1e6, 1.95e6, 2.05e6, 2.2e6, 2.0e6},
		"noisy":     {5, 30, 2, 44, 9, 51, 3},
	}

	for name, values := range cases {
		t.Run(name, func(t *testing.T) {
			raw := make([]Observation, len(values))
			period := Period{2021, 2}
			for i, v := range values {
				raw[i] = Observation{Period: period.String(), Value: v}
				period = period.Next()
			}
			last := period.Add(-1)

			for _, horizon := range []int{1, 3, 6} {
				result, err := engine.Forecast(raw, horizon)
				require.NoError(t, err)
				require.Len(t, result.Predictions, horizon)

				prev := last
				for _, p := range result.Predictions {
					assert.True(t, prev.Before(p.Period))
					assert.Equal(t, prev.Next(), p.Period)
					prev = p.Period

					assert.GreaterOrEqual(t, p.Value, 0.0)
					assert.LessOrEqual(t, p.Lower, p.Value)
					assert.LessOrEqual(t, p.Value, p.Upper)
					assert.Equal(t, ConfidenceFor(result.Tier), p.Confidence)
				}
			}
		})
	}
}

func TestEngineIsIdempotent(t *testing.T) {
	engine := newTestEngine(t)
	first, err := engine.Forecast(scenarioSeries(), 3)
	require.NoError(t, err)
	second, err := engine.Forecast(scenarioSeries(), 3)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEngineDefaultHorizon(t *testing.T) {
	result, err := newTestEngine(t).Forecast(scenarioSeries(), 0)
	require.NoError(t, err)
	assert.Len(t, result.Predictions, DefaultConfig().Horizon)
}

func TestNewEngineValidatesConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DecompositionWeight = 1.5
	_, err := NewEngine(cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestPayloadShape(t *testing.T) {
	result, err := newTestEngine(t).Forecast([]Observation{
		{Period: "2024Q1", Value: 50},
		{Period: "2024Q2", Value: 50},
	}, 1)
	require.NoError(t, err)

	raw, err := json.Marshal(NewPayload(result))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "NaiveTrend", doc["tier_used"])

	preds := doc["predictions"].([]any)
	require.Len(t, preds, 1)
	first := preds[0].(map[string]any)
	assert.Equal(t, "2024Q3", first["quarter"])
	assert.Equal(t, 50.0, first["predicted_value"])
	assert.Nil(t, first["prophet_prediction"])
	assert.Nil(t, first["linear_prediction"])
	assert.Equal(t, "Low", first["confidence_level"])

	perf := doc["model_performance"].(map[string]any)
	assert.Nil(t, perf["r2_score"])
	assert.Nil(t, perf["mean_absolute_error"])
	assert.Nil(t, perf["model_accuracy"])

	models := doc["models_used"].(map[string]any)
	assert.Equal(t, false, models["decomposition_model"])
	assert.Equal(t, false, models["polynomial_model"])
}

func TestPayloadRoundsPerformance(t *testing.T) {
	r2, acc := 0.98764, 98.764
	payload := NewPayload(&Result{
		Tier:        TierPolynomialOnly,
		Performance: &Performance{R2: &r2, MAE: 12.3456, Accuracy: &acc},
		Predictions: []PredictedPoint{{Period: Period{2025, 1}, Value: 10, Lower: 9, Upper: 12, Polynomial: &acc}},
	})

	assert.Equal(t, 0.988, *payload.ModelPerformance.R2Score)
	assert.Equal(t, 12.35, *payload.ModelPerformance.MeanAbsoluteError)
	assert.Equal(t, 98.8, *payload.ModelPerformance.ModelAccuracy)
	require.NotNil(t, payload.Predictions[0].PolynomialPrediction)
	assert.Equal(t, int64(99), *payload.Predictions[0].PolynomialPrediction)
	assert.Nil(t, payload.Predictions[0].DecompositionPrediction)
}

func TestPayloadSaturatesHugeValues(t *testing.T) {
	huge := 1e300
	payload := NewPayload(&Result{
		Tier:        TierPolynomialOnly,
		Predictions: []PredictedPoint{{Period: Period{2025, 1}, Value: 1e19, Lower: 9.3e18, Upper: math.Inf(1), Polynomial: &huge}},
	})

	p := payload.Predictions[0]
	assert.Equal(t, int64(math.MaxInt64), p.PredictedValue)
	assert.Equal(t, int64(math.MaxInt64), p.LowerBound)
	assert.Equal(t, int64(math.MaxInt64), p.UpperBound)
	require.NotNil(t, p.PolynomialPrediction)
	assert.Equal(t, int64(math.MaxInt64), *p.PolynomialPrediction)
	assert.Equal(t, int64(0), wholeUnits(math.NaN()))
	assert.Equal(t, int64(0), wholeUnits(-5))
}

func TestResultRoundTripsThroughJSON(t *testing.T) {
	result, err := newTestEngine(t).Forecast(scenarioSeries(), 2)
	require.NoError(t, err)

	raw, err := json.Marshal(result)
	require.NoError(t, err)
	var decoded Result
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, result.Tier, decoded.Tier)
	assert.Equal(t, result.Predictions[1].Period, decoded.Predictions[1].Period)
	assert.Equal(t, result.Predictions[1].Value, decoded.Predictions[1].Value)
}
