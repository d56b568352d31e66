package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resultWith(values ...float64) *Result {
	r := &Result{Tier: TierEnsemble}
	period := Period{2025, 1}
	for _, v := range values {
		r.Predictions = append(r.Predictions, PredictedPoint{Period: period, Value: v, Lower: v * 0.9, Upper: v * 1.1})
		period = period.Next()
	}
	return r
}

func TestSummarize(t *testing.T) {
	series := mustPrepare(t, []string{"2024Q3", "2024Q4"}, []float64{90, 100})

	s, ok := Summarize(series, resultWith(104, 110))
	require.True(t, ok)
	assert.Equal(t, 100.0, s.Current)
	assert.Equal(t, 110.0, s.Final)
	assert.Equal(t, Period{2025, 2}, s.FinalPeriod)
	assert.Equal(t, 107.0, s.Mean)
	assert.Equal(t, 104.0, s.Min)
	assert.Equal(t, 110.0, s.Max)
	assert.Equal(t, 10.0, s.Change)
	require.NotNil(t, s.ChangePct)
	assert.InDelta(t, 10.0, *s.ChangePct, 1e-9)
	assert.Equal(t, DirectionRising, s.Direction)

	s, _ = Summarize(series, resultWith(100.4))
	assert.Equal(t, DirectionFlat, s.Direction)

	s, _ = Summarize(series, resultWith(80))
	assert.Equal(t, DirectionFalling, s.Direction)

	_, ok = Summarize(series, &Result{})
	assert.False(t, ok)
}

func TestSummarizeFromZero(t *testing.T) {
	series := mustPrepare(t, []string{"2024Q3", "2024Q4"}, []float64{5, 0})
	s, ok := Summarize(series, resultWith(3))
	require.True(t, ok)
	assert.Nil(t, s.ChangePct)
	assert.Equal(t, DirectionRising, s.Direction)
}

func TestTradeImpactAndAdjustment(t *testing.T) {
	labels := []string{"2023Q1", "2023Q2", "2023Q3", "2023Q4", "2024Q1"}
	rates := mustPrepare(t, labels, []float64{1000, 1010, 1020, 1030, 1040})
	exports := mustPrepare(t, labels, []float64{50, 60, 70, 80, 90})
	imports := mustPrepare(t, labels, []float64{40, 40, 40, 40, 40})

	balance := TradeBalance(exports, imports)
	require.Equal(t, []float64{10, 20, 30, 40, 50}, balance.Values())

	impact := AssessTradeImpact(rates, balance, 8)
	require.NotNil(t, impact.Correlation)
	assert.InDelta(t, 1.0, *impact.Correlation, 1e-9)
	assert.Equal(t, ImpactHigh, impact.Level)
	assert.Equal(t, BalanceImproving, impact.BalanceTrend)
	assert.Equal(t, 5, impact.Quarters)
	assert.Equal(t, 30.0, impact.AvgBalance)

	base := resultWith(1000, 2000)
	adjusted, adj := AdjustForTrade(base, impact, 0.3)
	require.True(t, adj.Adjusted)
	assert.InDelta(t, 0.003, adj.Factor, 1e-12)
	assert.Equal(t, 1003.0, adjusted.Predictions[0].Value)
	assert.Equal(t, 2006.0, adjusted.Predictions[1].Value)
	assert.Equal(t, 1000.0, base.Predictions[0].Value, "input must not be modified")
}

func TestTradeAdjustmentSigns(t *testing.T) {
	neg, pos := -0.5, 0.5
	tests := []struct {
		trend BalanceTrend
		corr  *float64
		sign  float64
	}{
		{BalanceImproving, &neg, -1},
		{BalanceImproving, &pos, 1},
		{BalanceDeclining, &neg, 1},
		{BalanceDeclining, &pos, -1},
	}
	for _, tc := range tests {
		_, adj := AdjustForTrade(resultWith(100), TradeImpact{Correlation: tc.corr, BalanceTrend: tc.trend}, 1)
		assert.InDelta(t, tc.sign*0.005, adj.Factor, 1e-12, "%s %v", tc.trend, *tc.corr)
	}
}

func TestTradeImpactNeedsThreeQuarters(t *testing.T) {
	rates := mustPrepare(t, []string{"2024Q1", "2024Q2"}, []float64{1, 2})
	balance := mustPrepare(t, []string{"2024Q1", "2024Q2"}, []float64{5, 3})

	impact := AssessTradeImpact(rates, balance, 8)
	assert.Nil(t, impact.Correlation)
	assert.Equal(t, ImpactUnknown, impact.Level)
	assert.Equal(t, BalanceDeclining, impact.BalanceTrend)

	base := resultWith(10)
	out, adj := AdjustForTrade(base, impact, 0.3)
	assert.False(t, adj.Adjusted)
	assert.Same(t, base, out)
}

func TestFingerprint(t *testing.T) {
	cfg := DefaultConfig()
	a := mustPrepare(t, []string{"2024Q1", "2024Q2"}, []float64{1, 2})
	b := mustPrepare(t, []string{"2024Q2", "2024Q1"}, []float64{2, 1})

	assert.Equal(t, Fingerprint(a, 2, cfg), Fingerprint(b, 2, cfg))
	assert.Equal(t, Fingerprint(a, 0, cfg), Fingerprint(a, cfg.Horizon, cfg))
	assert.NotEqual(t, Fingerprint(a, 2, cfg), Fingerprint(a, 3, cfg))

	cfg.DecompositionWeight = 0.7
	assert.NotEqual(t, Fingerprint(a, 2, DefaultConfig()), Fingerprint(a, 2, cfg))
	assert.Len(t, Fingerprint(a, 2, cfg), 64)
}
