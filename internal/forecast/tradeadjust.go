package forecast

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ImpactLevel grades how strongly the trade balance moves with a rate series.
type ImpactLevel string

const (
	ImpactHigh     ImpactLevel = "High"
	ImpactModerate ImpactLevel = "Moderate"
	ImpactLow      ImpactLevel = "Low"
	ImpactUnknown  ImpactLevel = "Unknown"
)

// BalanceTrend describes the latest move of the trade balance.
type BalanceTrend string

const (
	BalanceImproving BalanceTrend = "Improving"
	BalanceDeclining BalanceTrend = "Declining"
)

// TradeImpact relates a rate series to the trade balance over recent aligned quarters.
type TradeImpact struct {
	Correlation  *float64     `json:"correlation"`
	Level        ImpactLevel  `json:"impact_level"`
	BalanceTrend BalanceTrend `json:"trade_balance_trend,omitempty"`
	AvgBalance   float64      `json:"avg_trade_balance"`
	Quarters     int          `json:"quarters"`
}

// TradeAdjustment reports how a forecast was scaled for trade conditions.
type TradeAdjustment struct {
	Adjusted    bool        `json:"trade_adjusted"`
	Factor      float64     `json:"trade_adjustment_factor"`
	Impact      TradeImpact `json:"trade_impact"`
	Explanation string      `json:"adjustment_explanation"`
}

// TradeBalance subtracts imports from exports for every quarter present in both.
func TradeBalance(exports, imports Series) Series {
	byPeriod := make(map[Period]float64, imports.Len())
	for _, p := range imports.Points {
		byPeriod[p.Period] = p.Value
	}

	var out Series
	for _, p := range exports.Points {
		if imp, ok := byPeriod[p.Period]; ok {
			out.Points = append(out.Points, Point{Period: p.Period, Value: p.Value - imp, IsActual: true})
		}
	}
	return out
}

// AssessTradeImpact correlates rates with the trade balance over the last window aligned
// quarters. At least three aligned quarters are needed for a correlation.
func AssessTradeImpact(rates, balance Series, window int) TradeImpact {
	byPeriod := make(map[Period]float64, balance.Len())
	for _, p := range balance.Points {
		byPeriod[p.Period] = p.Value
	}

	var xs, ys []float64
	for _, p := range rates.Points {
		if b, ok := byPeriod[p.Period]; ok {
			xs = append(xs, p.Value)
			ys = append(ys, b)
		}
	}
	if window > 0 && len(xs) > window {
		xs = xs[len(xs)-window:]
		ys = ys[len(ys)-window:]
	}

	impact := TradeImpact{Level: ImpactUnknown, Quarters: len(xs)}
	if len(ys) == 0 {
		return impact
	}
	impact.AvgBalance = stat.Mean(ys, nil)

	if len(ys) > 1 {
		impact.BalanceTrend = BalanceDeclining
		if ys[len(ys)-1] > ys[len(ys)-2] {
			impact.BalanceTrend = BalanceImproving
		}
	}

	if len(xs) > 2 {
		if corr := stat.Correlation(xs, ys, nil); finite(corr) {
			impact.Correlation = &corr
			switch abs := math.Abs(corr); {
			case abs > 0.7:
				impact.Level = ImpactHigh
			case abs > 0.4:
				impact.Level = ImpactModerate
			default:
				impact.Level = ImpactLow
			}
		}
	}
	return impact
}

// AdjustForTrade scales predicted values and bounds by a small factor derived from the
// trade impact. The input result is not modified.
func AdjustForTrade(result *Result, impact TradeImpact, weight float64) (*Result, TradeAdjustment) {
	adj := TradeAdjustment{Impact: impact}
	if impact.Correlation == nil || impact.BalanceTrend == "" {
		adj.Explanation = "no trade data available for adjustment"
		return result, adj
	}

	corr := *impact.Correlation
	factor := math.Abs(corr) * weight * 0.01
	// A negatively correlated rate falls as the balance improves.
	if (impact.BalanceTrend == BalanceImproving) == (corr < 0) {
		factor = -factor
	}

	adjusted := *result
	adjusted.Predictions = make([]PredictedPoint, len(result.Predictions))
	for i, p := range result.Predictions {
		p.Value = math.Round(p.Value * (1 + factor))
		p.Lower = math.Round(p.Lower * (1 + factor))
		p.Upper = math.Round(p.Upper * (1 + factor))
		adjusted.Predictions[i] = p
	}

	adj.Adjusted = true
	adj.Factor = factor
	adj.Explanation = fmt.Sprintf("trade balance is %s with correlation %.3f; forecast adjusted by %.2f%%",
		impact.BalanceTrend, corr, factor*100)
	return &adjusted, adj
}
