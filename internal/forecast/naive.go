package forecast

import "gonum.org/v1/gonum/stat"

// Naive extrapolates the mean step of the last window actuals.
func Naive(series Series, horizon, window int) ([]ModelPoint, error) {
	n := series.Len()
	if n < 2 {
		return nil, ErrInsufficientData
	}
	if window > n {
		window = n
	}

	tail := series.Values()[n-window:]
	steps := make([]float64, 0, len(tail)-1)
	for i := 1; i < len(tail); i++ {
		steps = append(steps, tail[i]-tail[i-1])
	}
	slope := stat.Mean(steps, nil)
	last := series.Last().Value

	points := make([]ModelPoint, 0, horizon)
	for k, period := range series.FuturePeriods(horizon) {
		value := last + slope*float64(k+1)
		points = append(points, ModelPoint{Period: period, Value: value, Trend: value})
	}
	return points, nil
}
