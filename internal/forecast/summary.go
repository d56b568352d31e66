package forecast

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// flatBandPct is the projected change, in percent, below which a series counts as flat.
const flatBandPct = 0.5

// Direction describes where a forecast is heading relative to the last actual.
type Direction string

const (
	DirectionRising  Direction = "rising"
	DirectionFalling Direction = "falling"
	DirectionFlat    Direction = "flat"
)

// Summary condenses a forecast against the most recent actual.
type Summary struct {
	CurrentPeriod Period    `json:"current_period"`
	Current       float64   `json:"current_value"`
	FinalPeriod   Period    `json:"final_period"`
	Final         float64   `json:"projected_final"`
	Mean          float64   `json:"projected_mean"`
	Min           float64   `json:"projected_min"`
	Max           float64   `json:"projected_max"`
	Change        float64   `json:"projected_change"`
	ChangePct     *float64  `json:"projected_change_percent"`
	Direction     Direction `json:"direction"`
}

// Summarize compares the forecast with the last actual observation. It returns false when
// either side is empty.
func Summarize(series Series, result *Result) (Summary, bool) {
	if series.Len() == 0 || result == nil || len(result.Predictions) == 0 {
		return Summary{}, false
	}

	values := make([]float64, len(result.Predictions))
	for i, p := range result.Predictions {
		values[i] = p.Value
	}

	last := series.Last()
	final := result.Predictions[len(result.Predictions)-1]
	s := Summary{
		CurrentPeriod: last.Period,
		Current:       last.Value,
		FinalPeriod:   final.Period,
		Final:         final.Value,
		Mean:          stat.Mean(values, nil),
		Min:           floats.Min(values),
		Max:           floats.Max(values),
		Change:        final.Value - last.Value,
		Direction:     DirectionFlat,
	}

	if last.Value != 0 {
		pct := s.Change / math.Abs(last.Value) * 100
		s.ChangePct = &pct
		switch {
		case pct > flatBandPct:
			s.Direction = DirectionRising
		case pct < -flatBandPct:
			s.Direction = DirectionFalling
		}
		return s, true
	}

	switch {
	case s.Change > 0:
		s.Direction = DirectionRising
	case s.Change < 0:
		s.Direction = DirectionFalling
	}
	return s, true
}
