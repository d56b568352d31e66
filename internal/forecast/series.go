package forecast

import (
	"math"
	"sort"
)

// Observation is a raw period/value pair as supplied by a caller.
type Observation struct {
	Period string  `json:"period" yaml:"period"`
	Value  float64 `json:"value" yaml:"value"`
}

// Point is one entry of a prepared series.
type Point struct {
	Period   Period  `json:"period"`
	Value    float64 `json:"value"`
	IsActual bool    `json:"is_actual"`
}

// Features are the engineered regressors derived for one point.
type Features struct {
	Trend       float64
	SeasonalSin float64
	SeasonalCos float64
	Year        float64
}

// Series is an ordered historical series of actual observations.
type Series struct {
	Points []Point
}

// Len returns the number of observations.
func (s Series) Len() int {
	return len(s.Points)
}

// Values returns the observed values in period order.
func (s Series) Values() []float64 {
	values := make([]float64, len(s.Points))
	for i, p := range s.Points {
		values[i] = p.Value
	}
	return values
}

// Last returns the most recent observation.
func (s Series) Last() Point {
	return s.Points[len(s.Points)-1]
}

// FeaturesAt builds the regressors for the period at the given sequential index.
func FeaturesAt(index int, period Period) Features {
	angle := 2 * math.Pi * float64(period.Quarter) / 4
	return Features{
		Trend:       float64(index),
		SeasonalSin: math.Sin(angle),
		SeasonalCos: math.Cos(angle),
		Year:        float64(period.Year),
	}
}

// Features returns the regressors for every historical point.
func (s Series) Features() []Features {
	out := make([]Features, len(s.Points))
	for i, p := range s.Points {
		out[i] = FeaturesAt(i, p.Period)
	}
	return out
}

// FuturePeriods lists the n quarters following the last observation.
func (s Series) FuturePeriods(n int) []Period {
	periods := make([]Period, 0, n)
	next := s.Last().Period
	for i := 0; i < n; i++ {
		next = next.Next()
		periods = append(periods, next)
	}
	return periods
}

// Prepare parses and orders raw observations into a Series.
func Prepare(raw []Observation) (Series, error) {
	if len(raw) == 0 {
		return Series{}, ErrEmptySeries
	}

	points := make([]Point, 0, len(raw))
	for _, obs := range raw {
		period, err := ParsePeriod(obs.Period)
		if err != nil {
			return Series{}, err
		}
		if math.IsNaN(obs.Value) || math.IsInf(obs.Value, 0) {
			return Series{}, &MalformedPeriodError{Label: obs.Period, Reason: "value is not finite"}
		}
		points = append(points, Point{Period: period, Value: obs.Value, IsActual: true})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Period.Before(points[j].Period)
	})
	for i := 1; i < len(points); i++ {
		if points[i].Period == points[i-1].Period {
			return Series{}, &MalformedPeriodError{Label: points[i].Period.String(), Reason: "duplicate period"}
		}
	}

	return Series{Points: points}, nil
}
