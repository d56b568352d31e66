package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kickslayer1/bigdatahacathon-2025/internal/forecast"
)

// SeriesRecord identifies a stored quarterly series, e.g. kind "export" name "coffee".
type SeriesRecord struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	Unit      string    `json:"unit"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SeriesPoint is one stored actual observation.
type SeriesPoint struct {
	Period forecast.Period
	Value  decimal.Decimal
}

// ForecastRun is a persisted forecast for one series.
type ForecastRun struct {
	ID          uuid.UUID
	SeriesID    int64
	SeriesKind  string
	SeriesName  string
	Fingerprint string
	Tier        string
	Horizon     int
	R2          *float64
	MAE         *float64
	Accuracy    *float64
	CreatedAt   time.Time
	Points      []ForecastPoint
}

// ForecastPoint is one predicted period of a run.
type ForecastPoint struct {
	Period        forecast.Period
	Value         decimal.Decimal
	Lower         decimal.Decimal
	Upper         decimal.Decimal
	Confidence    string
	Decomposition *decimal.Decimal
	Polynomial    *decimal.Decimal
}

// AlertRecord captures an emitted alert for de-duplication/auditing.
type AlertRecord struct {
	ID        int64
	SeriesID  int64
	Kind      string
	Period    forecast.Period
	Message   string
	Channels  []string
	CreatedAt time.Time
}

// Observations converts stored points into forecast input.
func Observations(points []SeriesPoint) []forecast.Observation {
	out := make([]forecast.Observation, len(points))
	for i, p := range points {
		out[i] = forecast.Observation{Period: p.Period.String(), Value: p.Value.InexactFloat64()}
	}
	return out
}

// PointsFromObservations converts parsed observations into storable points.
func PointsFromObservations(obs []forecast.Observation) ([]SeriesPoint, error) {
	out := make([]SeriesPoint, 0, len(obs))
	for _, o := range obs {
		period, err := forecast.ParsePeriod(o.Period)
		if err != nil {
			return nil, err
		}
		out = append(out, SeriesPoint{Period: period, Value: decimal.NewFromFloat(o.Value)})
	}
	return out, nil
}

// NewForecastRun flattens a forecast result into a run ready for persistence.
func NewForecastRun(seriesID int64, fingerprint string, result *forecast.Result) ForecastRun {
	run := ForecastRun{
		ID:          uuid.New(),
		SeriesID:    seriesID,
		Fingerprint: fingerprint,
		Tier:        string(result.Tier),
		Horizon:     len(result.Predictions),
		CreatedAt:   time.Now().UTC(),
	}
	if perf := result.Performance; perf != nil {
		mae := perf.MAE
		run.MAE = &mae
		run.R2 = perf.R2
		run.Accuracy = perf.Accuracy
	}

	for _, p := range result.Predictions {
		run.Points = append(run.Points, ForecastPoint{
			Period:        p.Period,
			Value:         decimal.NewFromFloat(p.Value),
			Lower:         decimal.NewFromFloat(p.Lower),
			Upper:         decimal.NewFromFloat(p.Upper),
			Confidence:    string(p.Confidence),
			Decomposition: optionalDecimal(p.Decomposition),
			Polynomial:    optionalDecimal(p.Polynomial),
		})
	}
	return run
}

func optionalDecimal(v *float64) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := decimal.NewFromFloat(*v).Round(4)
	return &d
}
