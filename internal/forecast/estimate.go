package forecast

// Model names a forecasting model.
type Model string

const (
	// ModelDecomposition is the additive trend + yearly seasonality model.
	ModelDecomposition Model = "decomposition"
	// ModelPolynomial is the degree-2 polynomial regression.
	ModelPolynomial Model = "polynomial"
)

// ModelPoint is a single model's estimate for one future period.
type ModelPoint struct {
	Period Period
	Value  float64
	// Lower and Upper are set only when the model produces a native interval.
	Lower     float64
	Upper     float64
	HasBounds bool
	Trend     float64
	Seasonal  float64
}

// Estimate is either a model's forecast for the horizon or the reason it has none.
type Estimate struct {
	Model  Model
	Points []ModelPoint
	Err    *ModelFitError
	// Performance carries in-sample diagnostics when the model reports them.
	Performance *Performance
}

// Available reports whether the model produced a forecast.
func (e Estimate) Available() bool {
	return e.Err == nil && len(e.Points) > 0
}

// At returns the estimate for the i-th future period.
func (e Estimate) At(i int) (ModelPoint, bool) {
	if !e.Available() || i < 0 || i >= len(e.Points) {
		return ModelPoint{}, false
	}
	return e.Points[i], true
}

func fitted(model Model, points []ModelPoint) Estimate {
	return Estimate{Model: model, Points: points}
}

func unavailable(err *ModelFitError) Estimate {
	return Estimate{Model: err.Model, Err: err}
}
