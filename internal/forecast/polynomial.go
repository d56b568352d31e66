package forecast

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// singularCutoff is the relative threshold below which singular values are treated as zero.
const singularCutoff = 1e-10

// Performance holds in-sample fit diagnostics of the polynomial model. They describe how
// well the curve reproduces the history, not how well it generalises.
type Performance struct {
	R2       *float64 `json:"r2_score"`
	MAE      float64  `json:"mean_absolute_error"`
	Accuracy *float64 `json:"accuracy_percent"`
}

type polynomialFit struct {
	weights   []float64
	intercept float64
}

// FitPolynomial fits a degree-2 polynomial regression over trend, seasonal and calendar
// features and forecasts the next horizon quarters.
func FitPolynomial(series Series, horizon int) Estimate {
	fit, perf, ferr := fitPolynomial(series)
	if ferr != nil {
		return unavailable(ferr)
	}

	periods := series.FuturePeriods(horizon)
	points := make([]ModelPoint, 0, len(periods))
	for k, period := range periods {
		value := fit.predict(FeaturesAt(series.Len()+k, period))
		points = append(points, ModelPoint{Period: period, Value: value, Trend: value})
	}

	est := fitted(ModelPolynomial, points)
	est.Performance = perf
	return est
}

// polynomialTerms expands the features into all monomials of degree one and two, in
// lexicographic order of the base features.
func polynomialTerms(f Features) []float64 {
	base := []float64{f.Trend, f.SeasonalSin, f.SeasonalCos, f.Year}
	terms := make([]float64, 0, len(base)*(len(base)+3)/2)
	terms = append(terms, base...)
	for i := range base {
		for j := i; j < len(base); j++ {
			terms = append(terms, base[i]*base[j])
		}
	}
	return terms
}

func fitPolynomial(series Series) (*polynomialFit, *Performance, *ModelFitError) {
	n := series.Len()
	if n < 2 {
		return nil, nil, fitFailed(ModelPolynomial, "need at least 2 points, have %d", n)
	}

	values := series.Values()
	if floats.Max(values) == floats.Min(values) {
		return nil, nil, fitFailed(ModelPolynomial, "series is constant")
	}

	rows := make([][]float64, n)
	for i, f := range series.Features() {
		rows[i] = polynomialTerms(f)
	}
	m := len(rows[0])

	// Centre the columns and target so the intercept drops out of the least-squares problem.
	means := make([]float64, m)
	for _, row := range rows {
		floats.Add(means, row)
	}
	floats.Scale(1/float64(n), means)
	yMean := stat.Mean(values, nil)

	design := mat.NewDense(n, m, nil)
	centred := make([]float64, n)
	for i, row := range rows {
		for j, v := range row {
			design.Set(i, j, v-means[j])
		}
		centred[i] = values[i] - yMean
	}

	var svd mat.SVD
	if ok := svd.Factorize(design, mat.SVDThin); !ok {
		return nil, nil, fitFailed(ModelPolynomial, "singular value decomposition failed")
	}
	sv := svd.Values(nil)
	if len(sv) == 0 || sv[0] == 0 {
		return nil, nil, fitFailed(ModelPolynomial, "features carry no variation")
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// Minimum-norm solution: w = V * diag(1/s) * U^T * y over the numerically non-zero spectrum.
	weights := make([]float64, m)
	cutoff := singularCutoff * sv[0]
	for k, s := range sv {
		if s <= cutoff {
			continue
		}
		coef := floats.Dot(mat.Col(nil, k, &u), centred) / s
		floats.AddScaled(weights, coef, mat.Col(nil, k, &v))
	}

	fit := &polynomialFit{
		weights:   weights,
		intercept: yMean - floats.Dot(means, weights),
	}
	if !finite(fit.intercept) || !allFinite(weights) {
		return nil, nil, fitFailed(ModelPolynomial, "non-finite coefficients")
	}

	estimates := make([]float64, n)
	absErr := 0.0
	for i, f := range series.Features() {
		estimates[i] = fit.predict(f)
		absErr += math.Abs(values[i] - estimates[i])
	}

	perf := &Performance{MAE: absErr / float64(n)}
	if r2 := stat.RSquaredFrom(estimates, values, nil); finite(r2) {
		accuracy := r2 * 100
		perf.R2 = &r2
		perf.Accuracy = &accuracy
	}

	return fit, perf, nil
}

func (f *polynomialFit) predict(features Features) float64 {
	return f.intercept + floats.Dot(polynomialTerms(features), f.weights)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func allFinite(values []float64) bool {
	for _, v := range values {
		if !finite(v) {
			return false
		}
	}
	return true
}
