package forecast

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	daysPerYear      = 365.25
	secondsPerDay    = 86400.0
	trendPriorScale  = 5.0
	noisePriorScale  = 0.5
	minNoiseVariance = 1e-4
)

// decompositionFit holds the MAP parameters of the trend + seasonality model.
// Time is scaled to [0,1] over the history and values by their absolute maximum.
type decompositionFit struct {
	cfg          Config
	originDays   float64
	spanDays     float64
	scale        float64
	changepoints []float64
	seasonal     bool
	theta        []float64
	noiseVar     float64
	driftRate    float64
	driftScale   float64
}

// FitDecomposition fits the additive trend + yearly seasonality model to the series and
// forecasts the next horizon quarters. Failures are reported as an unavailable Estimate.
func FitDecomposition(series Series, cfg Config, horizon int) Estimate {
	fit, ferr := fitDecomposition(series, cfg)
	if ferr != nil {
		return unavailable(ferr)
	}
	return fitted(ModelDecomposition, fit.predict(series.FuturePeriods(horizon)))
}

func fitDecomposition(series Series, cfg Config) (*decompositionFit, *ModelFitError) {
	n := series.Len()
	if n < 2 {
		return nil, fitFailed(ModelDecomposition, "need at least 2 points, have %d", n)
	}

	values := series.Values()
	if floats.Max(values) == floats.Min(values) {
		return nil, fitFailed(ModelDecomposition, "series is constant")
	}

	scale := 0.0
	for _, v := range values {
		scale = math.Max(scale, math.Abs(v))
	}

	fit := &decompositionFit{
		cfg:        cfg,
		originDays: periodDays(series.Points[0].Period),
		scale:      scale,
		seasonal:   n >= 4,
	}
	fit.spanDays = periodDays(series.Last().Period) - fit.originDays

	t := make([]float64, n)
	y := mat.NewVecDense(n, nil)
	for i, p := range series.Points {
		t[i] = fit.scaledTime(p.Period)
		y.SetVec(i, p.Value/scale)
	}
	fit.changepoints = placeChangepoints(t, cfg)

	priors := fit.priorScales()
	design := mat.NewDense(n, len(priors), nil)
	for i, p := range series.Points {
		design.SetRow(i, fit.row(t[i], p.Period))
	}

	noiseVar := noisePriorScale * noisePriorScale
	converged := false
	var theta *mat.VecDense
	for iter := 0; iter < cfg.MaxIterations; iter++ {
		var ok bool
		theta, ok = ridgeSolve(design, y, priors, noiseVar)
		if !ok {
			return nil, fitFailed(ModelDecomposition, "normal equations are singular")
		}

		var estimate, residual mat.VecDense
		estimate.MulVec(design, theta)
		residual.SubVec(y, &estimate)
		rss := mat.Dot(&residual, &residual)

		next := updateNoiseVariance(n, rss)
		if math.Abs(next-noiseVar) <= cfg.Tolerance*math.Max(1, noiseVar) {
			noiseVar = next
			converged = true
			break
		}
		noiseVar = next
	}
	if !converged {
		return nil, fitFailed(ModelDecomposition, "did not converge after %d iterations", cfg.MaxIterations)
	}

	fit.theta = mat.Col(nil, 0, theta)
	for _, v := range fit.theta {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fitFailed(ModelDecomposition, "non-finite coefficients")
		}
	}
	fit.noiseVar = noiseVar

	if k := len(fit.changepoints); k > 0 {
		deltas := fit.theta[2 : 2+k]
		sum := 0.0
		for _, d := range deltas {
			sum += math.Abs(d)
		}
		fit.driftRate = float64(k)
		fit.driftScale = sum / float64(k)
	}

	return fit, nil
}

// updateNoiseVariance maximises the posterior in the noise variance for a fixed residual
// sum of squares under a half-normal prior on the noise scale.
func updateNoiseVariance(n int, rss float64) float64 {
	s2 := noisePriorScale * noisePriorScale
	nf := float64(n)
	u := s2 * (-nf + math.Sqrt(nf*nf+4*rss/s2)) / 2
	return math.Max(u, minNoiseVariance)
}

func ridgeSolve(design *mat.Dense, y *mat.VecDense, priors []float64, noiseVar float64) (*mat.VecDense, bool) {
	var gram mat.SymDense
	gram.SymOuterK(1, design.T())
	for j, s := range priors {
		gram.SetSym(j, j, gram.At(j, j)+noiseVar/(s*s))
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); !ok {
		return nil, false
	}

	var rhs mat.VecDense
	rhs.MulVec(design.T(), y)

	var theta mat.VecDense
	if err := chol.SolveVecTo(&theta, &rhs); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, false
		}
	}
	return &theta, true
}

// placeChangepoints spreads changepoints evenly over the leading share of the history.
func placeChangepoints(t []float64, cfg Config) []float64 {
	hist := int(math.Floor(float64(len(t)) * cfg.ChangepointRange))
	count := cfg.MaxChangepoints
	if count+1 > hist {
		count = hist - 1
	}
	if count <= 0 {
		return nil
	}

	cps := make([]float64, 0, count)
	for i := 1; i <= count; i++ {
		idx := int(math.RoundToEven(float64(i) * float64(hist-1) / float64(count)))
		cps = append(cps, t[idx])
	}
	return cps
}

func (f *decompositionFit) priorScales() []float64 {
	priors := []float64{trendPriorScale, trendPriorScale}
	for range f.changepoints {
		priors = append(priors, f.cfg.ChangepointPriorScale)
	}
	if f.seasonal {
		for i := 0; i < 2*f.cfg.FourierOrder; i++ {
			priors = append(priors, f.cfg.SeasonalityPriorScale)
		}
	}
	return priors
}

func (f *decompositionFit) trendColumns() int {
	return 2 + len(f.changepoints)
}

func (f *decompositionFit) scaledTime(p Period) float64 {
	return (periodDays(p) - f.originDays) / f.spanDays
}

func (f *decompositionFit) row(t float64, p Period) []float64 {
	row := make([]float64, 0, f.trendColumns()+2*f.cfg.FourierOrder)
	row = append(row, 1, t)
	for _, cp := range f.changepoints {
		row = append(row, math.Max(0, t-cp))
	}
	if f.seasonal {
		day := periodDays(p)
		for k := 1; k <= f.cfg.FourierOrder; k++ {
			angle := 2 * math.Pi * float64(k) * day / daysPerYear
			row = append(row, math.Sin(angle), math.Cos(angle))
		}
	}
	return row
}

func (f *decompositionFit) predict(periods []Period) []ModelPoint {
	z := distuv.UnitNormal.Quantile(0.5 + f.cfg.IntervalWidth/2)
	split := f.trendColumns()

	points := make([]ModelPoint, 0, len(periods))
	for _, period := range periods {
		t := f.scaledTime(period)
		row := f.row(t, period)

		trend := floats.Dot(row[:split], f.theta[:split]) * f.scale
		seasonal := 0.0
		if len(row) > split {
			seasonal = floats.Dot(row[split:], f.theta[split:]) * f.scale
		}
		value := trend + seasonal

		h := math.Max(0, t-1)
		drift := f.driftRate * 2 * f.driftScale * f.driftScale * h * h * h / 3
		half := z * math.Sqrt(f.noiseVar+drift) * f.scale

		points = append(points, ModelPoint{
			Period:    period,
			Value:     value,
			Lower:     value - half,
			Upper:     value + half,
			HasBounds: true,
			Trend:     trend,
			Seasonal:  seasonal,
		})
	}
	return points
}

func periodDays(p Period) float64 {
	return float64(p.Start().Unix()) / secondsPerDay
}
