package forecast

import "fmt"

// State is a step of the fallback chain.
type State string

const (
	StateTryDecomposition State = "TryDecomposition"
	StateTryPolynomial    State = "TryPolynomial"
	StateTryNaive         State = "TryNaive"
	StateDone             State = "Done"
)

// PredictedPoint is one future period of a forecast. Component fields are nil when the
// corresponding model did not produce an estimate.
type PredictedPoint struct {
	Period        Period     `json:"period"`
	Value         float64    `json:"value"`
	Lower         float64    `json:"lower"`
	Upper         float64    `json:"upper"`
	Confidence    Confidence `json:"confidence"`
	Decomposition *float64   `json:"decomposition,omitempty"`
	Polynomial    *float64   `json:"polynomial,omitempty"`
}

// ModelsUsed records which fitted models contributed.
type ModelsUsed struct {
	Decomposition bool   `json:"decomposition"`
	Polynomial    bool   `json:"polynomial"`
	Method        string `json:"method"`
}

// Result is the outcome of one forecast invocation.
type Result struct {
	Predictions []PredictedPoint `json:"predictions"`
	Performance *Performance     `json:"performance,omitempty"`
	Tier        Tier             `json:"tier"`
	Models      ModelsUsed       `json:"models"`
	// Trace lists the chain states in the order they were entered.
	Trace []State `json:"trace"`
	// Failures holds the reasons fitted models were unavailable.
	Failures []string `json:"failures,omitempty"`
}

// Chain runs decomposition, polynomial and naive extrapolation in order and builds the
// result from the richest stage that succeeded.
type Chain struct {
	cfg       Config
	combiner  Combiner
	estimator Estimator
}

// NewChain returns a chain for the given configuration.
func NewChain(cfg Config) Chain {
	return Chain{cfg: cfg, combiner: NewCombiner(cfg), estimator: NewEstimator(cfg)}
}

// Run forecasts horizon quarters after the series. Only ErrInsufficientData escapes it;
// model failures move the chain forward.
func (c Chain) Run(series Series, horizon int) (*Result, error) {
	var (
		decomposition Estimate
		polynomial    Estimate
		naive         []ModelPoint
		trace         []State
	)

	state := StateTryDecomposition
	if series.Len() < 2 {
		state = StateTryNaive
	}

	for state != StateDone {
		trace = append(trace, state)
		switch state {
		case StateTryDecomposition:
			decomposition = FitDecomposition(series, c.cfg, horizon)
			// The polynomial fit is the ensemble partner as well as the next fallback.
			state = StateTryPolynomial
		case StateTryPolynomial:
			polynomial = FitPolynomial(series, horizon)
			if decomposition.Available() || polynomial.Available() {
				state = StateDone
			} else {
				state = StateTryNaive
			}
		case StateTryNaive:
			points, err := Naive(series, horizon, c.cfg.NaiveWindow)
			if err != nil {
				return nil, err
			}
			naive = points
			state = StateDone
		default:
			return nil, fmt.Errorf("forecast: unknown chain state %q", state)
		}
	}
	trace = append(trace, StateDone)

	tier := c.combiner.TierOf(decomposition, polynomial)
	result := &Result{
		Predictions: make([]PredictedPoint, 0, horizon),
		Tier:        tier,
		Trace:       trace,
		Models: ModelsUsed{
			Decomposition: decomposition.Available(),
			Polynomial:    polynomial.Available(),
			Method:        c.combiner.Method(),
		},
	}
	for _, est := range []Estimate{decomposition, polynomial} {
		if est.Err != nil {
			result.Failures = append(result.Failures, est.Err.Error())
		}
	}
	if polynomial.Available() {
		result.Performance = polynomial.Performance
	}

	confidence := ConfidenceFor(tier)
	for i, period := range series.FuturePeriods(horizon) {
		var (
			value float64
			d     ModelPoint
		)
		if tier == TierNaiveTrend {
			value = naive[i].Value
		} else {
			v, err := c.combiner.Combine(tier, decomposition, polynomial, i)
			if err != nil {
				return nil, fmt.Errorf("forecast: %w", err)
			}
			value = v
			d, _ = decomposition.At(i)
		}

		band := c.estimator.Bounds(tier, value, d)
		point := PredictedPoint{
			Period:     period,
			Value:      band.Value,
			Lower:      band.Lower,
			Upper:      band.Upper,
			Confidence: confidence,
		}
		if dp, ok := decomposition.At(i); ok {
			v := dp.Value
			point.Decomposition = &v
		}
		if pp, ok := polynomial.At(i); ok {
			v := pp.Value
			point.Polynomial = &v
		}
		result.Predictions = append(result.Predictions, point)
	}

	return result, nil
}
