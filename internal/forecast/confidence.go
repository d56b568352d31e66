package forecast

import "math"

// Band is a rounded predicted value with its interval.
type Band struct {
	Value float64
	Lower float64
	Upper float64
}

// Estimator attaches uncertainty bounds to combined values.
type Estimator struct {
	Fraction float64
	combiner Combiner
}

// NewEstimator builds an estimator for the configured band and weighting.
func NewEstimator(cfg Config) Estimator {
	return Estimator{Fraction: cfg.BandFraction, combiner: NewCombiner(cfg)}
}

// Bounds clamps value to be non-negative and derives its interval. Native decomposition
// bounds are used when that model is the sole or majority contributor; otherwise a
// symmetric fractional band is applied. All three numbers are rounded to whole units.
func (e Estimator) Bounds(tier Tier, value float64, d ModelPoint) Band {
	value = math.Max(0, value)

	var lower, upper float64
	switch {
	case d.HasBounds && (tier == TierDecompositionOnly || tier == TierEnsemble && e.combiner.DecompositionLeads()):
		// Native half-widths around the final value; identical to the native interval
		// when decomposition is the only contributor and was not clamped.
		lower = value - (d.Value - d.Lower)
		upper = value + (d.Upper - d.Value)
	default:
		half := e.Fraction * value
		lower, upper = value-half, value+half
	}

	return Band{
		Value: math.Round(value),
		Lower: math.Round(math.Max(0, lower)),
		Upper: math.Round(math.Max(0, upper)),
	}
}
