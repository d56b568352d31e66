package forecast

import (
	"fmt"
	"math"
)

// Tier names the stage of the fallback chain that produced a result.
type Tier string

const (
	TierEnsemble          Tier = "Ensemble"
	TierDecompositionOnly Tier = "DecompositionOnly"
	TierPolynomialOnly    Tier = "PolynomialOnly"
	TierNaiveTrend        Tier = "NaiveTrend"
)

// MLEnabled reports whether at least one fitted model contributed.
func (t Tier) MLEnabled() bool {
	return t != TierNaiveTrend && t != ""
}

// Confidence is the qualitative label attached to a predicted point.
type Confidence string

const (
	ConfidenceLow    Confidence = "Low"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceHigh   Confidence = "High"
)

// Rank orders confidence labels, Low < Medium < High.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// ConfidenceFor returns the label a tier carries.
func ConfidenceFor(tier Tier) Confidence {
	switch tier {
	case TierEnsemble:
		return ConfidenceHigh
	case TierDecompositionOnly, TierPolynomialOnly:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Combiner merges the per-period estimates of both models.
type Combiner struct {
	// Weight is the share of the decomposition model when both models are present.
	Weight float64
}

// NewCombiner returns a combiner with the configured decomposition weight.
func NewCombiner(cfg Config) Combiner {
	return Combiner{Weight: cfg.DecompositionWeight}
}

// TierOf picks the tier implied by which models are available.
func (c Combiner) TierOf(decomposition, polynomial Estimate) Tier {
	switch {
	case decomposition.Available() && polynomial.Available():
		return TierEnsemble
	case decomposition.Available():
		return TierDecompositionOnly
	case polynomial.Available():
		return TierPolynomialOnly
	default:
		return TierNaiveTrend
	}
}

// Combine returns the unclamped estimate for period i under the given tier.
func (c Combiner) Combine(tier Tier, decomposition, polynomial Estimate, i int) (float64, error) {
	d, dok := decomposition.At(i)
	p, pok := polynomial.At(i)

	switch tier {
	case TierEnsemble:
		if !dok || !pok {
			return 0, fmt.Errorf("ensemble needs both estimates for step %d", i+1)
		}
		return c.Weight*d.Value + (1-c.Weight)*p.Value, nil
	case TierDecompositionOnly:
		if !dok {
			return 0, fmt.Errorf("no decomposition estimate for step %d", i+1)
		}
		return d.Value, nil
	case TierPolynomialOnly:
		if !pok {
			return 0, fmt.Errorf("no polynomial estimate for step %d", i+1)
		}
		return p.Value, nil
	default:
		return 0, fmt.Errorf("tier %q has no model estimates", tier)
	}
}

// Method describes the combination policy for display.
func (c Combiner) Method() string {
	w := math.Round(c.Weight * 100)
	return fmt.Sprintf("Weighted Average (Decomposition %.0f%% + Polynomial %.0f%%)", w, 100-w)
}

// DecompositionLeads reports whether the decomposition model is the majority contributor.
func (c Combiner) DecompositionLeads() bool {
	return c.Weight > 0.5
}
