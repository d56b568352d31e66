package forecast

import "math"

// PredictionPayload is the wire form of a predicted point. Amounts are whole units.
type PredictionPayload struct {
	Quarter                 string     `json:"quarter"`
	PredictedValue          int64      `json:"predicted_value"`
	DecompositionPrediction *int64     `json:"prophet_prediction"`
	PolynomialPrediction    *int64     `json:"linear_prediction"`
	ConfidenceLevel         Confidence `json:"confidence_level"`
	UpperBound              int64      `json:"upper_bound"`
	LowerBound              int64      `json:"lower_bound"`
	IsPrediction            bool       `json:"is_prediction"`
}

// PerformancePayload carries the rounded diagnostics; fields are null when undefined.
type PerformancePayload struct {
	R2Score           *float64 `json:"r2_score"`
	MeanAbsoluteError *float64 `json:"mean_absolute_error"`
	ModelAccuracy     *float64 `json:"model_accuracy"`
}

// ModelsUsedPayload reports model participation.
type ModelsUsedPayload struct {
	DecompositionModel bool   `json:"decomposition_model"`
	PolynomialModel    bool   `json:"polynomial_model"`
	EnsembleMethod     string `json:"ensemble_method"`
}

// Payload is the response document of a forecast.
type Payload struct {
	Predictions      []PredictionPayload `json:"predictions"`
	ModelPerformance PerformancePayload  `json:"model_performance"`
	ModelsUsed       ModelsUsedPayload   `json:"models_used"`
	TierUsed         Tier                `json:"tier_used"`
}

// NewPayload renders a result for transport.
func NewPayload(r *Result) Payload {
	payload := Payload{
		Predictions: make([]PredictionPayload, 0, len(r.Predictions)),
		ModelsUsed: ModelsUsedPayload{
			DecompositionModel: r.Models.Decomposition,
			PolynomialModel:    r.Models.Polynomial,
			EnsembleMethod:     r.Models.Method,
		},
		TierUsed: r.Tier,
	}

	for _, p := range r.Predictions {
		payload.Predictions = append(payload.Predictions, PredictionPayload{
			Quarter:                 p.Period.String(),
			PredictedValue:          wholeUnits(p.Value),
			DecompositionPrediction: optionalUnits(p.Decomposition),
			PolynomialPrediction:    optionalUnits(p.Polynomial),
			ConfidenceLevel:         p.Confidence,
			UpperBound:              wholeUnits(p.Upper),
			LowerBound:              wholeUnits(p.Lower),
			IsPrediction:            true,
		})
	}

	if perf := r.Performance; perf != nil {
		mae := roundTo(perf.MAE, 2)
		payload.ModelPerformance.MeanAbsoluteError = &mae
		if perf.R2 != nil {
			r2 := roundTo(*perf.R2, 3)
			payload.ModelPerformance.R2Score = &r2
		}
		if perf.Accuracy != nil {
			acc := roundTo(*perf.Accuracy, 1)
			payload.ModelPerformance.ModelAccuracy = &acc
		}
	}

	return payload
}

// wholeUnits saturates at MaxInt64; converting larger floats is implementation defined.
func wholeUnits(v float64) int64 {
	v = math.Round(v)
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= math.MaxInt64:
		return math.MaxInt64
	}
	return int64(v)
}

func optionalUnits(v *float64) *int64 {
	if v == nil {
		return nil
	}
	units := wholeUnits(*v)
	return &units
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
