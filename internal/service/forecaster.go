package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/kickslayer1/bigdatahacathon-2025/internal/forecast"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/metrics"
)

// ResultCache stores forecast results keyed by input fingerprint.
type ResultCache interface {
	Get(ctx context.Context, key string) (*forecast.Result, bool)
	Set(ctx context.Context, key string, result *forecast.Result)
}

// Forecaster runs the engine behind the result cache and records metrics.
type Forecaster struct {
	engine  *forecast.Engine
	cache   ResultCache
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewForecaster wires an engine with optional cache and metrics.
func NewForecaster(engine *forecast.Engine, cache ResultCache, m *metrics.Metrics, logger zerolog.Logger) *Forecaster {
	return &Forecaster{
		engine:  engine,
		cache:   cache,
		metrics: m,
		logger:  logger.With().Str("component", "forecaster").Logger(),
	}
}

// Engine exposes the underlying engine.
func (f *Forecaster) Engine() *forecast.Engine {
	return f.engine
}

// Computed is a forecast result together with its cache key.
type Computed struct {
	Result      *forecast.Result
	Fingerprint string
	Cached      bool
}

// Forecast returns the cached result for identical input or computes a fresh one.
func (f *Forecaster) Forecast(ctx context.Context, series forecast.Series, horizon int) (Computed, error) {
	cfg := f.engine.Config()
	resolved := cfg.ResolveHorizon(horizon)
	out := Computed{Fingerprint: forecast.Fingerprint(series, resolved, cfg)}

	if f.cache != nil {
		if cached, ok := f.cache.Get(ctx, out.Fingerprint); ok {
			out.Result = cached
			out.Cached = true
			return out, nil
		}
	}

	started := time.Now()
	result, err := f.engine.ForecastSeries(series, resolved)
	if err != nil {
		f.metrics.ForecastFailed(failureReason(err))
		return out, err
	}
	f.metrics.ObserveForecast(string(result.Tier), time.Since(started))

	if f.cache != nil {
		f.cache.Set(ctx, out.Fingerprint, result)
	}
	out.Result = result
	return out, nil
}

func failureReason(err error) string {
	var malformed *forecast.MalformedPeriodError
	switch {
	case errors.Is(err, forecast.ErrEmptySeries):
		return "empty_series"
	case errors.Is(err, forecast.ErrInsufficientData):
		return "insufficient_data"
	case errors.As(err, &malformed):
		return "malformed_period"
	default:
		return "other"
	}
}
