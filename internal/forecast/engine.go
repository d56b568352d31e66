package forecast

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Engine is the entry point of the forecasting core. It holds only configuration and is
// safe for concurrent use.
type Engine struct {
	cfg    Config
	chain  Chain
	logger zerolog.Logger
}

// NewEngine validates cfg and constructs an engine.
func NewEngine(cfg Config, logger zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid forecast config: %w", err)
	}
	return &Engine{
		cfg:    cfg,
		chain:  NewChain(cfg),
		logger: logger.With().Str("component", "forecast").Logger(),
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Forecast prepares raw observations and forecasts horizon quarters ahead. A horizon of
// zero uses the configured default.
func (e *Engine) Forecast(raw []Observation, horizon int) (*Result, error) {
	series, err := Prepare(raw)
	if err != nil {
		return nil, err
	}
	return e.ForecastSeries(series, horizon)
}

// ForecastSeries forecasts an already prepared series.
func (e *Engine) ForecastSeries(series Series, horizon int) (*Result, error) {
	if series.Len() == 0 {
		return nil, ErrEmptySeries
	}
	horizon = e.cfg.ResolveHorizon(horizon)

	result, err := e.chain.Run(series, horizon)
	if err != nil {
		e.logger.Debug().Err(err).Int("points", series.Len()).Msg("no forecast produced")
		return nil, err
	}

	for _, reason := range result.Failures {
		e.logger.Debug().Str("reason", reason).Msg("model unavailable")
	}
	e.logger.Debug().
		Str("tier", string(result.Tier)).
		Int("points", series.Len()).
		Int("horizon", horizon).
		Str("last_period", series.Last().Period.String()).
		Msg("forecast computed")

	return result, nil
}
