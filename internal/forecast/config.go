package forecast

import (
	"errors"
	"fmt"
)

// Config tunes the forecasting engine. The zero value is not usable; start from DefaultConfig.
type Config struct {
	Horizon               int     `mapstructure:"horizon"`
	DecompositionWeight   float64 `mapstructure:"decomposition_weight"`
	BandFraction          float64 `mapstructure:"band_fraction"`
	ChangepointPriorScale float64 `mapstructure:"changepoint_prior_scale"`
	SeasonalityPriorScale float64 `mapstructure:"seasonality_prior_scale"`
	IntervalWidth         float64 `mapstructure:"interval_width"`
	FourierOrder          int     `mapstructure:"fourier_order"`
	MaxChangepoints       int     `mapstructure:"max_changepoints"`
	ChangepointRange      float64 `mapstructure:"changepoint_range"`
	MaxIterations         int     `mapstructure:"max_iterations"`
	Tolerance             float64 `mapstructure:"tolerance"`
	NaiveWindow           int     `mapstructure:"naive_window"`
	TradeWindow           int     `mapstructure:"trade_window"`
	TradeWeight           float64 `mapstructure:"trade_weight"`
}

// DefaultConfig mirrors the commodity forecasting defaults.
func DefaultConfig() Config {
	return Config{
		Horizon:               2,
		DecompositionWeight:   0.6,
		BandFraction:          0.15,
		ChangepointPriorScale: 0.1,
		SeasonalityPriorScale: 10,
		IntervalWidth:         0.95,
		FourierOrder:          2,
		MaxChangepoints:       25,
		ChangepointRange:      0.8,
		MaxIterations:         200,
		Tolerance:             1e-10,
		NaiveWindow:           4,
		TradeWindow:           8,
		TradeWeight:           0.3,
	}
}

// Validate rejects settings the models cannot work with.
func (c Config) Validate() error {
	if c.Horizon <= 0 {
		return errors.New("forecast.horizon must be greater than zero")
	}
	if c.DecompositionWeight < 0 || c.DecompositionWeight > 1 {
		return fmt.Errorf("forecast.decomposition_weight must be within [0,1], got %v", c.DecompositionWeight)
	}
	if c.BandFraction < 0 {
		return errors.New("forecast.band_fraction cannot be negative")
	}
	if c.ChangepointPriorScale <= 0 || c.SeasonalityPriorScale <= 0 {
		return errors.New("forecast prior scales must be greater than zero")
	}
	if c.IntervalWidth <= 0 || c.IntervalWidth >= 1 {
		return fmt.Errorf("forecast.interval_width must be within (0,1), got %v", c.IntervalWidth)
	}
	if c.FourierOrder < 1 {
		return errors.New("forecast.fourier_order must be at least 1")
	}
	if c.ChangepointRange <= 0 || c.ChangepointRange > 1 {
		return errors.New("forecast.changepoint_range must be within (0,1]")
	}
	if c.MaxChangepoints < 0 {
		return errors.New("forecast.max_changepoints cannot be negative")
	}
	if c.MaxIterations <= 0 {
		return errors.New("forecast.max_iterations must be greater than zero")
	}
	if c.NaiveWindow < 2 {
		return errors.New("forecast.naive_window must be at least 2")
	}
	if c.TradeWindow < 3 {
		return errors.New("forecast.trade_window must be at least 3")
	}
	if c.TradeWeight < 0 || c.TradeWeight > 1 {
		return fmt.Errorf("forecast.trade_weight must be within [0,1], got %v", c.TradeWeight)
	}
	return nil
}

// ResolveHorizon returns either the caller override or the configured horizon.
func (c Config) ResolveHorizon(override int) int {
	if override > 0 {
		return override
	}
	return c.Horizon
}
