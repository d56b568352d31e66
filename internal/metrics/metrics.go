package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors exported by tradecast.
type Metrics struct {
	Registry *prometheus.Registry

	ForecastsByTier *prometheus.CounterVec
	ForecastErrors  *prometheus.CounterVec
	ForecastLatency prometheus.Histogram

	CacheLookups *prometheus.CounterVec

	RefreshRuns     *prometheus.CounterVec
	AlertsSent      *prometheus.CounterVec
	LastRefreshTime prometheus.Gauge

	HTTPRequests *prometheus.HistogramVec
	HTTPRejected *prometheus.CounterVec
}

// New creates every collector on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		ForecastsByTier: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradecast_forecasts_total",
				Help: "Forecasts produced, by fallback tier",
			},
			[]string{"tier"},
		),
		ForecastErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradecast_forecast_errors_total",
				Help: "Forecast requests that produced no prediction, by reason",
			},
			[]string{"reason"},
		),
		ForecastLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradecast_forecast_duration_seconds",
			Help:    "Wall time of one forecast chain run",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradecast_cache_lookups_total",
				Help: "Forecast cache lookups by layer and outcome",
			},
			[]string{"layer", "outcome"},
		),
		RefreshRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradecast_refresh_series_total",
				Help: "Series processed by the refresh service, by outcome",
			},
			[]string{"outcome"},
		),
		AlertsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradecast_alerts_total",
				Help: "Alerts dispatched, by kind",
			},
			[]string{"kind"},
		),
		LastRefreshTime: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tradecast_last_refresh_timestamp_seconds",
			Help: "Unix time of the last completed refresh cycle",
		}),
		HTTPRequests: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradecast_http_request_duration_seconds",
				Help:    "HTTP request latency by route and status",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method", "status"},
		),
		HTTPRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradecast_http_rejected_total",
				Help: "Requests rejected before reaching a handler",
			},
			[]string{"reason"},
		),
	}
}

// ObserveForecast records one successful forecast.
func (m *Metrics) ObserveForecast(tier string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ForecastsByTier.WithLabelValues(tier).Inc()
	m.ForecastLatency.Observe(elapsed.Seconds())
}

// ForecastFailed counts a forecast that produced no prediction.
func (m *Metrics) ForecastFailed(reason string) {
	if m == nil {
		return
	}
	m.ForecastErrors.WithLabelValues(reason).Inc()
}

// CacheResult implements cache.Recorder.
func (m *Metrics) CacheResult(layer string, hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.CacheLookups.WithLabelValues(layer, outcome).Inc()
}

// RefreshOutcome counts one processed series.
func (m *Metrics) RefreshOutcome(outcome string) {
	if m == nil {
		return
	}
	m.RefreshRuns.WithLabelValues(outcome).Inc()
}

// RefreshCompleted stamps the end of a refresh cycle.
func (m *Metrics) RefreshCompleted(at time.Time) {
	if m == nil {
		return
	}
	m.LastRefreshTime.Set(float64(at.Unix()))
}

// AlertSent counts one dispatched alert.
func (m *Metrics) AlertSent(kind string) {
	if m == nil {
		return
	}
	m.AlertsSent.WithLabelValues(kind).Inc()
}
