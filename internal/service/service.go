package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/kickslayer1/bigdatahacathon-2025/internal/alerting"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/config"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/forecast"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/metrics"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/scheduler"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/storage"
)

// Outcome labels for processed series.
const (
	OutcomeForecast = "forecast"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// Deps bundles the collaborators of the refresh service. Only Forecaster and Series
// are required.
type Deps struct {
	Scheduler  *scheduler.Scheduler
	Forecaster *Forecaster
	Series     storage.SeriesStore
	Runs       storage.RunStore
	Alerts     storage.AlertStore
	Locker     storage.AdvisoryLocker
	Notifier   alerting.Notifier
	Metrics    *metrics.Metrics
}

// Service refreshes forecasts for every stored series, persists them and raises alerts.
type Service struct {
	scheduler  *scheduler.Scheduler
	forecaster *Forecaster
	series     storage.SeriesStore
	runs       storage.RunStore
	alertStore storage.AlertStore
	locker     storage.AdvisoryLocker
	notifier   alerting.Notifier
	metrics    *metrics.Metrics
	logger     zerolog.Logger

	horizon         int
	swing           decimal.Decimal
	alertOnDegraded bool
	channels        []string
	alertsOn        bool
	lockKey         int64
	now             func() time.Time
}

// SeriesReport summarises the refresh of one series.
type SeriesReport struct {
	Kind    string
	Name    string
	Outcome string
	Tier    forecast.Tier
	Cached  bool
	Alerts  []string
	Err     error
}

// Report summarises a refresh cycle.
type Report struct {
	Started  time.Time
	Finished time.Time
	Series   []SeriesReport
}

// Count returns how many series ended with outcome.
func (r Report) Count(outcome string) int {
	n := 0
	for _, s := range r.Series {
		if s.Outcome == outcome {
			n++
		}
	}
	return n
}

// New constructs the refresh service.
func New(cfg *config.Config, deps Deps, logger zerolog.Logger) (*Service, error) {
	if deps.Forecaster == nil {
		return nil, errors.New("service: forecaster is required")
	}
	if deps.Series == nil {
		return nil, errors.New("service: series store is required")
	}

	swing := decimal.Zero
	if cfg.Alerting.SwingPct > 0 {
		swing = decimal.NewFromFloat(cfg.Alerting.SwingPct)
	}

	return &Service{
		scheduler:       deps.Scheduler,
		forecaster:      deps.Forecaster,
		series:          deps.Series,
		runs:            deps.Runs,
		alertStore:      deps.Alerts,
		locker:          deps.Locker,
		notifier:        deps.Notifier,
		metrics:         deps.Metrics,
		logger:          logger.With().Str("component", "service").Logger(),
		horizon:         cfg.Forecast.Horizon,
		swing:           swing,
		alertOnDegraded: cfg.Alerting.AlertOnDegraded,
		channels:        cfg.Alerting.Channels,
		alertsOn:        cfg.Alerting.Enabled,
		lockKey:         cfg.Scheduler.AdvisoryLockKey,
		now:             func() time.Time { return time.Now().UTC() },
	}, nil
}

// Run begins the scheduled refresh loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.Tick)
}

// Tick 执行一次调度刷新，持有 advisory lock 时才运行。
func (s *Service) Tick(ctx context.Context, slot time.Time) error {
	if s.locker == nil || s.lockKey == 0 {
		_, err := s.RefreshAll(ctx)
		return err
	}

	var refreshErr error
	acquired, err := s.locker.WithAdvisoryLock(ctx, s.lockKey, func(ctx context.Context) error {
		_, refreshErr = s.RefreshAll(ctx)
		return nil
	})
	if err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	if !acquired {
		s.logger.Debug().Time("slot", slot).Msg("skip slot because advisory lock held elsewhere")
		return nil
	}
	return refreshErr
}

// RefreshAll forecasts every stored series. Failures of individual series are
// reported, not returned; the error covers only listing the series.
func (s *Service) RefreshAll(ctx context.Context) (Report, error) {
	report := Report{Started: s.now()}

	records, err := s.series.ListSeries(ctx)
	if err != nil {
		return report, fmt.Errorf("list series: %w", err)
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		sr := s.ProcessSeries(ctx, rec)
		s.metrics.RefreshOutcome(sr.Outcome)
		report.Series = append(report.Series, sr)
	}

	report.Finished = s.now()
	s.metrics.RefreshCompleted(report.Finished)
	s.logger.Info().
		Int("series", len(records)).
		Int("forecast", report.Count(OutcomeForecast)).
		Int("skipped", report.Count(OutcomeSkipped)).
		Int("failed", report.Count(OutcomeFailed)).
		Dur("elapsed", report.Finished.Sub(report.Started)).
		Msg("refresh cycle complete")
	return report, nil
}

// ProcessSeries forecasts one series, persists the run and raises any alerts.
func (s *Service) ProcessSeries(ctx context.Context, rec storage.SeriesRecord) SeriesReport {
	sr := SeriesReport{Kind: rec.Kind, Name: rec.Name}
	log := s.logger.With().Str("series", rec.Kind+"/"+rec.Name).Logger()

	points, err := s.series.ListPoints(ctx, rec.ID)
	if err != nil {
		sr.Outcome, sr.Err = OutcomeFailed, fmt.Errorf("list points: %w", err)
		log.Error().Err(sr.Err).Msg("refresh failed")
		return sr
	}

	series, err := forecast.Prepare(storage.Observations(points))
	if err == nil {
		var computed Computed
		computed, err = s.forecaster.Forecast(ctx, series, s.horizon)
		if err == nil {
			return s.finish(ctx, log, rec, series, computed, sr)
		}
	}

	if errors.Is(err, forecast.ErrEmptySeries) || errors.Is(err, forecast.ErrInsufficientData) {
		sr.Outcome = OutcomeSkipped
		log.Info().Int("points", len(points)).Msg("no prediction available")
		return sr
	}
	sr.Outcome, sr.Err = OutcomeFailed, err
	log.Error().Err(err).Msg("refresh failed")
	return sr
}

func (s *Service) finish(ctx context.Context, log zerolog.Logger, rec storage.SeriesRecord, series forecast.Series, computed Computed, sr SeriesReport) SeriesReport {
	result := computed.Result
	sr.Outcome = OutcomeForecast
	sr.Tier = result.Tier
	sr.Cached = computed.Cached

	if s.runs != nil {
		run := storage.NewForecastRun(rec.ID, computed.Fingerprint, result)
		if err := s.runs.InsertForecastRun(ctx, run); err != nil {
			log.Error().Err(err).Msg("failed to persist forecast run")
		}
	}

	log.Info().
		Str("tier", string(result.Tier)).
		Bool("cached", computed.Cached).
		Int("horizon", len(result.Predictions)).
		Msg("forecast refreshed")

	if s.alertsOn && s.notifier != nil {
		sr.Alerts = s.evaluateAlerts(ctx, log, rec, series, result)
	}
	return sr
}

func (s *Service) evaluateAlerts(ctx context.Context, log zerolog.Logger, rec storage.SeriesRecord, series forecast.Series, result *forecast.Result) []string {
	summary, ok := forecast.Summarize(series, result)
	if !ok {
		return nil
	}

	base := alerting.Notification{
		SeriesKind: rec.Kind,
		SeriesName: rec.Name,
		Period:     summary.FinalPeriod,
		Tier:       result.Tier,
		Current:    decimal.NewFromFloat(summary.Current),
		Projected:  decimal.NewFromFloat(summary.Final),
		Direction:  string(summary.Direction),
		Channels:   s.channels,
		CreatedAt:  s.now(),
	}

	var sent []string
	if s.alertOnDegraded && result.Tier == forecast.TierNaiveTrend {
		note := base
		note.Kind = alerting.KindDegraded
		note.AdditionalMsg = "Statistical models unavailable; naive trend used."
		if s.dispatch(ctx, log, rec, note) {
			sent = append(sent, note.Kind)
		}
	}

	if !s.swing.IsZero() && summary.ChangePct != nil && math.Abs(*summary.ChangePct) > s.swing.InexactFloat64() {
		note := base
		note.Kind = alerting.KindSwing
		note.ChangePct = decimal.NewFromFloat(*summary.ChangePct)
		note.ThresholdPct = s.swing
		if s.dispatch(ctx, log, rec, note) {
			sent = append(sent, note.Kind)
		}
	}
	return sent
}

// dispatch records the alert first so that a (series, kind, period) fires once.
func (s *Service) dispatch(ctx context.Context, log zerolog.Logger, rec storage.SeriesRecord, note alerting.Notification) bool {
	if s.alertStore != nil {
		inserted, err := s.alertStore.InsertAlert(ctx, storage.AlertRecord{
			SeriesID:  rec.ID,
			Kind:      note.Kind,
			Period:    note.Period,
			Message:   alerting.RenderMessage(note),
			Channels:  note.Channels,
			CreatedAt: note.CreatedAt,
		})
		if err != nil {
			log.Error().Err(err).Str("kind", note.Kind).Msg("failed to persist alert record")
			return false
		}
		if !inserted {
			log.Debug().Str("kind", note.Kind).Str("period", note.Period.String()).Msg("alert already sent")
			return false
		}
	}

	if err := s.notifier.Notify(ctx, note); err != nil {
		log.Error().Err(err).Str("kind", note.Kind).Msg("failed to dispatch alert")
		return false
	}
	s.metrics.AlertSent(note.Kind)
	return true
}
