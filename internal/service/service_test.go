package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kickslayer1/bigdatahacathon-2025/internal/alerting"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/config"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/forecast"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/metrics"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/storage"
)

type fakeSeriesStore struct {
	records   []storage.SeriesRecord
	points    map[int64][]storage.SeriesPoint
	pointsErr error
	listCalls int
}

func (f *fakeSeriesStore) UpsertSeries(_ context.Context, rec storage.SeriesRecord) (storage.SeriesRecord, error) {
	return rec, nil
}

func (f *fakeSeriesStore) ReplacePoints(context.Context, int64, []storage.SeriesPoint) error {
	return nil
}

func (f *fakeSeriesStore) ListSeries(context.Context) ([]storage.SeriesRecord, error) {
	f.listCalls++
	return f.records, nil
}

func (f *fakeSeriesStore) GetSeries(_ context.Context, kind, name string) (storage.SeriesRecord, error) {
	for _, r := range f.records {
		if r.Kind == kind && r.Name == name {
			return r, nil
		}
	}
	return storage.SeriesRecord{}, storage.ErrNotFound
}

func (f *fakeSeriesStore) ListPoints(_ context.Context, id int64) ([]storage.SeriesPoint, error) {
	if f.pointsErr != nil {
		return nil, f.pointsErr
	}
	return f.points[id], nil
}

type fakeRunStore struct {
	runs []storage.ForecastRun
}

func (f *fakeRunStore) InsertForecastRun(_ context.Context, run storage.ForecastRun) error {
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeRunStore) LatestRun(context.Context, int64) (storage.ForecastRun, error) {
	if len(f.runs) == 0 {
		return storage.ForecastRun{}, storage.ErrNotFound
	}
	return f.runs[len(f.runs)-1], nil
}

func (f *fakeRunStore) ListRecentRuns(context.Context, int) ([]storage.ForecastRun, error) {
	return f.runs, nil
}

type fakeAlertStore struct {
	seen map[string]bool
}

func (f *fakeAlertStore) InsertAlert(_ context.Context, a storage.AlertRecord) (bool, error) {
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	key := a.Kind + "|" + a.Period.String()
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeAlertStore) ListRecentAlerts(context.Context, int) ([]storage.AlertRecord, error) {
	return nil, nil
}

type fakeNotifier struct {
	notes []alerting.Notification
}

func (f *fakeNotifier) Notify(_ context.Context, n alerting.Notification) error {
	f.notes = append(f.notes, n)
	return nil
}

type fakeLocker struct {
	acquire bool
}

func (f *fakeLocker) WithAdvisoryLock(ctx context.Context, _ int64, fn func(context.Context) error) (bool, error) {
	if !f.acquire {
		return false, nil
	}
	return true, fn(ctx)
}

type stubCache struct {
	result *forecast.Result
}

func (s stubCache) Get(context.Context, string) (*forecast.Result, bool) {
	return s.result, s.result != nil
}

func (s stubCache) Set(context.Context, string, *forecast.Result) {}

func point(label string, v int64) storage.SeriesPoint {
	p, _ := forecast.ParsePeriod(label)
	return storage.SeriesPoint{Period: p, Value: decimal.NewFromInt(v)}
}

func testConfig() *config.Config {
	return &config.Config{
		Forecast:  forecast.DefaultConfig(),
		Scheduler: config.SchedulerConfig{AdvisoryLockKey: 42},
		Alerting: config.AlertingConfig{
			Enabled:         true,
			SwingPct:        15,
			AlertOnDegraded: true,
			Channels:        []string{"telegram"},
		},
	}
}

func newForecaster(t *testing.T, cache ResultCache) *Forecaster {
	t.Helper()
	engine, err := forecast.NewEngine(forecast.DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)
	return NewForecaster(engine, cache, metrics.New(), zerolog.Nop())
}

func naiveResult() *forecast.Result {
	return &forecast.Result{
		Tier: forecast.TierNaiveTrend,
		Predictions: []forecast.PredictedPoint{
			{Period: forecast.Period{Year: 2024, Quarter: 3}, Value: 125, Lower: 106, Upper: 144, Confidence: forecast.ConfidenceLow},
			{Period: forecast.Period{Year: 2024, Quarter: 4}, Value: 140, Lower: 119, Upper: 161, Confidence: forecast.ConfidenceLow},
		},
	}
}

func TestRefreshAllPersistsAndAlertsOnce(t *testing.T) {
	series := &fakeSeriesStore{
		records: []storage.SeriesRecord{{ID: 1, Kind: "export", Name: "coffee"}},
		points:  map[int64][]storage.SeriesPoint{1: {point("2024Q1", 100), point("2024Q2", 110)}},
	}
	runs := &fakeRunStore{}
	notifier := &fakeNotifier{}
	m := metrics.New()

	svc, err := New(testConfig(), Deps{
		Forecaster: newForecaster(t, stubCache{result: naiveResult()}),
		Series:     series,
		Runs:       runs,
		Alerts:     &fakeAlertStore{},
		Notifier:   notifier,
		Metrics:    m,
	}, zerolog.Nop())
	require.NoError(t, err)

	report, err := svc.RefreshAll(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Series, 1)
	sr := report.Series[0]
	assert.Equal(t, OutcomeForecast, sr.Outcome)
	assert.True(t, sr.Cached)
	assert.Equal(t, forecast.TierNaiveTrend, sr.Tier)
	assert.ElementsMatch(t, []string{alerting.KindDegraded, alerting.KindSwing}, sr.Alerts)

	require.Len(t, runs.runs, 1)
	assert.Equal(t, "NaiveTrend", runs.runs[0].Tier)
	require.Len(t, notifier.notes, 2)
	swing := notifier.notes[1]
	assert.Equal(t, alerting.KindSwing, swing.Kind)
	assert.Equal(t, "2024Q4", swing.Period.String())
	assert.Equal(t, "27.27", swing.ChangePct.StringFixed(2))
	assert.Equal(t, "rising", swing.Direction)

	// A second cycle for the same periods must not re-send.
	_, err = svc.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, notifier.notes, 2)
	assert.Len(t, runs.runs, 2)
}

func TestProcessSeriesRealEngineDegraded(t *testing.T) {
	series := &fakeSeriesStore{
		records: []storage.SeriesRecord{{ID: 7, Kind: "import", Name: "fuel"}},
		points:  map[int64][]storage.SeriesPoint{7: {point("2024Q1", 50), point("2024Q2", 50)}},
	}
	notifier := &fakeNotifier{}
	runs := &fakeRunStore{}

	svc, err := New(testConfig(), Deps{
		Forecaster: newForecaster(t, nil),
		Series:     series,
		Runs:       runs,
		Notifier:   notifier,
	}, zerolog.Nop())
	require.NoError(t, err)

	sr := svc.ProcessSeries(context.Background(), series.records[0])
	require.NoError(t, sr.Err)
	assert.Equal(t, forecast.TierNaiveTrend, sr.Tier)
	assert.Equal(t, []string{alerting.KindDegraded}, sr.Alerts)
	require.Len(t, runs.runs, 1)
	require.Len(t, runs.runs[0].Points, 2)
	assert.Equal(t, "50", runs.runs[0].Points[1].Value.String())
	assert.NotEmpty(t, runs.runs[0].Fingerprint)
}

func TestProcessSeriesSkipsAndFails(t *testing.T) {
	series := &fakeSeriesStore{
		records: []storage.SeriesRecord{{ID: 1, Kind: "export", Name: "tea"}},
		points:  map[int64][]storage.SeriesPoint{1: {point("2024Q1", 10)}},
	}
	svc, err := New(testConfig(), Deps{Forecaster: newForecaster(t, nil), Series: series}, zerolog.Nop())
	require.NoError(t, err)

	sr := svc.ProcessSeries(context.Background(), series.records[0])
	assert.Equal(t, OutcomeSkipped, sr.Outcome)
	assert.NoError(t, sr.Err)

	series.pointsErr = errors.New("db down")
	sr = svc.ProcessSeries(context.Background(), series.records[0])
	assert.Equal(t, OutcomeFailed, sr.Outcome)
	assert.ErrorContains(t, sr.Err, "db down")
}

func TestTickRespectsAdvisoryLock(t *testing.T) {
	series := &fakeSeriesStore{}
	locker := &fakeLocker{acquire: false}
	svc, err := New(testConfig(), Deps{Forecaster: newForecaster(t, nil), Series: series, Locker: locker}, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, svc.Tick(context.Background(), time.Now()))
	assert.Zero(t, series.listCalls)

	locker.acquire = true
	require.NoError(t, svc.Tick(context.Background(), time.Now()))
	assert.Equal(t, 1, series.listCalls)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(testConfig(), Deps{}, zerolog.Nop())
	assert.Error(t, err)

	_, err = New(testConfig(), Deps{Forecaster: newForecaster(t, nil)}, zerolog.Nop())
	assert.Error(t, err)
}

func TestRunWithoutScheduler(t *testing.T) {
	svc, err := New(testConfig(), Deps{Forecaster: newForecaster(t, nil), Series: &fakeSeriesStore{}}, zerolog.Nop())
	require.NoError(t, err)
	assert.Error(t, svc.Run(context.Background()))
}

func TestForecasterCachesByFingerprint(t *testing.T) {
	cache := &memoryCache{items: map[string]*forecast.Result{}}
	f := newForecaster(t, cache)
	series, err := forecast.Prepare([]forecast.Observation{{Period: "2024Q1", Value: 50}, {Period: "2024Q2", Value: 50}})
	require.NoError(t, err)

	first, err := f.Forecast(context.Background(), series, 0)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := f.Forecast(context.Background(), series, 2)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Same(t, first.Result, second.Result)

	_, err = f.Forecast(context.Background(), forecast.Series{}, 2)
	assert.ErrorIs(t, err, forecast.ErrEmptySeries)
}

type memoryCache struct {
	items map[string]*forecast.Result
}

func (m *memoryCache) Get(_ context.Context, key string) (*forecast.Result, bool) {
	r, ok := m.items[key]
	return r, ok
}

func (m *memoryCache) Set(_ context.Context, key string, r *forecast.Result) {
	m.items[key] = r
}
