package app

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kickslayer1/bigdatahacathon-2025/internal/alerting"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/cache"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/config"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/forecast"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/httpapi"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/metrics"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/scheduler"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/service"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) newNotifier() alerting.Notifier {
	router := alerting.FromConfig(a.Config.Alerting, a.Logger)
	if router == nil {
		return nil
	}
	return router
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) requireStore(ctx context.Context) (*storage.Store, func(), error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, errors.New("database.dsn not configured")
	}
	return store, closeStore, nil
}

// newForecaster 组装 engine、缓存与指标。
func (a *App) newForecaster(ctx context.Context, m *metrics.Metrics) (*service.Forecaster, func(), error) {
	engine, err := forecast.NewEngine(a.Config.Forecast, a.Logger)
	if err != nil {
		return nil, nil, err
	}

	var recorder cache.Recorder
	if m != nil {
		recorder = m
	}
	fc, client, err := cache.NewFromConfig(ctx, a.Config.Cache, recorder, a.Logger)
	if err != nil {
		return nil, nil, err
	}

	closer := func() {}
	if client != nil {
		closer = func() { closeRedis(client, a.Logger) }
	}

	var rc service.ResultCache
	if fc != nil {
		rc = fc
	}
	return service.NewForecaster(engine, rc, m, a.Logger), closer, nil
}

func closeRedis(client *redis.Client, logger zerolog.Logger) {
	if err := client.Close(); err != nil {
		logger.Warn().Err(err).Msg("close redis client")
	}
}

// Run executes the long-running refresh service, optionally serving the HTTP API alongside.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	m := metrics.New()
	forecaster, closeCache, err := a.newForecaster(ctx, m)
	if err != nil {
		return err
	}
	defer closeCache()

	sched, err := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		Cron:         a.Config.Scheduler.Cron,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)
	if err != nil {
		return err
	}

	deps := service.Deps{
		Scheduler:  sched,
		Forecaster: forecaster,
		Series:     store,
		Runs:       store,
		Alerts:     store,
		Locker:     store,
		Metrics:    m,
	}
	if notifier := a.newNotifier(); notifier != nil {
		deps.Notifier = notifier
	} else if a.Config.Alerting.Enabled {
		a.Logger.Warn().Msg("alerting enabled but no channel configured")
	}

	svc, err := service.New(a.Config, deps, a.Logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	if opts.Serve {
		srv := httpapi.New(a.Config.HTTP, forecaster, store, m, a.Logger)
		go func() {
			errCh <- srv.ListenAndServe(ctx)
		}()
	}

	if opts.Once {
		report, err := svc.RefreshAll(ctx)
		if err != nil {
			return err
		}
		a.printReport(report)
		return nil
	}

	a.Logger.Info().Msg("starting refresh service")
	go func() {
		errCh <- svc.Run(ctx)
	}()

	err = <-errCh
	cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("refresh service stopped")
	return nil
}

// Serve runs the HTTP API until interrupted. Without a database only POST /v1/forecasts works.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	var series httpapi.SeriesReader
	if store != nil {
		defer closeStore()
		series = store
	} else {
		a.Logger.Warn().Msg("database.dsn not configured; series endpoints disabled")
	}

	m := metrics.New()
	forecaster, closeCache, err := a.newForecaster(ctx, m)
	if err != nil {
		return err
	}
	defer closeCache()

	return httpapi.New(a.Config.HTTP, forecaster, series, m, a.Logger).ListenAndServe(ctx)
}

// Migrate applies the SQL migrations.
func (a *App) Migrate(ctx context.Context, dir string) error {
	if dir == "" {
		dir = a.Config.Database.MigrationsPath
	}
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	applied, err := store.Migrate(ctx, dir)
	for _, name := range applied {
		a.Logger.Info().Str("migration", name).Msg("migration applied")
	}
	return err
}

// RunOptions configure the run command.
type RunOptions struct {
	Once  bool
	Serve bool
}

// ForecastOptions configure a one-off forecast from files.
type ForecastOptions struct {
	Input   string
	Daily   bool
	Horizon int
	Format  string
	Exports string
	Imports string
}

// ImportOptions configure loading a series into the database.
type ImportOptions struct {
	Path       string
	FromSource bool
	Daily      bool
	Kind       string
	Name       string
	Unit       string
}

// ExportOptions hold parameters for exporting a series with its latest forecast.
type ExportOptions struct {
	Kind      string
	Name      string
	PNGPath   string
	CSVPath   string
	XLSXPath  string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit  int
	Alerts bool
}

// BacktestOptions configure a walk-forward evaluation.
type BacktestOptions struct {
	Path     string
	Daily    bool
	Kind     string
	Name     string
	MinTrain int
	Workers  int
}
