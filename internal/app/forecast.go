package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/kickslayer1/bigdatahacathon-2025/internal/forecast"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/loader"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/service"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/storage"
)

// Output formats of the forecast command.
const (
	FormatJSON  = "json"
	FormatTable = "table"
)

type forecastDocument struct {
	forecast.Payload
	Summary *forecast.Summary         `json:"summary,omitempty"`
	Trade   *forecast.TradeAdjustment `json:"trade,omitempty"`
}

// Forecast reads a series file, forecasts it and prints the result.
func (a *App) Forecast(ctx context.Context, opts ForecastOptions) error {
	if (opts.Exports == "") != (opts.Imports == "") {
		return errors.New("--exports and --imports must be provided together")
	}

	obs, err := a.readObservations(opts.Input, opts.Daily)
	if err != nil {
		return err
	}
	series, err := forecast.Prepare(obs)
	if err != nil {
		return err
	}

	forecaster, closeCache, err := a.newForecaster(ctx, nil)
	if err != nil {
		return err
	}
	defer closeCache()

	computed, err := forecaster.Forecast(ctx, series, opts.Horizon)
	if err != nil {
		return err
	}

	doc := forecastDocument{}
	result := computed.Result
	if opts.Exports != "" {
		adjusted, adj, err := a.adjustForTrade(result, series, opts.Exports, opts.Imports)
		if err != nil {
			return err
		}
		result = adjusted
		doc.Trade = &adj
	}
	doc.Payload = forecast.NewPayload(result)
	if summary, ok := forecast.Summarize(series, result); ok {
		doc.Summary = &summary
	}

	switch strings.ToLower(opts.Format) {
	case "", FormatJSON:
		enc := json.NewEncoder(a.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatTable:
		return a.printForecastTable(doc)
	default:
		return fmt.Errorf("unknown format %q", opts.Format)
	}
}

func (a *App) adjustForTrade(result *forecast.Result, rates forecast.Series, exportsPath, importsPath string) (*forecast.Result, forecast.TradeAdjustment, error) {
	exports, err := a.readSeries(exportsPath)
	if err != nil {
		return nil, forecast.TradeAdjustment{}, fmt.Errorf("exports: %w", err)
	}
	imports, err := a.readSeries(importsPath)
	if err != nil {
		return nil, forecast.TradeAdjustment{}, fmt.Errorf("imports: %w", err)
	}

	cfg := a.Config.Forecast
	impact := forecast.AssessTradeImpact(rates, forecast.TradeBalance(exports, imports), cfg.TradeWindow)
	adjusted, adj := forecast.AdjustForTrade(result, impact, cfg.TradeWeight)
	a.Logger.Info().
		Bool("adjusted", adj.Adjusted).
		Str("impact", string(impact.Level)).
		Float64("factor", adj.Factor).
		Msg("trade adjustment evaluated")
	return adjusted, adj, nil
}

func (a *App) printForecastTable(doc forecastDocument) error {
	w := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Quarter\tPredicted\tLower\tUpper\tConfidence")
	for _, p := range doc.Predictions {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n", p.Quarter, p.PredictedValue, p.LowerBound, p.UpperBound, p.ConfidenceLevel)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(a.Out, "\ntier: %s  method: %s\n", doc.TierUsed, doc.ModelsUsed.EnsembleMethod)
	if s := doc.Summary; s != nil {
		change := "n/a"
		if s.ChangePct != nil {
			change = fmt.Sprintf("%+.2f%%", *s.ChangePct)
		}
		fmt.Fprintf(a.Out, "current %s: %.2f  projected %s: %.2f  change: %s (%s)\n",
			s.CurrentPeriod, s.Current, s.FinalPeriod, s.Final, change, s.Direction)
	}
	if t := doc.Trade; t != nil {
		fmt.Fprintf(a.Out, "trade: %s\n", t.Explanation)
	}
	return nil
}

// Import loads a series from a file or the configured HTTP source and stores it.
func (a *App) Import(ctx context.Context, opts ImportOptions) error {
	if opts.Kind == "" || opts.Name == "" {
		return errors.New("--kind and --name are required")
	}

	var (
		obs    []forecast.Observation
		source string
		err    error
	)
	if opts.FromSource {
		src, err := loader.NewHTTPSource(loader.HTTPOptions{
			BaseURL:      a.Config.Source.BaseURL,
			Timeout:      a.Config.Source.RequestTimeout,
			UserAgent:    a.Config.Source.UserAgent,
			Scale:        a.Config.Source.Scale,
			MaxBodyBytes: a.Config.Source.MaxBodyBytes,
		}, a.Logger)
		if err != nil {
			return err
		}
		obs, err = src.Fetch(ctx, opts.Kind, opts.Name)
		if err != nil {
			return err
		}
		source = a.Config.Source.BaseURL
	} else {
		obs, err = a.readObservations(opts.Path, opts.Daily)
		if err != nil {
			return err
		}
		source = filepath.Base(opts.Path)
	}

	// 先校验再写库
	if _, err := forecast.Prepare(obs); err != nil {
		return err
	}
	points, err := storage.PointsFromObservations(obs)
	if err != nil {
		return err
	}

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	rec, err := store.UpsertSeries(ctx, storage.SeriesRecord{Kind: opts.Kind, Name: opts.Name, Unit: opts.Unit, Source: source})
	if err != nil {
		return err
	}
	if err := store.ReplacePoints(ctx, rec.ID, points); err != nil {
		return err
	}

	a.Logger.Info().
		Str("series", rec.Kind+"/"+rec.Name).
		Int64("series_id", rec.ID).
		Int("points", len(points)).
		Msg("series imported")
	return nil
}

func (a *App) readObservations(path string, daily bool) ([]forecast.Observation, error) {
	if path == "" {
		return nil, errors.New("an input file is required")
	}
	if daily {
		return loader.ReadDailyRates(path)
	}
	return loader.ReadFile(path, a.Config.Source.Scale)
}

func (a *App) readSeries(path string) (forecast.Series, error) {
	obs, err := loader.ReadFile(path, a.Config.Source.Scale)
	if err != nil {
		return forecast.Series{}, err
	}
	return forecast.Prepare(obs)
}

func (a *App) printReport(report service.Report) {
	w := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Series\tOutcome\tTier\tCached\tAlerts\tError")
	for _, s := range report.Series {
		errMsg := ""
		if s.Err != nil {
			errMsg = sanitizeInline(s.Err.Error())
		}
		fmt.Fprintf(w, "%s/%s\t%s\t%s\t%t\t%s\t%s\n",
			s.Kind, s.Name, s.Outcome, s.Tier, s.Cached, strings.Join(s.Alerts, ","), errMsg)
	}
	_ = w.Flush()
}
