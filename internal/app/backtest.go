package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"text/tabwriter"

	"github.com/kickslayer1/bigdatahacathon-2025/internal/forecast"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/storage"
)

// BacktestFold is one walk-forward step: train on everything before Period, predict Period.
type BacktestFold struct {
	Period    forecast.Period
	Actual    float64
	Predicted float64
	Tier      forecast.Tier
	Err       error
}

// TierScore aggregates the one-step errors of folds produced by one tier.
type TierScore struct {
	Tier  forecast.Tier
	Folds int
	MAE   float64
	MAPE  *float64
}

// BacktestReport is the outcome of a walk-forward evaluation.
type BacktestReport struct {
	Folds   []BacktestFold
	Overall TierScore
	ByTier  []TierScore
}

// Backtest 对序列做 walk-forward 单步回测，按 tier 统计 MAE/MAPE。
func (a *App) Backtest(ctx context.Context, opts BacktestOptions) (BacktestReport, error) {
	series, err := a.backtestSeries(ctx, opts)
	if err != nil {
		return BacktestReport{}, err
	}

	engine, err := forecast.NewEngine(a.Config.Forecast, a.Logger)
	if err != nil {
		return BacktestReport{}, err
	}

	report, err := walkForward(ctx, engine, series, opts.MinTrain, opts.Workers)
	if err != nil {
		return report, err
	}

	failed := 0
	for _, f := range report.Folds {
		if f.Err != nil {
			failed++
			a.Logger.Error().Err(f.Err).Str("period", f.Period.String()).Msg("回测失败")
		}
	}
	a.Logger.Info().Int("folds", len(report.Folds)).Int("failed", failed).Msg("回测完成")

	a.printBacktest(report)
	return report, nil
}

func (a *App) backtestSeries(ctx context.Context, opts BacktestOptions) (forecast.Series, error) {
	if opts.Path != "" {
		obs, err := a.readObservations(opts.Path, opts.Daily)
		if err != nil {
			return forecast.Series{}, err
		}
		return forecast.Prepare(obs)
	}
	if opts.Kind == "" || opts.Name == "" {
		return forecast.Series{}, errors.New("either --input or --kind/--name must be provided")
	}

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return forecast.Series{}, err
	}
	defer closeStore()

	rec, err := store.GetSeries(ctx, opts.Kind, opts.Name)
	if err != nil {
		return forecast.Series{}, fmt.Errorf("series %s/%s: %w", opts.Kind, opts.Name, err)
	}
	points, err := store.ListPoints(ctx, rec.ID)
	if err != nil {
		return forecast.Series{}, err
	}
	return forecast.Prepare(storage.Observations(points))
}

func walkForward(ctx context.Context, engine *forecast.Engine, series forecast.Series, minTrain, workers int) (BacktestReport, error) {
	if minTrain < 2 {
		minTrain = 2
	}
	if workers < 1 {
		workers = 1
	}
	n := series.Len()
	if n <= minTrain {
		return BacktestReport{}, fmt.Errorf("need more than %d points to backtest, got %d", minTrain, n)
	}

	folds := make([]BacktestFold, n-minTrain)
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i := minTrain; i < n; i++ {
		select {
		case <-ctx.Done():
			wg.Wait()
			return BacktestReport{}, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			target := series.Points[i]
			fold := BacktestFold{Period: target.Period, Actual: target.Value}
			train := forecast.Series{Points: series.Points[:i:i]}
			result, err := engine.ForecastSeries(train, 1)
			if err != nil {
				fold.Err = err
			} else {
				fold.Predicted = result.Predictions[0].Value
				fold.Tier = result.Tier
			}
			folds[i-minTrain] = fold
		}(i)
	}
	wg.Wait()

	return scoreFolds(folds), nil
}

func scoreFolds(folds []BacktestFold) BacktestReport {
	report := BacktestReport{Folds: folds}

	byTier := map[forecast.Tier][]BacktestFold{}
	var ok []BacktestFold
	for _, f := range folds {
		if f.Err != nil {
			continue
		}
		ok = append(ok, f)
		byTier[f.Tier] = append(byTier[f.Tier], f)
	}

	report.Overall = score("all", ok)
	for tier, fs := range byTier {
		report.ByTier = append(report.ByTier, score(tier, fs))
	}
	sort.Slice(report.ByTier, func(i, j int) bool {
		return report.ByTier[i].Tier < report.ByTier[j].Tier
	})
	return report
}

// score skips zero actuals for MAPE; MAPE is nil when no fold qualifies.
func score(tier forecast.Tier, folds []BacktestFold) TierScore {
	s := TierScore{Tier: tier, Folds: len(folds)}
	if len(folds) == 0 {
		return s
	}

	var absSum, pctSum float64
	pctN := 0
	for _, f := range folds {
		diff := math.Abs(f.Actual - f.Predicted)
		absSum += diff
		if f.Actual != 0 {
			pctSum += diff / math.Abs(f.Actual) * 100
			pctN++
		}
	}
	s.MAE = absSum / float64(len(folds))
	if pctN > 0 {
		mape := pctSum / float64(pctN)
		s.MAPE = &mape
	}
	return s
}

func (a *App) printBacktest(report BacktestReport) {
	w := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Period\tActual\tPredicted\tTier\tError")
	for _, f := range report.Folds {
		if f.Err != nil {
			fmt.Fprintf(w, "%s\t%.2f\t-\t-\t%s\n", f.Period, f.Actual, sanitizeInline(f.Err.Error()))
			continue
		}
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%s\t\n", f.Period, f.Actual, f.Predicted, f.Tier)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Tier\tFolds\tMAE\tMAPE%\t")
	for _, s := range append(report.ByTier, report.Overall) {
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%s\t\n", s.Tier, s.Folds, s.MAE, formatOptional(s.MAPE, 2))
	}
	_ = w.Flush()
}
