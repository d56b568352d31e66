package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/xuri/excelize/v2"

	"github.com/kickslayer1/bigdatahacathon-2025/internal/forecast"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/storage"
)

const xlsxSheet = "Timeline"

// timelineRow is one exported quarter: an actual, or a prediction with bounds.
type timelineRow struct {
	Period     forecast.Period
	Value      decimal.Decimal
	Lower      *decimal.Decimal
	Upper      *decimal.Decimal
	Confidence string
	Actual     bool
}

// Export renders a stored series and its latest forecast as CSV, PNG and/or XLSX.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" && opts.XLSXPath == "" {
		return errors.New("at least one of --csv, --png or --xlsx must be provided")
	}
	if opts.Kind == "" || opts.Name == "" {
		return errors.New("--kind and --name are required")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	rec, err := store.GetSeries(ctx, opts.Kind, opts.Name)
	if err != nil {
		return fmt.Errorf("series %s/%s: %w", opts.Kind, opts.Name, err)
	}
	points, err := store.ListPoints(ctx, rec.ID)
	if err != nil {
		return err
	}

	var run *storage.ForecastRun
	latest, err := store.LatestRun(ctx, rec.ID)
	switch {
	case err == nil:
		run = &latest
	case errors.Is(err, storage.ErrNotFound):
		a.Logger.Warn().Str("series", rec.Kind+"/"+rec.Name).Msg("no forecast run stored; exporting actuals only")
	default:
		return err
	}

	rows := buildTimeline(points, run)
	if len(rows) == 0 {
		a.Logger.Info().Msg("series has no data to export")
		return nil
	}

	downsampled := downsampleRows(rows, opts.MaxPoints)
	a.Logger.Info().Int("total", len(rows)).Int("exported", len(downsampled)).Msg("exporting timeline")

	title := rec.Kind + " / " + rec.Name
	if opts.CSVPath != "" {
		if err := writeTimelineCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}
	if opts.XLSXPath != "" {
		if err := writeTimelineXLSX(opts.XLSXPath, title, downsampled); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeTimelinePNG(opts.PNGPath, title, downsampled); err != nil {
			return err
		}
	}
	return nil
}

func buildTimeline(points []storage.SeriesPoint, run *storage.ForecastRun) []timelineRow {
	rows := make([]timelineRow, 0, len(points))
	for _, p := range points {
		rows = append(rows, timelineRow{Period: p.Period, Value: p.Value, Actual: true})
	}
	if run == nil {
		return rows
	}
	for _, p := range run.Points {
		lower, upper := p.Lower, p.Upper
		rows = append(rows, timelineRow{
			Period:     p.Period,
			Value:      p.Value,
			Lower:      &lower,
			Upper:      &upper,
			Confidence: p.Confidence,
		})
	}
	return rows
}

// downsampleRows thins actuals evenly and always keeps every prediction.
func downsampleRows(rows []timelineRow, max int) []timelineRow {
	if max <= 0 || len(rows) <= max {
		return rows
	}

	var actuals, predicted []timelineRow
	for _, r := range rows {
		if r.Actual {
			actuals = append(actuals, r)
		} else {
			predicted = append(predicted, r)
		}
	}
	budget := max - len(predicted)
	if budget < 2 {
		budget = 2
	}
	if len(actuals) <= budget {
		return rows
	}

	result := make([]timelineRow, 0, budget+len(predicted))
	step := float64(len(actuals)-1) / float64(budget-1)
	for i := 0; i < budget; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(actuals) {
			idx = len(actuals) - 1
		}
		result = append(result, actuals[idx])
	}
	return append(result, predicted...)
}

func writeTimelineCSV(path string, rows []timelineRow) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{"quarter", "value", "is_actual", "lower_bound", "upper_bound", "confidence_level"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		record := []string{
			row.Period.String(),
			row.Value.String(),
			fmt.Sprintf("%t", row.Actual),
			optionalString(row.Lower),
			optionalString(row.Upper),
			row.Confidence,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeTimelineXLSX(path, title string, rows []timelineRow) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return err
	}
	if err := f.SetCellValue(xlsxSheet, "A1", title); err != nil {
		return err
	}

	headers := []string{"Quarter", "Value", "Actual", "Lower Bound", "Upper Bound", "Confidence"}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 2)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(xlsxSheet, cell, header); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(xlsxSheet, "A", "F", 16); err != nil {
		return err
	}

	for i, row := range rows {
		values := []any{
			row.Period.String(),
			row.Value.InexactFloat64(),
			row.Actual,
			optionalFloat(row.Lower),
			optionalFloat(row.Upper),
			row.Confidence,
		}
		for j, v := range values {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+1, i+3)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(xlsxSheet, cell, v); err != nil {
				return err
			}
		}
	}

	return f.SaveAs(path)
}

func writeTimelinePNG(path, title string, rows []timelineRow) error {
	if len(rows) < 2 {
		return errors.New("at least two points are needed to draw a chart")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	var actualX, forecastX []time.Time
	var actualY, forecastY, lowerY, upperY []float64
	for _, row := range rows {
		x := row.Period.Start()
		if row.Actual {
			actualX = append(actualX, x)
			actualY = append(actualY, row.Value.InexactFloat64())
			continue
		}
		forecastX = append(forecastX, x)
		forecastY = append(forecastY, row.Value.InexactFloat64())
		lowerY = append(lowerY, optionalValue(row.Lower, row.Value))
		upperY = append(upperY, optionalValue(row.Upper, row.Value))
	}

	series := make([]chart.Series, 0, 4)
	if len(actualX) > 0 {
		series = append(series, chart.TimeSeries{Name: "Actual", XValues: actualX, YValues: actualY})
	}
	if len(forecastX) > 0 {
		// 预测线从最后一个实际值接上
		if n := len(actualX); n > 0 {
			anchorX, anchorY := actualX[n-1], actualY[n-1]
			forecastX = append([]time.Time{anchorX}, forecastX...)
			forecastY = append([]float64{anchorY}, forecastY...)
			lowerY = append([]float64{anchorY}, lowerY...)
			upperY = append([]float64{anchorY}, upperY...)
		}
		dashed := chart.Style{StrokeDashArray: []float64{5, 5}}
		series = append(series,
			chart.TimeSeries{Name: "Forecast", XValues: forecastX, YValues: forecastY},
			chart.TimeSeries{Name: "Lower", XValues: forecastX, YValues: lowerY, Style: dashed},
			chart.TimeSeries{Name: "Upper", XValues: forecastX, YValues: upperY, Style: dashed},
		)
	}

	graph := chart.Chart{
		Title:  title,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Value",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func optionalString(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func optionalFloat(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.InexactFloat64()
}

func optionalValue(d *decimal.Decimal, fallback decimal.Decimal) float64 {
	if d == nil {
		return fallback.InexactFloat64()
	}
	return d.InexactFloat64()
}
