package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kickslayer1/bigdatahacathon-2025/internal/storage"
)

// Show prints recent forecast runs, or recent alerts with opts.Alerts.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if opts.Alerts {
		alerts, err := store.ListRecentAlerts(ctx, opts.Limit)
		if err != nil {
			return err
		}
		return writeAlertsTable(a.Out, alerts)
	}

	runs, err := store.ListRecentRuns(ctx, opts.Limit)
	if err != nil {
		return err
	}
	return writeRunsTable(a.Out, runs)
}

func writeRunsTable(out io.Writer, runs []storage.ForecastRun) error {
	if len(runs) == 0 {
		fmt.Fprintln(out, "no forecast runs found")
		return nil
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tSeries\tTier\tHorizon\tR2\tMAE\tAccuracy%\tFingerprint")
	for _, run := range runs {
		fmt.Fprintf(
			writer,
			"%s\t%s/%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			run.CreatedAt.UTC().Format(time.RFC3339),
			run.SeriesKind,
			run.SeriesName,
			run.Tier,
			run.Horizon,
			formatOptional(run.R2, 3),
			formatOptional(run.MAE, 2),
			formatOptional(run.Accuracy, 1),
			shortFingerprint(run.Fingerprint),
		)
	}
	return writer.Flush()
}

func writeAlertsTable(out io.Writer, alerts []storage.AlertRecord) error {
	if len(alerts) == 0 {
		fmt.Fprintln(out, "no alerts found")
		return nil
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tSeries\tKind\tPeriod\tChannels\tMessage")
	for _, alert := range alerts {
		fmt.Fprintf(
			writer,
			"%s\t%d\t%s\t%s\t%s\t%s\n",
			alert.CreatedAt.UTC().Format(time.RFC3339),
			alert.SeriesID,
			alert.Kind,
			alert.Period,
			strings.Join(alert.Channels, ","),
			sanitizeInline(alert.Message),
		)
	}
	return writer.Flush()
}

func formatOptional(v *float64, places int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.*f", places, *v)
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
