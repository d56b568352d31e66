package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kickslayer1/bigdatahacathon-2025/internal/forecast"
)

var dateLayouts = []string{"01/02/2006", "1/2/2006", "2006-01-02"}

// ReadDailyRates loads a daily currency CSV and aggregates it to quarterly means.
func ReadDailyRates(path string) ([]forecast.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ParseDailyRates(f)
}

// ParseDailyRates reads post_date/average_rate rows and returns one observation per
// quarter holding the mean average rate. Rows with a blank rate are skipped.
func ParseDailyRates(r io.Reader) ([]forecast.Observation, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := indexColumns(header)
	dateCol, ok := cols["post_date"]
	if !ok {
		return nil, errors.New("currency csv: missing post_date column")
	}
	rateCol, ok := cols["average_rate"]
	if !ok {
		return nil, errors.New("currency csv: missing average_rate column")
	}

	buckets := make(map[forecast.Period][]float64)
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("currency csv line %d: %w", line, err)
		}
		if dateCol >= len(row) || rateCol >= len(row) || strings.TrimSpace(row[rateCol]) == "" {
			continue
		}

		day, err := parseDate(row[dateCol])
		if err != nil {
			return nil, fmt.Errorf("currency csv line %d: %w", line, err)
		}
		rate, err := parseNumber(row[rateCol])
		if err != nil {
			return nil, fmt.Errorf("currency csv line %d: %w", line, err)
		}
		period := forecast.PeriodOf(day)
		buckets[period] = append(buckets[period], rate)
	}

	periods := make([]forecast.Period, 0, len(buckets))
	for p := range buckets {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })

	out := make([]forecast.Observation, 0, len(periods))
	for _, p := range periods {
		out = append(out, forecast.Observation{Period: p.String(), Value: stat.Mean(buckets[p], nil)})
	}
	return out, nil
}

func parseDate(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
}
