package loader

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/kickslayer1/bigdatahacathon-2025/internal/forecast"
)

// ErrUnsupportedFormat is returned for file extensions the loader cannot read.
var ErrUnsupportedFormat = errors.New("loader: unsupported file format")

// record accepts either "period" or "quarter" as the label key.
type record struct {
	Period  string  `json:"period" yaml:"period"`
	Quarter string  `json:"quarter" yaml:"quarter"`
	Value   float64 `json:"value" yaml:"value"`
}

type envelope struct {
	Series []record `json:"series" yaml:"series"`
}

func (r record) label() string {
	if r.Period != "" {
		return r.Period
	}
	return r.Quarter
}

// ReadFile loads a quarterly series file. The format follows the extension:
// .csv, .json, .yaml or .yml. Values are multiplied by scale.
func ReadFile(path string, scale float64) ([]forecast.Observation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ParseCSV(bytes.NewReader(data), scale)
	case ".json":
		return ParseJSON(data, scale)
	case ".yaml", ".yml":
		return ParseYAML(data, scale)
	default:
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
}

// ParseCSV reads a CSV with a header naming a period (or quarter) column and a value column.
func ParseCSV(r io.Reader, scale float64) ([]forecast.Observation, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := indexColumns(header)
	periodCol, ok := cols["period"]
	if !ok {
		periodCol, ok = cols["quarter"]
	}
	if !ok {
		return nil, errors.New("csv: missing period column")
	}
	valueCol, ok := cols["value"]
	if !ok {
		return nil, errors.New("csv: missing value column")
	}

	out := make([]forecast.Observation, 0)
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		if periodCol >= len(row) || valueCol >= len(row) {
			return nil, fmt.Errorf("csv line %d: too few columns", line)
		}
		value, err := parseNumber(row[valueCol])
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		out = append(out, forecast.Observation{
			Period: strings.TrimSpace(row[periodCol]),
			Value:  value * scale,
		})
	}
	return out, nil
}

// ParseJSON accepts a bare array of records or an object with a "series" array.
func ParseJSON(data []byte, scale float64) ([]forecast.Observation, error) {
	trimmed := bytes.TrimSpace(data)
	var records []record
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("decode json series: %w", err)
		}
		records = env.Series
	} else if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, fmt.Errorf("decode json series: %w", err)
	}
	return toObservations(records, scale), nil
}

// ParseYAML accepts the same shapes as ParseJSON.
func ParseYAML(data []byte, scale float64) ([]forecast.Observation, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("decode yaml series: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	var records []record
	root := node.Content[0]
	if root.Kind == yaml.MappingNode {
		var env envelope
		if err := root.Decode(&env); err != nil {
			return nil, fmt.Errorf("decode yaml series: %w", err)
		}
		records = env.Series
	} else if err := root.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode yaml series: %w", err)
	}
	return toObservations(records, scale), nil
}

func toObservations(records []record, scale float64) []forecast.Observation {
	out := make([]forecast.Observation, 0, len(records))
	for _, r := range records {
		out = append(out, forecast.Observation{Period: r.label(), Value: r.Value * scale})
	}
	return out
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := cols[key]; !dup {
			cols[key] = i
		}
	}
	return cols
}

// parseNumber tolerates thousands separators such as "1,234.50".
func parseNumber(raw string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return 0, errors.New("empty value")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("parse value %q: %w", raw, err)
	}
	return d.InexactFloat64(), nil
}
