package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/kickslayer1/bigdatahacathon-2025/internal/forecast"
)

const (
	upsertSeriesSQL = `INSERT INTO series (
        kind,
        name,
        unit,
        source
    ) VALUES (
        $1,$2,$3,$4
    )
    ON CONFLICT (kind, name) DO UPDATE
    SET
        unit       = EXCLUDED.unit,
        source     = EXCLUDED.source,
        updated_at = now()
    RETURNING id, kind, name, unit, source, created_at, updated_at;`

	listSeriesSQL = `SELECT
        id,
        kind,
        name,
        unit,
        source,
        created_at,
        updated_at
    FROM series
    ORDER BY kind, name;`

	getSeriesSQL = `SELECT
        id,
        kind,
        name,
        unit,
        source,
        created_at,
        updated_at
    FROM series
    WHERE kind = $1
      AND name = $2;`

	deletePointsSQL = `DELETE FROM series_points WHERE series_id = $1;`

	insertPointSQL = `INSERT INTO series_points (
        series_id,
        period,
        value
    ) VALUES (
        $1,$2,$3
    );`

	listPointsSQL = `SELECT
        period,
        value
    FROM series_points
    WHERE series_id = $1
    ORDER BY period;`
)

// SeriesStore persists series definitions and their actual observations.
type SeriesStore interface {
	UpsertSeries(ctx context.Context, rec SeriesRecord) (SeriesRecord, error)
	ReplacePoints(ctx context.Context, seriesID int64, points []SeriesPoint) error
	ListSeries(ctx context.Context) ([]SeriesRecord, error)
	GetSeries(ctx context.Context, kind, name string) (SeriesRecord, error)
	ListPoints(ctx context.Context, seriesID int64) ([]SeriesPoint, error)
}

// UpsertSeries creates the series or refreshes its metadata.
func (s *Store) UpsertSeries(ctx context.Context, rec SeriesRecord) (SeriesRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return SeriesRecord{}, err
	}

	row := db.QueryRow(ctx, upsertSeriesSQL, rec.Kind, rec.Name, rec.Unit, rec.Source)
	out, err := scanSeries(row)
	if err != nil {
		return SeriesRecord{}, fmt.Errorf("upsert series: %w", err)
	}
	return out, nil
}

// ReplacePoints swaps the stored observations of a series in one transaction.
func (s *Store) ReplacePoints(ctx context.Context, seriesID int64, points []SeriesPoint) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deletePointsSQL, seriesID); err != nil {
			return fmt.Errorf("delete points: %w", err)
		}
		for _, p := range points {
			if _, err := tx.Exec(ctx, insertPointSQL, seriesID, p.Period.String(), p.Value.String()); err != nil {
				return fmt.Errorf("insert point %s: %w", p.Period, err)
			}
		}
		return nil
	})
}

// ListSeries lists every stored series.
func (s *Store) ListSeries(ctx context.Context) ([]SeriesRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, queryErr := db.Query(ctx, listSeriesSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list series: %w", queryErr)
	}
	defer rows.Close()

	out := make([]SeriesRecord, 0)
	for rows.Next() {
		rec, scanErr := scanSeries(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// GetSeries looks a series up by kind and name.
func (s *Store) GetSeries(ctx context.Context, kind, name string) (SeriesRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return SeriesRecord{}, err
	}

	rec, err := scanSeries(db.QueryRow(ctx, getSeriesSQL, kind, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return SeriesRecord{}, fmt.Errorf("series %s/%s: %w", kind, name, ErrNotFound)
	}
	if err != nil {
		return SeriesRecord{}, fmt.Errorf("get series: %w", err)
	}
	return rec, nil
}

// ListPoints returns the actual observations of a series ordered by period.
func (s *Store) ListPoints(ctx context.Context, seriesID int64) ([]SeriesPoint, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, queryErr := db.Query(ctx, listPointsSQL, seriesID)
	if queryErr != nil {
		return nil, fmt.Errorf("list points: %w", queryErr)
	}
	defer rows.Close()

	out := make([]SeriesPoint, 0)
	for rows.Next() {
		var label, valueStr string
		if err := rows.Scan(&label, &valueStr); err != nil {
			return nil, err
		}
		point, err := parsePoint(label, valueStr)
		if err != nil {
			return nil, err
		}
		out = append(out, point)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func scanSeries(row pgx.Row) (SeriesRecord, error) {
	var rec SeriesRecord
	err := row.Scan(
		&rec.ID,
		&rec.Kind,
		&rec.Name,
		&rec.Unit,
		&rec.Source,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	return rec, err
}

func parsePoint(label, valueStr string) (SeriesPoint, error) {
	period, err := forecast.ParsePeriod(label)
	if err != nil {
		return SeriesPoint{}, fmt.Errorf("parse stored period: %w", err)
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return SeriesPoint{}, fmt.Errorf("parse stored value: %w", err)
	}
	return SeriesPoint{Period: period, Value: value}, nil
}

var _ SeriesStore = (*Store)(nil)
