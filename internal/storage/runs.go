package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/kickslayer1/bigdatahacathon-2025/internal/forecast"
)

const (
	insertRunSQL = `INSERT INTO forecast_runs (
        id,
        series_id,
        fingerprint,
        tier,
        horizon,
        r2_score,
        mae,
        accuracy,
        created_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    );`

	insertRunPointSQL = `INSERT INTO forecast_points (
        run_id,
        period,
        value,
        lower_bound,
        upper_bound,
        confidence,
        decomposition,
        polynomial
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    );`

	latestRunSQL = `SELECT
        r.id,
        r.series_id,
        s.kind,
        s.name,
        r.fingerprint,
        r.tier,
        r.horizon,
        r.r2_score,
        r.mae,
        r.accuracy,
        r.created_at
    FROM forecast_runs r
    JOIN series s ON s.id = r.series_id
    WHERE r.series_id = $1
    ORDER BY r.created_at DESC
    LIMIT 1;`

	listRecentRunsSQL = `SELECT
        r.id,
        r.series_id,
        s.kind,
        s.name,
        r.fingerprint,
        r.tier,
        r.horizon,
        r.r2_score,
        r.mae,
        r.accuracy,
        r.created_at
    FROM forecast_runs r
    JOIN series s ON s.id = r.series_id
    ORDER BY r.created_at DESC
    LIMIT $1;`

	listRunPointsSQL = `SELECT
        period,
        value,
        lower_bound,
        upper_bound,
        confidence,
        decomposition,
        polynomial
    FROM forecast_points
    WHERE run_id = $1
    ORDER BY period;`
)

// RunStore persists forecast runs.
type RunStore interface {
	InsertForecastRun(ctx context.Context, run ForecastRun) error
	LatestRun(ctx context.Context, seriesID int64) (ForecastRun, error)
	ListRecentRuns(ctx context.Context, limit int) ([]ForecastRun, error)
}

// InsertForecastRun stores a run and its points atomically.
func (s *Store) InsertForecastRun(ctx context.Context, run ForecastRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertRunSQL,
			run.ID.String(),
			run.SeriesID,
			run.Fingerprint,
			run.Tier,
			run.Horizon,
			nullableFloat(run.R2),
			nullableFloat(run.MAE),
			nullableFloat(run.Accuracy),
			run.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert forecast run: %w", err)
		}

		for _, p := range run.Points {
			if _, err := tx.Exec(ctx, insertRunPointSQL,
				run.ID.String(),
				p.Period.String(),
				p.Value.String(),
				p.Lower.String(),
				p.Upper.String(),
				p.Confidence,
				nullableDecimal(p.Decomposition),
				nullableDecimal(p.Polynomial),
			); err != nil {
				return fmt.Errorf("insert forecast point %s: %w", p.Period, err)
			}
		}
		return nil
	})
}

// LatestRun returns the most recent run of a series with its points.
func (s *Store) LatestRun(ctx context.Context, seriesID int64) (ForecastRun, error) {
	db, err := s.getDB()
	if err != nil {
		return ForecastRun{}, err
	}

	run, err := scanRun(db.QueryRow(ctx, latestRunSQL, seriesID))
	if errors.Is(err, pgx.ErrNoRows) {
		return ForecastRun{}, fmt.Errorf("forecast run for series %d: %w", seriesID, ErrNotFound)
	}
	if err != nil {
		return ForecastRun{}, fmt.Errorf("latest run: %w", err)
	}

	run.Points, err = s.listRunPoints(ctx, db, run.ID)
	if err != nil {
		return ForecastRun{}, err
	}
	return run, nil
}

// ListRecentRuns lists run headers, newest first. Points are not loaded.
func (s *Store) ListRecentRuns(ctx context.Context, limit int) ([]ForecastRun, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, queryErr := db.Query(ctx, listRecentRunsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent runs: %w", queryErr)
	}
	defer rows.Close()

	runs := make([]ForecastRun, 0, limit)
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		runs = append(runs, run)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}

func (s *Store) listRunPoints(ctx context.Context, db DB, runID uuid.UUID) ([]ForecastPoint, error) {
	rows, err := db.Query(ctx, listRunPointsSQL, runID.String())
	if err != nil {
		return nil, fmt.Errorf("list run points: %w", err)
	}
	defer rows.Close()

	points := make([]ForecastPoint, 0)
	for rows.Next() {
		var (
			label                           string
			valueStr, lowerStr, upperStr    string
			confidence                      string
			decompositionStr, polynomialStr sql.NullString
		)
		if err := rows.Scan(&label, &valueStr, &lowerStr, &upperStr, &confidence, &decompositionStr, &polynomialStr); err != nil {
			return nil, err
		}

		period, err := forecast.ParsePeriod(label)
		if err != nil {
			return nil, fmt.Errorf("parse stored period: %w", err)
		}
		point := ForecastPoint{Period: period, Confidence: confidence}
		if point.Value, err = decimal.NewFromString(valueStr); err != nil {
			return nil, fmt.Errorf("parse value: %w", err)
		}
		if point.Lower, err = decimal.NewFromString(lowerStr); err != nil {
			return nil, fmt.Errorf("parse lower bound: %w", err)
		}
		if point.Upper, err = decimal.NewFromString(upperStr); err != nil {
			return nil, fmt.Errorf("parse upper bound: %w", err)
		}
		if point.Decomposition, err = parseNullDecimal(decompositionStr); err != nil {
			return nil, fmt.Errorf("parse decomposition: %w", err)
		}
		if point.Polynomial, err = parseNullDecimal(polynomialStr); err != nil {
			return nil, fmt.Errorf("parse polynomial: %w", err)
		}
		points = append(points, point)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return points, nil
}

func scanRun(row pgx.Row) (ForecastRun, error) {
	var (
		run               ForecastRun
		id                string
		r2, mae, accuracy sql.NullFloat64
	)
	if err := row.Scan(
		&id,
		&run.SeriesID,
		&run.SeriesKind,
		&run.SeriesName,
		&run.Fingerprint,
		&run.Tier,
		&run.Horizon,
		&r2,
		&mae,
		&accuracy,
		&run.CreatedAt,
	); err != nil {
		return ForecastRun{}, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return ForecastRun{}, fmt.Errorf("parse run id: %w", err)
	}
	run.ID = parsed
	run.R2 = floatPtr(r2)
	run.MAE = floatPtr(mae)
	run.Accuracy = floatPtr(accuracy)
	return run, nil
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableDecimal(v *decimal.Decimal) any {
	if v == nil {
		return nil
	}
	return v.String()
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func parseNullDecimal(v sql.NullString) (*decimal.Decimal, error) {
	if !v.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

var _ RunStore = (*Store)(nil)
