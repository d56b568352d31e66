package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kickslayer1/bigdatahacathon-2025/internal/forecast"
)

const (
	insertAlertSQL = `INSERT INTO alerts (
        series_id,
        kind,
        period,
        message,
        channels,
        created_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    ON CONFLICT (series_id, kind, period) DO NOTHING
    RETURNING id;`

	listRecentAlertsSQL = `SELECT
        id,
        series_id,
        kind,
        period,
        message,
        channels,
        created_at
    FROM alerts
    ORDER BY created_at DESC
    LIMIT $1;`
)

// AlertStore records emitted alerts so each (series, kind, period) fires once.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (bool, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
}

// InsertAlert stores the alert unless an identical one exists. It reports whether a row was written.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (bool, error) {
	db, err := s.getDB()
	if err != nil {
		return false, err
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	channels := alert.Channels
	if channels == nil {
		channels = []string{}
	}

	var id int64
	err = db.QueryRow(ctx, insertAlertSQL,
		alert.SeriesID,
		alert.Kind,
		alert.Period.String(),
		alert.Message,
		channels,
		alert.CreatedAt,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert alert: %w", err)
	}
	return true, nil
}

// ListRecentAlerts returns the newest alerts first.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, queryErr := db.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list alerts: %w", queryErr)
	}
	defer rows.Close()

	out := make([]AlertRecord, 0, limit)
	for rows.Next() {
		var (
			rec   AlertRecord
			label string
		)
		if err := rows.Scan(&rec.ID, &rec.SeriesID, &rec.Kind, &label, &rec.Message, &rec.Channels, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if rec.Period, err = forecast.ParsePeriod(label); err != nil {
			return nil, fmt.Errorf("parse alert period: %w", err)
		}
		out = append(out, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

var _ AlertStore = (*Store)(nil)
