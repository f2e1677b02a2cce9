package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pulsetrack/api/models"
)

// AlertStore persists anomaly alerts in Postgres.
type AlertStore struct {
	db *sql.DB
}

func NewAlertStore(db *sql.DB) *AlertStore {
	return &AlertStore{db: db}
}

// HasRecent reports whether any alert of the given type was created at or
// after since, read or not.
func (s *AlertStore) HasRecent(ctx context.Context, alertType string, since time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM alerts WHERE type = $1 AND created_at >= $2)
	`, alertType, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check recent alerts: %w", err)
	}
	return exists, nil
}

// Create inserts an alert guarded by a unique dedup key. Two concurrent
// creators racing on the same key produce exactly one row; the loser gets
// created=false with no error.
func (s *AlertStore) Create(ctx context.Context, a *models.Alert, dedupKey string) (bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO alerts (id, type, severity, message, metadata, dedup_key, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
		ON CONFLICT (dedup_key) DO NOTHING
		RETURNING id
	`, a.ID, a.Type, a.Severity, a.Message, nullableJSON(a.Metadata), dedupKey, a.CreatedAt).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create alert: %w", err)
	}
	return true, nil
}

// ListRecent returns the newest alerts first.
func (s *AlertStore) ListRecent(ctx context.Context, limit int) ([]models.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, severity, message, COALESCE(metadata::TEXT, ''), is_read, created_at
		FROM alerts
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	results := []models.Alert{}
	for rows.Next() {
		var (
			a        models.Alert
			metadata string
		)
		if err := rows.Scan(&a.ID, &a.Type, &a.Severity, &a.Message, &metadata, &a.IsRead, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert row: %w", err)
		}
		if metadata != "" {
			a.Metadata = []byte(metadata)
		}
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during alert list query: %w", err)
	}
	return results, nil
}

// MarkRead flips an alert to read. Idempotent; marking a missing or
// already-read alert is a no-op.
func (s *AlertStore) MarkRead(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE alerts SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark alert read: %w", err)
	}
	return nil
}

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
