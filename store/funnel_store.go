package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"pulsetrack/api/models"
)

// ErrNotFound is returned by stores when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// FunnelStore persists conversion funnel definitions in Postgres. Funnels
// are read-mostly; the engines never mutate steps.
type FunnelStore struct {
	db *sql.DB
}

func NewFunnelStore(db *sql.DB) *FunnelStore {
	return &FunnelStore{db: db}
}

// Active returns the most recently created active funnel, or ErrNotFound.
func (s *FunnelStore) Active(ctx context.Context) (*models.Funnel, error) {
	f := &models.Funnel{}
	var steps []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, steps, is_active, created_at
		FROM funnels
		WHERE is_active
		ORDER BY created_at DESC
		LIMIT 1
	`).Scan(&f.ID, &f.Name, &steps, &f.IsActive, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active funnel: %w", err)
	}
	if err := json.Unmarshal(steps, &f.Steps); err != nil {
		return nil, fmt.Errorf("failed to decode funnel steps: %w", err)
	}
	return f, nil
}

// Create inserts a funnel definition.
func (s *FunnelStore) Create(ctx context.Context, f *models.Funnel) error {
	steps, err := json.Marshal(f.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode funnel steps: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO funnels (id, name, steps, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, f.ID, f.Name, steps, f.IsActive, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create funnel: %w", err)
	}
	return nil
}
