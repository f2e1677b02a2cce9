package store

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"pulsetrack/api/database"
	"pulsetrack/api/models"
)

// MaxActivityLimit caps every activity read regardless of the requested
// limit.
const MaxActivityLimit = 50

// ActivityStore appends to and aggregates over the immutable activity
// stream in ClickHouse.
type ActivityStore struct {
	DB *database.ClickHouseClient
}

func NewActivityStore(chClient *database.ClickHouseClient) *ActivityStore {
	return &ActivityStore{DB: chClient}
}

// Append inserts a single activity. Events are never updated afterwards.
func (s *ActivityStore) Append(ctx context.Context, a *models.Activity) error {
	batch, err := s.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO activities (
			id, type, visitor_id, user_id, display_name, avatar_url, city, country,
			target_type, target_id, target_title, target_slug, metadata, is_public, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare activity insert: %w", err)
	}

	isPublic := uint8(0)
	if a.IsPublic {
		isPublic = 1
	}
	if err := batch.Append(
		a.ID, a.Type, a.VisitorID, a.UserID, a.DisplayName, a.AvatarURL, a.City, a.Country,
		a.TargetType, a.TargetID, a.TargetTitle, a.TargetSlug, string(a.Metadata), isPublic, a.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to append activity to batch: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send activity batch: %w", err)
	}
	return nil
}

// Query returns activities newest first, filtered by the typed filter and
// capped at MaxActivityLimit.
func (s *ActivityStore) Query(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, error) {
	limit := filter.Limit
	if limit <= 0 || limit > MaxActivityLimit {
		limit = MaxActivityLimit
	}

	where := []string{"1 = 1"}
	args := []interface{}{}
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			placeholders[i] = "?"
			args = append(args, t)
		}
		where = append(where, fmt.Sprintf("type IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filter.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, *filter.Since)
	}
	if filter.PublicOnly {
		where = append(where, "is_public = 1")
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, type, visitor_id, user_id, display_name, avatar_url, city, country,
		       target_type, target_id, target_title, target_slug, metadata, is_public, created_at
		FROM activities
		WHERE %s
		ORDER BY created_at DESC
		LIMIT ?
	`, strings.Join(where, " AND "))

	rows, err := s.DB.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	results := []models.Activity{}
	for rows.Next() {
		var (
			a        models.Activity
			metadata string
			isPublic uint8
		)
		if err := rows.Scan(
			&a.ID, &a.Type, &a.VisitorID, &a.UserID, &a.DisplayName, &a.AvatarURL, &a.City, &a.Country,
			&a.TargetType, &a.TargetID, &a.TargetTitle, &a.TargetSlug, &metadata, &isPublic, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		if metadata != "" {
			a.Metadata = []byte(metadata)
		}
		a.IsPublic = isPublic == 1
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during activity query: %w", err)
	}
	return results, nil
}

// CountVisitorsByPagePrefix counts distinct visitors with a page_view whose
// target slug starts with the given prefix, since the given time.
func (s *ActivityStore) CountVisitorsByPagePrefix(ctx context.Context, prefix string, since time.Time) (int64, error) {
	var count uint64
	err := s.DB.Conn.QueryRow(ctx, `
		SELECT uniq(visitor_id)
		FROM activities
		WHERE type = 'page_view' AND startsWith(target_slug, ?) AND created_at >= ?
	`, prefix, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count visitors by page prefix: %w", err)
	}
	return int64(count), nil
}

// CountVisitorsByActivityType counts distinct visitors with any activity of
// the given type since the given time.
func (s *ActivityStore) CountVisitorsByActivityType(ctx context.Context, activityType string, since time.Time) (int64, error) {
	var count uint64
	err := s.DB.Conn.QueryRow(ctx, `
		SELECT uniq(visitor_id)
		FROM activities
		WHERE type = ? AND created_at >= ?
	`, activityType, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count visitors by activity type: %w", err)
	}
	return int64(count), nil
}

// PagePerformance groups page_view activities by target slug: views, unique
// visitors and mean scroll depth (from the free-form metadata payload).
func (s *ActivityStore) PagePerformance(ctx context.Context, since time.Time, limit int) ([]models.PagePerformance, error) {
	rows, err := s.DB.Conn.Query(ctx, `
		SELECT target_slug,
		       count() AS views,
		       uniq(visitor_id) AS unique_visitors,
		       avg(JSONExtractFloat(metadata, 'scrollDepth')) AS avg_scroll
		FROM activities
		WHERE type = 'page_view' AND created_at >= ? AND target_slug <> ''
		GROUP BY target_slug
		ORDER BY views DESC
		LIMIT ?
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query page performance: %w", err)
	}
	defer rows.Close()

	results := []models.PagePerformance{}
	for rows.Next() {
		var (
			slug      string
			views     uint64
			uniques   uint64
			avgScroll float64
		)
		if err := rows.Scan(&slug, &views, &uniques, &avgScroll); err != nil {
			return nil, fmt.Errorf("failed to scan page performance row: %w", err)
		}
		if math.IsNaN(avgScroll) {
			avgScroll = 0
		}
		results = append(results, models.PagePerformance{
			Slug:           slug,
			Views:          int64(views),
			UniqueVisitors: int64(uniques),
			AvgScrollDepth: math.Round(avgScroll*10) / 10,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during page performance query: %w", err)
	}
	return results, nil
}

// Export returns up to limit activities of the given types for CSV export,
// newest first. Unlike Query this is not feed-capped.
func (s *ActivityStore) Export(ctx context.Context, types []string, limit int) ([]models.Activity, error) {
	where := "1 = 1"
	args := []interface{}{}
	if len(types) > 0 {
		placeholders := make([]string, len(types))
		for i, t := range types {
			placeholders[i] = "?"
			args = append(args, t)
		}
		where = fmt.Sprintf("type IN (%s)", strings.Join(placeholders, ", "))
	}
	args = append(args, limit)

	rows, err := s.DB.Conn.Query(ctx, fmt.Sprintf(`
		SELECT id, type, visitor_id, target_type, target_slug, metadata, is_public, created_at
		FROM activities
		WHERE %s
		ORDER BY created_at DESC
		LIMIT ?
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities for export: %w", err)
	}
	defer rows.Close()

	results := []models.Activity{}
	for rows.Next() {
		var (
			a        models.Activity
			metadata string
			isPublic uint8
		)
		if err := rows.Scan(&a.ID, &a.Type, &a.VisitorID, &a.TargetType, &a.TargetSlug, &metadata, &isPublic, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan export row: %w", err)
		}
		if metadata != "" {
			a.Metadata = []byte(metadata)
		}
		a.IsPublic = isPublic == 1
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during export query: %w", err)
	}
	return results, nil
}
