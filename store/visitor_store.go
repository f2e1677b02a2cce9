package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pulsetrack/api/models"
)

// VisitorStore persists rolling visitor sessions in Postgres. All heartbeat
// mutation happens in a single upsert statement so concurrent heartbeats for
// the same visitor cannot lose counter updates.
type VisitorStore struct {
	db *sql.DB
}

func NewVisitorStore(db *sql.DB) *VisitorStore {
	return &VisitorStore{db: db}
}

// heartbeatUpsert applies one heartbeat atomically. A heartbeat arriving
// more than 30 minutes after the previous one starts a new session window on
// the same row: counters reset, visit_count increments, is_returning flips.
// The prev CTE captures the pre-heartbeat page so the caller can decide
// whether a page_view activity should be appended.
const heartbeatUpsert = `
WITH prev AS (
	SELECT current_page FROM visitors WHERE visitor_id = $1
)
INSERT INTO visitors (
	visitor_id, ip_address, user_agent, device_type, browser, os,
	timezone, language, screen_resolution,
	current_page, landing_page, referrer,
	session_start, session_duration, pages_in_session, bounced,
	page_views, max_scroll_depth, engagement_score,
	is_returning, visit_count,
	referrer_source, referrer_domain, utm_source, utm_medium, utm_campaign,
	first_seen, last_seen
) VALUES (
	$1, $2, $3, $4, $5, $6,
	$7, $8, $9,
	$10, $10, $11,
	$12, 0, 1, TRUE,
	1, $13, LEAST(100, 10 + $13 / 2),
	FALSE, 1,
	$14, $15, $16, $17, $18,
	$12, $12
)
ON CONFLICT (visitor_id) DO UPDATE SET
	last_seen         = EXCLUDED.last_seen,
	ip_address        = EXCLUDED.ip_address,
	user_agent        = EXCLUDED.user_agent,
	device_type       = EXCLUDED.device_type,
	browser           = EXCLUDED.browser,
	os                = EXCLUDED.os,
	timezone          = CASE WHEN EXCLUDED.timezone <> '' THEN EXCLUDED.timezone ELSE visitors.timezone END,
	language          = CASE WHEN EXCLUDED.language <> '' THEN EXCLUDED.language ELSE visitors.language END,
	screen_resolution = CASE WHEN EXCLUDED.screen_resolution <> '' THEN EXCLUDED.screen_resolution ELSE visitors.screen_resolution END,
	session_start = CASE
		WHEN visitors.last_seen < EXCLUDED.last_seen - INTERVAL '30 minutes' THEN EXCLUDED.last_seen
		ELSE visitors.session_start END,
	landing_page = CASE
		WHEN visitors.last_seen < EXCLUDED.last_seen - INTERVAL '30 minutes' THEN EXCLUDED.current_page
		ELSE visitors.landing_page END,
	current_page = CASE WHEN $19 THEN EXCLUDED.current_page ELSE visitors.current_page END,
	pages_in_session = CASE
		WHEN visitors.last_seen < EXCLUDED.last_seen - INTERVAL '30 minutes' THEN 1
		WHEN $19 AND visitors.current_page IS DISTINCT FROM EXCLUDED.current_page THEN visitors.pages_in_session + 1
		ELSE visitors.pages_in_session END,
	bounced = CASE
		WHEN visitors.last_seen < EXCLUDED.last_seen - INTERVAL '30 minutes' THEN TRUE
		WHEN $19 AND visitors.current_page IS DISTINCT FROM EXCLUDED.current_page THEN (visitors.pages_in_session + 1) < 2
		ELSE visitors.bounced END,
	page_views = visitors.page_views + CASE
		WHEN $19 AND (visitors.last_seen < EXCLUDED.last_seen - INTERVAL '30 minutes'
			OR visitors.current_page IS DISTINCT FROM EXCLUDED.current_page) THEN 1
		ELSE 0 END,
	max_scroll_depth = GREATEST(visitors.max_scroll_depth, EXCLUDED.max_scroll_depth),
	engagement_score = LEAST(100,
		(CASE
			WHEN visitors.last_seen < EXCLUDED.last_seen - INTERVAL '30 minutes' THEN 1
			WHEN $19 AND visitors.current_page IS DISTINCT FROM EXCLUDED.current_page THEN visitors.pages_in_session + 1
			ELSE visitors.pages_in_session END) * 10
		+ GREATEST(visitors.max_scroll_depth, EXCLUDED.max_scroll_depth) / 2),
	is_returning = CASE
		WHEN visitors.last_seen < EXCLUDED.last_seen - INTERVAL '30 minutes' THEN TRUE
		ELSE visitors.is_returning END,
	visit_count = visitors.visit_count + CASE
		WHEN visitors.last_seen < EXCLUDED.last_seen - INTERVAL '30 minutes' THEN 1
		ELSE 0 END,
	session_duration = GREATEST(0, EXTRACT(EPOCH FROM (EXCLUDED.last_seen - CASE
		WHEN visitors.last_seen < EXCLUDED.last_seen - INTERVAL '30 minutes' THEN EXCLUDED.last_seen
		ELSE visitors.session_start END)))::BIGINT
RETURNING
	visitor_id, ip_address, user_agent, device_type, browser, os,
	country, region, city, timezone, language, screen_resolution,
	current_page, landing_page, referrer, exit_page,
	session_start, session_duration, pages_in_session, bounced,
	page_views, max_scroll_depth, engagement_score,
	is_returning, visit_count,
	referrer_source, referrer_domain, utm_source, utm_medium, utm_campaign,
	first_seen, last_seen,
	(SELECT current_page FROM prev) AS prev_page,
	(xmax = 0) AS created
`

// UpsertHeartbeat applies a classified heartbeat and returns the resulting
// session together with the pre-heartbeat page and a created flag.
func (s *VisitorStore) UpsertHeartbeat(ctx context.Context, p models.HeartbeatParams) (models.HeartbeatResult, error) {
	row := s.db.QueryRowContext(ctx, heartbeatUpsert,
		p.VisitorID, p.IPAddress, p.UserAgent, p.DeviceType, p.Browser, p.OS,
		p.Timezone, p.Language, p.ScreenResolution,
		p.CurrentPage, p.Referrer,
		p.At, p.ScrollDepth,
		p.ReferrerSource, p.ReferrerDomain, p.UTMSource, p.UTMMedium, p.UTMCampaign,
		p.IsPageView,
	)

	var (
		v        models.VisitorSession
		exitPage sql.NullString
		prevPage sql.NullString
		created  bool
	)
	err := row.Scan(
		&v.VisitorID, &v.IPAddress, &v.UserAgent, &v.DeviceType, &v.Browser, &v.OS,
		&v.Country, &v.Region, &v.City, &v.Timezone, &v.Language, &v.ScreenResolution,
		&v.CurrentPage, &v.LandingPage, &v.Referrer, &exitPage,
		&v.SessionStart, &v.SessionDuration, &v.PagesInSession, &v.Bounced,
		&v.PageViews, &v.MaxScrollDepth, &v.EngagementScore,
		&v.IsReturning, &v.VisitCount,
		&v.ReferrerSource, &v.ReferrerDomain, &v.UTMSource, &v.UTMMedium, &v.UTMCampaign,
		&v.FirstSeen, &v.LastSeen,
		&prevPage, &created,
	)
	if err != nil {
		return models.HeartbeatResult{}, fmt.Errorf("failed to upsert heartbeat: %w", err)
	}
	v.ExitPage = exitPage.String

	return models.HeartbeatResult{
		Session:      &v,
		Created:      created,
		PreviousPage: prevPage.String,
	}, nil
}

// FinalizeExit records the exit page and final session duration when the
// client signals it is leaving. A missing visitor is a silent no-op.
func (s *VisitorStore) FinalizeExit(ctx context.Context, visitorID, exitPage string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE visitors
		SET exit_page = $2,
		    session_duration = GREATEST(0, EXTRACT(EPOCH FROM ($3 - session_start)))::BIGINT
		WHERE visitor_id = $1
	`, visitorID, exitPage, at)
	if err != nil {
		return fmt.Errorf("failed to finalize exit: %w", err)
	}
	return nil
}

// OnlineStats counts visitors seen after onlineAfter, broken down by device.
func (s *VisitorStore) OnlineStats(ctx context.Context, onlineAfter time.Time) (*models.VisitorStats, error) {
	stats := &models.VisitorStats{}
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE device_type = 'desktop'),
		       count(*) FILTER (WHERE device_type = 'mobile'),
		       count(*) FILTER (WHERE device_type = 'tablet')
		FROM visitors
		WHERE last_seen > $1
	`, onlineAfter).Scan(&stats.Online, &stats.Desktop, &stats.Mobile, &stats.Tablet)
	if err != nil {
		return nil, fmt.Errorf("failed to query online stats: %w", err)
	}
	return stats, nil
}

// CountActive counts sessions whose last_seen falls inside [from, to).
func (s *VisitorStore) CountActive(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM visitors WHERE last_seen >= $1 AND last_seen < $2
	`, from, to).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}
	return count, nil
}

// CountSessionStarts counts sessions first seen since the given time. Used
// as the home-page approximation for the funnel's root step.
func (s *VisitorStore) CountSessionStarts(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM visitors WHERE first_seen >= $1
	`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count session starts: %w", err)
	}
	return count, nil
}

// EntryPages groups sessions by their landing page, top N by count.
func (s *VisitorStore) EntryPages(ctx context.Context, since time.Time, limit int) ([]models.PageCount, error) {
	return s.pageCounts(ctx, `
		SELECT landing_page, count(*) AS sessions
		FROM visitors
		WHERE last_seen >= $1 AND landing_page <> ''
		GROUP BY landing_page
		ORDER BY sessions DESC
		LIMIT $2
	`, since, limit)
}

// ExitPages groups sessions with a recorded exit page, top N by count.
func (s *VisitorStore) ExitPages(ctx context.Context, since time.Time, limit int) ([]models.PageCount, error) {
	return s.pageCounts(ctx, `
		SELECT exit_page, count(*) AS sessions
		FROM visitors
		WHERE last_seen >= $1 AND exit_page IS NOT NULL AND exit_page <> ''
		GROUP BY exit_page
		ORDER BY sessions DESC
		LIMIT $2
	`, since, limit)
}

func (s *VisitorStore) pageCounts(ctx context.Context, query string, since time.Time, limit int) ([]models.PageCount, error) {
	rows, err := s.db.QueryContext(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query page counts: %w", err)
	}
	defer rows.Close()

	results := []models.PageCount{}
	for rows.Next() {
		var pc models.PageCount
		if err := rows.Scan(&pc.Page, &pc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan page count row: %w", err)
		}
		results = append(results, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during page count query: %w", err)
	}
	return results, nil
}

// AvgTimeByPage averages session duration per landing page over sessions
// with a positive duration, top N by session count.
func (s *VisitorStore) AvgTimeByPage(ctx context.Context, since time.Time, limit int) ([]models.PageTiming, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT landing_page, avg(session_duration), count(*) AS sessions
		FROM visitors
		WHERE last_seen >= $1 AND session_duration > 0 AND landing_page <> ''
		GROUP BY landing_page
		ORDER BY sessions DESC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query avg time by page: %w", err)
	}
	defer rows.Close()

	results := []models.PageTiming{}
	for rows.Next() {
		var pt models.PageTiming
		if err := rows.Scan(&pt.Page, &pt.AvgDuration, &pt.Sessions); err != nil {
			return nil, fmt.Errorf("failed to scan page timing row: %w", err)
		}
		results = append(results, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during page timing query: %w", err)
	}
	return results, nil
}

// Breakdown counts returning vs new sessions active since the given time.
func (s *VisitorStore) Breakdown(ctx context.Context, since time.Time) (models.VisitorBreakdown, error) {
	var b models.VisitorBreakdown
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FILTER (WHERE is_returning),
		       count(*) FILTER (WHERE NOT is_returning)
		FROM visitors
		WHERE last_seen >= $1
	`, since).Scan(&b.Returning, &b.New)
	if err != nil {
		return models.VisitorBreakdown{}, fmt.Errorf("failed to query visitor breakdown: %w", err)
	}
	return b, nil
}

// ListRecent returns the most recently seen sessions, newest first.
func (s *VisitorStore) ListRecent(ctx context.Context, limit int) ([]models.VisitorSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT visitor_id, device_type, browser, os, country, city,
		       current_page, landing_page, referrer_source, referrer_domain,
		       session_start, session_duration, pages_in_session, bounced,
		       page_views, is_returning, visit_count, first_seen, last_seen
		FROM visitors
		ORDER BY last_seen DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	results := []models.VisitorSession{}
	for rows.Next() {
		var v models.VisitorSession
		if err := rows.Scan(
			&v.VisitorID, &v.DeviceType, &v.Browser, &v.OS, &v.Country, &v.City,
			&v.CurrentPage, &v.LandingPage, &v.ReferrerSource, &v.ReferrerDomain,
			&v.SessionStart, &v.SessionDuration, &v.PagesInSession, &v.Bounced,
			&v.PageViews, &v.IsReturning, &v.VisitCount, &v.FirstSeen, &v.LastSeen,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		results = append(results, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during session list query: %w", err)
	}
	return results, nil
}

// PurgeExpired hard-deletes sessions idle since before the cutoff. This is
// the storage-level 24h TTL policy, invoked by the janitor, never by the
// request path.
func (s *VisitorStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM visitors WHERE last_seen < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}
