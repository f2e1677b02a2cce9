package engine

import (
	"context"
	"fmt"
	"time"

	"pulsetrack/api/models"
)

// Result caps for the performance report.
const (
	topPagesLimit   = 20
	topEntryLimit   = 10
	topExitLimit    = 10
	topTimingsLimit = 10
)

// PageViewSource aggregates page_view activities.
type PageViewSource interface {
	PagePerformance(ctx context.Context, since time.Time, limit int) ([]models.PagePerformance, error)
}

// SessionSource aggregates visitor sessions.
type SessionSource interface {
	EntryPages(ctx context.Context, since time.Time, limit int) ([]models.PageCount, error)
	ExitPages(ctx context.Context, since time.Time, limit int) ([]models.PageCount, error)
	AvgTimeByPage(ctx context.Context, since time.Time, limit int) ([]models.PageTiming, error)
	Breakdown(ctx context.Context, since time.Time) (models.VisitorBreakdown, error)
}

// Aggregator is the read-only content performance reporter. All methods are
// pure aggregations; an empty window yields an empty report, never an
// error.
type Aggregator struct {
	pages    PageViewSource
	sessions SessionSource
	now      func() time.Time
}

func NewAggregator(pages PageViewSource, sessions SessionSource) *Aggregator {
	return &Aggregator{pages: pages, sessions: sessions, now: time.Now}
}

// GetPerformance builds the page-level engagement report over the trailing
// number of days (default 7, capped at 90).
func (a *Aggregator) GetPerformance(ctx context.Context, days int) (*models.PerformanceReport, error) {
	if days <= 0 {
		days = 7
	}
	if days > 90 {
		days = 90
	}
	since := a.now().Add(-time.Duration(days) * 24 * time.Hour)

	pagePerf, err := a.pages.PagePerformance(ctx, since, topPagesLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate page performance: %w", err)
	}
	entries, err := a.sessions.EntryPages(ctx, since, topEntryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate entry pages: %w", err)
	}
	exits, err := a.sessions.ExitPages(ctx, since, topExitLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate exit pages: %w", err)
	}
	timings, err := a.sessions.AvgTimeByPage(ctx, since, topTimingsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate time by page: %w", err)
	}
	breakdown, err := a.sessions.Breakdown(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate visitor breakdown: %w", err)
	}

	return &models.PerformanceReport{
		PagePerformance:  pagePerf,
		EntryPages:       entries,
		ExitPages:        exits,
		AvgTimeByPage:    timings,
		VisitorBreakdown: breakdown,
	}, nil
}
