// Package engine holds the read/write analytics engines: heartbeat
// ingestion, anomaly detection, funnel evaluation and content performance.
// Engines depend on narrow repository interfaces so tests can substitute
// in-memory stores.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"pulsetrack/api/models"
	"pulsetrack/api/utils"
)

// OnlineWindow is how long after its last heartbeat a session still counts
// as online. Clients beat every ~30s; five minutes tolerates dropped beats.
const OnlineWindow = 5 * time.Minute

// ErrMissingVisitorID rejects heartbeats without a visitor identity. The
// client is responsible for minting and persisting one.
var ErrMissingVisitorID = errors.New("visitorId is required")

// VisitorRepo is the session storage the tracker writes through. The upsert
// must be atomic at the storage layer; the tracker never read-modify-writes
// session counters.
type VisitorRepo interface {
	UpsertHeartbeat(ctx context.Context, p models.HeartbeatParams) (models.HeartbeatResult, error)
	FinalizeExit(ctx context.Context, visitorID, exitPage string, at time.Time) error
}

// ActivityAppender receives the page_view events derived from navigation.
type ActivityAppender interface {
	Append(ctx context.Context, a *models.Activity) error
}

// IDSource mints activity ids. Injected so tests get stable ids.
type IDSource func() string

// Tracker ingests per-request visitor signals and maintains rolling session
// state.
type Tracker struct {
	visitors   VisitorRepo
	activities ActivityAppender
	newID      IDSource
	now        func() time.Time
}

func NewTracker(visitors VisitorRepo, activities ActivityAppender, newID IDSource) *Tracker {
	return &Tracker{
		visitors:   visitors,
		activities: activities,
		newID:      newID,
		now:        time.Now,
	}
}

// HeartbeatInput is one classified-enough heartbeat from the client;
// referrer/UTM/user-agent classification happens inside RecordHeartbeat.
type HeartbeatInput struct {
	VisitorID        string
	CurrentPage      string
	Referrer         string
	IsPageView       bool
	IPAddress        string
	UserAgent        string
	Timezone         string
	Language         string
	ScreenResolution string
	ScrollDepth      int
}

// RecordHeartbeat applies one heartbeat or pageview. On a page change in an
// existing session it also appends a private page_view activity; a failure
// to append is logged and swallowed since activity loss must not break
// session tracking.
func (t *Tracker) RecordHeartbeat(ctx context.Context, in HeartbeatInput) (*models.VisitorSession, error) {
	if in.VisitorID == "" {
		return nil, ErrMissingVisitorID
	}

	now := t.now()
	utmSource, utmMedium, utmCampaign := utils.ExtractUTM(in.CurrentPage)
	source, domain := utils.ClassifyReferrer(in.Referrer, utmSource, utmMedium)
	device, browser, osName := utils.ParseUserAgent(in.UserAgent)

	res, err := t.visitors.UpsertHeartbeat(ctx, models.HeartbeatParams{
		VisitorID:        in.VisitorID,
		CurrentPage:      in.CurrentPage,
		Referrer:         in.Referrer,
		IsPageView:       in.IsPageView,
		IPAddress:        in.IPAddress,
		UserAgent:        in.UserAgent,
		DeviceType:       device,
		Browser:          browser,
		OS:               osName,
		Timezone:         in.Timezone,
		Language:         in.Language,
		ScreenResolution: in.ScreenResolution,
		ReferrerSource:   source,
		ReferrerDomain:   domain,
		UTMSource:        utmSource,
		UTMMedium:        utmMedium,
		UTMCampaign:      utmCampaign,
		ScrollDepth:      in.ScrollDepth,
		At:               now,
	})
	if err != nil {
		return nil, err
	}

	if !res.Created && in.IsPageView && res.PreviousPage != in.CurrentPage {
		activity := &models.Activity{
			ID:         t.newID(),
			Type:       models.ActivityPageView,
			VisitorID:  in.VisitorID,
			TargetType: "page",
			TargetSlug: pagePath(in.CurrentPage),
			Metadata:   scrollMetadata(in.ScrollDepth),
			IsPublic:   false, // raw navigation never surfaces in public feeds
			CreatedAt:  now,
		}
		if err := t.activities.Append(ctx, activity); err != nil {
			log.Warn().Err(err).Str("visitor", in.VisitorID).Msg("failed to append page_view activity")
		}
	}

	snapshot := res.Session
	snapshot.IsOnline = now.Sub(snapshot.LastSeen) < OnlineWindow
	return snapshot, nil
}

// RecordExit handles the client's leave signal: persists the exit page and
// finalizes the session duration.
func (t *Tracker) RecordExit(ctx context.Context, visitorID, exitPage string) error {
	if visitorID == "" {
		return ErrMissingVisitorID
	}
	return t.visitors.FinalizeExit(ctx, visitorID, pagePath(exitPage), t.now())
}

// pagePath strips any query string (UTM tags and the like) from a page URL,
// keeping only the path for slug matching.
func pagePath(page string) string {
	u, err := url.Parse(page)
	if err != nil || u.Path == "" {
		return page
	}
	return u.Path
}

func scrollMetadata(depth int) json.RawMessage {
	if depth <= 0 {
		return nil
	}
	b, _ := json.Marshal(map[string]int{"scrollDepth": depth})
	return b
}
