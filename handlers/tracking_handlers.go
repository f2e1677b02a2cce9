package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"pulsetrack/api/engine"
	"pulsetrack/api/models"
)

// visitorCookie is the long-lived identity cookie minted on first contact
// when the client did not bring its own visitor id.
const (
	visitorCookie       = "visitor_id"
	visitorCookieMaxAge = 365 * 24 * 60 * 60
)

// VisitorStatsSource serves the online-visitor breakdown.
type VisitorStatsSource interface {
	OnlineStats(ctx context.Context, onlineAfter time.Time) (*models.VisitorStats, error)
}

// TrackingHandlers serves the visitor heartbeat ingestion and online-stats
// endpoints.
type TrackingHandlers struct {
	Tracker *engine.Tracker
	Stats   VisitorStatsSource
}

func NewTrackingHandlers(tracker *engine.Tracker, stats VisitorStatsSource) *TrackingHandlers {
	return &TrackingHandlers{Tracker: tracker, Stats: stats}
}

// PostVisitor ingests a heartbeat, pageview or exit signal. Fire and
// forget: storage failures are logged and the client still gets 200 so
// instrumentation can never break the host page.
func (h *TrackingHandlers) PostVisitor(c *gin.Context) {
	var req models.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.CurrentPage == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "currentPage is required"})
		return
	}

	visitorID := req.VisitorID
	if visitorID == "" {
		if cookie, err := c.Cookie(visitorCookie); err == nil {
			visitorID = cookie
		}
	}
	if visitorID == "" {
		visitorID = uuid.New().String()
		c.SetCookie(visitorCookie, visitorID, visitorCookieMaxAge, "/", "", false, false)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if req.Type == "exit" {
		if err := h.Tracker.RecordExit(ctx, visitorID, req.CurrentPage); err != nil {
			log.Warn().Err(err).Str("visitor", visitorID).Msg("failed to record exit")
		}
		c.JSON(http.StatusOK, gin.H{})
		return
	}

	_, err := h.Tracker.RecordHeartbeat(ctx, engine.HeartbeatInput{
		VisitorID:        visitorID,
		CurrentPage:      req.CurrentPage,
		Referrer:         req.Referrer,
		IsPageView:       req.Type == "pageview",
		IPAddress:        c.ClientIP(),
		UserAgent:        c.Request.UserAgent(),
		Timezone:         req.Timezone,
		Language:         req.Language,
		ScreenResolution: req.ScreenResolution,
		ScrollDepth:      req.ScrollDepth,
	})
	if errors.Is(err, engine.ErrMissingVisitorID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "visitorId is required"})
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("visitor", visitorID).Msg("failed to record heartbeat")
	}

	c.JSON(http.StatusOK, gin.H{})
}

// GetVisitors returns online visitor counts broken down by device.
func (h *TrackingHandlers) GetVisitors(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	stats, err := h.Stats.OnlineStats(ctx, time.Now().Add(-engine.OnlineWindow))
	if err != nil {
		log.Error().Err(err).Msg("failed to query online stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve visitor statistics"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
