package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"pulsetrack/api/models"
	"pulsetrack/api/utils"
)

// ActivitySource is the activity stream as seen by the HTTP layer.
type ActivitySource interface {
	Append(ctx context.Context, a *models.Activity) error
	Query(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, error)
}

// ActivityHandlers serves the append-only activity stream: ingestion from
// client instrumentation and the public social-proof feed.
type ActivityHandlers struct {
	Activities ActivitySource
}

func NewActivityHandlers(activities ActivitySource) *ActivityHandlers {
	return &ActivityHandlers{Activities: activities}
}

// PostActivity appends one event. Display fields are synthesized for
// anonymous visitors so public feeds always have something to render.
func (h *ActivityHandlers) PostActivity(c *gin.Context) {
	var req models.CreateActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type and visitorId are required"})
		return
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}
	displayName := req.DisplayName
	if displayName == "" {
		displayName = anonymousName(req.VisitorID)
	}

	activity := &models.Activity{
		ID:          uuid.New().String(),
		Type:        req.Type,
		VisitorID:   req.VisitorID,
		UserID:      req.UserID,
		DisplayName: displayName,
		AvatarURL:   req.AvatarURL,
		City:        req.City,
		Country:     req.Country,
		TargetType:  req.TargetType,
		TargetID:    req.TargetID,
		TargetTitle: req.TargetTitle,
		TargetSlug:  req.TargetSlug,
		Metadata:    req.Metadata,
		IsPublic:    isPublic,
		CreatedAt:   time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if err := h.Activities.Append(ctx, activity); err != nil {
		// Instrumentation path: log and report success anyway.
		log.Warn().Err(err).Str("type", activity.Type).Msg("failed to append activity")
	}

	c.JSON(http.StatusOK, gin.H{"activity": gin.H{
		"id":          activity.ID,
		"type":        activity.Type,
		"displayName": activity.DisplayName,
	}})
}

// GetActivities returns recent events newest first. Unauthenticated callers
// only ever see public events; an authenticated dashboard may request the
// full stream with public=false.
func (h *ActivityHandlers) GetActivities(c *gin.Context) {
	filter := models.ActivityFilter{PublicOnly: true}

	if limitParam := c.Query("limit"); limitParam != "" {
		limit, err := strconv.Atoi(limitParam)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'limit' parameter. Must be a positive integer."})
			return
		}
		filter.Limit = limit
	}
	if typesParam := c.Query("types"); typesParam != "" {
		for _, t := range strings.Split(typesParam, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.Types = append(filter.Types, t)
			}
		}
	}
	if sinceParam := c.Query("since"); sinceParam != "" {
		since, err := time.Parse(time.RFC3339, sinceParam)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'since' timestamp format. Use RFC3339 (e.g., 2006-01-02T15:04:05Z)"})
			return
		}
		filter.Since = &since
	}
	if c.GetBool("authenticated") && c.Query("public") == "false" {
		filter.PublicOnly = false
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	activities, err := h.Activities.Query(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("failed to query activities")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve activities"})
		return
	}

	now := time.Now()
	for i := range activities {
		activities[i].TimeAgo = utils.RelativeTime(activities[i].CreatedAt, now)
	}

	c.JSON(http.StatusOK, gin.H{
		"activities": activities,
		"count":      len(activities),
		"timestamp":  now.UTC().Format(time.RFC3339),
	})
}

// anonymousName derives a stable pseudonym from the visitor id.
func anonymousName(visitorID string) string {
	short := visitorID
	if len(short) > 6 {
		short = short[:6]
	}
	return fmt.Sprintf("Visitor-%s", short)
}
