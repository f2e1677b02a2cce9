package handlers

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"pulsetrack/api/models"
)

const (
	defaultExportLimit = 1000
	maxExportLimit     = 10000
)

// VisitorExporter lists sessions for CSV export.
type VisitorExporter interface {
	ListRecent(ctx context.Context, limit int) ([]models.VisitorSession, error)
}

// ActivityExporter lists activities for CSV export.
type ActivityExporter interface {
	Export(ctx context.Context, types []string, limit int) ([]models.Activity, error)
}

// ExportHandlers serves CSV dumps of the tracking data. encoding/csv takes
// care of quote-wrapping values containing commas, quotes or newlines.
type ExportHandlers struct {
	Visitors   VisitorExporter
	Activities ActivityExporter
}

func NewExportHandlers(visitors VisitorExporter, activities ActivityExporter) *ExportHandlers {
	return &ExportHandlers{Visitors: visitors, Activities: activities}
}

// GetExport streams one of the export types as text/csv.
func (h *ExportHandlers) GetExport(c *gin.Context) {
	exportType := c.Query("type")

	limit := defaultExportLimit
	if limitParam := c.Query("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'limit' parameter. Must be a positive integer."})
			return
		}
		limit = parsed
	}
	if limit > maxExportLimit {
		limit = maxExportLimit
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	var (
		records [][]string
		err     error
	)
	switch exportType {
	case "visitors":
		records, err = h.visitorRecords(ctx, limit)
	case "activities":
		records, err = h.activityRecords(ctx, nil, limit)
	case "searches":
		records, err = h.activityRecords(ctx, []string{models.ActivitySearch}, limit)
	case "clicks":
		records, err = h.activityRecords(ctx, []string{models.ActivityClick}, limit)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be one of visitors, activities, searches, clicks"})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("type", exportType).Msg("export query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export data"})
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", exportType))
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	if err := w.WriteAll(records); err != nil {
		log.Warn().Err(err).Msg("failed to stream CSV export")
	}
}

func (h *ExportHandlers) visitorRecords(ctx context.Context, limit int) ([][]string, error) {
	sessions, err := h.Visitors.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	return VisitorCSVRecords(sessions), nil
}

func (h *ExportHandlers) activityRecords(ctx context.Context, types []string, limit int) ([][]string, error) {
	activities, err := h.Activities.Export(ctx, types, limit)
	if err != nil {
		return nil, err
	}
	return ActivityCSVRecords(activities), nil
}

// VisitorCSVRecords renders sessions as CSV rows, header first.
func VisitorCSVRecords(sessions []models.VisitorSession) [][]string {
	records := [][]string{{
		"visitorId", "deviceType", "browser", "os", "country", "city",
		"currentPage", "landingPage", "referrerSource", "referrerDomain",
		"sessionStart", "sessionDuration", "pagesInSession", "bounced",
		"pageViews", "isReturning", "visitCount", "firstSeen", "lastSeen",
	}}
	for _, v := range sessions {
		records = append(records, []string{
			v.VisitorID, v.DeviceType, v.Browser, v.OS, v.Country, v.City,
			v.CurrentPage, v.LandingPage, v.ReferrerSource, v.ReferrerDomain,
			v.SessionStart.UTC().Format(time.RFC3339),
			strconv.FormatInt(v.SessionDuration, 10),
			strconv.Itoa(v.PagesInSession),
			strconv.FormatBool(v.Bounced),
			strconv.FormatInt(v.PageViews, 10),
			strconv.FormatBool(v.IsReturning),
			strconv.Itoa(v.VisitCount),
			v.FirstSeen.UTC().Format(time.RFC3339),
			v.LastSeen.UTC().Format(time.RFC3339),
		})
	}
	return records
}

// ActivityCSVRecords renders activities as CSV rows, header first.
func ActivityCSVRecords(activities []models.Activity) [][]string {
	records := [][]string{{
		"id", "type", "visitorId", "targetType", "targetSlug",
		"metadata", "isPublic", "createdAt",
	}}
	for _, a := range activities {
		records = append(records, []string{
			a.ID, a.Type, a.VisitorID, a.TargetType, a.TargetSlug,
			string(a.Metadata),
			strconv.FormatBool(a.IsPublic),
			a.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return records
}
