package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"pulsetrack/api/engine"
)

// AnomalyHandlers exposes the anomaly detector to the admin dashboard.
type AnomalyHandlers struct {
	Detector *engine.Detector
}

func NewAnomalyHandlers(detector *engine.Detector) *AnomalyHandlers {
	return &AnomalyHandlers{Detector: detector}
}

// GetAnomalies runs the check-and-alert cycle and returns recent alerts
// plus the current traffic status. The check is a deliberate side effect of
// the dashboard poll; there is no background scheduler.
func (h *AnomalyHandlers) GetAnomalies(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	status, _, err := h.Detector.CheckAndAlert(ctx)
	if err != nil {
		log.Error().Err(err).Msg("anomaly check failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to run anomaly check"})
		return
	}

	alerts, err := h.Detector.RecentAlerts(ctx, 20)
	if err != nil {
		log.Error().Err(err).Msg("failed to list alerts")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"status": status,
	})
}

type markReadRequest struct {
	ID string `json:"id" binding:"required"`
}

// PostAnomalies marks an alert as read. Marking a non-existent alert is a
// no-op, not an error.
func (h *AnomalyHandlers) PostAnomalies(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if err := h.Detector.MarkRead(ctx, req.ID); err != nil {
		log.Error().Err(err).Str("alert", req.ID).Msg("failed to mark alert read")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark alert read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Alert marked as read"})
}
