package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"pulsetrack/api/engine"
)

// FunnelHandlers serves conversion funnel evaluation.
type FunnelHandlers struct {
	Evaluator *engine.Evaluator
}

func NewFunnelHandlers(evaluator *engine.Evaluator) *FunnelHandlers {
	return &FunnelHandlers{Evaluator: evaluator}
}

// GetFunnel evaluates the active funnel (seeding the default one if none
// exists) over the fixed trailing window.
func (h *FunnelHandlers) GetFunnel(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	name, steps, err := h.Evaluator.Evaluate(ctx)
	if err != nil {
		log.Error().Err(err).Msg("funnel evaluation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to evaluate funnel"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"funnelName": name,
		"steps":      steps,
	})
}

// PerformanceHandlers serves the content performance report.
type PerformanceHandlers struct {
	Aggregator *engine.Aggregator
}

func NewPerformanceHandlers(aggregator *engine.Aggregator) *PerformanceHandlers {
	return &PerformanceHandlers{Aggregator: aggregator}
}

// GetPerformance returns the page-level engagement report for the trailing
// `days` window (default 7).
func (h *PerformanceHandlers) GetPerformance(c *gin.Context) {
	days := 7
	if daysParam := c.Query("days"); daysParam != "" {
		parsed, err := strconv.Atoi(daysParam)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'days' parameter. Must be a positive integer."})
			return
		}
		days = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	report, err := h.Aggregator.GetPerformance(ctx, days)
	if err != nil {
		log.Error().Err(err).Msg("performance aggregation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve performance report"})
		return
	}
	c.JSON(http.StatusOK, report)
}
