package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"pulsetrack/api/models"
	"pulsetrack/api/notify"
)

const (
	// trafficFloor suppresses alerting when both windows are near zero; a
	// spike from 2 to 8 visitors is noise, not an anomaly.
	trafficFloor = 10

	// defaultThresholdPercent is the alerting threshold used when the
	// settings store has no override: current must exceed baseline * 200%.
	defaultThresholdPercent = 200.0

	// statusHighMultiplier drives the informational traffic status only.
	// It is deliberately decoupled from the alerting threshold: dashboard
	// coloring is more sensitive than alerting.
	statusHighMultiplier = 1.5

	// alertCooldown is the hard-coded dedup window between anomaly alerts.
	alertCooldown = 24 * time.Hour
)

// TrafficCounter counts visitor-session updates inside a half-open window.
type TrafficCounter interface {
	CountActive(ctx context.Context, from, to time.Time) (int64, error)
}

// AlertRepo is the alert persistence the detector writes through.
type AlertRepo interface {
	HasRecent(ctx context.Context, alertType string, since time.Time) (bool, error)
	Create(ctx context.Context, a *models.Alert, dedupKey string) (bool, error)
	ListRecent(ctx context.Context, limit int) ([]models.Alert, error)
	MarkRead(ctx context.Context, id string) error
}

// SettingsReader reads tunables with a fallback default.
type SettingsReader interface {
	Float(ctx context.Context, key string, def float64) float64
}

// Detector compares current traffic to a day-old baseline and raises
// deduplicated alerts with a best-effort external notification.
type Detector struct {
	traffic  TrafficCounter
	alerts   AlertRepo
	settings SettingsReader
	notifier notify.Notifier
	newID    IDSource
	now      func() time.Time
}

func NewDetector(traffic TrafficCounter, alerts AlertRepo, settings SettingsReader, notifier notify.Notifier, newID IDSource) *Detector {
	return &Detector{
		traffic:  traffic,
		alerts:   alerts,
		settings: settings,
		notifier: notifier,
		newID:    newID,
		now:      time.Now,
	}
}

// CheckAndAlert computes the traffic status and creates at most one anomaly
// alert. Current traffic is the trailing hour; the baseline is the same
// hour-wide window anchored 24 hours earlier. Notification failures are
// logged and swallowed; the alert still counts as created.
func (d *Detector) CheckAndAlert(ctx context.Context) (models.TrafficStatus, []models.Alert, error) {
	now := d.now()

	current, err := d.traffic.CountActive(ctx, now.Add(-time.Hour), now)
	if err != nil {
		return models.TrafficStatus{}, nil, fmt.Errorf("failed to count current traffic: %w", err)
	}
	baseline, err := d.traffic.CountActive(ctx, now.Add(-25*time.Hour), now.Add(-24*time.Hour))
	if err != nil {
		return models.TrafficStatus{}, nil, fmt.Errorf("failed to count baseline traffic: %w", err)
	}

	status := models.TrafficStatus{
		TrafficStatus: models.TrafficNormal,
		CurrentLoad:   current,
		Baseline:      baseline,
	}
	if float64(current) > float64(baseline)*statusHighMultiplier {
		status.TrafficStatus = models.TrafficHigh
	}

	threshold := d.settings.Float(ctx, models.SettingAlertThreshold, defaultThresholdPercent) / 100.0

	if current <= trafficFloor || float64(current) <= float64(baseline)*threshold {
		return status, nil, nil
	}

	recent, err := d.alerts.HasRecent(ctx, models.AlertTypeAnomaly, now.Add(-alertCooldown))
	if err != nil {
		return status, nil, fmt.Errorf("failed to check alert cooldown: %w", err)
	}
	if recent {
		return status, nil, nil
	}

	metadata, _ := json.Marshal(map[string]interface{}{
		"current":   current,
		"baseline":  baseline,
		"threshold": threshold,
	})
	alert := &models.Alert{
		ID:        d.newID(),
		Type:      models.AlertTypeAnomaly,
		Severity:  models.SeverityWarning,
		Message:   fmt.Sprintf("Traffic spike detected: %d sessions in the last hour (baseline %d)", current, baseline),
		Metadata:  metadata,
		CreatedAt: now,
	}

	// Bucketed dedup key makes the cooldown race-safe: two concurrent
	// checks can both pass HasRecent but only one insert wins.
	dedupKey := fmt.Sprintf("%s:%d", models.AlertTypeAnomaly, now.Unix()/int64(alertCooldown.Seconds()))
	created, err := d.alerts.Create(ctx, alert, dedupKey)
	if err != nil {
		return status, nil, fmt.Errorf("failed to create alert: %w", err)
	}
	if !created {
		return status, nil, nil
	}

	if err := d.notifier.Send(ctx, alert.Message); err != nil {
		log.Warn().Err(err).Msg("failed to deliver alert notification")
	}

	return status, []models.Alert{*alert}, nil
}

// RecentAlerts lists the newest alerts for the dashboard.
func (d *Detector) RecentAlerts(ctx context.Context, limit int) ([]models.Alert, error) {
	return d.alerts.ListRecent(ctx, limit)
}

// MarkRead flips an alert to read; idempotent.
func (d *Detector) MarkRead(ctx context.Context, id string) error {
	return d.alerts.MarkRead(ctx, id)
}
