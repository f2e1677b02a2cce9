package models

import (
	"encoding/json"
	"time"
)

// Alert types and severities.
const (
	AlertTypeAnomaly = "anomaly"
	AlertTypeError   = "error"
	AlertTypeSystem  = "system"

	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Traffic status labels for the dashboard.
const (
	TrafficNormal = "normal"
	TrafficHigh   = "high"
)

// Alert is the anomaly detector's persisted output. Alerts are created once,
// marked read by an operator, and never deleted automatically.
type Alert struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Severity  string          `json:"severity"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	IsRead    bool            `json:"isRead"`
	CreatedAt time.Time       `json:"createdAt"`
}

// TrafficStatus is the informational classification returned alongside
// alerts. The "high" cutoff is independent of the alerting threshold.
type TrafficStatus struct {
	TrafficStatus string `json:"trafficStatus"`
	CurrentLoad   int64  `json:"currentLoad"`
	Baseline      int64  `json:"baseline"`
}
