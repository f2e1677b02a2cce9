package models

import "time"

// Funnel step kinds.
const (
	StepTypePage     = "page"
	StepTypeActivity = "activity"
)

// FunnelStep is one stage in an ordered conversion sequence. Target is a
// page-path prefix for page steps or an activity type for activity steps.
type FunnelStep struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Target string `json:"target"`
}

// Funnel is a named ordered conversion definition. Read-mostly: created once
// (auto-seeded if none exists) and evaluated on demand.
type Funnel struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Steps     []FunnelStep `json:"steps"`
	IsActive  bool         `json:"isActive"`
	CreatedAt time.Time    `json:"createdAt"`
}

// FunnelStepResult is the evaluated count and rates for a single step.
// ConversionRate is relative to the first step; DropOff is relative to the
// previous step. Both are percentages.
type FunnelStepResult struct {
	Name           string  `json:"name"`
	Count          int64   `json:"count"`
	ConversionRate float64 `json:"conversionRate"`
	DropOff        float64 `json:"dropOff"`
}
