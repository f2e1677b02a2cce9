package models

import (
	"encoding/json"
	"time"
)

// Activity event types.
const (
	ActivityPageView  = "page_view"
	ActivityReaction  = "reaction"
	ActivitySearch    = "search"
	ActivityComment   = "comment"
	ActivitySubscribe = "subscribe"
	ActivityClick     = "click"
)

// Activity is a single append-only event in the activity stream. Events are
// never updated after creation; CreatedAt is the only temporal anchor.
type Activity struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	VisitorID string `json:"visitorId"`
	UserID    string `json:"userId,omitempty"`

	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	City        string `json:"city,omitempty"`
	Country     string `json:"country,omitempty"`

	TargetType  string `json:"targetType,omitempty"`
	TargetID    string `json:"targetId,omitempty"`
	TargetTitle string `json:"targetTitle,omitempty"`
	TargetSlug  string `json:"targetSlug,omitempty"`

	Metadata json.RawMessage `json:"metadata,omitempty"`
	IsPublic bool            `json:"isPublic"`

	CreatedAt time.Time `json:"createdAt"`

	// TimeAgo is a human-readable label computed at read time, never stored.
	TimeAgo string `json:"timeAgo,omitempty"`
}

// ActivityFilter is the typed query filter for the activity stream,
// validated once at the HTTP boundary.
type ActivityFilter struct {
	Types      []string
	Since      *time.Time
	PublicOnly bool
	Limit      int
}

// CreateActivityRequest is the body of POST /api/tracking/activities.
type CreateActivityRequest struct {
	Type        string          `json:"type" binding:"required"`
	VisitorID   string          `json:"visitorId" binding:"required"`
	UserID      string          `json:"userId"`
	DisplayName string          `json:"displayName"`
	AvatarURL   string          `json:"avatarUrl"`
	City        string          `json:"city"`
	Country     string          `json:"country"`
	TargetType  string          `json:"targetType"`
	TargetID    string          `json:"targetId"`
	TargetTitle string          `json:"targetTitle"`
	TargetSlug  string          `json:"targetSlug"`
	Metadata    json.RawMessage `json:"metadata"`
	IsPublic    *bool           `json:"isPublic"`
}
