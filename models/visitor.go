package models

import "time"

// Referrer source classifications.
const (
	SourceDirect   = "direct"
	SourceOrganic  = "organic"
	SourceSocial   = "social"
	SourceReferral = "referral"
	SourceEmail    = "email"
	SourcePaid     = "paid"
)

// VisitorSession is the rolling per-visitor session record. One row exists
// per client-minted visitorId; heartbeats mutate it in place and a row is
// purged after 24h of inactivity.
type VisitorSession struct {
	VisitorID string `json:"visitorId"`

	IPAddress        string `json:"ipAddress,omitempty"`
	UserAgent        string `json:"userAgent,omitempty"`
	DeviceType       string `json:"deviceType"`
	Browser          string `json:"browser"`
	OS               string `json:"os"`
	Country          string `json:"country,omitempty"`
	Region           string `json:"region,omitempty"`
	City             string `json:"city,omitempty"`
	Timezone         string `json:"timezone,omitempty"`
	Language         string `json:"language,omitempty"`
	ScreenResolution string `json:"screenResolution,omitempty"`

	CurrentPage string `json:"currentPage"`
	LandingPage string `json:"landingPage"`
	Referrer    string `json:"referrer,omitempty"`
	ExitPage    string `json:"exitPage,omitempty"`

	SessionStart    time.Time `json:"sessionStart"`
	SessionDuration int64     `json:"sessionDuration"`
	PagesInSession  int       `json:"pagesInSession"`
	Bounced         bool      `json:"bounced"`
	PageViews       int64     `json:"pageViews"`
	MaxScrollDepth  int       `json:"maxScrollDepth"`
	EngagementScore int       `json:"engagementScore"`

	IsReturning bool `json:"isReturning"`
	VisitCount  int  `json:"visitCount"`

	ReferrerSource string `json:"referrerSource"`
	ReferrerDomain string `json:"referrerDomain,omitempty"`
	UTMSource      string `json:"utmSource,omitempty"`
	UTMMedium      string `json:"utmMedium,omitempty"`
	UTMCampaign    string `json:"utmCampaign,omitempty"`

	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`

	// IsOnline is derived from LastSeen at read time; it is never persisted.
	IsOnline bool `json:"isOnline"`
}

// HeartbeatRequest is the body of POST /api/tracking/visitors.
type HeartbeatRequest struct {
	VisitorID        string `json:"visitorId"`
	CurrentPage      string `json:"currentPage"`
	Referrer         string `json:"referrer"`
	Type             string `json:"type"` // "pageview", "heartbeat" or "exit"
	ScrollDepth      int    `json:"scrollDepth"`
	Timezone         string `json:"timezone"`
	Language         string `json:"language"`
	ScreenResolution string `json:"screenResolution"`
}

// HeartbeatParams is the fully classified input handed to the visitor store.
// Classification (referrer source, UTM, device) happens once in the tracker;
// the store applies it in a single atomic upsert.
type HeartbeatParams struct {
	VisitorID        string
	CurrentPage      string
	Referrer         string
	IsPageView       bool
	IPAddress        string
	UserAgent        string
	DeviceType       string
	Browser          string
	OS               string
	Timezone         string
	Language         string
	ScreenResolution string
	ReferrerSource   string
	ReferrerDomain   string
	UTMSource        string
	UTMMedium        string
	UTMCampaign      string
	ScrollDepth      int
	At               time.Time
}

// HeartbeatResult reports the post-upsert session plus what the upsert
// observed: whether the row was created and the page the session was on
// before this heartbeat (empty for new sessions).
type HeartbeatResult struct {
	Session      *VisitorSession
	Created      bool
	PreviousPage string
}

// VisitorStats is the online-visitor breakdown returned by
// GET /api/tracking/visitors.
type VisitorStats struct {
	Online  int64 `json:"online"`
	Desktop int64 `json:"desktop"`
	Mobile  int64 `json:"mobile"`
	Tablet  int64 `json:"tablet"`
}

// VisitorBreakdown splits sessions in a window into returning vs new.
type VisitorBreakdown struct {
	Returning int64 `json:"returning"`
	New       int64 `json:"new"`
}
