package utils

import (
	"fmt"
	"time"
)

// RelativeTime renders a coarse human-readable age label for activity feeds.
// Buckets are fixed: everything older than a day collapses to "1 day ago",
// matching the feed's deliberately simple presentation.
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(d.Hours()))
	default:
		return "1 day ago"
	}
}
