// Package notify models the external alert notification sink as an explicit
// port. Sends are best effort: one attempt with a bounded timeout, no retry,
// and callers log-and-swallow failures so the main operation never fails on
// a notification problem.
package notify

import "context"

// Notifier delivers a plain-text alert message to an external sink.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Noop discards every message. Used when no notifier is configured.
type Noop struct{}

func (Noop) Send(ctx context.Context, text string) error { return nil }
