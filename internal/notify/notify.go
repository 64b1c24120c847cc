package notify

import (
	"context"
	"fmt"
)

// Notifier delivers the run's pass/fail result over an external channel.
// Callers treat it as fire-and-forget: a notifier error is logged and never
// fails the booking pipeline.
type Notifier interface {
	Send(ctx context.Context, success bool, message string) error
}

// Noop is used when notifications are disabled or misconfigured.
type Noop struct{}

func (Noop) Send(context.Context, bool, string) error { return nil }

// FormatMessage renders the subject and body for a booking notification.
func FormatMessage(success bool, message string) (subject, body string) {
	status := "❌ FAILED"
	if success {
		status = "✅ SUCCESS"
	}
	subject = fmt.Sprintf("Tennis Booking %s", status)
	body = fmt.Sprintf("Tennis Booking %s\n%s", status, message)
	return subject, body
}
