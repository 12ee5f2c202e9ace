// Package notify defines the notification interface and implementations
// for alert delivery.
package notify

import "context"

// Message is a rendered notification ready for delivery.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier defines the interface for delivering alert notifications.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}
