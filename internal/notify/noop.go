package notify

import (
	"context"
	"log/slog"
)

// NoOpNotifier implements Notifier by logging discarded messages. It is used
// when no email or webhook backend is configured.
type NoOpNotifier struct {
	log *slog.Logger
}

// NewNoOpNotifier creates a notifier that discards messages with a log entry.
func NewNoOpNotifier(log *slog.Logger) *NoOpNotifier {
	return &NoOpNotifier{log: log}
}

// Send logs and discards a message.
func (n *NoOpNotifier) Send(_ context.Context, msg Message) error {
	n.log.Debug("notification discarded (no backend configured)",
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}
