package notify

import (
	"context"
	"log/slog"
	"strings"
)

// LogSender writes messages to the log instead of delivering them.
// It is the fallback when no mail provider key is configured.
type LogSender struct {
	Log *slog.Logger
}

// Send logs the envelope and, at debug level, the text body.
func (s LogSender) Send(ctx context.Context, msg Message) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, "notify.log_sender.message",
		"to", strings.Join(msg.To, ","),
		"subject", msg.Subject,
	)
	if msg.Text != "" {
		log.DebugContext(ctx, "notify.log_sender.body", "text", msg.Text)
	}
	return nil
}
