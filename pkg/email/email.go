// Package email sends transactional customer e-mails.
package email

import (
	"context"

	"github.com/angelmondragon/shopflow-backend/pkg/logger"
)

// Message is one outgoing e-mail.
type Message struct {
	To       string
	ToName   string
	Subject  string
	HTMLBody string
	TextBody string
	// Category tags the message for provider side analytics (e.g. "order_created").
	Category string
}

// Result carries the provider message id when one is returned.
type Result struct {
	MessageID string
}

// Sender is injected wherever e-mail leaves the system.
type Sender interface {
	Send(ctx context.Context, msg Message) (Result, error)
}

// LogSender writes messages to the log instead of delivering them. It is used
// when no provider key is configured.
type LogSender struct {
	logg *logger.Logger
}

func NewLogSender(logg *logger.Logger) *LogSender {
	return &LogSender{logg: logg}
}

func (s *LogSender) Send(ctx context.Context, msg Message) (Result, error) {
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"to":       msg.To,
			"subject":  msg.Subject,
			"category": msg.Category,
		})
		s.logg.Info(logCtx, "email.skipped_no_provider")
	}
	return Result{}, nil
}
