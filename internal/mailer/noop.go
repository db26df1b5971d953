package mailer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// NoopSender is a no-op email sender for development and testing. It logs
// sends but does not deliver anything.
type NoopSender struct {
	logger *zap.Logger
}

// NewNoopSender creates a new NoopSender.
func NewNoopSender(logger *zap.Logger) *NoopSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopSender{logger: logger}
}

// Send logs the email but does not deliver it.
func (s *NoopSender) Send(_ context.Context, msg Message) (SendResult, error) {
	s.logger.Info("noop email send",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return SendResult{
		MessageID: fmt.Sprintf("noop-%d", time.Now().UnixNano()),
		SentAt:    time.Now(),
	}, nil
}
