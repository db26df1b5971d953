// Package mailer wraps the transactional email provider behind a narrow
// interface so the reminder dispatcher can be tested without network calls.
package mailer

import (
	"context"
	"time"
)

// Message is one transactional email. Metadata tags the send for tracking
// (assignment ID, reminder kind) and is passed through as provider headers.
type Message struct {
	To       []string
	Subject  string
	HTML     string
	Metadata map[string]string
}

// SendResult reports a send accepted by the provider.
type SendResult struct {
	MessageID string
	SentAt    time.Time
}

// Sender is the interface for sending emails via an external provider.
type Sender interface {
	Send(ctx context.Context, msg Message) (SendResult, error)
}
