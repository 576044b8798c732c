package email

import (
	"context"
	"time"
)

// Attachment is a file to attach to an outgoing message.
type Attachment struct {
	Filename string
	Content  []byte
}

// SendRequest contains the data needed to send one email via an external provider.
type SendRequest struct {
	To          []string // Recipient email addresses
	From        string   // Sender address (e.g. "Awards Team <awards@example.com>")
	CC          []string // Carbon-copy addresses, identical for every message in a run
	ReplyTo     string   // Reply-to address
	Subject     string
	HTML        string // HTML body
	Attachments []Attachment
}

// SendResult contains the response from the email provider.
type SendResult struct {
	MessageID string    // Provider's message ID for tracking
	SentAt    time.Time // When the send was accepted
}

// Sender is the interface for sending emails via an external provider.
// Messages go out one at a time so each recipient's outcome can be
// recorded individually.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}
