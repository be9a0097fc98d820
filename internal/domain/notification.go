package domain

import "time"

// EmailKind selects the template the email service renders.
type EmailKind string

const (
	EmailQuoteSent     EmailKind = "quote_sent"
	EmailQuoteApproved EmailKind = "quote_approved"
	EmailQuoteRejected EmailKind = "quote_rejected"
)

// EmailKindFor returns the template for a status, and false when the status
// does not email the client.
func EmailKindFor(status QuoteStatus) (EmailKind, bool) {
	switch status {
	case QuoteStatusSent:
		return EmailQuoteSent, true
	case QuoteStatusApproved:
		return EmailQuoteApproved, true
	case QuoteStatusRejected:
		return EmailQuoteRejected, true
	}
	return "", false
}

// Notification represents an in-app notification for a sales representative.
type Notification struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"created_at"`
}
