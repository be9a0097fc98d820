package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// QuoteStatus is the lifecycle state of a quote (orçamento).
type QuoteStatus string

const (
	QuoteStatusDraft     QuoteStatus = "draft"
	QuoteStatusSent      QuoteStatus = "sent"
	QuoteStatusApproved  QuoteStatus = "approved"
	QuoteStatusRejected  QuoteStatus = "rejected"
	QuoteStatusCancelled QuoteStatus = "cancelled"
)

// ParseQuoteStatus validates a status coming from the outside world.
func ParseQuoteStatus(s string) (QuoteStatus, error) {
	switch st := QuoteStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case QuoteStatusDraft, QuoteStatusSent, QuoteStatusApproved, QuoteStatusRejected, QuoteStatusCancelled:
		return st, nil
	}
	return "", &ErrValidation{Field: "status", Message: "must be one of draft, sent, approved, rejected, cancelled"}
}

// Quote is a priced proposal sent to a client.
//
// TotalValue is derived from Items and must be refreshed after every item
// mutation. Items and PaymentConditions are children loaded separately; they
// are never written as quote columns.
type Quote struct {
	ID         string          `json:"id"`
	Number     int             `json:"number"`
	ClientID   string          `json:"client_id"`
	OwnerID    string          `json:"owner_id"`
	Status     QuoteStatus     `json:"status"`
	TotalValue decimal.Decimal `json:"total_value"`
	Notes      string          `json:"notes,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	SentAt     *time.Time      `json:"sent_at,omitempty"`
	ApprovedAt *time.Time      `json:"approved_at,omitempty"`
	UpdatedAt  *time.Time      `json:"updated_at,omitempty"`

	Items             []QuoteLineItem    `json:"items,omitempty"`
	PaymentConditions []PaymentCondition `json:"payment_conditions,omitempty"`
}

// QuoteLineItem is a product line of a quote. UnitPrice is captured when the
// item is added and never re-resolved.
type QuoteLineItem struct {
	ID          string          `json:"id"`
	QuoteID     string          `json:"quote_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	CreatedAt   time.Time       `json:"created_at"`
}

// QuoteTotal is the API response for GET /v1/quotes/{quoteId}/total.
type QuoteTotal struct {
	QuoteID   string          `json:"quote_id"`
	ItemCount int             `json:"item_count"`
	Total     decimal.Decimal `json:"total"`
}

// CreateQuoteRequest opens a new draft quote for a client.
type CreateQuoteRequest struct {
	ClientID string `json:"client_id" validate:"required"`
	Notes    string `json:"notes"`
}

// AddItemRequest adds a product to a draft quote.
type AddItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity"`
}

// TransitionRequest moves a quote to a new status.
type TransitionRequest struct {
	Status string  `json:"status" validate:"required"`
	Notes  *string `json:"notes"`
}
