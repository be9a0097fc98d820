package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Payment options and conditions
// ============================================================

// PaymentMethod is how the client pays a payment condition.
type PaymentMethod string

const (
	PaymentMethodCard    PaymentMethod = "card"
	PaymentMethodInvoice PaymentMethod = "invoice"
	PaymentMethodPix     PaymentMethod = "pix"
)

// ParsePaymentMethod accepts the english names plus the usual pt-BR aliases.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "card", "cartao", "cartão":
		return PaymentMethodCard, nil
	case "invoice", "boleto":
		return PaymentMethodInvoice, nil
	case "pix":
		return PaymentMethodPix, nil
	}
	return "", &ErrValidation{Field: "payment_method", Message: "must be one of card, invoice, pix"}
}

// PaymentOptionTemplate is read-only reference data describing a reusable
// payment option ("30/60/90", "entrada + 10x", ...).
type PaymentOptionTemplate struct {
	ID                      string           `json:"id"`
	Description             string           `json:"description"`
	DownPaymentPercent      *decimal.Decimal `json:"down_payment_percent,omitempty"`
	InstallmentCount        *int             `json:"installment_count,omitempty"`
	DaysBetweenInstallments *int             `json:"days_between_installments,omitempty"`
}

// ScheduleKind tags an entry of the payment schedule (cronograma).
type ScheduleKind string

const (
	ScheduleDownPayment ScheduleKind = "down_payment"
	ScheduleInstallment ScheduleKind = "installment"
	ScheduleLumpSum     ScheduleKind = "lump_sum"
)

// ScheduleEntry is one dated payment obligation.
type ScheduleEntry struct {
	Kind    ScheduleKind    `json:"kind"`
	Number  int             `json:"number"`
	Amount  decimal.Decimal `json:"amount"`
	DueDate time.Time       `json:"due_date"`
}

// PaymentPlan is the pure output of the payment calculator.
type PaymentPlan struct {
	DownPayment       decimal.Decimal `json:"down_payment"`
	InstallmentCount  int             `json:"installment_count"`
	InstallmentValue  decimal.Decimal `json:"installment_value"`
	TotalWithInterest decimal.Decimal `json:"total_with_interest"`
	Schedule          []ScheduleEntry `json:"schedule"`
}

// PaymentCondition is a computed payment plan attached to a quote. It is
// informational: deleting it never changes the quote total.
type PaymentCondition struct {
	ID                string              `json:"id"`
	QuoteID           string              `json:"quote_id"`
	Description       string              `json:"description"`
	DownPayment       decimal.Decimal     `json:"down_payment"`
	InstallmentCount  int                 `json:"installment_count"`
	InterestRate      decimal.NullDecimal `json:"interest_rate"`
	InstallmentValue  decimal.Decimal     `json:"installment_value"`
	TotalWithInterest decimal.Decimal     `json:"total_with_interest"`
	PaymentMethod     PaymentMethod       `json:"payment_method"`
	Schedule          []ScheduleEntry     `json:"schedule"`
	CreatedAt         time.Time           `json:"created_at"`
}

// PaymentPlanRequest is the body for previews and for attaching a condition.
// Principal is ignored when attaching; the quote total is used instead.
type PaymentPlanRequest struct {
	TemplateID    string           `json:"template_id" validate:"required"`
	Principal     *decimal.Decimal `json:"principal,omitempty"`
	DownPayment   *decimal.Decimal `json:"down_payment,omitempty"`
	InterestRate  *decimal.Decimal `json:"interest_rate,omitempty"`
	PaymentMethod string           `json:"payment_method,omitempty"`
}
