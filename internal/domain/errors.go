package domain

import "fmt"

// Error types for consistent error handling across the engine.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrInvalidQuantity is returned when a line item is added with a non-positive quantity.
type ErrInvalidQuantity struct {
	Quantity int
}

func (e *ErrInvalidQuantity) Error() string {
	return fmt.Sprintf("invalid quantity: %d (must be positive)", e.Quantity)
}

// ErrItemNotFound is returned when removing an item that does not belong to the quote.
// Callers log it and carry on; the quote is left untouched.
type ErrItemNotFound struct {
	QuoteID string
	ItemID  string
}

func (e *ErrItemNotFound) Error() string {
	return fmt.Sprintf("item %s not found in quote %s", e.ItemID, e.QuoteID)
}

// ErrPersistence wraps a data store failure. The operation that hit it is
// considered not applied and no notification is emitted.
type ErrPersistence struct {
	Op     string
	Entity Entity
	Err    error
}

func (e *ErrPersistence) Error() string {
	return fmt.Sprintf("persistence failure [%s %s]: %v", e.Op, e.Entity, e.Err)
}

func (e *ErrPersistence) Unwrap() error {
	return e.Err
}

// ErrQuoteLocked indicates an item mutation on a quote that already left draft.
type ErrQuoteLocked struct {
	QuoteID string
	Status  QuoteStatus
}

func (e *ErrQuoteLocked) Error() string {
	return fmt.Sprintf("quote %s is %s; items can only change while draft", e.QuoteID, e.Status)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrUnauthorized indicates an invalid or missing access token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}
