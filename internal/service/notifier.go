package service

import (
	"context"

	"github.com/boddenberg/orcamento-engine-go/internal/domain"
	"github.com/boddenberg/orcamento-engine-go/internal/port"
)

var _ port.InAppNotifier = (*StoreNotifier)(nil)

// StoreNotifier delivers in-app notifications by writing rows to the
// notifications table, which the front end reads.
type StoreNotifier struct {
	store port.DataStore
	clock port.Clock
}

// NewStoreNotifier creates a StoreNotifier.
func NewStoreNotifier(store port.DataStore, clock port.Clock) *StoreNotifier {
	return &StoreNotifier{store: store, clock: clock}
}

func (n *StoreNotifier) NotifyInApp(ctx context.Context, userID, title, message string, payload map[string]any) error {
	record := map[string]any{
		"user_id":    userID,
		"title":      title,
		"message":    message,
		"type":       "quote_status",
		"read":       false,
		"created_at": n.clock.Now(),
	}
	if len(payload) > 0 {
		record["payload"] = payload
	}
	if err := n.store.Insert(ctx, domain.EntityNotification, record, nil); err != nil {
		return &domain.ErrPersistence{Op: "insert", Entity: domain.EntityNotification, Err: err}
	}
	return nil
}
