// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the pricing engine
// and its services from the concrete store, notifier and clock.
package port

import (
	"context"
	"time"

	"github.com/boddenberg/orcamento-engine-go/internal/domain"
)

// Filter narrows a List call. Eq matches columns by equality, Order is a
// column name optionally suffixed with ".desc", Limit <= 0 means no limit.
type Filter struct {
	Eq    map[string]string
	Order string
	Limit int
}

// DataStore is the data-access collaborator: plain CRUD per entity.
// Implemented by the Supabase adapter and by the in-memory store.
//
// dst arguments are decoded like json.Unmarshal targets. Get returns
// *domain.ErrNotFound when no row matches.
type DataStore interface {
	Get(ctx context.Context, entity domain.Entity, id string, dst any) error
	List(ctx context.Context, entity domain.Entity, filter Filter, dst any) error
	Insert(ctx context.Context, entity domain.Entity, record map[string]any, dst any) error
	Update(ctx context.Context, entity domain.Entity, id string, patch map[string]any) error
	Delete(ctx context.Context, entity domain.Entity, id string) error
}

// InAppNotifier records a notification shown inside the application.
type InAppNotifier interface {
	NotifyInApp(ctx context.Context, userID, title, message string, payload map[string]any) error
}

// EmailSender delivers a templated email.
type EmailSender interface {
	SendEmail(ctx context.Context, to string, kind domain.EmailKind, data map[string]any) error
}

// Clock is injected wherever "now" matters so schedules and timestamps are testable.
type Clock interface {
	Now() time.Time
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
