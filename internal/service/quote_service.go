package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/orcamento-engine-go/internal/domain"
	"github.com/boddenberg/orcamento-engine-go/internal/infra/observability"
	"github.com/boddenberg/orcamento-engine-go/internal/port"
	"github.com/boddenberg/orcamento-engine-go/internal/pricing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// QuoteService drives the quote lifecycle: creation, line items, totals and
// status transitions with their notifications.
type QuoteService struct {
	store   port.DataStore
	inApp   port.InAppNotifier
	email   port.EmailSender
	clock   port.Clock
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewQuoteService creates the quote service with all dependencies injected.
func NewQuoteService(
	store port.DataStore,
	inApp port.InAppNotifier,
	email port.EmailSender,
	clock port.Clock,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *QuoteService {
	return &QuoteService{
		store:   store,
		inApp:   inApp,
		email:   email,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
	}
}

// ============================================================
// Create / read
// ============================================================

// CreateQuote opens a draft quote for a client, numbered after the highest
// existing quote number.
func (s *QuoteService) CreateQuote(ctx context.Context, ownerID string, req *domain.CreateQuoteRequest) (*domain.Quote, error) {
	ctx, span := tracer.Start(ctx, "QuoteService.CreateQuote")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", req.ClientID))

	start := time.Now()
	defer func() { s.metrics.ObserveOperation("quote.create", time.Since(start)) }()

	var client domain.Client
	if err := s.store.Get(ctx, domain.EntityClient, req.ClientID, &client); err != nil {
		return nil, storeErr("get", domain.EntityClient, err)
	}

	number, err := s.nextNumber(ctx)
	if err != nil {
		return nil, err
	}

	record := map[string]any{
		"id":          uuid.NewString(),
		"number":      number,
		"client_id":   client.ID,
		"owner_id":    ownerID,
		"status":      domain.QuoteStatusDraft,
		"total_value": "0.00",
		"notes":       req.Notes,
		"created_at":  s.clock.Now(),
	}

	var q domain.Quote
	if err := s.store.Insert(ctx, domain.EntityQuote, record, &q); err != nil {
		s.metrics.IncrExternalError("datastore")
		return nil, storeErr("insert", domain.EntityQuote, err)
	}

	s.logger.Info("quote created",
		zap.String("quote_id", q.ID),
		zap.Int("number", q.Number),
		zap.String("client_id", client.ID),
	)
	return &q, nil
}

func (s *QuoteService) nextNumber(ctx context.Context) (int, error) {
	var last []domain.Quote
	err := s.store.List(ctx, domain.EntityQuote, port.Filter{Order: "number.desc", Limit: 1}, &last)
	if err != nil {
		return 0, storeErr("list", domain.EntityQuote, err)
	}
	if len(last) == 0 {
		return 1, nil
	}
	return last[0].Number + 1, nil
}

// GetQuote loads a quote with its line items and payment conditions.
func (s *QuoteService) GetQuote(ctx context.Context, quoteID string) (*domain.Quote, error) {
	ctx, span := tracer.Start(ctx, "QuoteService.GetQuote")
	defer span.End()
	span.SetAttributes(attribute.String("quote.id", quoteID))

	var (
		q          *domain.Quote
		conditions []domain.PaymentCondition
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		loaded, err := s.loadQuote(gCtx, quoteID)
		q = loaded
		return err
	})
	g.Go(func() error {
		filter := port.Filter{Eq: map[string]string{"quote_id": quoteID}, Order: "created_at"}
		if err := s.store.List(gCtx, domain.EntityPaymentCondition, filter, &conditions); err != nil {
			return storeErr("list", domain.EntityPaymentCondition, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	q.PaymentConditions = conditions
	return q, nil
}

// loadQuote fetches the quote row and its items concurrently.
func (s *QuoteService) loadQuote(ctx context.Context, quoteID string) (*domain.Quote, error) {
	var (
		q     domain.Quote
		items []domain.QuoteLineItem
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return storeErr("get", domain.EntityQuote, s.store.Get(gCtx, domain.EntityQuote, quoteID, &q))
	})
	g.Go(func() error {
		filter := port.Filter{Eq: map[string]string{"quote_id": quoteID}, Order: "created_at"}
		return storeErr("list", domain.EntityQuoteLineItem, s.store.List(gCtx, domain.EntityQuoteLineItem, filter, &items))
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	q.Items = items
	return &q, nil
}

// ============================================================
// Line items
// ============================================================

// AddItem prices a product for the quote's client region, appends it and
// persists the item and the refreshed quote total.
func (s *QuoteService) AddItem(ctx context.Context, quoteID string, req *domain.AddItemRequest) (*domain.QuoteLineItem, error) {
	ctx, span := tracer.Start(ctx, "QuoteService.AddItem")
	defer span.End()
	span.SetAttributes(attribute.String("quote.id", quoteID), attribute.String("product.id", req.ProductID))

	start := time.Now()
	defer func() { s.metrics.ObserveOperation("quote.add_item", time.Since(start)) }()

	var (
		q       *domain.Quote
		product domain.Product
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		loaded, err := s.loadQuote(gCtx, quoteID)
		q = loaded
		return err
	})
	g.Go(func() error {
		return storeErr("get", domain.EntityProduct, s.store.Get(gCtx, domain.EntityProduct, req.ProductID, &product))
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !pricing.IsEditable(q.Status) {
		return nil, &domain.ErrQuoteLocked{QuoteID: q.ID, Status: q.Status}
	}

	var client domain.Client
	if err := s.store.Get(ctx, domain.EntityClient, q.ClientID, &client); err != nil {
		return nil, storeErr("get", domain.EntityClient, err)
	}

	unitPrice := pricing.ResolvePrice(product, client.State)
	item, err := pricing.AddItem(q, product, req.Quantity, unitPrice)
	if err != nil {
		return nil, err
	}
	item.CreatedAt = s.clock.Now()

	record := map[string]any{
		"id":           item.ID,
		"quote_id":     item.QuoteID,
		"product_id":   item.ProductID,
		"product_name": item.ProductName,
		"quantity":     item.Quantity,
		"unit_price":   item.UnitPrice.StringFixed(2),
		"subtotal":     item.Subtotal.StringFixed(2),
		"created_at":   item.CreatedAt,
	}
	if err := s.store.Insert(ctx, domain.EntityQuoteLineItem, record, nil); err != nil {
		s.metrics.IncrExternalError("datastore")
		return nil, storeErr("insert", domain.EntityQuoteLineItem, err)
	}

	if err := s.persistTotal(ctx, q); err != nil {
		// Keep the stored total consistent with the stored items.
		if delErr := s.store.Delete(ctx, domain.EntityQuoteLineItem, item.ID); delErr != nil {
			s.logger.Error("failed to roll back line item after total update failure",
				zap.String("quote_id", q.ID),
				zap.String("item_id", item.ID),
				zap.Error(delErr),
			)
		}
		return nil, err
	}

	s.logger.Info("item added to quote",
		zap.String("quote_id", q.ID),
		zap.String("item_id", item.ID),
		zap.String("region_tier", pricing.TierForRegion(client.State).String()),
		zap.String("subtotal", item.Subtotal.StringFixed(2)),
		zap.String("total", q.TotalValue.StringFixed(2)),
	)
	return &item, nil
}

// RemoveItem drops a line item and persists the refreshed total. An unknown
// item is logged and reported as *domain.ErrItemNotFound; nothing changes.
func (s *QuoteService) RemoveItem(ctx context.Context, quoteID, itemID string) (*domain.Quote, error) {
	ctx, span := tracer.Start(ctx, "QuoteService.RemoveItem")
	defer span.End()
	span.SetAttributes(attribute.String("quote.id", quoteID), attribute.String("item.id", itemID))

	start := time.Now()
	defer func() { s.metrics.ObserveOperation("quote.remove_item", time.Since(start)) }()

	q, err := s.loadQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if !pricing.IsEditable(q.Status) {
		return nil, &domain.ErrQuoteLocked{QuoteID: q.ID, Status: q.Status}
	}

	removed, err := pricing.RemoveItem(q, itemID)
	if err != nil {
		var notFound *domain.ErrItemNotFound
		if errors.As(err, &notFound) {
			s.logger.Warn("remove of unknown line item ignored",
				zap.String("quote_id", quoteID),
				zap.String("item_id", itemID),
			)
		}
		return nil, err
	}

	if err := s.store.Delete(ctx, domain.EntityQuoteLineItem, removed.ID); err != nil {
		s.metrics.IncrExternalError("datastore")
		return nil, storeErr("delete", domain.EntityQuoteLineItem, err)
	}
	if err := s.persistTotal(ctx, q); err != nil {
		return nil, err
	}

	s.logger.Info("item removed from quote",
		zap.String("quote_id", q.ID),
		zap.String("item_id", removed.ID),
		zap.String("total", q.TotalValue.StringFixed(2)),
	)
	return q, nil
}

func (s *QuoteService) persistTotal(ctx context.Context, q *domain.Quote) error {
	now := s.clock.Now()
	patch := map[string]any{
		"total_value": q.TotalValue.StringFixed(2),
		"updated_at":  now,
	}
	if err := s.store.Update(ctx, domain.EntityQuote, q.ID, patch); err != nil {
		s.metrics.IncrExternalError("datastore")
		return storeErr("update", domain.EntityQuote, err)
	}
	q.UpdatedAt = &now
	return nil
}

// Total recomputes the quote total from its line items. A stored total that
// drifted from the items is logged.
func (s *QuoteService) Total(ctx context.Context, quoteID string) (*domain.QuoteTotal, error) {
	ctx, span := tracer.Start(ctx, "QuoteService.Total")
	defer span.End()
	span.SetAttributes(attribute.String("quote.id", quoteID))

	q, err := s.loadQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}

	total := pricing.Total(q)
	if !total.Equal(q.TotalValue) {
		s.logger.Warn("stored quote total differs from line items",
			zap.String("quote_id", quoteID),
			zap.String("stored", q.TotalValue.StringFixed(2)),
			zap.String("computed", total.StringFixed(2)),
		)
	}

	return &domain.QuoteTotal{QuoteID: q.ID, ItemCount: len(q.Items), Total: total}, nil
}

// ============================================================
// Status transitions
// ============================================================

// Transition moves a quote to a new status. The change is persisted first;
// only then are the owner (in-app) and the client (email, for sent, approved
// and rejected) notified. Notification failures never undo the transition.
func (s *QuoteService) Transition(ctx context.Context, quoteID string, req *domain.TransitionRequest) (*domain.Quote, error) {
	ctx, span := tracer.Start(ctx, "QuoteService.Transition")
	defer span.End()
	span.SetAttributes(attribute.String("quote.id", quoteID), attribute.String("status", req.Status))

	start := time.Now()
	defer func() { s.metrics.ObserveOperation("quote.transition", time.Since(start)) }()

	to, err := domain.ParseQuoteStatus(req.Status)
	if err != nil {
		return nil, err
	}

	var q domain.Quote
	if err := s.store.Get(ctx, domain.EntityQuote, quoteID, &q); err != nil {
		return nil, storeErr("get", domain.EntityQuote, err)
	}

	res := pricing.Transition(&q, to, req.Notes, s.clock.Now())
	if res.FromTerminal {
		s.logger.Warn("quote left a terminal status",
			zap.String("quote_id", q.ID),
			zap.String("from", string(res.From)),
			zap.String("to", string(res.To)),
		)
	}

	patch := map[string]any{
		"status":     q.Status,
		"updated_at": q.UpdatedAt,
	}
	if res.SentAtSet {
		patch["sent_at"] = q.SentAt
	}
	if res.ApprovedAtSet {
		patch["approved_at"] = q.ApprovedAt
	}
	if req.Notes != nil {
		patch["notes"] = q.Notes
	}
	if err := s.store.Update(ctx, domain.EntityQuote, q.ID, patch); err != nil {
		s.metrics.IncrExternalError("datastore")
		s.logger.Error("quote transition not persisted",
			zap.String("quote_id", q.ID),
			zap.String("to", string(to)),
			zap.Error(err),
		)
		return nil, storeErr("update", domain.EntityQuote, err)
	}

	s.metrics.IncrTransition(res.From, res.To)
	s.logger.Info("quote status changed",
		zap.String("quote_id", q.ID),
		zap.String("from", string(res.From)),
		zap.String("to", string(res.To)),
	)

	s.notify(ctx, &q, res)
	return &q, nil
}

func (s *QuoteService) notify(ctx context.Context, q *domain.Quote, res pricing.TransitionResult) {
	payload := map[string]any{
		"quote_id": q.ID,
		"number":   q.Number,
		"from":     string(res.From),
		"to":       string(res.To),
	}

	if q.OwnerID != "" {
		title := fmt.Sprintf("Orçamento #%d %s", q.Number, statusLabel(res.To))
		message := fmt.Sprintf("O orçamento #%d passou de %s para %s.", q.Number, statusLabel(res.From), statusLabel(res.To))
		err := s.inApp.NotifyInApp(ctx, q.OwnerID, title, message, payload)
		s.metrics.IncrNotification("in_app", err == nil)
		if err != nil {
			s.logger.Error("in-app notification failed",
				zap.String("quote_id", q.ID),
				zap.String("user_id", q.OwnerID),
				zap.Error(err),
			)
		}
	} else {
		s.logger.Debug("quote has no owner, skipping in-app notification", zap.String("quote_id", q.ID))
	}

	kind, ok := domain.EmailKindFor(res.To)
	if !ok {
		return
	}

	var client domain.Client
	if err := s.store.Get(ctx, domain.EntityClient, q.ClientID, &client); err != nil {
		s.metrics.IncrNotification("email", false)
		s.logger.Error("email notification skipped, client lookup failed",
			zap.String("quote_id", q.ID),
			zap.String("client_id", q.ClientID),
			zap.Error(err),
		)
		return
	}
	if client.Email == "" {
		s.logger.Debug("client has no email on file", zap.String("client_id", client.ID))
		return
	}

	data := map[string]any{
		"quote_id":     q.ID,
		"quote_number": q.Number,
		"client_name":  client.Name,
		"total":        q.TotalValue.StringFixed(2),
		"status":       string(res.To),
	}
	err := s.email.SendEmail(ctx, client.Email, kind, data)
	s.metrics.IncrNotification("email", err == nil)
	if err != nil {
		s.logger.Error("email notification failed",
			zap.String("quote_id", q.ID),
			zap.String("template", string(kind)),
			zap.Error(err),
		)
	}
}

func statusLabel(s domain.QuoteStatus) string {
	switch s {
	case domain.QuoteStatusDraft:
		return "rascunho"
	case domain.QuoteStatusSent:
		return "enviado"
	case domain.QuoteStatusApproved:
		return "aprovado"
	case domain.QuoteStatusRejected:
		return "rejeitado"
	case domain.QuoteStatusCancelled:
		return "cancelado"
	}
	return string(s)
}
