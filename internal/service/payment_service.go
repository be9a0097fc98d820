package service

import (
	"context"
	"time"

	"github.com/boddenberg/orcamento-engine-go/internal/domain"
	"github.com/boddenberg/orcamento-engine-go/internal/infra/observability"
	"github.com/boddenberg/orcamento-engine-go/internal/port"
	"github.com/boddenberg/orcamento-engine-go/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PaymentService computes payment plans from option templates and attaches
// them to quotes as payment conditions.
type PaymentService struct {
	store   port.DataStore
	catalog *CatalogService
	quotes  *QuoteService
	clock   port.Clock
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewPaymentService creates a new payment service.
func NewPaymentService(store port.DataStore, catalog *CatalogService, quotes *QuoteService, clock port.Clock, metrics *observability.Metrics, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		store:   store,
		catalog: catalog,
		quotes:  quotes,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
	}
}

// Preview computes a payment plan for an arbitrary principal without
// persisting anything.
func (s *PaymentService) Preview(ctx context.Context, req *domain.PaymentPlanRequest) (*domain.PaymentPlan, error) {
	ctx, span := tracer.Start(ctx, "PaymentService.Preview")
	defer span.End()
	span.SetAttributes(attribute.String("template.id", req.TemplateID))

	if req.Principal == nil {
		return nil, &domain.ErrValidation{Field: "principal", Message: "required"}
	}
	if err := validatePlanInputs(*req.Principal, req); err != nil {
		return nil, err
	}

	tpl, err := s.catalog.PaymentOption(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}

	plan := pricing.ComputePaymentPlan(*tpl, *req.Principal, req.DownPayment, req.InterestRate, s.clock.Now())
	return &plan, nil
}

// AttachCondition computes a plan over the quote total and stores it as a
// payment condition of the quote. The quote total itself is not changed.
func (s *PaymentService) AttachCondition(ctx context.Context, quoteID string, req *domain.PaymentPlanRequest) (*domain.PaymentCondition, error) {
	ctx, span := tracer.Start(ctx, "PaymentService.AttachCondition")
	defer span.End()
	span.SetAttributes(attribute.String("quote.id", quoteID), attribute.String("template.id", req.TemplateID))

	start := time.Now()
	defer func() { s.metrics.ObserveOperation("payment.attach_condition", time.Since(start)) }()

	method, err := domain.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	var (
		q   *domain.Quote
		tpl *domain.PaymentOptionTemplate
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		loaded, err := s.quotes.loadQuote(gCtx, quoteID)
		q = loaded
		return err
	})
	g.Go(func() error {
		loaded, err := s.catalog.PaymentOption(gCtx, req.TemplateID)
		tpl = loaded
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	principal := pricing.Total(q)
	if err := validatePlanInputs(principal, req); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	plan := pricing.ComputePaymentPlan(*tpl, principal, req.DownPayment, req.InterestRate, now)

	record := map[string]any{
		"id":                  uuid.NewString(),
		"quote_id":            q.ID,
		"description":         tpl.Description,
		"down_payment":        plan.DownPayment.StringFixed(2),
		"installment_count":   plan.InstallmentCount,
		"installment_value":   plan.InstallmentValue.StringFixed(2),
		"total_with_interest": plan.TotalWithInterest.StringFixed(2),
		"payment_method":      method,
		"schedule":            plan.Schedule,
		"created_at":          now,
	}
	if req.InterestRate != nil {
		record["interest_rate"] = req.InterestRate.String()
	} else {
		record["interest_rate"] = nil
	}

	var cond domain.PaymentCondition
	if err := s.store.Insert(ctx, domain.EntityPaymentCondition, record, &cond); err != nil {
		s.metrics.IncrExternalError("datastore")
		return nil, storeErr("insert", domain.EntityPaymentCondition, err)
	}

	s.logger.Info("payment condition attached",
		zap.String("quote_id", q.ID),
		zap.String("condition_id", cond.ID),
		zap.String("template_id", tpl.ID),
		zap.Int("installments", plan.InstallmentCount),
		zap.String("total_with_interest", plan.TotalWithInterest.StringFixed(2)),
	)
	return &cond, nil
}

// ListConditions returns the payment conditions of a quote, oldest first.
func (s *PaymentService) ListConditions(ctx context.Context, quoteID string) ([]domain.PaymentCondition, error) {
	ctx, span := tracer.Start(ctx, "PaymentService.ListConditions")
	defer span.End()
	span.SetAttributes(attribute.String("quote.id", quoteID))

	var q domain.Quote
	if err := s.store.Get(ctx, domain.EntityQuote, quoteID, &q); err != nil {
		return nil, storeErr("get", domain.EntityQuote, err)
	}

	conditions := []domain.PaymentCondition{}
	filter := port.Filter{Eq: map[string]string{"quote_id": quoteID}, Order: "created_at"}
	if err := s.store.List(ctx, domain.EntityPaymentCondition, filter, &conditions); err != nil {
		return nil, storeErr("list", domain.EntityPaymentCondition, err)
	}
	return conditions, nil
}

// DeleteCondition removes a payment condition. The quote total is untouched.
func (s *PaymentService) DeleteCondition(ctx context.Context, quoteID, conditionID string) error {
	ctx, span := tracer.Start(ctx, "PaymentService.DeleteCondition")
	defer span.End()
	span.SetAttributes(attribute.String("quote.id", quoteID), attribute.String("condition.id", conditionID))

	var cond domain.PaymentCondition
	if err := s.store.Get(ctx, domain.EntityPaymentCondition, conditionID, &cond); err != nil {
		return storeErr("get", domain.EntityPaymentCondition, err)
	}
	if cond.QuoteID != quoteID {
		return &domain.ErrNotFound{Resource: string(domain.EntityPaymentCondition), ID: conditionID}
	}

	if err := s.store.Delete(ctx, domain.EntityPaymentCondition, conditionID); err != nil {
		s.metrics.IncrExternalError("datastore")
		return storeErr("delete", domain.EntityPaymentCondition, err)
	}

	s.logger.Info("payment condition deleted",
		zap.String("quote_id", quoteID),
		zap.String("condition_id", conditionID),
	)
	return nil
}

func validatePlanInputs(principal decimal.Decimal, req *domain.PaymentPlanRequest) error {
	if principal.IsNegative() {
		return &domain.ErrValidation{Field: "principal", Message: "must not be negative"}
	}
	if req.DownPayment != nil {
		if req.DownPayment.IsNegative() {
			return &domain.ErrValidation{Field: "down_payment", Message: "must not be negative"}
		}
		if req.DownPayment.GreaterThan(principal) {
			return &domain.ErrValidation{Field: "down_payment", Message: "must not exceed the principal"}
		}
	}
	return nil
}
