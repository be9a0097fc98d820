// Package service orchestrates the pricing engine with its collaborators:
// the data store, the notifiers and the clock.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/boddenberg/orcamento-engine-go/internal/domain"
	"github.com/boddenberg/orcamento-engine-go/internal/infra/observability"
	"github.com/boddenberg/orcamento-engine-go/internal/port"
	"github.com/boddenberg/orcamento-engine-go/internal/pricing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service")

const paymentOptionsKey = "payment_options:all"

// CatalogService serves read-only reference data: product prices per region
// and payment option templates.
type CatalogService struct {
	store   port.DataStore
	cache   port.Cache[[]domain.PaymentOptionTemplate]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(store port.DataStore, cache port.Cache[[]domain.PaymentOptionTemplate], metrics *observability.Metrics, logger *zap.Logger) *CatalogService {
	return &CatalogService{store: store, cache: cache, metrics: metrics, logger: logger}
}

// ResolvePrice returns the unit price of a product for a region code.
// Unknown regions fall into the "other" tier; a null tier price is zero.
func (s *CatalogService) ResolvePrice(ctx context.Context, productID, region string) (*domain.PriceQuote, error) {
	ctx, span := tracer.Start(ctx, "CatalogService.ResolvePrice")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", productID), attribute.String("region", region))

	var p domain.Product
	if err := s.store.Get(ctx, domain.EntityProduct, productID, &p); err != nil {
		return nil, storeErr("get", domain.EntityProduct, err)
	}

	return &domain.PriceQuote{
		ProductID: p.ID,
		Region:    strings.ToUpper(strings.TrimSpace(region)),
		Tier:      pricing.TierForRegion(region).String(),
		UnitPrice: pricing.ResolvePrice(p, region),
	}, nil
}

// ListPaymentOptions returns every payment option template, ordered by
// description. Results are cached for the configured TTL.
func (s *CatalogService) ListPaymentOptions(ctx context.Context) ([]domain.PaymentOptionTemplate, error) {
	ctx, span := tracer.Start(ctx, "CatalogService.ListPaymentOptions")
	defer span.End()

	if cached, ok := s.cache.Get(paymentOptionsKey); ok {
		s.metrics.IncrCacheHit("payment_options")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("payment_options")

	start := time.Now()
	var templates []domain.PaymentOptionTemplate
	err := s.store.List(ctx, domain.EntityPaymentOption, port.Filter{Order: "description"}, &templates)
	s.metrics.ObserveOperation("catalog.list_payment_options", time.Since(start))
	if err != nil {
		s.logger.Error("failed to list payment options", zap.Error(err))
		s.metrics.IncrExternalError("datastore")
		return nil, storeErr("list", domain.EntityPaymentOption, err)
	}
	if templates == nil {
		templates = []domain.PaymentOptionTemplate{}
	}

	s.cache.Set(paymentOptionsKey, templates)
	return templates, nil
}

// PaymentOption returns one template, served from the cached list when
// possible and read through to the store otherwise.
func (s *CatalogService) PaymentOption(ctx context.Context, id string) (*domain.PaymentOptionTemplate, error) {
	templates, err := s.ListPaymentOptions(ctx)
	if err != nil {
		return nil, err
	}
	for i := range templates {
		if templates[i].ID == id {
			tpl := templates[i]
			return &tpl, nil
		}
	}

	var tpl domain.PaymentOptionTemplate
	if err := s.store.Get(ctx, domain.EntityPaymentOption, id, &tpl); err != nil {
		return nil, storeErr("get", domain.EntityPaymentOption, err)
	}
	s.cache.Delete(paymentOptionsKey)
	return &tpl, nil
}
