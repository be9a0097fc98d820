// Package handler exposes the quote engine over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/orcamento-engine-go/internal/domain"
	"github.com/boddenberg/orcamento-engine-go/internal/infra/observability"
	"github.com/boddenberg/orcamento-engine-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Probe is a dependency checked by /healthz.
type Probe struct {
	Name string
	Ping func(ctx context.Context) error
}

// Deps are the services the router dispatches to. Verifier may be nil, in
// which case bearer auth is disabled.
type Deps struct {
	Catalog  *service.CatalogService
	Quotes   *service.QuoteService
	Payments *service.PaymentService
	Verifier *service.TokenVerifier
	Probes   []Probe
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(deps Deps, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(deps.Probes, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		if deps.Verifier != nil {
			r.Use(JWTAuthMiddleware(deps.Verifier, logger))
		} else {
			r.Use(DevOwnerMiddleware)
		}

		// Catalog
		r.Get("/products/{productId}/price", resolvePriceHandler(deps.Catalog, logger))
		r.Get("/payment-options", listPaymentOptionsHandler(deps.Catalog, logger))

		// Quotes
		r.Post("/quotes", createQuoteHandler(deps.Quotes, logger))
		r.Route("/quotes/{quoteId}", func(r chi.Router) {
			r.Get("/", getQuoteHandler(deps.Quotes, logger))
			r.Get("/total", quoteTotalHandler(deps.Quotes, logger))
			r.Post("/status", transitionHandler(deps.Quotes, logger))
			r.Post("/items", addItemHandler(deps.Quotes, logger))
			r.Delete("/items/{itemId}", removeItemHandler(deps.Quotes, logger))

			r.Get("/payment-conditions", listConditionsHandler(deps.Payments, logger))
			r.Post("/payment-conditions", attachConditionHandler(deps.Payments, logger))
			r.Delete("/payment-conditions/{conditionId}", deleteConditionHandler(deps.Payments, logger))
		})

		// Payment plans
		r.Post("/payment-plans/preview", previewPlanHandler(deps.Payments, logger))

		// Metrics
		r.Get("/metrics/quotes", quoteMetricsHandler(metrics))
	})

	return r
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func healthzHandler(probes []Probe, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)
		services := []domain.ServiceHealth{
			{Name: "orcamentos-api", Status: "healthy", LastChecked: now},
		}

		for _, p := range probes {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			start := time.Now()
			err := p.Ping(ctx)
			cancel()

			status := "healthy"
			if err != nil {
				status = "degraded"
				logger.Warn("health probe failed", zap.String("dependency", p.Name), zap.Error(err))
			}
			services = append(services, domain.ServiceHealth{
				Name:        p.Name,
				Status:      status,
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			})
		}

		overall := "healthy"
		for _, s := range services {
			if s.Status != "healthy" {
				overall = "degraded"
				break
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{Status: overall, Services: services})
	}
}

func quoteMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}
