package handler

import (
	"net/http"

	"github.com/boddenberg/orcamento-engine-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// GET /v1/products/{productId}/price?region=SP
func resolvePriceHandler(svc *service.CatalogService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/products/{productId}/price")
		defer span.End()

		productID := chi.URLParam(r, "productId")
		region := r.URL.Query().Get("region")
		span.SetAttributes(attribute.String("product.id", productID), attribute.String("region", region))

		price, err := svc.ResolvePrice(ctx, productID, region)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, price)
	}
}

// GET /v1/payment-options
func listPaymentOptionsHandler(svc *service.CatalogService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/payment-options")
		defer span.End()

		options, err := svc.ListPaymentOptions(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, options)
	}
}
