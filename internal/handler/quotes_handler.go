package handler

import (
	"net/http"

	"github.com/boddenberg/orcamento-engine-go/internal/domain"
	"github.com/boddenberg/orcamento-engine-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Quotes
// ============================================================

func createQuoteHandler(svc *service.QuoteService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/quotes")
		defer span.End()

		var req domain.CreateQuoteRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		q, err := svc.CreateQuote(ctx, OwnerIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

func getQuoteHandler(svc *service.QuoteService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/quotes/{quoteId}")
		defer span.End()
		quoteID := chi.URLParam(r, "quoteId")
		span.SetAttributes(attribute.String("quote.id", quoteID))

		q, err := svc.GetQuote(ctx, quoteID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

func quoteTotalHandler(svc *service.QuoteService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/quotes/{quoteId}/total")
		defer span.End()

		total, err := svc.Total(ctx, chi.URLParam(r, "quoteId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, total)
	}
}

func transitionHandler(svc *service.QuoteService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/quotes/{quoteId}/status")
		defer span.End()
		quoteID := chi.URLParam(r, "quoteId")

		var req domain.TransitionRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("quote.id", quoteID), attribute.String("status", req.Status))

		q, err := svc.Transition(ctx, quoteID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

// ============================================================
// Line items
// ============================================================

func addItemHandler(svc *service.QuoteService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/quotes/{quoteId}/items")
		defer span.End()
		quoteID := chi.URLParam(r, "quoteId")

		var req domain.AddItemRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		item, err := svc.AddItem(ctx, quoteID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, item)
	}
}

func removeItemHandler(svc *service.QuoteService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/quotes/{quoteId}/items/{itemId}")
		defer span.End()

		q, err := svc.RemoveItem(ctx, chi.URLParam(r, "quoteId"), chi.URLParam(r, "itemId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}
