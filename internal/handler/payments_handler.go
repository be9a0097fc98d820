package handler

import (
	"net/http"

	"github.com/boddenberg/orcamento-engine-go/internal/domain"
	"github.com/boddenberg/orcamento-engine-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func previewPlanHandler(svc *service.PaymentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/payment-plans/preview")
		defer span.End()

		var req domain.PaymentPlanRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		plan, err := svc.Preview(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, plan)
	}
}

func attachConditionHandler(svc *service.PaymentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/quotes/{quoteId}/payment-conditions")
		defer span.End()

		var req domain.PaymentPlanRequest
		if err := decodeBody(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		cond, err := svc.AttachCondition(ctx, chi.URLParam(r, "quoteId"), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, cond)
	}
}

func listConditionsHandler(svc *service.PaymentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/quotes/{quoteId}/payment-conditions")
		defer span.End()

		conditions, err := svc.ListConditions(ctx, chi.URLParam(r, "quoteId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, conditions)
	}
}

func deleteConditionHandler(svc *service.PaymentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/quotes/{quoteId}/payment-conditions/{conditionId}")
		defer span.End()

		conditionID := chi.URLParam(r, "conditionId")
		if err := svc.DeleteCondition(ctx, chi.URLParam(r, "quoteId"), conditionID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "payment condition deleted", ID: conditionID})
	}
}
