package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/finitefield-org/hanko-field/internal/platform/httpx"
	"github.com/finitefield-org/hanko-field/internal/platform/metrics"
	"github.com/finitefield-org/hanko-field/internal/platform/requestctx"
	"github.com/finitefield-org/hanko-field/internal/services"
)

type orderPricingResponse struct {
	TotalJPY int64  `json:"total_jpy"`
	Currency string `json:"currency"`
}

type createOrderResponse struct {
	OrderID           string               `json:"order_id"`
	OrderNo           string               `json:"order_no"`
	Status            string               `json:"status"`
	PaymentStatus     string               `json:"payment_status"`
	FulfillmentStatus string               `json:"fulfillment_status"`
	Pricing           orderPricingResponse `json:"pricing"`
	IdempotentReplay  bool                 `json:"idempotent_replay"`
}

// OrderHandlers exposes the storefront order intake.
type OrderHandlers struct {
	orders services.OrderService
}

func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createOrder)
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_json", "invalid JSON: "+err.Error(), bodyErrorStatus(err)))
		return
	}

	var cmd services.CreateOrderCommand
	if err := json.Unmarshal(body, &cmd); err != nil {
		metrics.OrderCreation("rejected")
		httpx.WriteError(ctx, w, httpx.NewError("invalid_json", "invalid JSON: "+err.Error(), http.StatusBadRequest))
		return
	}

	result, err := h.orders.CreateOrder(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	metrics.OrderCreation(result.Outcome.String())

	status := http.StatusCreated
	switch result.Outcome {
	case services.CreateOutcomeConflict:
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_conflict", "idempotency key is already used with different payload", http.StatusConflict))
		return
	case services.CreateOutcomeReplayed:
		status = http.StatusOK
	}

	httpx.WriteJSON(w, status, createOrderResponse{
		OrderID:           result.OrderID,
		OrderNo:           result.OrderNo,
		Status:            string(result.Status),
		PaymentStatus:     string(result.PaymentStatus),
		FulfillmentStatus: string(result.FulfillmentStatus),
		Pricing: orderPricingResponse{
			TotalJPY: result.TotalJPY,
			Currency: result.Currency,
		},
		IdempotentReplay: result.Outcome == services.CreateOutcomeReplayed,
	})
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		metrics.OrderCreation("rejected")
		httpx.WriteError(ctx, w, httpx.NewError("validation_error", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrUnsupportedLocale):
		metrics.OrderCreation("rejected")
		httpx.WriteError(ctx, w, httpx.NewError("unsupported_locale", "unsupported locale", http.StatusBadRequest))
	case errors.Is(err, services.ErrInvalidReference):
		metrics.OrderCreation("rejected")
		httpx.WriteError(ctx, w, httpx.NewError("invalid_reference", "invalid font/material/country", http.StatusBadRequest))
	case errors.Is(err, services.ErrInactiveReference):
		metrics.OrderCreation("rejected")
		httpx.WriteError(ctx, w, httpx.NewError("inactive_reference", "inactive font/material/country", http.StatusBadRequest))
	default:
		metrics.OrderCreation("error")
		requestctx.Logger(ctx).Error("failed to create order", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.Internal())
	}
}
