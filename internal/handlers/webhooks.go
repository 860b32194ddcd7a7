package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/finitefield-org/hanko-field/internal/payments"
	"github.com/finitefield-org/hanko-field/internal/platform/httpx"
	"github.com/finitefield-org/hanko-field/internal/platform/requestctx"
	"github.com/finitefield-org/hanko-field/internal/services"
)

const stripeSignatureHeader = "Stripe-Signature"

type webhookResponse struct {
	OK               bool `json:"ok"`
	Processed        bool `json:"processed"`
	AlreadyProcessed bool `json:"already_processed"`
}

// PaymentWebhookHandlers receives Stripe webhook deliveries.
type PaymentWebhookHandlers struct {
	verifier *payments.SignatureVerifier
	webhooks services.PaymentWebhookService
}

func NewPaymentWebhookHandlers(verifier *payments.SignatureVerifier, webhooks services.PaymentWebhookService) *PaymentWebhookHandlers {
	if verifier == nil {
		verifier = payments.NewSignatureVerifier("")
	}
	return &PaymentWebhookHandlers{verifier: verifier, webhooks: webhooks}
}

// Routes registers /payments/stripe/webhook.
func (h *PaymentWebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe/webhook", h.handleStripe)
}

func (h *PaymentWebhookHandlers) handleStripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.webhooks == nil {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_unavailable", "webhook processing unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_payload", err.Error(), bodyErrorStatus(err)))
		return
	}

	if err := h.verifier.Verify(body, r.Header.Get(stripeSignatureHeader)); err != nil {
		requestctx.Logger(ctx).Warn("stripe signature rejected", zap.String("reason", err.Error()))
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", err.Error(), http.StatusUnauthorized))
		return
	}

	event, err := payments.ParseEvent(body)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_payload", err.Error(), http.StatusBadRequest))
		return
	}

	result, err := h.webhooks.ProcessStripeEvent(ctx, event)
	if err != nil {
		requestctx.Logger(ctx).Error("failed to process stripe webhook",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
			zap.Error(err),
		)
		httpx.WriteError(ctx, w, httpx.Internal())
		return
	}

	httpx.WriteJSON(w, http.StatusOK, webhookResponse{
		OK:               true,
		Processed:        result.Processed,
		AlreadyProcessed: result.AlreadyProcessed,
	})
}
