package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/finitefield-org/hanko-field/internal/domain"
	"github.com/finitefield-org/hanko-field/internal/payments"
	"github.com/finitefield-org/hanko-field/internal/platform/idempotency"
	"github.com/finitefield-org/hanko-field/internal/platform/metrics"
	"github.com/finitefield-org/hanko-field/internal/repositories"
)

const stripeProvider = "stripe"

// WebhookResult is the acknowledgement body for a webhook delivery.
type WebhookResult struct {
	Processed        bool `json:"processed"`
	AlreadyProcessed bool `json:"already_processed,omitempty"`
}

type PaymentWebhookServiceDeps struct {
	Orders    repositories.OrderRepository
	Events    repositories.OrderEventRepository
	Ledger    *idempotency.Ledger
	Publisher OrderEventPublisher
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type paymentWebhookService struct {
	orders    repositories.OrderRepository
	events    repositories.OrderEventRepository
	ledger    *idempotency.Ledger
	publisher OrderEventPublisher
	clock     func() time.Time
	logger    func(context.Context, string, map[string]any)
}

// NewPaymentWebhookService wires the ledger and order repositories.
func NewPaymentWebhookService(deps PaymentWebhookServiceDeps) (PaymentWebhookService, error) {
	if deps.Orders == nil {
		return nil, errors.New("payment webhook service: order repository is required")
	}
	if deps.Events == nil {
		return nil, errors.New("payment webhook service: order event repository is required")
	}
	if deps.Ledger == nil {
		return nil, errors.New("payment webhook service: event ledger is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &paymentWebhookService{
		orders:    deps.Orders,
		events:    deps.Events,
		ledger:    deps.Ledger,
		publisher: deps.Publisher,
		clock:     clock,
		logger:    logger,
	}, nil
}

type paymentEffect struct {
	payment PaymentStatus
	next    OrderStatus
	kind    domain.EventKind
}

func effectOf(eventType string) paymentEffect {
	switch eventType {
	case "payment_intent.succeeded":
		return paymentEffect{payment: domain.PaymentStatusPaid, next: domain.OrderStatusPaid, kind: domain.EventPaymentPaid}
	case "payment_intent.payment_failed", "payment_intent.canceled":
		return paymentEffect{payment: domain.PaymentStatusFailed, next: domain.OrderStatusCanceled, kind: domain.EventPaymentFailed}
	case "charge.refunded":
		return paymentEffect{payment: domain.PaymentStatusRefunded, next: domain.OrderStatusRefunded, kind: domain.EventPaymentRefunded}
	default:
		return paymentEffect{kind: domain.EventPaymentRecorded}
	}
}

// ProcessStripeEvent applies a verified event at most once per event id. The
// ledger entry is written unprocessed first and flipped to processed only after
// the order and its audit event are stored, so a failed delivery is retried in
// full by the provider.
func (s *paymentWebhookService) ProcessStripeEvent(ctx context.Context, event payments.Event) (result WebhookResult, err error) {
	defer func() {
		switch {
		case err != nil:
			metrics.WebhookEvent(event.Type, "error")
		case result.AlreadyProcessed:
			metrics.WebhookEvent(event.Type, "duplicate")
		default:
			metrics.WebhookEvent(event.Type, "processed")
		}
	}()

	existing, ok, err := s.ledger.Get(ctx, event.ID)
	if err != nil {
		return WebhookResult{}, err
	}
	if ok && existing.Processed {
		s.logger(ctx, "webhook.stripe.duplicate", map[string]any{"eventId": event.ID})
		return WebhookResult{AlreadyProcessed: true}, nil
	}

	now := s.clock().UTC()
	record := idempotency.EventRecord{
		EventID:   event.ID,
		Provider:  stripeProvider,
		EventType: event.Type,
		OrderID:   event.OrderID,
		CreatedAt: now,
	}
	if ok && !existing.CreatedAt.IsZero() {
		record.CreatedAt = existing.CreatedAt
	}
	if err := s.ledger.Upsert(ctx, record); err != nil {
		return WebhookResult{}, err
	}

	if event.OrderID == "" {
		s.logger(ctx, "webhook.stripe.no_order", map[string]any{"eventId": event.ID, "type": event.Type})
		return s.markProcessed(ctx, record)
	}

	order, err := s.orders.FindByID(ctx, event.OrderID)
	if errors.Is(err, repositories.ErrNotFound) {
		s.logger(ctx, "webhook.stripe.order_missing", map[string]any{"eventId": event.ID, "orderId": event.OrderID})
		return s.markProcessed(ctx, record)
	}
	if err != nil {
		return WebhookResult{}, err
	}

	effect := effectOf(event.Type)
	before := order.Status()
	fields := []repositories.OrderField{repositories.FieldPaymentLastEventID, repositories.FieldUpdatedAt}

	order.Payment.LastEventID = event.ID
	order.UpdatedAt = now
	if event.PaymentIntentID != "" {
		order.Payment.IntentID = event.PaymentIntentID
		fields = append(fields, repositories.FieldPaymentIntentID)
	}

	changed := false
	if effect.next != "" && effect.next != before && domain.CanTransition(before, effect.next) {
		order.SetStatus(effect.next, now)
		fields = append(fields, repositories.StatusFields...)
		changed = true
	} else if effect.payment != "" {
		order.RecordPaymentStatus(effect.payment)
		fields = append(fields, repositories.FieldPaymentStatus)
	}

	if err := s.orders.Save(ctx, order, fields...); err != nil {
		return WebhookResult{}, fmt.Errorf("webhook: update order %s: %w", order.ID, err)
	}

	payload := map[string]any{
		"provider_event_id": event.ID,
		"event_type":        event.Type,
	}
	if event.PaymentIntentID != "" {
		payload["payment_intent_id"] = event.PaymentIntentID
	}
	audit := domain.OrderEvent{
		Kind:      effect.kind,
		ActorType: domain.ActorWebhook,
		ActorID:   stripeProvider,
		Payload:   payload,
		CreatedAt: now,
	}
	if changed {
		audit.BeforeStatus = before
		audit.AfterStatus = order.Status()
	}
	if _, err := s.events.Append(ctx, order.ID, audit); err != nil {
		return WebhookResult{}, fmt.Errorf("webhook: append event for %s: %w", order.ID, err)
	}

	result, err = s.markProcessed(ctx, record)
	if err != nil {
		return WebhookResult{}, err
	}

	s.logger(ctx, "webhook.stripe.processed", map[string]any{
		"eventId": event.ID,
		"type":    event.Type,
		"orderId": order.ID,
		"status":  string(order.Status()),
		"changed": changed,
	})
	if changed && s.publisher != nil {
		message := orderEventMessage(OrderEventStatusChanged, order, now)
		message.ProviderEventID = event.ID
		if _, err := s.publisher.PublishOrderEvent(ctx, message); err != nil {
			s.logger(ctx, "order.event.publish.failed", map[string]any{
				"event":   message.Event,
				"orderId": order.ID,
				"error":   err,
			})
		}
	}
	return result, nil
}

func (s *paymentWebhookService) markProcessed(ctx context.Context, record idempotency.EventRecord) (WebhookResult, error) {
	record.Processed = true
	if err := s.ledger.Upsert(ctx, record); err != nil {
		return WebhookResult{}, err
	}
	return WebhookResult{Processed: true}, nil
}
