package services

import (
	"context"
	"testing"
	"time"

	domain "github.com/finitefield-org/hanko-field/internal/domain"
	"github.com/finitefield-org/hanko-field/internal/payments"
	"github.com/finitefield-org/hanko-field/internal/platform/docstore"
	"github.com/finitefield-org/hanko-field/internal/platform/idempotency"
)

func (e *testEnv) webhookService(t *testing.T) PaymentWebhookService {
	t.Helper()
	ledger, err := idempotency.NewLedger(e.store, 0)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	svc, err := NewPaymentWebhookService(PaymentWebhookServiceDeps{
		Orders:    e.orders,
		Events:    e.events,
		Ledger:    ledger,
		Publisher: e.publisher,
		Clock:     func() time.Time { return e.now.Add(time.Minute) },
	})
	if err != nil {
		t.Fatalf("webhook service: %v", err)
	}
	return svc
}

func createPendingOrder(t *testing.T, env *testEnv) string {
	t.Helper()
	result, err := env.orderService(t, env.store).CreateOrder(context.Background(), validCommand())
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	env.publisher.messages = nil
	return result.OrderID
}

func TestProcessStripeEventMarksOrderPaid(t *testing.T) {
	memory := docstore.NewMemory()
	env := newTestEnv(t, memory, memory)
	orderID := createPendingOrder(t, env)
	svc := env.webhookService(t)
	ctx := context.Background()

	result, err := svc.ProcessStripeEvent(ctx, payments.Event{
		ID:              "evt_paid",
		Type:            "payment_intent.succeeded",
		PaymentIntentID: "pi_1",
		OrderID:         orderID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Processed || result.AlreadyProcessed {
		t.Fatalf("unexpected result %+v", result)
	}

	order, err := env.orders.FindByID(ctx, orderID)
	if err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.Status() != domain.OrderStatusPaid || order.PaymentStatus() != domain.PaymentStatusPaid || order.FulfillmentStatus() != domain.FulfillmentStatusPending {
		t.Fatalf("unexpected statuses %s %s %s", order.Status(), order.PaymentStatus(), order.FulfillmentStatus())
	}
	if order.Payment.IntentID != "pi_1" || order.Payment.LastEventID != "evt_paid" {
		t.Fatalf("unexpected payment %+v", order.Payment)
	}
	if order.Pricing.TotalJPY != 4200 {
		t.Fatalf("expected total 4200, got %d", order.Pricing.TotalJPY)
	}

	events, err := env.events.List(ctx, orderID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	paid := events[1]
	if paid.Kind != domain.EventPaymentPaid || paid.ActorType != domain.ActorWebhook || paid.ActorID != "stripe" {
		t.Fatalf("unexpected audit event %+v", paid)
	}
	if paid.BeforeStatus != domain.OrderStatusPendingPayment || paid.AfterStatus != domain.OrderStatusPaid {
		t.Fatalf("unexpected before/after %s -> %s", paid.BeforeStatus, paid.AfterStatus)
	}

	doc, err := memory.Get(ctx, "payment_webhook_events/evt_paid")
	if err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	if processed, _ := doc.Fields.Bool("processed"); !processed {
		t.Fatalf("expected ledger entry to be processed")
	}
	if len(env.publisher.messages) != 1 || env.publisher.messages[0].Event != OrderEventStatusChanged {
		t.Fatalf("expected status change to be published, got %+v", env.publisher.messages)
	}
}

func TestProcessStripeEventIsIdempotent(t *testing.T) {
	memory := docstore.NewMemory()
	env := newTestEnv(t, memory, memory)
	orderID := createPendingOrder(t, env)
	svc := env.webhookService(t)
	ctx := context.Background()
	event := payments.Event{ID: "evt_dup", Type: "payment_intent.succeeded", OrderID: orderID}

	if _, err := svc.ProcessStripeEvent(ctx, event); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	result, err := svc.ProcessStripeEvent(ctx, event)
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if result.Processed || !result.AlreadyProcessed {
		t.Fatalf("expected already processed, got %+v", result)
	}

	events, err := env.events.List(ctx, orderID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected one audit event for the duplicate delivery, got %d events", len(events))
	}
}

func TestProcessStripeEventRetriesUnprocessedEntry(t *testing.T) {
	memory := docstore.NewMemory()
	env := newTestEnv(t, memory, memory)
	orderID := createPendingOrder(t, env)
	svc := env.webhookService(t)
	ctx := context.Background()

	// A previous delivery crashed after writing the unprocessed entry.
	memory.Seed("payment_webhook_events/evt_retry", docstore.Fields{
		"provider":   docstore.String("stripe"),
		"event_type": docstore.String("payment_intent.succeeded"),
		"processed":  docstore.Bool(false),
		"created_at": docstore.Time(env.now),
	})

	result, err := svc.ProcessStripeEvent(ctx, payments.Event{ID: "evt_retry", Type: "payment_intent.succeeded", OrderID: orderID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Processed {
		t.Fatalf("expected retry to be processed, got %+v", result)
	}
	order, err := env.orders.FindByID(ctx, orderID)
	if err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.Status() != domain.OrderStatusPaid {
		t.Fatalf("expected paid, got %s", order.Status())
	}
}

func TestProcessStripeEventWithoutOrder(t *testing.T) {
	memory := docstore.NewMemory()
	env := newTestEnv(t, memory, memory)
	svc := env.webhookService(t)
	ctx := context.Background()

	for _, event := range []payments.Event{
		{ID: "evt_no_order", Type: "payment_intent.succeeded"},
		{ID: "evt_missing_order", Type: "payment_intent.succeeded", OrderID: "ord_missing"},
	} {
		result, err := svc.ProcessStripeEvent(ctx, event)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", event.ID, err)
		}
		if !result.Processed {
			t.Fatalf("%s: expected processed, got %+v", event.ID, result)
		}
		doc, err := memory.Get(ctx, "payment_webhook_events/"+event.ID)
		if err != nil {
			t.Fatalf("%s: load ledger: %v", event.ID, err)
		}
		if processed, _ := doc.Fields.Bool("processed"); !processed {
			t.Fatalf("%s: expected ledger entry to be processed", event.ID)
		}
	}
}

func TestProcessStripeEventLateFailureKeepsStatus(t *testing.T) {
	memory := docstore.NewMemory()
	env := newTestEnv(t, memory, memory)
	orderID := createPendingOrder(t, env)
	svc := env.webhookService(t)
	ctx := context.Background()

	if _, err := svc.ProcessStripeEvent(ctx, payments.Event{ID: "evt_1", Type: "payment_intent.succeeded", OrderID: orderID}); err != nil {
		t.Fatalf("paid: %v", err)
	}
	env.publisher.messages = nil
	if _, err := svc.ProcessStripeEvent(ctx, payments.Event{ID: "evt_2", Type: "payment_intent.payment_failed", OrderID: orderID}); err != nil {
		t.Fatalf("failed: %v", err)
	}

	order, err := env.orders.FindByID(ctx, orderID)
	if err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.Status() != domain.OrderStatusPaid {
		t.Fatalf("paid -> canceled is illegal, got %s", order.Status())
	}
	if order.PaymentStatus() != domain.PaymentStatusFailed {
		t.Fatalf("expected provider payment status to be recorded, got %s", order.PaymentStatus())
	}

	events, err := env.events.List(ctx, orderID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	last := events[len(events)-1]
	if last.Kind != domain.EventPaymentFailed || last.BeforeStatus != "" || last.AfterStatus != "" {
		t.Fatalf("unexpected audit event %+v", last)
	}
	if len(env.publisher.messages) != 0 {
		t.Fatalf("expected nothing published without a status change")
	}
}

func TestProcessStripeEventUnknownTypeIsRecorded(t *testing.T) {
	memory := docstore.NewMemory()
	env := newTestEnv(t, memory, memory)
	orderID := createPendingOrder(t, env)
	svc := env.webhookService(t)
	ctx := context.Background()

	if _, err := svc.ProcessStripeEvent(ctx, payments.Event{ID: "evt_x", Type: "charge.updated", OrderID: orderID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	order, err := env.orders.FindByID(ctx, orderID)
	if err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.Status() != domain.OrderStatusPendingPayment || order.PaymentStatus() != domain.PaymentStatusUnpaid {
		t.Fatalf("unexpected statuses %s %s", order.Status(), order.PaymentStatus())
	}
	if order.Payment.LastEventID != "evt_x" {
		t.Fatalf("expected last event id to be recorded, got %q", order.Payment.LastEventID)
	}
	events, err := env.events.List(ctx, orderID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if events[len(events)-1].Kind != domain.EventPaymentRecorded {
		t.Fatalf("expected payment_event_recorded, got %s", events[len(events)-1].Kind)
	}
}

func TestProcessStripeEventTreatsNestedOrderIDAsMissing(t *testing.T) {
	memory := docstore.NewMemory()
	env := newTestEnv(t, memory, memory)
	orderID := createPendingOrder(t, env)
	svc := env.webhookService(t)
	ctx := context.Background()

	events, err := env.events.List(ctx, orderID)
	if err != nil || len(events) != 1 {
		t.Fatalf("expected the order_created event, got %v (%v)", events, err)
	}
	eventPath := "orders/" + orderID + "/events/" + events[0].ID
	before, err := memory.Get(ctx, eventPath)
	if err != nil {
		t.Fatalf("load event: %v", err)
	}

	result, err := svc.ProcessStripeEvent(ctx, payments.Event{
		ID:      "evt_nested",
		Type:    "payment_intent.succeeded",
		OrderID: orderID + "/events/" + events[0].ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Processed {
		t.Fatalf("expected processed, got %+v", result)
	}

	after, err := memory.Get(ctx, eventPath)
	if err != nil {
		t.Fatalf("reload event: %v", err)
	}
	if len(after.Fields) != len(before.Fields) {
		t.Fatalf("event document was patched: %v", after.Fields)
	}
	order, err := env.orders.FindByID(ctx, orderID)
	if err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.Status() != domain.OrderStatusPendingPayment {
		t.Fatalf("order moved to %s", order.Status())
	}
}
