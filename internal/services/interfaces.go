package services

import (
	"context"
	"time"

	"github.com/finitefield-org/hanko-field/internal/catalog"
	domain "github.com/finitefield-org/hanko-field/internal/domain"
	"github.com/finitefield-org/hanko-field/internal/payments"
)

// Type aliases expose domain models to handlers without importing domain directly.
type (
	Order             = domain.Order
	OrderStatus       = domain.OrderStatus
	PaymentStatus     = domain.PaymentStatus
	FulfillmentStatus = domain.FulfillmentStatus
)

// OrderService creates orders exactly once per channel and idempotency key.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (CreateOrderResult, error)
}

// PaymentWebhookService applies verified provider events to orders.
type PaymentWebhookService interface {
	ProcessStripeEvent(ctx context.Context, event payments.Event) (WebhookResult, error)
}

// CatalogService serves the public locale config and the active master data.
type CatalogService interface {
	PublicConfig(ctx context.Context) (catalog.PublicConfig, error)
	Catalog(ctx context.Context, locale string) (CatalogView, error)
}

// CatalogReader is the master data lookup used during order creation.
type CatalogReader interface {
	PublicConfig(ctx context.Context) (catalog.PublicConfig, error)
	Font(ctx context.Context, key string) (catalog.Font, error)
	Material(ctx context.Context, key string) (catalog.Material, error)
	Country(ctx context.Context, code string) (catalog.Country, error)
	ActiveFonts(ctx context.Context) ([]catalog.Font, error)
	ActiveMaterials(ctx context.Context) ([]catalog.Material, error)
	ActiveCountries(ctx context.Context) ([]catalog.Country, error)
}

// OrderEventPublisher fans order lifecycle changes out to downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error)
}

const (
	OrderEventCreated       = "order.created"
	OrderEventStatusChanged = "order.status_changed"
)

// OrderEventMessage is the JSON body published for each lifecycle change.
type OrderEventMessage struct {
	Event             string    `json:"event"`
	OrderID           string    `json:"orderId"`
	OrderNo           string    `json:"orderNo,omitempty"`
	Channel           string    `json:"channel,omitempty"`
	Status            string    `json:"status"`
	PaymentStatus     string    `json:"paymentStatus,omitempty"`
	FulfillmentStatus string    `json:"fulfillmentStatus,omitempty"`
	TotalJPY          int64     `json:"totalJpy,omitempty"`
	ProviderEventID   string    `json:"providerEventId,omitempty"`
	OccurredAt        time.Time `json:"occurredAt"`
}

func orderEventMessage(event string, order domain.Order, at time.Time) OrderEventMessage {
	return OrderEventMessage{
		Event:             event,
		OrderID:           order.ID,
		OrderNo:           order.OrderNo,
		Channel:           string(order.Channel),
		Status:            string(order.Status()),
		PaymentStatus:     string(order.PaymentStatus()),
		FulfillmentStatus: string(order.FulfillmentStatus()),
		TotalJPY:          order.Pricing.TotalJPY,
		OccurredAt:        at,
	}
}
