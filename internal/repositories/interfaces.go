package repositories

import (
	"context"
	"errors"

	domain "github.com/finitefield-org/hanko-field/internal/domain"
)

// ErrNotFound is wrapped by repository lookups that found no document.
var ErrNotFound = errors.New("repositories: not found")

// OrderField names a persisted order field. Save writes only the listed fields,
// leaving the rest of the document untouched.
type OrderField string

const (
	FieldStatus                OrderField = "status"
	FieldStatusUpdatedAt       OrderField = "status_updated_at"
	FieldUpdatedAt             OrderField = "updated_at"
	FieldPaymentStatus         OrderField = "payment.status"
	FieldPaymentIntentID       OrderField = "payment.intent_id"
	FieldPaymentLastEventID    OrderField = "payment.last_event_id"
	FieldFulfillmentStatus     OrderField = "fulfillment.status"
	FieldFulfillmentCarrier    OrderField = "fulfillment.carrier"
	FieldFulfillmentTrackingNo OrderField = "fulfillment.tracking_no"
	FieldFulfillmentShippedAt  OrderField = "fulfillment.shipped_at"
	FieldFulfillmentDelivered  OrderField = "fulfillment.delivered_at"
)

// StatusFields is the mask for a status change: the status, its timestamps and
// both derived statuses.
var StatusFields = []OrderField{
	FieldStatus,
	FieldStatusUpdatedAt,
	FieldUpdatedAt,
	FieldPaymentStatus,
	FieldFulfillmentStatus,
}

// OrderRepository persists order documents.
type OrderRepository interface {
	// Insert stores a new order under a store-assigned id and returns it.
	Insert(ctx context.Context, order domain.Order) (string, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	// List returns all orders, newest first, without events.
	List(ctx context.Context) ([]domain.Order, error)
	Save(ctx context.Context, order domain.Order, fields ...OrderField) error
}

// OrderEventRepository appends to and reads orders/{id}/events.
type OrderEventRepository interface {
	// Append stores event under event.ID, or a store-assigned id when empty.
	Append(ctx context.Context, orderID string, event domain.OrderEvent) (string, error)
	// List returns the events oldest first.
	List(ctx context.Context, orderID string) ([]domain.OrderEvent, error)
}

// MaterialRepository reads and edits the material master.
type MaterialRepository interface {
	List(ctx context.Context) ([]domain.Material, error)
	Save(ctx context.Context, material domain.Material) error
}

// CountryRepository lists shipping destinations.
type CountryRepository interface {
	List(ctx context.Context) ([]domain.Country, error)
}
