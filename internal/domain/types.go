package domain

import "time"

// OrderStatus is the order lifecycle state.
type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusManufacturing  OrderStatus = "manufacturing"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCanceled       OrderStatus = "canceled"
	OrderStatusRefunded       OrderStatus = "refunded"
)

// OrderStatuses lists the known statuses in display order.
var OrderStatuses = []OrderStatus{
	OrderStatusPendingPayment,
	OrderStatusPaid,
	OrderStatusManufacturing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCanceled,
	OrderStatusRefunded,
}

// PaymentStatus is derived from OrderStatus.
type PaymentStatus string

const (
	PaymentStatusUnpaid     PaymentStatus = "unpaid"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// FulfillmentStatus is derived from OrderStatus.
type FulfillmentStatus string

const (
	FulfillmentStatusPending       FulfillmentStatus = "pending"
	FulfillmentStatusManufacturing FulfillmentStatus = "manufacturing"
	FulfillmentStatusShipped       FulfillmentStatus = "shipped"
	FulfillmentStatusDelivered     FulfillmentStatus = "delivered"
)

// Channel identifies the storefront that placed the order.
type Channel string

const (
	ChannelApp Channel = "app"
	ChannelWeb Channel = "web"
)

// Currency is always JPY for now.
const CurrencyJPY = "JPY"

// Seal is the engraving requested by the customer plus the font snapshot taken at order time.
type Seal struct {
	Line1         string
	Line2         string
	Shape         string
	FontKey       string
	FontLabelI18n map[string]string
	FontVersion   int64
}

// MaterialSnapshot freezes the material master at order time.
type MaterialSnapshot struct {
	Key          string
	LabelI18n    map[string]string
	UnitPriceJPY int64
	Version      int64
}

type Shipping struct {
	CountryCode      string
	CountryLabelI18n map[string]string
	CountryVersion   int64
	FeeJPY           int64
	RecipientName    string
	Phone            string
	PostalCode       string
	State            string
	City             string
	AddressLine1     string
	AddressLine2     string
}

type Contact struct {
	Email           string
	PreferredLocale string
}

type Pricing struct {
	SubtotalJPY int64
	ShippingJPY int64
	TaxJPY      int64
	DiscountJPY int64
	TotalJPY    int64
	Currency    string
}

// NewPricing computes the total, clamping at zero.
func NewPricing(subtotal, shipping, tax, discount int64) Pricing {
	total := subtotal + shipping + tax - discount
	if total < 0 {
		total = 0
	}
	return Pricing{
		SubtotalJPY: subtotal,
		ShippingJPY: shipping,
		TaxJPY:      tax,
		DiscountJPY: discount,
		TotalJPY:    total,
		Currency:    CurrencyJPY,
	}
}

type Payment struct {
	Provider    string
	IntentID    string
	LastEventID string
}

type Fulfillment struct {
	Carrier     string
	TrackingNo  string
	ShippedAt   time.Time
	DeliveredAt time.Time
}

// EventKind names an audit event appended to orders/{id}/events.
type EventKind string

const (
	EventOrderCreated       EventKind = "order_created"
	EventPaymentPaid        EventKind = "payment_paid"
	EventPaymentFailed      EventKind = "payment_failed"
	EventPaymentRefunded    EventKind = "payment_refunded"
	EventPaymentRecorded    EventKind = "payment_event_recorded"
	EventStatusChanged      EventKind = "status_changed"
	EventShipmentRegistered EventKind = "shipment_registered"
)

type ActorType string

const (
	ActorSystem  ActorType = "system"
	ActorWebhook ActorType = "webhook"
	ActorAdmin   ActorType = "admin"
)

// OrderEvent is an append-only audit record.
type OrderEvent struct {
	ID           string
	Kind         EventKind
	ActorType    ActorType
	ActorID      string
	BeforeStatus OrderStatus
	AfterStatus  OrderStatus
	Note         string
	Payload      map[string]any
	CreatedAt    time.Time
}

// Material is the editable material master record.
type Material struct {
	Key             string
	LabelI18n       map[string]string
	DescriptionI18n map[string]string
	PriceJPY        int64
	IsActive        bool
	SortOrder       int64
	Version         int64
	UpdatedAt       time.Time
}

// Clone copies the i18n maps.
func (m Material) Clone() Material {
	clone := m
	clone.LabelI18n = cloneStrings(m.LabelI18n)
	clone.DescriptionI18n = cloneStrings(m.DescriptionI18n)
	return clone
}

// Country is a shipping destination master record.
type Country struct {
	Code           string
	LabelI18n      map[string]string
	ShippingFeeJPY int64
	IsActive       bool
	SortOrder      int64
	Version        int64
}
