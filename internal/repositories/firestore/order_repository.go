package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/finitefield-org/hanko-field/internal/domain"
	"github.com/finitefield-org/hanko-field/internal/platform/docstore"
	"github.com/finitefield-org/hanko-field/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository maps domain.Order to orders/{id} documents.
type OrderRepository struct {
	docs          docstore.Store
	defaultLocale string
}

type OrderOption func(*OrderRepository)

// WithDefaultLocale fills the locale of orders that were stored without one.
func WithDefaultLocale(locale string) OrderOption {
	return func(r *OrderRepository) {
		r.defaultLocale = strings.TrimSpace(locale)
	}
}

func NewOrderRepository(docs docstore.Store, opts ...OrderOption) (*OrderRepository, error) {
	if docs == nil {
		return nil, errors.New("order repository requires document store")
	}
	repo := &OrderRepository{docs: docs}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) (string, error) {
	id, err := r.docs.Create(ctx, ordersCollection, order.ID, EncodeOrder(order))
	if err != nil {
		return "", fmt.Errorf("orders.insert: %w", err)
	}
	return id, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if !docstore.ValidID(orderID) {
		return domain.Order{}, fmt.Errorf("orders.find %q: %w", orderID, repositories.ErrNotFound)
	}
	doc, err := r.docs.Get(ctx, docstore.Join(ordersCollection, orderID))
	if err != nil {
		if docstore.IsNotFound(err) {
			return domain.Order{}, fmt.Errorf("orders.find %s: %w", orderID, repositories.ErrNotFound)
		}
		return domain.Order{}, fmt.Errorf("orders.find %s: %w", orderID, err)
	}
	return DecodeOrder(doc.ID, doc.Fields, r.defaultLocale), nil
}

func (r *OrderRepository) List(ctx context.Context) ([]domain.Order, error) {
	docs, err := r.docs.Query(ctx, docstore.Query{
		Collection: ordersCollection,
		OrderBy:    "created_at",
		Direction:  docstore.Desc,
	})
	if err != nil {
		return nil, fmt.Errorf("orders.list: %w", err)
	}
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, DecodeOrder(doc.ID, doc.Fields, r.defaultLocale))
	}
	return orders, nil
}

// Save patches the masked fields from order. Repeated fields are written once.
func (r *OrderRepository) Save(ctx context.Context, order domain.Order, fields ...repositories.OrderField) error {
	if !docstore.ValidID(order.ID) {
		return errors.New("orders.save: order id is required")
	}
	if len(fields) == 0 {
		return nil
	}
	updates := make([]docstore.Update, 0, len(fields))
	seen := make(map[repositories.OrderField]struct{}, len(fields))
	for _, field := range fields {
		if _, dup := seen[field]; dup {
			continue
		}
		seen[field] = struct{}{}
		value, err := orderFieldValue(order, field)
		if err != nil {
			return err
		}
		updates = append(updates, docstore.Update{Path: string(field), Value: value})
	}
	if err := r.docs.Patch(ctx, docstore.Join(ordersCollection, order.ID), updates); err != nil {
		if docstore.IsNotFound(err) {
			return fmt.Errorf("orders.save %s: %w", order.ID, repositories.ErrNotFound)
		}
		return fmt.Errorf("orders.save %s: %w", order.ID, err)
	}
	return nil
}

func orderFieldValue(order domain.Order, field repositories.OrderField) (docstore.Value, error) {
	switch field {
	case repositories.FieldStatus:
		return docstore.String(string(order.Status())), nil
	case repositories.FieldStatusUpdatedAt:
		return docstore.Time(order.StatusUpdatedAt), nil
	case repositories.FieldUpdatedAt:
		return docstore.Time(order.UpdatedAt), nil
	case repositories.FieldPaymentStatus:
		return docstore.String(string(order.PaymentStatus())), nil
	case repositories.FieldPaymentIntentID:
		return docstore.String(order.Payment.IntentID), nil
	case repositories.FieldPaymentLastEventID:
		return docstore.String(order.Payment.LastEventID), nil
	case repositories.FieldFulfillmentStatus:
		return docstore.String(string(order.FulfillmentStatus())), nil
	case repositories.FieldFulfillmentCarrier:
		return docstore.String(order.Fulfillment.Carrier), nil
	case repositories.FieldFulfillmentTrackingNo:
		return docstore.String(order.Fulfillment.TrackingNo), nil
	case repositories.FieldFulfillmentShippedAt:
		return optionalTime(order.Fulfillment.ShippedAt), nil
	case repositories.FieldFulfillmentDelivered:
		return optionalTime(order.Fulfillment.DeliveredAt), nil
	default:
		return docstore.Value{}, fmt.Errorf("orders.save: unsupported field %q", field)
	}
}

// EncodeOrder builds the full order document written at creation time.
func EncodeOrder(order domain.Order) docstore.Fields {
	fields := docstore.Fields{
		"order_no":          docstore.String(order.OrderNo),
		"channel":           docstore.String(string(order.Channel)),
		"locale":            docstore.String(order.Locale),
		"status":            docstore.String(string(order.Status())),
		"status_updated_at": docstore.Time(order.StatusUpdatedAt),
		"seal": docstore.Map(docstore.Fields{
			"line1":           docstore.String(order.Seal.Line1),
			"line2":           docstore.String(order.Seal.Line2),
			"shape":           docstore.String(order.Seal.Shape),
			"font_key":        docstore.String(order.Seal.FontKey),
			"font_label_i18n": docstore.StringMap(order.Seal.FontLabelI18n),
			"font_version":    docstore.Int(order.Seal.FontVersion),
		}),
		"material": docstore.Map(docstore.Fields{
			"key":            docstore.String(order.Material.Key),
			"label_i18n":     docstore.StringMap(order.Material.LabelI18n),
			"unit_price_jpy": docstore.Int(order.Material.UnitPriceJPY),
			"version":        docstore.Int(order.Material.Version),
		}),
		"shipping": docstore.Map(docstore.Fields{
			"country_code":       docstore.String(order.Shipping.CountryCode),
			"country_label_i18n": docstore.StringMap(order.Shipping.CountryLabelI18n),
			"country_version":    docstore.Int(order.Shipping.CountryVersion),
			"fee_jpy":            docstore.Int(order.Shipping.FeeJPY),
			"recipient_name":     docstore.String(order.Shipping.RecipientName),
			"phone":              docstore.String(order.Shipping.Phone),
			"postal_code":        docstore.String(order.Shipping.PostalCode),
			"state":              docstore.String(order.Shipping.State),
			"city":               docstore.String(order.Shipping.City),
			"address_line1":      docstore.String(order.Shipping.AddressLine1),
			"address_line2":      docstore.String(order.Shipping.AddressLine2),
		}),
		"contact": docstore.Map(docstore.Fields{
			"email":            docstore.String(order.Contact.Email),
			"preferred_locale": docstore.String(order.Contact.PreferredLocale),
		}),
		"pricing": docstore.Map(docstore.Fields{
			"subtotal_jpy": docstore.Int(order.Pricing.SubtotalJPY),
			"shipping_jpy": docstore.Int(order.Pricing.ShippingJPY),
			"tax_jpy":      docstore.Int(order.Pricing.TaxJPY),
			"discount_jpy": docstore.Int(order.Pricing.DiscountJPY),
			"total_jpy":    docstore.Int(order.Pricing.TotalJPY),
			"currency":     docstore.String(order.Pricing.Currency),
		}),
		"payment": docstore.Map(docstore.Fields{
			"provider": docstore.String(order.Payment.Provider),
			"status":   docstore.String(string(order.PaymentStatus())),
		}),
		"fulfillment": docstore.Map(docstore.Fields{
			"status": docstore.String(string(order.FulfillmentStatus())),
		}),
		"idempotency_key": docstore.String(order.IdempotencyKey),
		"terms_agreed":    docstore.Bool(order.TermsAgreed),
		"created_at":      docstore.Time(order.CreatedAt),
		"updated_at":      docstore.Time(order.UpdatedAt),
	}
	return fields
}

// DecodeOrder reads an order document. Missing values fall back: order_no to
// the id, locale to defaultLocale, the total to a legacy top-level total_jpy,
// updated_at to created_at and status_updated_at to updated_at.
func DecodeOrder(id string, fields docstore.Fields, defaultLocale string) domain.Order {
	order := domain.Order{
		ID:             id,
		OrderNo:        fields.String("order_no"),
		Channel:        domain.Channel(fields.String("channel")),
		Locale:         fields.String("locale"),
		IdempotencyKey: fields.String("idempotency_key"),
		Seal: domain.Seal{
			Line1:         fields.String("seal.line1"),
			Line2:         fields.String("seal.line2"),
			Shape:         fields.String("seal.shape"),
			FontKey:       fields.String("seal.font_key"),
			FontLabelI18n: fields.StringMap("seal.font_label_i18n"),
		},
		Material: domain.MaterialSnapshot{
			Key:       fields.String("material.key"),
			LabelI18n: fields.StringMap("material.label_i18n"),
		},
		Shipping: domain.Shipping{
			CountryCode:      strings.ToUpper(fields.String("shipping.country_code")),
			CountryLabelI18n: fields.StringMap("shipping.country_label_i18n"),
			RecipientName:    fields.String("shipping.recipient_name"),
			Phone:            fields.String("shipping.phone"),
			PostalCode:       fields.String("shipping.postal_code"),
			State:            fields.String("shipping.state"),
			City:             fields.String("shipping.city"),
			AddressLine1:     fields.String("shipping.address_line1"),
			AddressLine2:     fields.String("shipping.address_line2"),
		},
		Contact: domain.Contact{
			Email:           fields.String("contact.email"),
			PreferredLocale: fields.String("contact.preferred_locale"),
		},
		Payment: domain.Payment{
			Provider:    fields.String("payment.provider"),
			IntentID:    fields.String("payment.intent_id"),
			LastEventID: fields.String("payment.last_event_id"),
		},
		Fulfillment: domain.Fulfillment{
			Carrier:    fields.String("fulfillment.carrier"),
			TrackingNo: fields.String("fulfillment.tracking_no"),
		},
	}

	order.Seal.FontVersion, _ = fields.Int("seal.font_version")
	order.Material.UnitPriceJPY, _ = fields.Int("material.unit_price_jpy")
	order.Material.Version, _ = fields.Int("material.version")
	if len(order.Material.LabelI18n) == 0 {
		legacy := fields.String("material.label")
		if legacy == "" {
			legacy = fields.String("material_label_ja")
		}
		if legacy != "" {
			order.Material.LabelI18n = map[string]string{"ja": legacy}
		}
	}
	order.Shipping.CountryVersion, _ = fields.Int("shipping.country_version")
	order.Shipping.FeeJPY, _ = fields.Int("shipping.fee_jpy")
	order.TermsAgreed, _ = fields.Bool("terms_agreed")

	order.Pricing = decodePricing(fields)
	order.Fulfillment.ShippedAt, _ = fields.Time("fulfillment.shipped_at")
	order.Fulfillment.DeliveredAt, _ = fields.Time("fulfillment.delivered_at")

	order.CreatedAt, _ = fields.Time("created_at")
	order.UpdatedAt, _ = fields.Time("updated_at")
	order.StatusUpdatedAt, _ = fields.Time("status_updated_at")
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}
	if order.StatusUpdatedAt.IsZero() {
		order.StatusUpdatedAt = order.UpdatedAt
	}
	if order.OrderNo == "" {
		order.OrderNo = id
	}
	if order.Locale == "" {
		order.Locale = defaultLocale
	}

	order.Restore(
		domain.OrderStatus(fields.String("status")),
		domain.PaymentStatus(fields.String("payment.status")),
		domain.FulfillmentStatus(fields.String("fulfillment.status")),
	)
	return order
}

func decodePricing(fields docstore.Fields) domain.Pricing {
	pricing := domain.Pricing{Currency: fields.String("pricing.currency")}
	pricing.SubtotalJPY, _ = fields.Int("pricing.subtotal_jpy")
	pricing.ShippingJPY, _ = fields.Int("pricing.shipping_jpy")
	pricing.TaxJPY, _ = fields.Int("pricing.tax_jpy")
	pricing.DiscountJPY, _ = fields.Int("pricing.discount_jpy")
	total, ok := fields.Int("pricing.total_jpy")
	if !ok {
		total, _ = fields.Int("total_jpy")
	}
	pricing.TotalJPY = total
	if pricing.Currency == "" {
		pricing.Currency = domain.CurrencyJPY
	}
	return pricing
}

func optionalTime(t time.Time) docstore.Value {
	if t.IsZero() {
		return docstore.Null()
	}
	return docstore.Time(t)
}
