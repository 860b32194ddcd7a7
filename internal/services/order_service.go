package services

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/finitefield-org/hanko-field/internal/catalog"
	domain "github.com/finitefield-org/hanko-field/internal/domain"
	"github.com/finitefield-org/hanko-field/internal/platform/idempotency"
	"github.com/finitefield-org/hanko-field/internal/repositories"
)

var (
	// ErrOrderInvalidInput is matched by every ValidationError.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrUnsupportedLocale is returned when locale or preferred_locale is not enabled in app_config/public.
	ErrUnsupportedLocale = errors.New("order: unsupported locale")
	// ErrInvalidReference is returned when the font, material or country does not exist.
	ErrInvalidReference = errors.New("order: invalid font/material/country")
	// ErrInactiveReference is returned when the font, material or country is not active.
	ErrInactiveReference = errors.New("order: inactive font/material/country")
)

// ValidationError carries the client-facing message for a rejected request.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrOrderInvalidInput }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

var (
	localePattern = regexp.MustCompile(`^[a-z]{2,3}(-[a-z0-9]{2,8})*$`)
	jst           = time.FixedZone("JST", 9*60*60)
)

type SealInput struct {
	Line1   string `json:"line1"`
	Line2   string `json:"line2"`
	Shape   string `json:"shape"`
	FontKey string `json:"font_key"`
}

type ShippingInput struct {
	CountryCode   string `json:"country_code"`
	RecipientName string `json:"recipient_name"`
	Phone         string `json:"phone"`
	PostalCode    string `json:"postal_code"`
	State         string `json:"state"`
	City          string `json:"city"`
	AddressLine1  string `json:"address_line1"`
	AddressLine2  string `json:"address_line2"`
}

type ContactInput struct {
	Email           string `json:"email"`
	PreferredLocale string `json:"preferred_locale"`
}

// CreateOrderCommand is the storefront order request.
type CreateOrderCommand struct {
	Channel        string        `json:"channel"`
	Locale         string        `json:"locale"`
	IdempotencyKey string        `json:"idempotency_key"`
	TermsAgreed    bool          `json:"terms_agreed"`
	Seal           SealInput     `json:"seal"`
	MaterialKey    string        `json:"material_key"`
	Shipping       ShippingInput `json:"shipping"`
	Contact        ContactInput  `json:"contact"`
}

// CreateOutcome tells the caller how a create request was resolved.
type CreateOutcome int

const (
	// CreateOutcomeCreated means this request created the order.
	CreateOutcomeCreated CreateOutcome = iota + 1
	// CreateOutcomeReplayed means an earlier request with the same key and payload created it.
	CreateOutcomeReplayed
	// CreateOutcomeConflict means the key is bound to a different payload.
	CreateOutcomeConflict
)

func (o CreateOutcome) String() string {
	switch o {
	case CreateOutcomeCreated:
		return "created"
	case CreateOutcomeReplayed:
		return "replayed"
	case CreateOutcomeConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// CreateOrderResult is the order summary returned for Created and Replayed.
type CreateOrderResult struct {
	Outcome           CreateOutcome
	OrderID           string
	OrderNo           string
	Status            OrderStatus
	PaymentStatus     PaymentStatus
	FulfillmentStatus FulfillmentStatus
	TotalJPY          int64
	Currency          string
}

type OrderServiceDeps struct {
	Catalog     CatalogReader
	Orders      repositories.OrderRepository
	Events      repositories.OrderEventRepository
	Idempotency *idempotency.Store
	Publisher   OrderEventPublisher
	Clock       func() time.Time
	// OrderSuffix returns the random 0-9999 part of the order number.
	OrderSuffix func() int
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	catalog     CatalogReader
	orders      repositories.OrderRepository
	events      repositories.OrderEventRepository
	keys        *idempotency.Store
	publisher   OrderEventPublisher
	clock       func() time.Time
	orderSuffix func() int
	logger      func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("order service: catalog reader is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Events == nil {
		return nil, errors.New("order service: order event repository is required")
	}
	if deps.Idempotency == nil {
		return nil, errors.New("order service: idempotency store is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	suffix := deps.OrderSuffix
	if suffix == nil {
		suffix = randomOrderSuffix
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		catalog:     deps.Catalog,
		orders:      deps.Orders,
		events:      deps.Events,
		keys:        deps.Idempotency,
		publisher:   deps.Publisher,
		clock:       clock,
		orderSuffix: suffix,
		logger:      logger,
	}, nil
}

// CreateOrder validates cmd, replays an earlier result for the same key and
// payload, and otherwise writes the order, its order_created event and finally
// the idempotency record. The record is written last so a key is only bound
// once its order exists; a lost race is resolved by replaying the winner.
func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (CreateOrderResult, error) {
	cmd = normalizeCreateOrder(cmd)
	if err := validateCreateOrder(cmd); err != nil {
		return CreateOrderResult{}, err
	}
	requestHash, err := idempotency.Fingerprint(fingerprintOf(cmd))
	if err != nil {
		return CreateOrderResult{}, err
	}

	cfg, err := s.catalog.PublicConfig(ctx)
	if err != nil {
		return CreateOrderResult{}, err
	}
	if !cfg.Supports(cmd.Locale) || !cfg.Supports(cmd.Contact.PreferredLocale) {
		return CreateOrderResult{}, ErrUnsupportedLocale
	}

	if result, ok, err := s.replay(ctx, cmd.Channel, cmd.IdempotencyKey, requestHash); err != nil || ok {
		return result, err
	}

	font, err := s.catalog.Font(ctx, cmd.Seal.FontKey)
	if err != nil {
		return CreateOrderResult{}, referenceError(err)
	}
	material, err := s.catalog.Material(ctx, cmd.MaterialKey)
	if err != nil {
		return CreateOrderResult{}, referenceError(err)
	}
	country, err := s.catalog.Country(ctx, cmd.Shipping.CountryCode)
	if err != nil {
		return CreateOrderResult{}, referenceError(err)
	}

	now := s.clock().UTC()
	order := buildOrder(cmd, font, material, country, now)
	order.OrderNo = fmt.Sprintf("HF-%s-%04d", now.In(jst).Format("20060102"), s.orderSuffix()%10000)

	orderID, err := s.orders.Insert(ctx, order)
	if err != nil {
		return CreateOrderResult{}, err
	}
	order.ID = orderID

	created := domain.OrderEvent{
		Kind:      domain.EventOrderCreated,
		ActorType: domain.ActorSystem,
		Payload: map[string]any{
			"channel":   cmd.Channel,
			"total_jpy": order.Pricing.TotalJPY,
		},
		CreatedAt: now,
	}
	if _, err := s.events.Append(ctx, orderID, created); err != nil {
		return CreateOrderResult{}, err
	}

	err = s.keys.Claim(ctx, idempotency.Record{
		Channel:     cmd.Channel,
		Key:         cmd.IdempotencyKey,
		RequestHash: requestHash,
		OrderID:     orderID,
		CreatedAt:   now,
	})
	if errors.Is(err, idempotency.ErrAlreadyClaimed) {
		s.logger(ctx, "order.create.claim_lost", map[string]any{
			"orderId": orderID,
			"channel": cmd.Channel,
		})
		result, ok, err := s.replay(ctx, cmd.Channel, cmd.IdempotencyKey, requestHash)
		if err != nil {
			return CreateOrderResult{}, err
		}
		if !ok {
			return CreateOrderResult{Outcome: CreateOutcomeConflict}, nil
		}
		return result, nil
	}
	if err != nil {
		return CreateOrderResult{}, err
	}

	s.logger(ctx, "order.created", map[string]any{
		"orderId":  orderID,
		"orderNo":  order.OrderNo,
		"channel":  cmd.Channel,
		"totalJpy": order.Pricing.TotalJPY,
	})
	s.publish(ctx, orderEventMessage(OrderEventCreated, order, now))

	return CreateOrderResult{
		Outcome:           CreateOutcomeCreated,
		OrderID:           orderID,
		OrderNo:           order.OrderNo,
		Status:            order.Status(),
		PaymentStatus:     order.PaymentStatus(),
		FulfillmentStatus: order.FulfillmentStatus(),
		TotalJPY:          order.Pricing.TotalJPY,
		Currency:          order.Pricing.Currency,
	}, nil
}

// replay reports ok=false when no record exists for the key.
func (s *orderService) replay(ctx context.Context, channel, key, requestHash string) (CreateOrderResult, bool, error) {
	rec, ok, err := s.keys.Lookup(ctx, channel, key)
	if err != nil || !ok {
		return CreateOrderResult{}, false, err
	}
	if rec.RequestHash != requestHash {
		return CreateOrderResult{Outcome: CreateOutcomeConflict}, true, nil
	}
	if rec.OrderID == "" {
		return CreateOrderResult{}, false, fmt.Errorf("order: idempotency key %s exists but order_id is empty", idempotency.DocumentID(channel, key))
	}
	order, err := s.orders.FindByID(ctx, rec.OrderID)
	if err != nil {
		return CreateOrderResult{}, false, fmt.Errorf("order: load replayed order: %w", err)
	}
	return CreateOrderResult{
		Outcome:           CreateOutcomeReplayed,
		OrderID:           order.ID,
		OrderNo:           order.OrderNo,
		Status:            order.Status(),
		PaymentStatus:     order.PaymentStatus(),
		FulfillmentStatus: order.FulfillmentStatus(),
		TotalJPY:          order.Pricing.TotalJPY,
		Currency:          order.Pricing.Currency,
	}, true, nil
}

func (s *orderService) publish(ctx context.Context, message OrderEventMessage) {
	if s.publisher == nil {
		return
	}
	if _, err := s.publisher.PublishOrderEvent(ctx, message); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"event":   message.Event,
			"orderId": message.OrderID,
			"error":   err,
		})
	}
}

func referenceError(err error) error {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrInvalidReference, err)
	case errors.Is(err, catalog.ErrInactive):
		return fmt.Errorf("%w: %v", ErrInactiveReference, err)
	default:
		return err
	}
}

func buildOrder(cmd CreateOrderCommand, font catalog.Font, material catalog.Material, country catalog.Country, now time.Time) domain.Order {
	order := domain.Order{
		Channel: domain.Channel(cmd.Channel),
		Locale:  cmd.Locale,
		Seal: domain.Seal{
			Line1:         cmd.Seal.Line1,
			Line2:         cmd.Seal.Line2,
			Shape:         cmd.Seal.Shape,
			FontKey:       font.Key,
			FontLabelI18n: font.LabelI18n,
			FontVersion:   font.Version,
		},
		Material: domain.MaterialSnapshot{
			Key:          material.Key,
			LabelI18n:    material.LabelI18n,
			UnitPriceJPY: material.PriceJPY,
			Version:      material.Version,
		},
		Shipping: domain.Shipping{
			CountryCode:      country.Code,
			CountryLabelI18n: country.LabelI18n,
			CountryVersion:   country.Version,
			FeeJPY:           country.ShippingFeeJPY,
			RecipientName:    cmd.Shipping.RecipientName,
			Phone:            cmd.Shipping.Phone,
			PostalCode:       cmd.Shipping.PostalCode,
			State:            cmd.Shipping.State,
			City:             cmd.Shipping.City,
			AddressLine1:     cmd.Shipping.AddressLine1,
			AddressLine2:     cmd.Shipping.AddressLine2,
		},
		Contact: domain.Contact{
			Email:           cmd.Contact.Email,
			PreferredLocale: cmd.Contact.PreferredLocale,
		},
		Pricing:        domain.NewPricing(material.PriceJPY, country.ShippingFeeJPY, 0, 0),
		Payment:        domain.Payment{Provider: "stripe"},
		IdempotencyKey: cmd.IdempotencyKey,
		TermsAgreed:    cmd.TermsAgreed,
		CreatedAt:      now,
	}
	order.SetStatus(domain.OrderStatusPendingPayment, now)
	return order
}

func normalizeCreateOrder(cmd CreateOrderCommand) CreateOrderCommand {
	return CreateOrderCommand{
		Channel:        strings.ToLower(strings.TrimSpace(cmd.Channel)),
		Locale:         strings.ToLower(strings.TrimSpace(cmd.Locale)),
		IdempotencyKey: strings.TrimSpace(cmd.IdempotencyKey),
		TermsAgreed:    cmd.TermsAgreed,
		Seal: SealInput{
			Line1:   strings.TrimSpace(cmd.Seal.Line1),
			Line2:   strings.TrimSpace(cmd.Seal.Line2),
			Shape:   strings.ToLower(strings.TrimSpace(cmd.Seal.Shape)),
			FontKey: strings.TrimSpace(cmd.Seal.FontKey),
		},
		MaterialKey: strings.TrimSpace(cmd.MaterialKey),
		Shipping: ShippingInput{
			CountryCode:   strings.ToUpper(strings.TrimSpace(cmd.Shipping.CountryCode)),
			RecipientName: strings.TrimSpace(cmd.Shipping.RecipientName),
			Phone:         strings.TrimSpace(cmd.Shipping.Phone),
			PostalCode:    strings.TrimSpace(cmd.Shipping.PostalCode),
			State:         strings.TrimSpace(cmd.Shipping.State),
			City:          strings.TrimSpace(cmd.Shipping.City),
			AddressLine1:  strings.TrimSpace(cmd.Shipping.AddressLine1),
			AddressLine2:  strings.TrimSpace(cmd.Shipping.AddressLine2),
		},
		Contact: ContactInput{
			Email:           strings.TrimSpace(cmd.Contact.Email),
			PreferredLocale: strings.ToLower(strings.TrimSpace(cmd.Contact.PreferredLocale)),
		},
	}
}

// validateCreateOrder expects a normalized command and reports the first problem.
func validateCreateOrder(cmd CreateOrderCommand) error {
	if cmd.Channel != string(domain.ChannelApp) && cmd.Channel != string(domain.ChannelWeb) {
		return invalid("channel must be one of app or web")
	}
	if !localePattern.MatchString(cmd.Locale) {
		return invalid("locale must be a valid BCP-47 lowercase tag")
	}
	if !idempotency.ValidKey(cmd.IdempotencyKey) {
		return invalid("idempotency_key must match ^[A-Za-z0-9_-]{8,128}$")
	}
	if !cmd.TermsAgreed {
		return invalid("terms_agreed must be true")
	}
	if err := validateSealLine("seal.line1", cmd.Seal.Line1, 1, 2); err != nil {
		return err
	}
	if err := validateSealLine("seal.line2", cmd.Seal.Line2, 0, 2); err != nil {
		return err
	}
	if cmd.Seal.Shape != "square" && cmd.Seal.Shape != "round" {
		return invalid("seal.shape must be one of square or round")
	}
	if cmd.Seal.FontKey == "" {
		return invalid("seal.font_key is required")
	}
	if cmd.MaterialKey == "" {
		return invalid("material_key is required")
	}
	if utf8.RuneCountInString(cmd.Shipping.CountryCode) != 2 {
		return invalid("shipping.country_code must be ISO alpha-2")
	}
	required := []struct {
		field string
		value string
	}{
		{"shipping.recipient_name", cmd.Shipping.RecipientName},
		{"shipping.phone", cmd.Shipping.Phone},
		{"shipping.postal_code", cmd.Shipping.PostalCode},
		{"shipping.state", cmd.Shipping.State},
		{"shipping.city", cmd.Shipping.City},
		{"shipping.address_line1", cmd.Shipping.AddressLine1},
	}
	for _, r := range required {
		if r.value == "" {
			return invalid("%s is required", r.field)
		}
	}
	if cmd.Contact.Email == "" {
		return invalid("contact.email is required")
	}
	if !validEmail(cmd.Contact.Email) {
		return invalid("contact.email must be valid")
	}
	if !localePattern.MatchString(cmd.Contact.PreferredLocale) {
		return invalid("contact.preferred_locale must be a valid BCP-47 lowercase tag")
	}
	return nil
}

func validateSealLine(field, value string, minLen, maxLen int) error {
	length := utf8.RuneCountInString(value)
	if length < minLen || length > maxLen {
		return invalid("%s must be %d-%d characters", field, minLen, maxLen)
	}
	if strings.IndexFunc(value, unicode.IsSpace) >= 0 {
		return invalid("%s must not contain whitespace", field)
	}
	return nil
}

func validEmail(email string) bool {
	local, domainPart, ok := strings.Cut(email, "@")
	if !ok || local == "" || domainPart == "" || strings.Contains(domainPart, "@") {
		return false
	}
	if strings.HasPrefix(domainPart, ".") || strings.HasSuffix(domainPart, ".") || !strings.Contains(domainPart, ".") {
		return false
	}
	return true
}

// requestFingerprint lists keys in lexical order at every level so the hash
// matches a sorted-key JSON encoding of the normalized request.
type requestFingerprint struct {
	Channel string `json:"channel"`
	Contact struct {
		Email           string `json:"email"`
		PreferredLocale string `json:"preferred_locale"`
	} `json:"contact"`
	IdempotencyKey string `json:"idempotency_key"`
	Locale         string `json:"locale"`
	MaterialKey    string `json:"material_key"`
	Seal           struct {
		FontKey string `json:"font_key"`
		Line1   string `json:"line1"`
		Line2   string `json:"line2"`
		Shape   string `json:"shape"`
	} `json:"seal"`
	Shipping struct {
		AddressLine1  string `json:"address_line1"`
		AddressLine2  string `json:"address_line2"`
		City          string `json:"city"`
		CountryCode   string `json:"country_code"`
		Phone         string `json:"phone"`
		PostalCode    string `json:"postal_code"`
		RecipientName string `json:"recipient_name"`
		State         string `json:"state"`
	} `json:"shipping"`
	TermsAgreed bool `json:"terms_agreed"`
}

func fingerprintOf(cmd CreateOrderCommand) requestFingerprint {
	var fp requestFingerprint
	fp.Channel = cmd.Channel
	fp.Contact.Email = cmd.Contact.Email
	fp.Contact.PreferredLocale = cmd.Contact.PreferredLocale
	fp.IdempotencyKey = cmd.IdempotencyKey
	fp.Locale = cmd.Locale
	fp.MaterialKey = cmd.MaterialKey
	fp.Seal.FontKey = cmd.Seal.FontKey
	fp.Seal.Line1 = cmd.Seal.Line1
	fp.Seal.Line2 = cmd.Seal.Line2
	fp.Seal.Shape = cmd.Seal.Shape
	fp.Shipping.AddressLine1 = cmd.Shipping.AddressLine1
	fp.Shipping.AddressLine2 = cmd.Shipping.AddressLine2
	fp.Shipping.City = cmd.Shipping.City
	fp.Shipping.CountryCode = cmd.Shipping.CountryCode
	fp.Shipping.Phone = cmd.Shipping.Phone
	fp.Shipping.PostalCode = cmd.Shipping.PostalCode
	fp.Shipping.RecipientName = cmd.Shipping.RecipientName
	fp.Shipping.State = cmd.Shipping.State
	fp.TermsAgreed = cmd.TermsAgreed
	return fp
}

func randomOrderSuffix() int {
	id := uuid.New()
	return int(binary.BigEndian.Uint16(id[:2]) % 10000)
}
