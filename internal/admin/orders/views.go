package orders

import (
	"sort"
	"strings"
	"time"

	domain "github.com/finitefield-org/hanko-field/internal/domain"
)

// ShippingTransitionNone keeps the status when registering a shipment.
const ShippingTransitionNone = "none"

// Filter narrows the order list. Empty fields match everything.
type Filter struct {
	Status  string
	Country string
	Email   string
}

type SelectOption struct {
	Value string
	Label string
}

type CountryOption struct {
	Code  string
	Label string
}

type OrderRow struct {
	ID                string
	OrderNo           string
	CreatedAt         time.Time
	Status            domain.OrderStatus
	PaymentStatus     domain.PaymentStatus
	FulfillmentStatus domain.FulfillmentStatus
	CountryCode       string
	CountryLabel      string
	ContactEmail      string
	TotalJPY          int64
}

type EventRow struct {
	Kind         domain.EventKind
	ActorType    domain.ActorType
	ActorID      string
	BeforeStatus domain.OrderStatus
	AfterStatus  domain.OrderStatus
	Note         string
	CreatedAt    time.Time
}

// OrderDetail is the order panel, including the forms' option lists and the
// flash message or error of the last action.
type OrderDetail struct {
	OrderRow
	UpdatedAt           time.Time
	StatusUpdatedAt     time.Time
	Carrier             string
	TrackingNo          string
	Channel             domain.Channel
	Locale              string
	SealLine1           string
	SealLine2           string
	MaterialLabel       string
	NextStatuses        []SelectOption
	ShippingTransitions []SelectOption
	Events              []EventRow
	Message             string
	Error               string
}

type MaterialRow struct {
	Key       string
	LabelJA   string
	PriceJPY  int64
	IsActive  bool
	SortOrder int64
	Version   int64
	UpdatedAt time.Time
}

type MaterialDetail struct {
	MaterialRow
	LabelEN       string
	DescriptionJA string
	DescriptionEN string
	Message       string
	Error         string
}

// Orders lists the orders matching f, newest first. Status matches exactly,
// country case-insensitively and email as a case-insensitive substring.
func (c *Console) Orders(f Filter) []OrderRow {
	c.mu.RLock()
	defer c.mu.RUnlock()

	email := strings.ToLower(strings.TrimSpace(f.Email))
	country := strings.TrimSpace(f.Country)
	status := strings.TrimSpace(f.Status)

	rows := make([]OrderRow, 0, len(c.snap.OrderIDs))
	for _, id := range c.snap.OrderIDs {
		order := c.snap.Orders[id]
		if status != "" && string(order.Status()) != status {
			continue
		}
		if country != "" && !strings.EqualFold(order.Shipping.CountryCode, country) {
			continue
		}
		if email != "" && !strings.Contains(strings.ToLower(order.Contact.Email), email) {
			continue
		}
		rows = append(rows, c.rowLocked(order))
	}
	return rows
}

// Order returns the detail panel for orderID.
func (c *Console) Order(orderID, message, errMessage string) (OrderDetail, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	order, ok := c.snap.Orders[orderID]
	if !ok {
		return OrderDetail{}, false
	}

	events := make([]EventRow, 0, len(order.Events))
	for _, event := range order.Events {
		events = append(events, EventRow{
			Kind:         event.Kind,
			ActorType:    event.ActorType,
			ActorID:      event.ActorID,
			BeforeStatus: event.BeforeStatus,
			AfterStatus:  event.AfterStatus,
			Note:         event.Note,
			CreatedAt:    event.CreatedAt,
		})
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})

	return OrderDetail{
		OrderRow:            c.rowLocked(order),
		UpdatedAt:           order.UpdatedAt,
		StatusUpdatedAt:     order.StatusUpdatedAt,
		Carrier:             order.Fulfillment.Carrier,
		TrackingNo:          order.Fulfillment.TrackingNo,
		Channel:             order.Channel,
		Locale:              order.Locale,
		SealLine1:           order.Seal.Line1,
		SealLine2:           order.Seal.Line2,
		MaterialLabel:       materialLabel(order.Material),
		NextStatuses:        NextStatuses(order.Status()),
		ShippingTransitions: ShippingTransitions(order.Status()),
		Events:              events,
		Message:             message,
		Error:               errMessage,
	}, true
}

// Materials lists the material master ordered by sort_order, then key.
func (c *Console) Materials() []MaterialRow {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rows := make([]MaterialRow, 0, len(c.snap.MaterialKeys))
	for _, key := range c.snap.MaterialKeys {
		rows = append(rows, materialRow(c.snap.Materials[key]))
	}
	return rows
}

func (c *Console) Material(key, message, errMessage string) (MaterialDetail, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	material, ok := c.snap.Materials[key]
	if !ok {
		return MaterialDetail{}, false
	}
	return MaterialDetail{
		MaterialRow:   materialRow(material),
		LabelEN:       material.LabelI18n["en"],
		DescriptionJA: material.DescriptionI18n["ja"],
		DescriptionEN: material.DescriptionI18n["en"],
		Message:       message,
		Error:         errMessage,
	}, true
}

// CountryOptions lists the known countries ordered by code.
func (c *Console) CountryOptions() []CountryOption {
	c.mu.RLock()
	defer c.mu.RUnlock()

	options := make([]CountryOption, 0, len(c.snap.Countries))
	for code, label := range c.snap.Countries {
		options = append(options, CountryOption{Code: code, Label: label})
	}
	sort.Slice(options, func(i, j int) bool { return options[i].Code < options[j].Code })
	return options
}

// StatusOptions lists every lifecycle status ordered by code.
func StatusOptions() []SelectOption {
	keys := make([]string, 0, len(orderStatusLabels))
	for status := range orderStatusLabels {
		keys = append(keys, string(status))
	}
	sort.Strings(keys)
	options := make([]SelectOption, 0, len(keys))
	for _, key := range keys {
		options = append(options, SelectOption{Value: key, Label: OrderStatusLabel(domain.OrderStatus(key))})
	}
	return options
}

// NextStatuses lists the statuses an operator may move current to.
func NextStatuses(current domain.OrderStatus) []SelectOption {
	next := domain.AllowedNext(current)
	options := make([]SelectOption, 0, len(next))
	for _, status := range next {
		options = append(options, SelectOption{Value: string(status), Label: OrderStatusLabel(status)})
	}
	return options
}

// ShippingTransitions offers "no change" plus the fulfillment statuses
// reachable from current.
func ShippingTransitions(current domain.OrderStatus) []SelectOption {
	options := []SelectOption{{Value: ShippingTransitionNone, Label: "ステータス変更なし"}}
	for _, status := range domain.AllowedNext(current) {
		switch status {
		case domain.OrderStatusManufacturing, domain.OrderStatusShipped, domain.OrderStatusDelivered:
			options = append(options, SelectOption{Value: string(status), Label: OrderStatusLabel(status)})
		}
	}
	return options
}

func (c *Console) rowLocked(order domain.Order) OrderRow {
	return OrderRow{
		ID:                order.ID,
		OrderNo:           order.OrderNo,
		CreatedAt:         order.CreatedAt,
		Status:            order.Status(),
		PaymentStatus:     order.PaymentStatus(),
		FulfillmentStatus: order.FulfillmentStatus(),
		CountryCode:       order.Shipping.CountryCode,
		CountryLabel:      c.countryLabelLocked(order.Shipping.CountryCode),
		ContactEmail:      order.Contact.Email,
		TotalJPY:          order.Pricing.TotalJPY,
	}
}

func (c *Console) countryLabelLocked(code string) string {
	if label, ok := c.snap.Countries[code]; ok && label != "" {
		return label
	}
	return code
}

func materialLabel(snapshot domain.MaterialSnapshot) string {
	if label := snapshot.LabelI18n["ja"]; label != "" {
		return label
	}
	return snapshot.Key
}

func materialRow(material domain.Material) MaterialRow {
	return MaterialRow{
		Key:       material.Key,
		LabelJA:   material.LabelI18n["ja"],
		PriceJPY:  material.PriceJPY,
		IsActive:  material.IsActive,
		SortOrder: material.SortOrder,
		Version:   material.Version,
		UpdatedAt: material.UpdatedAt,
	}
}
