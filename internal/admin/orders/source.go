package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/finitefield-org/hanko-field/internal/catalog"
	domain "github.com/finitefield-org/hanko-field/internal/domain"
	"github.com/finitefield-org/hanko-field/internal/repositories"
)

// RepositorySource reads and writes the console snapshot through the order,
// event and master repositories.
type RepositorySource struct {
	orders    repositories.OrderRepository
	events    repositories.OrderEventRepository
	materials repositories.MaterialRepository
	countries repositories.CountryRepository
	locale    string
}

// RepositorySourceDeps lists the repositories backing a RepositorySource.
// Locale selects the country label shown in the console.
type RepositorySourceDeps struct {
	Orders    repositories.OrderRepository
	Events    repositories.OrderEventRepository
	Materials repositories.MaterialRepository
	Countries repositories.CountryRepository
	Locale    string
}

func NewRepositorySource(deps RepositorySourceDeps) (*RepositorySource, error) {
	if deps.Orders == nil || deps.Events == nil || deps.Materials == nil || deps.Countries == nil {
		return nil, errors.New("admin source requires order, event, material and country repositories")
	}
	locale := strings.TrimSpace(deps.Locale)
	if locale == "" {
		locale = catalog.DefaultLocale
	}
	return &RepositorySource{
		orders:    deps.Orders,
		events:    deps.Events,
		materials: deps.Materials,
		countries: deps.Countries,
		locale:    locale,
	}, nil
}

var _ Source = (*RepositorySource)(nil)

// Load reads every order with its events, the material master and the country
// labels. Without a countries collection the labels come from the order
// snapshots.
func (s *RepositorySource) Load(ctx context.Context) (Snapshot, error) {
	list, err := s.orders.List(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		Orders:    make(map[string]domain.Order, len(list)),
		Materials: map[string]domain.Material{},
		Countries: map[string]string{},
	}
	for _, order := range list {
		events, err := s.events.List(ctx, order.ID)
		if err != nil {
			return Snapshot{}, err
		}
		order.Events = events
		snap.Orders[order.ID] = order
	}

	materials, err := s.materials.List(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	for _, material := range materials {
		snap.Materials[material.Key] = material
	}

	countries, err := s.countries.List(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	for _, country := range countries {
		snap.Countries[country.Code] = s.label(country.LabelI18n, country.Code)
	}
	if len(snap.Countries) == 0 {
		for _, order := range snap.Orders {
			code := order.Shipping.CountryCode
			if code == "" {
				continue
			}
			if _, ok := snap.Countries[code]; !ok {
				snap.Countries[code] = s.label(order.Shipping.CountryLabelI18n, code)
			}
		}
	}
	return snap, nil
}

// PersistOrder patches the fields the events touched and appends the events.
// Statuses are only written back when a status_changed event is among them.
func (s *RepositorySource) PersistOrder(ctx context.Context, order domain.Order, events []domain.OrderEvent) error {
	if err := s.orders.Save(ctx, order, orderMask(order, events)...); err != nil {
		return err
	}
	for _, event := range events {
		if _, err := s.events.Append(ctx, order.ID, event); err != nil {
			return fmt.Errorf("append %s event: %w", event.Kind, err)
		}
	}
	return nil
}

func (s *RepositorySource) PersistMaterial(ctx context.Context, material domain.Material) error {
	return s.materials.Save(ctx, material)
}

func (s *RepositorySource) label(values map[string]string, fallback string) string {
	if label := catalog.ResolveLocalized(values, s.locale, catalog.DefaultLocale); label != "" {
		return label
	}
	return fallback
}

func orderMask(order domain.Order, events []domain.OrderEvent) []repositories.OrderField {
	mask := []repositories.OrderField{repositories.FieldUpdatedAt}
	for _, event := range events {
		switch event.Kind {
		case domain.EventShipmentRegistered:
			mask = append(mask, repositories.FieldFulfillmentCarrier, repositories.FieldFulfillmentTrackingNo)
		case domain.EventStatusChanged:
			// StatusFields repeats updated_at; Save treats the mask as a set.
			mask = append(mask, repositories.StatusFields...)
			switch order.FulfillmentStatus() {
			case domain.FulfillmentStatusShipped:
				mask = append(mask, repositories.FieldFulfillmentShippedAt)
			case domain.FulfillmentStatusDelivered:
				mask = append(mask, repositories.FieldFulfillmentDelivered)
			}
		}
	}
	return mask
}
