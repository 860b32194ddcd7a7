// Package mockdata seeds an in-memory document store with demo orders,
// materials and countries for the admin console's mock mode.
package mockdata

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	domain "github.com/finitefield-org/hanko-field/internal/domain"
	"github.com/finitefield-org/hanko-field/internal/platform/docstore"
	fsrepo "github.com/finitefield-org/hanko-field/internal/repositories/firestore"
)

//go:embed seed.yaml
var defaultSeed []byte

type seedFile struct {
	Countries []countrySeed  `yaml:"countries"`
	Materials []materialSeed `yaml:"materials"`
	Orders    []orderSeed    `yaml:"orders"`
}

type countrySeed struct {
	Code           string            `yaml:"code"`
	LabelI18n      map[string]string `yaml:"label_i18n"`
	ShippingFeeJPY int64             `yaml:"shipping_fee_jpy"`
	SortOrder      int64             `yaml:"sort_order"`
	Inactive       bool              `yaml:"inactive"`
}

type materialSeed struct {
	Key             string            `yaml:"key"`
	LabelI18n       map[string]string `yaml:"label_i18n"`
	DescriptionI18n map[string]string `yaml:"description_i18n"`
	PriceJPY        int64             `yaml:"price_jpy"`
	IsActive        bool              `yaml:"is_active"`
	SortOrder       int64             `yaml:"sort_order"`
	Version         int64             `yaml:"version"`
	UpdatedHoursAgo float64           `yaml:"updated_hours_ago"`
}

type orderSeed struct {
	ID              string      `yaml:"id"`
	OrderNo         string      `yaml:"order_no"`
	Channel         string      `yaml:"channel"`
	Locale          string      `yaml:"locale"`
	Status          string      `yaml:"status"`
	Country         string      `yaml:"country"`
	Email           string      `yaml:"email"`
	Seal            []string    `yaml:"seal"`
	Material        string      `yaml:"material"`
	TotalJPY        int64       `yaml:"total_jpy"`
	Carrier         string      `yaml:"carrier"`
	TrackingNo      string      `yaml:"tracking_no"`
	CreatedHoursAgo float64     `yaml:"created_hours_ago"`
	UpdatedHoursAgo float64     `yaml:"updated_hours_ago"`
	Events          []eventSeed `yaml:"events"`
}

type eventSeed struct {
	Kind      string  `yaml:"kind"`
	ActorType string  `yaml:"actor_type"`
	ActorID   string  `yaml:"actor_id"`
	Before    string  `yaml:"before"`
	After     string  `yaml:"after"`
	Note      string  `yaml:"note"`
	HoursAgo  float64 `yaml:"hours_ago"`
}

// Default returns the bundled demo seed.
func Default() io.Reader {
	return bytes.NewReader(defaultSeed)
}

// Open returns the seed at path, or the bundled seed when path is empty.
func Open(path string) (io.ReadCloser, error) {
	if strings.TrimSpace(path) == "" {
		return io.NopCloser(Default()), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mockdata: open seed: %w", err)
	}
	return f, nil
}

// Load decodes a YAML seed from r and writes it into store. Relative hour
// offsets in the seed are resolved against now.
func Load(r io.Reader, store *docstore.Memory, now time.Time) error {
	if store == nil {
		return fmt.Errorf("mockdata: store is required")
	}
	var seed seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return fmt.Errorf("mockdata: decode seed: %w", err)
	}
	ago := func(hours float64) time.Time {
		return now.Add(-time.Duration(hours * float64(time.Hour)))
	}

	countryLabels := make(map[string]map[string]string, len(seed.Countries))
	for _, c := range seed.Countries {
		code := strings.ToUpper(strings.TrimSpace(c.Code))
		if code == "" {
			return fmt.Errorf("mockdata: country code is required")
		}
		countryLabels[code] = c.LabelI18n
		store.Seed(docstore.Join("countries", code), docstore.Fields{
			"label_i18n":       docstore.StringMap(c.LabelI18n),
			"shipping_fee_jpy": docstore.Int(c.ShippingFeeJPY),
			"is_active":        docstore.Bool(!c.Inactive),
			"sort_order":       docstore.Int(c.SortOrder),
			"version":          docstore.Int(1),
		})
	}

	materials := make(map[string]materialSeed, len(seed.Materials))
	for _, m := range seed.Materials {
		if m.Key == "" {
			return fmt.Errorf("mockdata: material key is required")
		}
		version := m.Version
		if version <= 0 {
			version = 1
		}
		materials[m.Key] = m
		store.Seed(docstore.Join("materials", m.Key), docstore.Fields{
			"label_i18n":       docstore.StringMap(m.LabelI18n),
			"description_i18n": docstore.StringMap(m.DescriptionI18n),
			"price_jpy":        docstore.Int(m.PriceJPY),
			"is_active":        docstore.Bool(m.IsActive),
			"sort_order":       docstore.Int(m.SortOrder),
			"version":          docstore.Int(version),
			"updated_at":       docstore.Time(ago(m.UpdatedHoursAgo)),
		})
	}

	for _, o := range seed.Orders {
		if o.ID == "" {
			return fmt.Errorf("mockdata: order id is required")
		}
		order := buildOrder(o, materials[o.Material], countryLabels, ago)
		fields := fsrepo.EncodeOrder(order)
		if o.Carrier != "" {
			fields.Set("fulfillment.carrier", docstore.String(o.Carrier))
		}
		if o.TrackingNo != "" {
			fields.Set("fulfillment.tracking_no", docstore.String(o.TrackingNo))
		}
		store.Seed(docstore.Join("orders", o.ID), fields)

		for i, e := range o.Events {
			event := domain.OrderEvent{
				Kind:         domain.EventKind(e.Kind),
				ActorType:    domain.ActorType(e.ActorType),
				ActorID:      e.ActorID,
				BeforeStatus: domain.OrderStatus(e.Before),
				AfterStatus:  domain.OrderStatus(e.After),
				Note:         e.Note,
				CreatedAt:    ago(e.HoursAgo),
			}
			id := fmt.Sprintf("evt_seed_%s_%02d", o.ID, i+1)
			store.Seed(docstore.Join("orders", o.ID, "events", id), fsrepo.EncodeOrderEvent(event))
		}
	}
	return nil
}

func buildOrder(o orderSeed, material materialSeed, countries map[string]map[string]string, ago func(float64) time.Time) domain.Order {
	country := strings.ToUpper(o.Country)
	order := domain.Order{
		ID:      o.ID,
		OrderNo: o.OrderNo,
		Channel: domain.Channel(o.Channel),
		Locale:  o.Locale,
		Material: domain.MaterialSnapshot{
			Key:          o.Material,
			LabelI18n:    material.LabelI18n,
			UnitPriceJPY: material.PriceJPY,
			Version:      material.Version,
		},
		Shipping: domain.Shipping{
			CountryCode:      country,
			CountryLabelI18n: countries[country],
		},
		Contact:         domain.Contact{Email: o.Email, PreferredLocale: o.Locale},
		Pricing:         domain.Pricing{TotalJPY: o.TotalJPY, Currency: domain.CurrencyJPY},
		Payment:         domain.Payment{Provider: "stripe"},
		TermsAgreed:     true,
		CreatedAt:       ago(o.CreatedHoursAgo),
		UpdatedAt:       ago(o.UpdatedHoursAgo),
		StatusUpdatedAt: ago(o.UpdatedHoursAgo),
	}
	if len(o.Seal) > 0 {
		order.Seal.Line1 = o.Seal[0]
	}
	if len(o.Seal) > 1 {
		order.Seal.Line2 = o.Seal[1]
	}
	order.Restore(domain.OrderStatus(o.Status), "", "")
	return order
}
