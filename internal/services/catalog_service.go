package services

import (
	"context"
	"errors"
	"strings"

	"github.com/finitefield-org/hanko-field/internal/catalog"
)

// ErrCatalogUnsupportedLocale is returned when the requested catalog locale is not enabled.
var ErrCatalogUnsupportedLocale = errors.New("catalog: unsupported locale")

type CatalogFont struct {
	Key        string `json:"key"`
	Label      string `json:"label"`
	FontFamily string `json:"font_family"`
	Version    int64  `json:"version"`
}

type CatalogMaterial struct {
	Key         string   `json:"key"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	PriceJPY    int64    `json:"price_jpy"`
	Version     int64    `json:"version"`
	Photos      []string `json:"photos"`
}

type CatalogCountry struct {
	Code           string `json:"code"`
	Label          string `json:"label"`
	ShippingFeeJPY int64  `json:"shipping_fee_jpy"`
	Version        int64  `json:"version"`
}

// CatalogView is the localized storefront catalog.
type CatalogView struct {
	Locale           string            `json:"locale"`
	SupportedLocales []string          `json:"supported_locales"`
	DefaultLocale    string            `json:"default_locale"`
	Fonts            []CatalogFont     `json:"fonts"`
	Materials        []CatalogMaterial `json:"materials"`
	Countries        []CatalogCountry  `json:"countries"`
}

type catalogService struct {
	reader CatalogReader
}

// NewCatalogService exposes the master data to the storefronts.
func NewCatalogService(reader CatalogReader) (CatalogService, error) {
	if reader == nil {
		return nil, errors.New("catalog service: catalog reader is required")
	}
	return &catalogService{reader: reader}, nil
}

func (s *catalogService) PublicConfig(ctx context.Context) (catalog.PublicConfig, error) {
	return s.reader.PublicConfig(ctx)
}

// Catalog lists the active fonts, materials and countries with labels resolved
// for locale. An empty locale means the configured default.
func (s *catalogService) Catalog(ctx context.Context, locale string) (CatalogView, error) {
	cfg, err := s.reader.PublicConfig(ctx)
	if err != nil {
		return CatalogView{}, err
	}
	locale = strings.ToLower(strings.TrimSpace(locale))
	if locale == "" {
		locale = cfg.DefaultLocale
	}
	if !cfg.Supports(locale) {
		return CatalogView{}, ErrCatalogUnsupportedLocale
	}

	fonts, err := s.reader.ActiveFonts(ctx)
	if err != nil {
		return CatalogView{}, err
	}
	materials, err := s.reader.ActiveMaterials(ctx)
	if err != nil {
		return CatalogView{}, err
	}
	countries, err := s.reader.ActiveCountries(ctx)
	if err != nil {
		return CatalogView{}, err
	}

	view := CatalogView{
		Locale:           locale,
		SupportedLocales: cfg.SupportedLocales,
		DefaultLocale:    cfg.DefaultLocale,
		Fonts:            make([]CatalogFont, 0, len(fonts)),
		Materials:        make([]CatalogMaterial, 0, len(materials)),
		Countries:        make([]CatalogCountry, 0, len(countries)),
	}
	for _, font := range fonts {
		label := catalog.ResolveLocalized(font.LabelI18n, locale, cfg.DefaultLocale)
		if label == "" {
			label = font.Key
		}
		view.Fonts = append(view.Fonts, CatalogFont{
			Key:        font.Key,
			Label:      label,
			FontFamily: font.Family,
			Version:    font.Version,
		})
	}
	for _, material := range materials {
		label := catalog.ResolveLocalized(material.LabelI18n, locale, cfg.DefaultLocale)
		if label == "" {
			label = material.Key
		}
		view.Materials = append(view.Materials, CatalogMaterial{
			Key:         material.Key,
			Label:       label,
			Description: catalog.ResolveLocalized(material.DescriptionI18n, locale, cfg.DefaultLocale),
			PriceJPY:    material.PriceJPY,
			Version:     material.Version,
			Photos:      []string{},
		})
	}
	for _, country := range countries {
		label := catalog.ResolveLocalized(country.LabelI18n, locale, cfg.DefaultLocale)
		if label == "" {
			label = country.Code
		}
		view.Countries = append(view.Countries, CatalogCountry{
			Code:           country.Code,
			Label:          label,
			ShippingFeeJPY: country.ShippingFeeJPY,
			Version:        country.Version,
		})
	}
	return view, nil
}
