// Package catalog reads the master data an order snapshots at creation time:
// fonts, materials, countries and the public app config.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/finitefield-org/hanko-field/internal/platform/docstore"
)

const (
	fontsCollection     = "fonts"
	materialsCollection = "materials"
	countriesCollection = "countries"
	publicConfigPath    = "app_config/public"

	// DefaultLocale is the fallback locale for labels and the public config.
	DefaultLocale = "ja"
)

var (
	// ErrNotFound is returned when a referenced master document does not exist.
	ErrNotFound = errors.New("catalog: reference not found")
	// ErrInactive is returned when the master document exists but is_active is not true.
	ErrInactive = errors.New("catalog: reference inactive")
)

// PublicConfig lists the locales the storefronts may order with.
type PublicConfig struct {
	SupportedLocales []string
	DefaultLocale    string
}

// Supports reports whether locale (already lower-cased) is enabled.
func (c PublicConfig) Supports(locale string) bool {
	for _, candidate := range c.SupportedLocales {
		if candidate == locale {
			return true
		}
	}
	return false
}

type Font struct {
	Key       string
	Family    string
	LabelI18n map[string]string
	Version   int64
	SortOrder int64
}

type Material struct {
	Key             string
	LabelI18n       map[string]string
	DescriptionI18n map[string]string
	PriceJPY        int64
	Version         int64
	SortOrder       int64
}

type Country struct {
	Code           string
	LabelI18n      map[string]string
	ShippingFeeJPY int64
	Version        int64
	SortOrder      int64
}

// Reader resolves master data from the document store.
type Reader struct {
	docs docstore.Store
}

func NewReader(docs docstore.Store) (*Reader, error) {
	if docs == nil {
		return nil, errors.New("catalog: document store is required")
	}
	return &Reader{docs: docs}, nil
}

// PublicConfig loads app_config/public. A missing document yields the defaults.
func (r *Reader) PublicConfig(ctx context.Context) (PublicConfig, error) {
	doc, err := r.docs.Get(ctx, publicConfigPath)
	if err != nil {
		if docstore.IsNotFound(err) {
			return NormalizePublicConfig(nil, ""), nil
		}
		return PublicConfig{}, fmt.Errorf("catalog: load public config: %w", err)
	}
	return NormalizePublicConfig(doc.Fields.StringSlice("supported_locales"), doc.Fields.String("default_locale")), nil
}

// NormalizePublicConfig lower-cases and de-duplicates the locales, defaults to
// [ja en] when none remain, and makes sure the default locale is listed.
func NormalizePublicConfig(supported []string, defaultLocale string) PublicConfig {
	seen := make(map[string]struct{}, len(supported))
	locales := make([]string, 0, len(supported))
	for _, locale := range supported {
		value := strings.ToLower(strings.TrimSpace(locale))
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		locales = append(locales, value)
	}
	if len(locales) == 0 {
		locales = []string{"ja", "en"}
	}

	cfg := PublicConfig{SupportedLocales: locales}
	cfg.DefaultLocale = strings.ToLower(strings.TrimSpace(defaultLocale))
	if cfg.DefaultLocale == "" || !cfg.Supports(cfg.DefaultLocale) {
		cfg.DefaultLocale = DefaultLocale
	}
	if !cfg.Supports(cfg.DefaultLocale) {
		cfg.SupportedLocales = append([]string{cfg.DefaultLocale}, cfg.SupportedLocales...)
	}
	return cfg
}

// Font returns an active font by key.
func (r *Reader) Font(ctx context.Context, key string) (Font, error) {
	doc, err := r.active(ctx, fontsCollection, key)
	if err != nil {
		return Font{}, err
	}
	return decodeFont(doc), nil
}

// Material returns an active material by key.
func (r *Reader) Material(ctx context.Context, key string) (Material, error) {
	doc, err := r.active(ctx, materialsCollection, key)
	if err != nil {
		return Material{}, err
	}
	return decodeMaterial(doc), nil
}

// Country returns an active shipping country by ISO alpha-2 code.
func (r *Reader) Country(ctx context.Context, code string) (Country, error) {
	doc, err := r.active(ctx, countriesCollection, code)
	if err != nil {
		return Country{}, err
	}
	return decodeCountry(doc), nil
}

func (r *Reader) ActiveFonts(ctx context.Context) ([]Font, error) {
	docs, err := r.listActive(ctx, fontsCollection)
	if err != nil {
		return nil, err
	}
	fonts := make([]Font, 0, len(docs))
	for _, doc := range docs {
		fonts = append(fonts, decodeFont(doc))
	}
	return fonts, nil
}

func (r *Reader) ActiveMaterials(ctx context.Context) ([]Material, error) {
	docs, err := r.listActive(ctx, materialsCollection)
	if err != nil {
		return nil, err
	}
	materials := make([]Material, 0, len(docs))
	for _, doc := range docs {
		materials = append(materials, decodeMaterial(doc))
	}
	return materials, nil
}

func (r *Reader) ActiveCountries(ctx context.Context) ([]Country, error) {
	docs, err := r.listActive(ctx, countriesCollection)
	if err != nil {
		return nil, err
	}
	countries := make([]Country, 0, len(docs))
	for _, doc := range docs {
		countries = append(countries, decodeCountry(doc))
	}
	return countries, nil
}

func (r *Reader) active(ctx context.Context, collection, key string) (docstore.Document, error) {
	key = strings.TrimSpace(key)
	if !docstore.ValidID(key) {
		return docstore.Document{}, fmt.Errorf("%w: %s/%q", ErrNotFound, collection, key)
	}
	doc, err := r.docs.Get(ctx, docstore.Join(collection, key))
	if err != nil {
		if docstore.IsNotFound(err) {
			return docstore.Document{}, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, key)
		}
		return docstore.Document{}, fmt.Errorf("catalog: load %s/%s: %w", collection, key, err)
	}
	if active, ok := doc.Fields.Bool("is_active"); !ok || !active {
		return docstore.Document{}, fmt.Errorf("%w: %s/%s", ErrInactive, collection, key)
	}
	return doc, nil
}

func (r *Reader) listActive(ctx context.Context, collection string) ([]docstore.Document, error) {
	docs, err := r.docs.Query(ctx, docstore.Query{
		Collection: collection,
		Where:      []docstore.Filter{{Field: "is_active", Value: docstore.Bool(true)}},
		OrderBy:    "sort_order",
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: list %s: %w", collection, err)
	}
	return docs, nil
}

func decodeFont(doc docstore.Document) Font {
	family := doc.Fields.String("font_family")
	if family == "" {
		family = doc.Fields.String("family")
	}
	sortOrder, _ := doc.Fields.Int("sort_order")
	return Font{
		Key:       doc.ID,
		Family:    family,
		LabelI18n: doc.Fields.StringMap("label_i18n"),
		Version:   version(doc.Fields),
		SortOrder: sortOrder,
	}
}

func decodeMaterial(doc docstore.Document) Material {
	price, ok := doc.Fields.Int("price_jpy")
	if !ok {
		price, _ = doc.Fields.Int("price")
	}
	sortOrder, _ := doc.Fields.Int("sort_order")
	return Material{
		Key:             doc.ID,
		LabelI18n:       doc.Fields.StringMap("label_i18n"),
		DescriptionI18n: doc.Fields.StringMap("description_i18n"),
		PriceJPY:        price,
		Version:         version(doc.Fields),
		SortOrder:       sortOrder,
	}
}

func decodeCountry(doc docstore.Document) Country {
	fee, ok := doc.Fields.Int("shipping_fee_jpy")
	if !ok {
		fee, _ = doc.Fields.Int("shipping")
	}
	sortOrder, _ := doc.Fields.Int("sort_order")
	return Country{
		Code:           doc.ID,
		LabelI18n:      doc.Fields.StringMap("label_i18n"),
		ShippingFeeJPY: fee,
		Version:        version(doc.Fields),
		SortOrder:      sortOrder,
	}
}

func version(fields docstore.Fields) int64 {
	if v, ok := fields.Int("version"); ok {
		return v
	}
	return 1
}
