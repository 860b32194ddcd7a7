package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/finitefield-org/hanko-field/internal/domain"
	"github.com/finitefield-org/hanko-field/internal/platform/docstore"
	"github.com/finitefield-org/hanko-field/internal/repositories"
)

const (
	materialsCollection = "materials"
	countriesCollection = "countries"
)

// MaterialRepository reads and edits materials/{key}.
type MaterialRepository struct {
	docs docstore.Store
}

func NewMaterialRepository(docs docstore.Store) (*MaterialRepository, error) {
	if docs == nil {
		return nil, errors.New("material repository requires document store")
	}
	return &MaterialRepository{docs: docs}, nil
}

var _ repositories.MaterialRepository = (*MaterialRepository)(nil)

// List returns every material, active or not, ordered by sort_order.
func (r *MaterialRepository) List(ctx context.Context) ([]domain.Material, error) {
	docs, err := r.docs.Query(ctx, docstore.Query{Collection: materialsCollection, OrderBy: "sort_order"})
	if err != nil {
		return nil, fmt.Errorf("materials.list: %w", err)
	}
	materials := make([]domain.Material, 0, len(docs))
	for _, doc := range docs {
		materials = append(materials, decodeMaterial(doc))
	}
	return materials, nil
}

// Save patches the editable fields of an existing material.
func (r *MaterialRepository) Save(ctx context.Context, material domain.Material) error {
	if strings.TrimSpace(material.Key) == "" {
		return errors.New("materials.save: key is required")
	}
	updates := []docstore.Update{
		{Path: "label_i18n", Value: docstore.StringMap(material.LabelI18n)},
		{Path: "description_i18n", Value: docstore.StringMap(material.DescriptionI18n)},
		{Path: "price_jpy", Value: docstore.Int(material.PriceJPY)},
		{Path: "is_active", Value: docstore.Bool(material.IsActive)},
		{Path: "sort_order", Value: docstore.Int(material.SortOrder)},
		{Path: "version", Value: docstore.Int(material.Version)},
		{Path: "updated_at", Value: docstore.Time(material.UpdatedAt)},
	}
	if err := r.docs.Patch(ctx, docstore.Join(materialsCollection, material.Key), updates); err != nil {
		if docstore.IsNotFound(err) {
			return fmt.Errorf("materials.save %s: %w", material.Key, repositories.ErrNotFound)
		}
		return fmt.Errorf("materials.save %s: %w", material.Key, err)
	}
	return nil
}

// decodeMaterial defaults is_active to true and the version to 1. Legacy
// single-language label and description fields are read as ja.
func decodeMaterial(doc docstore.Document) domain.Material {
	fields := doc.Fields
	price, ok := fields.Int("price_jpy")
	if !ok {
		price, _ = fields.Int("price")
	}
	active, ok := fields.Bool("is_active")
	if !ok {
		active = true
	}
	material := domain.Material{
		Key:             doc.ID,
		LabelI18n:       fields.StringMap("label_i18n"),
		DescriptionI18n: fields.StringMap("description_i18n"),
		PriceJPY:        price,
		IsActive:        active,
		Version:         intOr(fields, "version", 1),
	}
	material.SortOrder, _ = fields.Int("sort_order")
	material.UpdatedAt, _ = fields.Time("updated_at")
	if len(material.LabelI18n) == 0 {
		if legacy := fields.String("label"); legacy != "" {
			material.LabelI18n = map[string]string{"ja": legacy}
		}
	}
	if len(material.DescriptionI18n) == 0 {
		if legacy := fields.String("description"); legacy != "" {
			material.DescriptionI18n = map[string]string{"ja": legacy}
		}
	}
	return material
}

// CountryRepository lists countries/{code}.
type CountryRepository struct {
	docs docstore.Store
}

func NewCountryRepository(docs docstore.Store) (*CountryRepository, error) {
	if docs == nil {
		return nil, errors.New("country repository requires document store")
	}
	return &CountryRepository{docs: docs}, nil
}

var _ repositories.CountryRepository = (*CountryRepository)(nil)

func (r *CountryRepository) List(ctx context.Context) ([]domain.Country, error) {
	docs, err := r.docs.Query(ctx, docstore.Query{Collection: countriesCollection, OrderBy: "sort_order"})
	if err != nil {
		return nil, fmt.Errorf("countries.list: %w", err)
	}
	countries := make([]domain.Country, 0, len(docs))
	for _, doc := range docs {
		fee, ok := doc.Fields.Int("shipping_fee_jpy")
		if !ok {
			fee, _ = doc.Fields.Int("shipping")
		}
		country := domain.Country{
			Code:           strings.ToUpper(doc.ID),
			LabelI18n:      doc.Fields.StringMap("label_i18n"),
			ShippingFeeJPY: fee,
			Version:        intOr(doc.Fields, "version", 1),
		}
		country.IsActive, _ = doc.Fields.Bool("is_active")
		country.SortOrder, _ = doc.Fields.Int("sort_order")
		if len(country.LabelI18n) == 0 {
			if legacy := doc.Fields.String("label"); legacy != "" {
				country.LabelI18n = map[string]string{"ja": legacy}
			}
		}
		countries = append(countries, country)
	}
	return countries, nil
}

func intOr(fields docstore.Fields, path string, fallback int64) int64 {
	if v, ok := fields.Int(path); ok {
		return v
	}
	return fallback
}
