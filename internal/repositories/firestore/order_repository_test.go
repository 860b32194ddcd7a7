package firestore

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/finitefield-org/hanko-field/internal/domain"
	"github.com/finitefield-org/hanko-field/internal/platform/docstore"
	"github.com/finitefield-org/hanko-field/internal/repositories"
)

func sampleOrder(now time.Time) domain.Order {
	order := domain.Order{
		OrderNo:  "HF-20250506-0042",
		Channel:  domain.ChannelWeb,
		Locale:   "ja",
		Seal:     domain.Seal{Line1: "山田", Shape: "round", FontKey: "tensho", FontVersion: 1},
		Material: domain.MaterialSnapshot{Key: "hinoki", UnitPriceJPY: 3600, Version: 1, LabelI18n: map[string]string{"ja": "檜"}},
		Shipping: domain.Shipping{CountryCode: "JP", FeeJPY: 600, RecipientName: "Yamada", City: "Tokyo"},
		Contact:  domain.Contact{Email: "taro@example.com", PreferredLocale: "ja"},
		Pricing:  domain.NewPricing(3600, 600, 0, 0),
		Payment:  domain.Payment{Provider: "stripe"},

		CreatedAt: now,
	}
	order.SetStatus(domain.OrderStatusPendingPayment, now)
	return order
}

func TestOrderRepositoryInsertAndFind(t *testing.T) {
	store := docstore.NewMemory()
	repo, err := NewOrderRepository(store)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	ctx := context.Background()
	now := time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC)

	id, err := repo.Insert(ctx, sampleOrder(now))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := repo.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != id || got.OrderNo != "HF-20250506-0042" {
		t.Fatalf("unexpected identity %q %q", got.ID, got.OrderNo)
	}
	if got.Status() != domain.OrderStatusPendingPayment || got.PaymentStatus() != domain.PaymentStatusUnpaid || got.FulfillmentStatus() != domain.FulfillmentStatusPending {
		t.Fatalf("unexpected statuses %s %s %s", got.Status(), got.PaymentStatus(), got.FulfillmentStatus())
	}
	if got.Pricing.TotalJPY != 4200 || got.Pricing.Currency != "JPY" {
		t.Fatalf("unexpected pricing %+v", got.Pricing)
	}
	if got.Material.LabelI18n["ja"] != "檜" {
		t.Fatalf("expected material label to survive, got %v", got.Material.LabelI18n)
	}
	if !got.StatusUpdatedAt.Equal(now) {
		t.Fatalf("expected status_updated_at %v, got %v", now, got.StatusUpdatedAt)
	}
}

func TestOrderRepositoryFindMissing(t *testing.T) {
	repo, _ := NewOrderRepository(docstore.NewMemory())
	if _, err := repo.FindByID(context.Background(), "nope"); !errors.Is(err, repositories.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOrderRepositorySaveWritesOnlyMaskedFields(t *testing.T) {
	store := docstore.NewMemory()
	repo, _ := NewOrderRepository(store)
	ctx := context.Background()
	now := time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC)

	id, err := repo.Insert(ctx, sampleOrder(now))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	order, _ := repo.FindByID(ctx, id)
	later := now.Add(time.Hour)
	if err := order.Transition(domain.OrderStatusPaid, later); err != nil {
		t.Fatalf("transition: %v", err)
	}
	order.Contact.Email = "changed@example.com"

	if err := repo.Save(ctx, order, repositories.StatusFields...); err != nil {
		t.Fatalf("save: %v", err)
	}

	doc, _ := store.Get(ctx, "orders/"+id)
	if got := doc.Fields.String("status"); got != "paid" {
		t.Fatalf("expected status paid, got %q", got)
	}
	if got := doc.Fields.String("payment.status"); got != "paid" {
		t.Fatalf("expected payment.status paid, got %q", got)
	}
	if got := doc.Fields.String("payment.provider"); got != "stripe" {
		t.Fatalf("expected sibling payment.provider to remain, got %q", got)
	}
	if got := doc.Fields.String("contact.email"); got != "taro@example.com" {
		t.Fatalf("unmasked field must not be written, got %q", got)
	}
}

type recordingStore struct {
	*docstore.Memory
	patches [][]docstore.Update
}

func (s *recordingStore) Patch(ctx context.Context, path string, updates []docstore.Update) error {
	s.patches = append(s.patches, updates)
	return s.Memory.Patch(ctx, path, updates)
}

func TestOrderRepositorySaveWritesRepeatedFieldsOnce(t *testing.T) {
	store := &recordingStore{Memory: docstore.NewMemory()}
	repo, _ := NewOrderRepository(store)
	ctx := context.Background()
	now := time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC)

	id, err := repo.Insert(ctx, sampleOrder(now))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	order, _ := repo.FindByID(ctx, id)
	fields := append([]repositories.OrderField{repositories.FieldUpdatedAt}, repositories.StatusFields...)
	if err := repo.Save(ctx, order, fields...); err != nil {
		t.Fatalf("save: %v", err)
	}

	if len(store.patches) != 1 {
		t.Fatalf("expected one patch, got %d", len(store.patches))
	}
	seen := map[string]bool{}
	for _, u := range store.patches[0] {
		if seen[u.Path] {
			t.Fatalf("field %s written twice", u.Path)
		}
		seen[u.Path] = true
	}
	if len(seen) != len(repositories.StatusFields) {
		t.Fatalf("expected %d fields, got %d", len(repositories.StatusFields), len(seen))
	}
}

func TestDecodeOrderFallbacks(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	fields := docstore.Fields{
		"total_jpy":  docstore.Int(1200),
		"created_at": docstore.Time(created),
		"status":     docstore.String("shipped"),
		"shipping":   docstore.Map(docstore.Fields{"country_code": docstore.String("jp")}),
	}
	order := DecodeOrder("ord_legacy", fields, "en")

	if order.OrderNo != "ord_legacy" {
		t.Fatalf("expected order_no to fall back to id, got %q", order.OrderNo)
	}
	if order.Locale != "en" {
		t.Fatalf("expected default locale, got %q", order.Locale)
	}
	if order.Pricing.TotalJPY != 1200 {
		t.Fatalf("expected legacy total, got %d", order.Pricing.TotalJPY)
	}
	if !order.UpdatedAt.Equal(created) || !order.StatusUpdatedAt.Equal(created) {
		t.Fatalf("expected timestamps to fall back to created_at, got %v %v", order.UpdatedAt, order.StatusUpdatedAt)
	}
	if order.PaymentStatus() != domain.PaymentStatusPaid || order.FulfillmentStatus() != domain.FulfillmentStatusShipped {
		t.Fatalf("expected derived statuses, got %s %s", order.PaymentStatus(), order.FulfillmentStatus())
	}
	if order.Shipping.CountryCode != "JP" {
		t.Fatalf("expected upper-cased country, got %q", order.Shipping.CountryCode)
	}

	empty := DecodeOrder("ord_empty", docstore.Fields{}, "ja")
	if empty.Status() != domain.OrderStatusPendingPayment {
		t.Fatalf("expected empty status to read as pending_payment, got %q", empty.Status())
	}
}

func TestOrderEventRepositoryAppendAndList(t *testing.T) {
	store := docstore.NewMemory()
	repo, _ := NewOrderEventRepository(store)
	ctx := context.Background()
	base := time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC)

	if _, err := repo.Append(ctx, "ord_1", domain.OrderEvent{
		ID:        "evt_b",
		Kind:      domain.EventStatusChanged,
		ActorType: domain.ActorAdmin,
		ActorID:   "admin.console",
		CreatedAt: base.Add(time.Minute),
	}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := repo.Append(ctx, "ord_1", domain.OrderEvent{
		Kind:      domain.EventOrderCreated,
		ActorType: domain.ActorSystem,
		Payload:   map[string]any{"channel": "web", "total_jpy": int64(4200)},
		CreatedAt: base,
	}); err != nil {
		t.Fatalf("append: %v", err)
	}
	store.Seed("orders/ord_1/events/legacy", docstore.Fields{
		"payload":    docstore.Map(docstore.Fields{"carrier": docstore.String("yamato"), "tracking_no": docstore.String("1234")}),
		"created_at": docstore.Time(base.Add(2 * time.Minute)),
	})

	events, err := repo.List(ctx, "ord_1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Kind != domain.EventOrderCreated || events[0].Payload["total_jpy"] != int64(4200) {
		t.Fatalf("unexpected first event %+v", events[0])
	}
	if events[1].ID != "evt_b" || events[1].ActorID != "admin.console" {
		t.Fatalf("unexpected second event %+v", events[1])
	}
	if events[2].Kind != "event" || events[2].Note != "yamato / 1234" {
		t.Fatalf("expected legacy defaults, got %+v", events[2])
	}
}

func TestMaterialRepositoryDefaultsAndSave(t *testing.T) {
	store := docstore.NewMemory()
	store.Seed("materials/hinoki", docstore.Fields{
		"label":      docstore.String("檜"),
		"price":      docstore.Int(3600),
		"sort_order": docstore.Int(1),
	})
	repo, _ := NewMaterialRepository(store)
	ctx := context.Background()

	materials, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(materials) != 1 {
		t.Fatalf("expected 1 material, got %d", len(materials))
	}
	m := materials[0]
	if !m.IsActive || m.Version != 1 || m.PriceJPY != 3600 || m.LabelI18n["ja"] != "檜" {
		t.Fatalf("unexpected defaults %+v", m)
	}

	m.PriceJPY = 4000
	m.Version++
	if err := repo.Save(ctx, m); err != nil {
		t.Fatalf("save: %v", err)
	}
	doc, _ := store.Get(ctx, "materials/hinoki")
	if price, _ := doc.Fields.Int("price_jpy"); price != 4000 {
		t.Fatalf("expected price_jpy 4000, got %d", price)
	}

	if err := repo.Save(ctx, domain.Material{Key: "missing"}); !errors.Is(err, repositories.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
