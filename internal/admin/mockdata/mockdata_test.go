package mockdata

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/finitefield-org/hanko-field/internal/platform/docstore"
)

func TestLoadDefaultSeed(t *testing.T) {
	store := docstore.NewMemory()
	now := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	if err := Load(Default(), store, now); err != nil {
		t.Fatalf("load: %v", err)
	}
	ctx := context.Background()

	orders, err := store.Query(ctx, docstore.Query{Collection: "orders"})
	if err != nil {
		t.Fatalf("query orders: %v", err)
	}
	if len(orders) != 7 {
		t.Fatalf("expected 7 orders, got %d", len(orders))
	}

	doc, err := store.Get(ctx, "orders/ord_1005")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got := doc.Fields.String("payment.status"); got != "paid" {
		t.Fatalf("expected derived payment status paid, got %q", got)
	}
	if got := doc.Fields.String("fulfillment.carrier"); got != "DHL" {
		t.Fatalf("expected carrier DHL, got %q", got)
	}
	created, ok := doc.Fields.Time("created_at")
	if !ok || !created.Equal(now.Add(-36*time.Hour)) {
		t.Fatalf("unexpected created_at %v", created)
	}

	event, err := store.Get(ctx, "orders/ord_1005/events/evt_seed_ord_1005_04")
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if got := event.Fields.String("type"); got != "shipment_registered" {
		t.Fatalf("unexpected event type %q", got)
	}

	material, err := store.Get(ctx, "materials/titanium")
	if err != nil {
		t.Fatalf("get material: %v", err)
	}
	if active, _ := material.Fields.Bool("is_active"); active {
		t.Fatalf("titanium should be inactive")
	}

	if _, err := store.Get(ctx, "countries/SG"); err != nil {
		t.Fatalf("get country: %v", err)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	seed := "orders:\n  - id: ord_1\n    colour: red\n"
	if err := Load(strings.NewReader(seed), docstore.NewMemory(), time.Now()); err == nil {
		t.Fatalf("expected decode error for unknown field")
	}
}

func TestLoadRequiresIdentifiers(t *testing.T) {
	cases := map[string]string{
		"country":  "countries:\n  - label_i18n: {ja: 日本}\n",
		"material": "materials:\n  - price_jpy: 100\n",
		"order":    "orders:\n  - status: paid\n",
	}
	for name, seed := range cases {
		if err := Load(strings.NewReader(seed), docstore.NewMemory(), time.Now()); err == nil {
			t.Fatalf("%s: expected missing identifier error", name)
		}
	}
	if err := Load(Default(), nil, time.Now()); err == nil {
		t.Fatalf("expected error for nil store")
	}
}

func TestOpenFallsBackToBundledSeed(t *testing.T) {
	rc, err := Open("  ")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	if err := Load(rc, docstore.NewMemory(), time.Now()); err != nil {
		t.Fatalf("load bundled seed: %v", err)
	}

	if _, err := Open("/nonexistent/seed.yaml"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
