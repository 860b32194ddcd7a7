package docstore

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCreateWithIDConflicts(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if _, err := store.Create(ctx, "idempotency_keys", "web:abcdefgh", Fields{"order_id": String("o1")}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := store.Create(ctx, "idempotency_keys", "web:abcdefgh", Fields{"order_id": String("o2")})
	if !IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}

	doc, err := store.Get(ctx, "idempotency_keys/web:abcdefgh")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := doc.Fields.String("order_id"); got != "o1" {
		t.Fatalf("expected first writer to win, got %q", got)
	}
}

func TestMemoryCreateAssignsID(t *testing.T) {
	store := NewMemory()
	id, err := store.Create(context.Background(), "orders", "", Fields{"status": String("pending_payment")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(id) != 26 {
		t.Fatalf("expected ulid id, got %q", id)
	}
}

func TestMemoryPatchRequiresDocument(t *testing.T) {
	store := NewMemory()
	err := store.Patch(context.Background(), "payment_webhook_events/evt_1", []Update{{Path: "processed", Value: Bool(true)}})
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryPatchNestedPaths(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	store.Seed("orders/o1", Fields{
		"status":  String("pending_payment"),
		"payment": Map(Fields{"provider": String("stripe"), "status": String("unpaid")}),
	})

	err := store.Patch(ctx, "orders/o1", []Update{
		{Path: "payment.status", Value: String("paid")},
		{Path: "fulfillment.carrier", Value: String("JP Post")},
	})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}

	doc, _ := store.Get(ctx, "orders/o1")
	if got := doc.Fields.String("payment.status"); got != "paid" {
		t.Fatalf("payment.status = %q", got)
	}
	if got := doc.Fields.String("payment.provider"); got != "stripe" {
		t.Fatalf("sibling field lost: %q", got)
	}
	if got := doc.Fields.String("fulfillment.carrier"); got != "JP Post" {
		t.Fatalf("fulfillment.carrier = %q", got)
	}
}

func TestMemoryQueryOrdersSubcollection(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.Seed("orders/o1/events/b", Fields{"type": String("payment_paid"), "created_at": Time(base.Add(time.Minute))})
	store.Seed("orders/o1/events/a", Fields{"type": String("order_created"), "created_at": Time(base)})
	store.Seed("orders/o2/events/c", Fields{"type": String("order_created"), "created_at": Time(base)})

	docs, err := store.Query(ctx, Query{Collection: "orders/o1/events", OrderBy: "created_at"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "a" || docs[1].ID != "b" {
		t.Fatalf("unexpected docs %+v", docs)
	}

	docs, _ = store.Query(ctx, Query{Collection: "orders/o1/events", OrderBy: "created_at", Direction: Desc, Limit: 1})
	if len(docs) != 1 || docs[0].ID != "b" {
		t.Fatalf("unexpected desc docs %+v", docs)
	}
}

func TestMemoryQueryFilters(t *testing.T) {
	store := NewMemory()
	store.Seed("fonts/a", Fields{"is_active": Bool(true)})
	store.Seed("fonts/b", Fields{"is_active": Bool(false)})

	docs, err := store.Query(context.Background(), Query{Collection: "fonts", Where: []Filter{{Field: "is_active", Value: Bool(true)}}})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "a" {
		t.Fatalf("unexpected docs %+v", docs)
	}
}

func TestGetReturnsIsolatedCopy(t *testing.T) {
	store := NewMemory()
	store.Seed("orders/o1", Fields{"pricing": Map(Fields{"total_jpy": Int(4200)})})
	doc, _ := store.Get(context.Background(), "orders/o1")
	doc.Fields.Set("pricing.total_jpy", Int(1))

	again, _ := store.Get(context.Background(), "orders/o1")
	if got, _ := again.Fields.Int("pricing.total_jpy"); got != 4200 {
		t.Fatalf("stored document mutated: %d", got)
	}
}

func TestValidID(t *testing.T) {
	cases := map[string]bool{
		"ord_1007":        true,
		"JP":              true,
		"__":              true,
		"":                false,
		".":               false,
		"..":              false,
		"a/b":             false,
		"ord_1/events/e1": false,
		"__reserved__":    false,
	}
	for id, want := range cases {
		if got := ValidID(id); got != want {
			t.Fatalf("ValidID(%q) = %v, want %v", id, got, want)
		}
	}
}
