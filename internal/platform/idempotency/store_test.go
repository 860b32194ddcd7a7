package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/finitefield-org/hanko-field/internal/platform/docstore"
)

func TestClaimIsCreateAsLock(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemory()
	store, err := NewStore(docs)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	now := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	first := Record{Channel: "web", Key: "key_12345", RequestHash: "h1", OrderID: "o1", CreatedAt: now}
	if err := store.Claim(ctx, first); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	second := Record{Channel: "web", Key: "key_12345", RequestHash: "h1", OrderID: "o2", CreatedAt: now}
	if err := store.Claim(ctx, second); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}

	rec, ok, err := store.Lookup(ctx, "web", "key_12345")
	if err != nil || !ok {
		t.Fatalf("lookup: ok=%v err=%v", ok, err)
	}
	if rec.OrderID != "o1" {
		t.Fatalf("expected first claim to win, got %s", rec.OrderID)
	}
	if !rec.ExpireAt.Equal(now.Add(DefaultTTL)) {
		t.Fatalf("unexpected expire_at %s", rec.ExpireAt)
	}

	if _, ok, _ := store.Lookup(ctx, "app", "key_12345"); ok {
		t.Fatalf("channels must not share keys")
	}
}

func TestFingerprintStable(t *testing.T) {
	type payload struct {
		A string `json:"a"`
		B int    `json:"b"`
	}
	h1, _ := Fingerprint(payload{A: "x", B: 1})
	h2, _ := Fingerprint(payload{A: "x", B: 1})
	h3, _ := Fingerprint(payload{A: "x", B: 2})
	if h1 != h2 || h1 == h3 || len(h1) != 64 {
		t.Fatalf("unexpected fingerprints %s %s %s", h1, h2, h3)
	}

	got, _ := Fingerprint(payload{A: "<&>", B: 1})
	sum := sha256.Sum256([]byte(`{"a":"<&>","b":1}`))
	if want := hex.EncodeToString(sum[:]); got != want {
		t.Fatalf("expected unescaped compact encoding hash %s, got %s", want, got)
	}
}

func TestValidKey(t *testing.T) {
	cases := map[string]bool{
		"abcdefgh":        true,
		"key_2025-01-ABC": true,
		"short":           false,
		"has space here":  false,
		"ünïcode-key":     false,
	}
	for key, want := range cases {
		if got := ValidKey(key); got != want {
			t.Fatalf("ValidKey(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestLedgerUpsertCreatesThenPatches(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemory()
	ledger, _ := NewLedger(docs, 0)
	now := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	if _, ok, _ := ledger.Get(ctx, "evt_1"); ok {
		t.Fatalf("expected no record")
	}

	rec := EventRecord{EventID: "evt_1", Provider: "stripe", EventType: "payment_intent.succeeded", OrderID: "o1", CreatedAt: now}
	if err := ledger.Upsert(ctx, rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	rec.Processed = true
	if err := ledger.Upsert(ctx, rec); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, ok, err := ledger.Get(ctx, "evt_1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !got.Processed || got.OrderID != "o1" {
		t.Fatalf("unexpected record %+v", got)
	}
	if !got.ExpireAt.Equal(now.Add(DefaultLedgerTTL)) {
		t.Fatalf("unexpected expire_at %s", got.ExpireAt)
	}
}
