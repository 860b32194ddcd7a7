package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finitefield-org/hanko-field/internal/platform/docstore"
)

const (
	DefaultLedgerCollection = "payment_webhook_events"
	DefaultLedgerTTL        = 90 * 24 * time.Hour
)

// EventRecord tracks one provider webhook event. Processed flips to true only
// after the order patch and audit event have been written.
type EventRecord struct {
	EventID   string
	Provider  string
	EventType string
	OrderID   string
	Processed bool
	CreatedAt time.Time
	ExpireAt  time.Time
}

// Ledger deduplicates webhook deliveries by provider event id.
type Ledger struct {
	docs       docstore.Store
	collection string
	ttl        time.Duration
}

func NewLedger(docs docstore.Store, ttl time.Duration) (*Ledger, error) {
	if docs == nil {
		return nil, errors.New("idempotency: document store is required")
	}
	if ttl <= 0 {
		ttl = DefaultLedgerTTL
	}
	return &Ledger{docs: docs, collection: DefaultLedgerCollection, ttl: ttl}, nil
}

// Get returns the record for eventID, or ok=false when none exists.
func (l *Ledger) Get(ctx context.Context, eventID string) (EventRecord, bool, error) {
	doc, err := l.docs.Get(ctx, docstore.Join(l.collection, eventID))
	if docstore.IsNotFound(err) {
		return EventRecord{}, false, nil
	}
	if err != nil {
		return EventRecord{}, false, fmt.Errorf("idempotency: load webhook event %s: %w", eventID, err)
	}
	rec := EventRecord{
		EventID:   doc.ID,
		Provider:  doc.Fields.String("provider"),
		EventType: doc.Fields.String("event_type"),
		OrderID:   doc.Fields.String("order_id"),
	}
	rec.Processed, _ = doc.Fields.Bool("processed")
	rec.CreatedAt, _ = doc.Fields.Time("created_at")
	rec.ExpireAt, _ = doc.Fields.Time("expire_at")
	return rec, true, nil
}

// Upsert patches the record and falls back to create-with-id when it does not
// exist yet. A concurrent create is retried once as a patch.
func (l *Ledger) Upsert(ctx context.Context, rec EventRecord) error {
	if rec.ExpireAt.IsZero() {
		rec.ExpireAt = rec.CreatedAt.Add(l.ttl)
	}
	path := docstore.Join(l.collection, rec.EventID)
	fields := docstore.Fields{
		"provider":   docstore.String(rec.Provider),
		"event_type": docstore.String(rec.EventType),
		"order_id":   docstore.String(rec.OrderID),
		"processed":  docstore.Bool(rec.Processed),
		"created_at": docstore.Time(rec.CreatedAt),
		"expire_at":  docstore.Time(rec.ExpireAt),
	}
	updates := make([]docstore.Update, 0, len(fields))
	for _, key := range docstore.SortedKeys(fields) {
		updates = append(updates, docstore.Update{Path: key, Value: fields[key]})
	}

	err := l.docs.Patch(ctx, path, updates)
	if docstore.IsNotFound(err) {
		_, err = l.docs.Create(ctx, l.collection, rec.EventID, fields)
		if docstore.IsConflict(err) {
			err = l.docs.Patch(ctx, path, updates)
		}
	}
	if err != nil {
		return fmt.Errorf("idempotency: upsert webhook event %s: %w", rec.EventID, err)
	}
	return nil
}
