// Package idempotency stores the records that make order creation and webhook
// ingestion safe to retry. Order creation uses create-with-id as the lock: the
// first request to create idempotency_keys/{channel}:{key} owns the key.
package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finitefield-org/hanko-field/internal/platform/docstore"
)

const (
	DefaultCollection = "idempotency_keys"
	DefaultTTL        = 30 * 24 * time.Hour
)

// ErrAlreadyClaimed is returned by Claim when another request created the record first.
var ErrAlreadyClaimed = errors.New("idempotency: key already claimed")

// Record binds a client key to the request hash and the order it produced.
type Record struct {
	Channel     string
	Key         string
	RequestHash string
	OrderID     string
	CreatedAt   time.Time
	ExpireAt    time.Time
}

type Store struct {
	docs       docstore.Store
	collection string
	ttl        time.Duration
}

type StoreOption func(*Store)

func WithCollection(name string) StoreOption {
	return func(s *Store) {
		if name != "" {
			s.collection = name
		}
	}
}

// WithTTL sets the expire_at offset written on claimed records.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func NewStore(docs docstore.Store, opts ...StoreOption) (*Store, error) {
	if docs == nil {
		return nil, errors.New("idempotency: document store is required")
	}
	s := &Store{docs: docs, collection: DefaultCollection, ttl: DefaultTTL}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// DocumentID is the deterministic record id "{channel}:{key}".
func DocumentID(channel, key string) string {
	return channel + ":" + key
}

// Lookup returns the record for channel and key, or ok=false when none exists.
func (s *Store) Lookup(ctx context.Context, channel, key string) (Record, bool, error) {
	doc, err := s.docs.Get(ctx, docstore.Join(s.collection, DocumentID(channel, key)))
	if docstore.IsNotFound(err) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("idempotency: lookup %s: %w", DocumentID(channel, key), err)
	}
	rec := Record{
		Channel:     doc.Fields.String("channel"),
		Key:         doc.Fields.String("idempotency_key"),
		RequestHash: doc.Fields.String("request_hash"),
		OrderID:     doc.Fields.String("order_id"),
	}
	rec.CreatedAt, _ = doc.Fields.Time("created_at")
	rec.ExpireAt, _ = doc.Fields.Time("expire_at")
	return rec, true, nil
}

// Claim creates the record. It returns ErrAlreadyClaimed when the id is taken.
func (s *Store) Claim(ctx context.Context, rec Record) error {
	if rec.ExpireAt.IsZero() {
		rec.ExpireAt = rec.CreatedAt.Add(s.ttl)
	}
	_, err := s.docs.Create(ctx, s.collection, DocumentID(rec.Channel, rec.Key), docstore.Fields{
		"channel":         docstore.String(rec.Channel),
		"idempotency_key": docstore.String(rec.Key),
		"request_hash":    docstore.String(rec.RequestHash),
		"order_id":        docstore.String(rec.OrderID),
		"created_at":      docstore.Time(rec.CreatedAt),
		"expire_at":       docstore.Time(rec.ExpireAt),
	})
	if docstore.IsConflict(err) {
		return ErrAlreadyClaimed
	}
	if err != nil {
		return fmt.Errorf("idempotency: claim %s: %w", DocumentID(rec.Channel, rec.Key), err)
	}
	return nil
}

// Fingerprint is the hex SHA-256 of the compact JSON encoding of payload,
// without HTML escaping. Callers fix the key order through struct field order.
func Fingerprint(payload any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return "", fmt.Errorf("idempotency: encode payload: %w", err)
	}
	sum := sha256.Sum256(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	return hex.EncodeToString(sum[:]), nil
}

// ValidKey reports whether key matches ^[A-Za-z0-9_-]{8,128}$.
func ValidKey(key string) bool {
	if len(key) < 8 || len(key) > 128 {
		return false
	}
	return strings.IndexFunc(key, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-')
	}) < 0
}
