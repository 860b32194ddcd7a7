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

const eventsCollection = "events"

// OrderEventRepository stores the append-only audit trail under orders/{id}/events.
type OrderEventRepository struct {
	docs docstore.Store
}

func NewOrderEventRepository(docs docstore.Store) (*OrderEventRepository, error) {
	if docs == nil {
		return nil, errors.New("order event repository requires document store")
	}
	return &OrderEventRepository{docs: docs}, nil
}

var _ repositories.OrderEventRepository = (*OrderEventRepository)(nil)

func (r *OrderEventRepository) Append(ctx context.Context, orderID string, event domain.OrderEvent) (string, error) {
	if !docstore.ValidID(orderID) {
		return "", fmt.Errorf("order_events.append %q: %w", orderID, repositories.ErrNotFound)
	}
	id, err := r.docs.Create(ctx, eventsPath(orderID), event.ID, EncodeOrderEvent(event))
	if err != nil {
		return "", fmt.Errorf("order_events.append %s: %w", orderID, err)
	}
	return id, nil
}

func (r *OrderEventRepository) List(ctx context.Context, orderID string) ([]domain.OrderEvent, error) {
	if !docstore.ValidID(orderID) {
		return nil, fmt.Errorf("order_events.list %q: %w", orderID, repositories.ErrNotFound)
	}
	docs, err := r.docs.Query(ctx, docstore.Query{
		Collection: eventsPath(orderID),
		OrderBy:    "created_at",
		Direction:  docstore.Asc,
	})
	if err != nil {
		return nil, fmt.Errorf("order_events.list %s: %w", orderID, err)
	}
	events := make([]domain.OrderEvent, 0, len(docs))
	for _, doc := range docs {
		events = append(events, DecodeOrderEvent(doc.ID, doc.Fields))
	}
	return events, nil
}

func eventsPath(orderID string) string {
	return docstore.Join(ordersCollection, orderID, eventsCollection)
}

// EncodeOrderEvent omits empty optional fields.
func EncodeOrderEvent(event domain.OrderEvent) docstore.Fields {
	fields := docstore.Fields{
		"type":       docstore.String(string(event.Kind)),
		"actor_type": docstore.String(string(event.ActorType)),
		"created_at": docstore.Time(event.CreatedAt),
	}
	if event.ActorID != "" {
		fields["actor_id"] = docstore.String(event.ActorID)
	}
	if event.BeforeStatus != "" {
		fields["before_status"] = docstore.String(string(event.BeforeStatus))
	}
	if event.AfterStatus != "" {
		fields["after_status"] = docstore.String(string(event.AfterStatus))
	}
	if event.Note != "" {
		fields["note"] = docstore.String(event.Note)
	}
	if len(event.Payload) > 0 {
		fields["payload"] = docstore.Map(docstore.FieldsFromMap(event.Payload))
	}
	return fields
}

// DecodeOrderEvent defaults the type to "event" and derives a missing note from
// a shipment payload as "carrier / tracking_no".
func DecodeOrderEvent(id string, fields docstore.Fields) domain.OrderEvent {
	event := domain.OrderEvent{
		ID:           id,
		Kind:         domain.EventKind(fields.String("type")),
		ActorType:    domain.ActorType(fields.String("actor_type")),
		ActorID:      fields.String("actor_id"),
		BeforeStatus: domain.OrderStatus(fields.String("before_status")),
		AfterStatus:  domain.OrderStatus(fields.String("after_status")),
		Note:         fields.String("note"),
	}
	event.CreatedAt, _ = fields.Time("created_at")
	if payload := fields.Map("payload"); len(payload) > 0 {
		event.Payload = payload.Interface()
	}
	if event.Kind == "" {
		event.Kind = "event"
	}
	if event.Note == "" {
		carrier := fields.String("payload.carrier")
		trackingNo := fields.String("payload.tracking_no")
		if carrier != "" || trackingNo != "" {
			event.Note = strings.TrimSpace(carrier + " / " + trackingNo)
		}
	}
	return event
}
