package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPayload is matched by every PayloadError via errors.Is.
var ErrInvalidPayload = errors.New("invalid stripe payload")

// PayloadError reports why a webhook body could not be used.
type PayloadError struct {
	Reason string
}

func (e *PayloadError) Error() string { return e.Reason }

func (e *PayloadError) Is(target error) bool { return target == ErrInvalidPayload }

// Event is the part of a Stripe event the order engine acts on.
type Event struct {
	ID              string
	Type            string
	PaymentIntentID string
	OrderID         string
}

var orderMetadataKeys = []string{"order_id", "orderId", "orderID"}

// envelope holds only what the order engine reads, so envelope fields such as
// created or livemode are never type checked.
type envelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data *struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// ParseEvent decodes a webhook body. The payment intent id is data.object.id
// when that is a pi_ id, overridden by data.object.payment_intent. The order id
// comes from data.object.order_id, else from the metadata keys order_id,
// orderId or orderID.
func ParseEvent(payload []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Event{}, &PayloadError{Reason: fmt.Sprintf("failed to parse stripe event: %v", err)}
	}

	event := Event{
		ID:   strings.TrimSpace(env.ID),
		Type: strings.TrimSpace(env.Type),
	}
	if event.ID == "" || event.Type == "" {
		return Event{}, &PayloadError{Reason: "stripe event must include id and type"}
	}
	if env.Data == nil || len(env.Data.Object) == 0 {
		return Event{}, &PayloadError{Reason: "stripe event must include data.object"}
	}

	// A null or non-object payload carries no ids.
	var object map[string]interface{}
	if err := json.Unmarshal(env.Data.Object, &object); err != nil || object == nil {
		return event, nil
	}

	if id := stringField(object, "id"); strings.HasPrefix(id, "pi_") {
		event.PaymentIntentID = id
	}
	if raw, ok := object["payment_intent"].(string); ok {
		event.PaymentIntentID = strings.TrimSpace(raw)
	}

	event.OrderID = stringField(object, "order_id")
	if event.OrderID == "" {
		if metadata, ok := object["metadata"].(map[string]interface{}); ok {
			for _, key := range orderMetadataKeys {
				if value := stringField(metadata, key); value != "" {
					event.OrderID = value
					break
				}
			}
		}
	}
	return event, nil
}

func stringField(values map[string]interface{}, key string) string {
	raw, ok := values[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(raw)
}
