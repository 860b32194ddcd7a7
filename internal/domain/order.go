package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyTransition is returned when no target status was supplied.
	ErrEmptyTransition = errors.New("order: target status is required")
	// ErrSameStatus is returned when the target equals the current status.
	ErrSameStatus = errors.New("order: target status equals current status")
	// ErrIllegalTransition is wrapped by TransitionError.
	ErrIllegalTransition = errors.New("order: illegal status transition")
)

// TransitionError reports a transition the state machine does not allow.
type TransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order: cannot transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }

// Order is the order aggregate. The status triple is unexported so payment and
// fulfillment status can only change together with the order status, through
// SetStatus, Transition or Restore.
type Order struct {
	ID             string
	OrderNo        string
	Channel        Channel
	Locale         string
	Seal           Seal
	Material       MaterialSnapshot
	Shipping       Shipping
	Contact        Contact
	Pricing        Pricing
	Payment        Payment
	Fulfillment    Fulfillment
	IdempotencyKey string
	TermsAgreed    bool

	CreatedAt       time.Time
	UpdatedAt       time.Time
	StatusUpdatedAt time.Time

	Events []OrderEvent

	status            OrderStatus
	paymentStatus     PaymentStatus
	fulfillmentStatus FulfillmentStatus
}

func (o *Order) Status() OrderStatus                  { return o.status }
func (o *Order) PaymentStatus() PaymentStatus         { return o.paymentStatus }
func (o *Order) FulfillmentStatus() FulfillmentStatus { return o.fulfillmentStatus }

// SetStatus moves the order to status without validation and re-derives the
// payment and fulfillment status. Used for the initial pending_payment state and
// by Transition.
func (o *Order) SetStatus(status OrderStatus, at time.Time) {
	o.status = status
	o.paymentStatus, o.fulfillmentStatus = DeriveStatuses(status, o.fulfillmentStatus)
	o.StatusUpdatedAt = at
	o.UpdatedAt = at
}

// Transition validates next against the state machine and applies it.
func (o *Order) Transition(next OrderStatus, at time.Time) error {
	if next == "" {
		return ErrEmptyTransition
	}
	if next == o.status {
		return ErrSameStatus
	}
	if !CanTransition(o.status, next) {
		return &TransitionError{From: o.status, To: next}
	}
	o.SetStatus(next, at)
	return nil
}

// Restore loads a persisted status triple. Empty derived fields are filled from
// the status; stored non-empty values are kept as-is. An empty status is read as
// pending_payment.
func (o *Order) Restore(status OrderStatus, payment PaymentStatus, fulfillment FulfillmentStatus) {
	if status == "" {
		status = OrderStatusPendingPayment
	}
	o.status = status
	derivedPayment, derivedFulfillment := DeriveStatuses(status, fulfillment)
	if payment == "" {
		payment = derivedPayment
	}
	if fulfillment == "" {
		fulfillment = derivedFulfillment
	}
	o.paymentStatus = payment
	o.fulfillmentStatus = fulfillment
}

// RecordPaymentStatus stores a provider reported payment status that did not
// produce a legal order transition (for example a late payment_failed on a paid
// order). The order status is left untouched.
func (o *Order) RecordPaymentStatus(status PaymentStatus) {
	if status != "" {
		o.paymentStatus = status
	}
}

// AppendEvent records an audit event on the in-memory aggregate.
func (o *Order) AppendEvent(event OrderEvent) {
	o.Events = append(o.Events, event)
}

// Clone returns a deep copy safe to hand across a lock boundary.
func (o Order) Clone() Order {
	clone := o
	clone.Seal.FontLabelI18n = cloneStrings(o.Seal.FontLabelI18n)
	clone.Material.LabelI18n = cloneStrings(o.Material.LabelI18n)
	clone.Shipping.CountryLabelI18n = cloneStrings(o.Shipping.CountryLabelI18n)
	if o.Events != nil {
		clone.Events = make([]OrderEvent, len(o.Events))
		for i, event := range o.Events {
			event.Payload = clonePayload(event.Payload)
			clone.Events[i] = event
		}
	}
	return clone
}

func cloneStrings(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func clonePayload(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
