package domain

import "slices"

var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPendingPayment: {OrderStatusPaid, OrderStatusCanceled},
	OrderStatusPaid:           {OrderStatusManufacturing, OrderStatusRefunded},
	OrderStatusManufacturing:  {OrderStatusShipped, OrderStatusRefunded},
	OrderStatusShipped:        {OrderStatusDelivered, OrderStatusRefunded},
	OrderStatusDelivered:      {},
	OrderStatusCanceled:       {},
	OrderStatusRefunded:       {},
}

// AllowedNext returns the statuses reachable from status. Terminal and unknown
// statuses have none.
func AllowedNext(status OrderStatus) []OrderStatus {
	return slices.Clone(allowedTransitions[status])
}

func CanTransition(from, to OrderStatus) bool {
	return slices.Contains(allowedTransitions[from], to)
}

// IsKnown reports whether status belongs to the closed lifecycle set.
func IsKnown(status OrderStatus) bool {
	_, ok := allowedTransitions[status]
	return ok
}

// IsTerminal reports whether a known status has no outgoing transitions.
func IsTerminal(status OrderStatus) bool {
	next, ok := allowedTransitions[status]
	return ok && len(next) == 0
}

// DeriveStatuses maps an order status to its payment and fulfillment status.
// Refunded and unknown statuses keep the current fulfillment status (pending
// when none is recorded).
func DeriveStatuses(status OrderStatus, current FulfillmentStatus) (PaymentStatus, FulfillmentStatus) {
	keep := current
	if keep == "" {
		keep = FulfillmentStatusPending
	}
	switch status {
	case OrderStatusPendingPayment:
		return PaymentStatusUnpaid, FulfillmentStatusPending
	case OrderStatusPaid:
		return PaymentStatusPaid, FulfillmentStatusPending
	case OrderStatusManufacturing:
		return PaymentStatusPaid, FulfillmentStatusManufacturing
	case OrderStatusShipped:
		return PaymentStatusPaid, FulfillmentStatusShipped
	case OrderStatusDelivered:
		return PaymentStatusPaid, FulfillmentStatusDelivered
	case OrderStatusCanceled:
		return PaymentStatusFailed, FulfillmentStatusPending
	case OrderStatusRefunded:
		return PaymentStatusRefunded, keep
	default:
		return PaymentStatusProcessing, keep
	}
}
