package enums

import "fmt"

// OrderStatus tracks a poster order from payment confirmation to shipment.
// pending_submission is persisted before the fulfillment call so a crash
// between the insert and the provider response stays inspectable.
type OrderStatus string

const (
	OrderStatusPaidMissingShipping OrderStatus = "paid_missing_shipping"
	OrderStatusPaidMissingSKU      OrderStatus = "paid_missing_sku"
	OrderStatusPendingSubmission   OrderStatus = "pending_submission"
	OrderStatusSentToFulfillment   OrderStatus = "sent_to_fulfillment"
	OrderStatusFulfillmentFailed   OrderStatus = "fulfillment_failed"
	OrderStatusInProduction        OrderStatus = "in_production"
	OrderStatusShipped             OrderStatus = "shipped"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPaidMissingShipping,
	OrderStatusPaidMissingSKU,
	OrderStatusPendingSubmission,
	OrderStatusSentToFulfillment,
	OrderStatusFulfillmentFailed,
	OrderStatusInProduction,
	OrderStatusShipped,
}

// orderTransitions lists the forward edges of the lifecycle graph. Missing
// entries are disallowed; self-transitions are handled by ResolveTransition.
var orderTransitions = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPaidMissingShipping: {},
	OrderStatusPaidMissingSKU:      {},
	OrderStatusPendingSubmission: {
		OrderStatusSentToFulfillment: true,
		OrderStatusFulfillmentFailed: true,
		OrderStatusInProduction:      true,
		OrderStatusShipped:           true,
	},
	OrderStatusSentToFulfillment: {
		OrderStatusInProduction: true,
		OrderStatusShipped:      true,
	},
	OrderStatusFulfillmentFailed: {
		OrderStatusPendingSubmission: true,
		OrderStatusInProduction:      true,
		OrderStatusShipped:           true,
	},
	OrderStatusInProduction: {
		OrderStatusShipped: true,
	},
	OrderStatusShipped: {},
}

// OrderStatuses returns every known status in lifecycle order.
func OrderStatuses() []OrderStatus {
	return append([]OrderStatus(nil), validOrderStatuses...)
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions leave the status.
func (s OrderStatus) IsTerminal() bool {
	return s.IsValid() && len(orderTransitions[s]) == 0
}

// CanTransition reports whether the lifecycle graph has an edge from s to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	return orderTransitions[s][next]
}

// AwaitingSubmission reports whether the order still needs a fulfillment
// submission before the provider can take over.
func (s OrderStatus) AwaitingSubmission() bool {
	return s == OrderStatusPendingSubmission || s == OrderStatusFulfillmentFailed
}

// StatusTransition is the outcome of asking the lifecycle graph to move an order.
type StatusTransition struct {
	From    OrderStatus
	To      OrderStatus
	Applied bool
}

// Changed reports whether the stored status must be rewritten.
func (t StatusTransition) Changed() bool {
	return t.Applied && t.From != t.To
}

// ResolveTransition decides the status an order ends up in when next is
// requested. Disallowed moves keep the current status and report Applied=false.
func ResolveTransition(current, next OrderStatus) StatusTransition {
	if current == next {
		return StatusTransition{From: current, To: current, Applied: true}
	}
	if current.CanTransition(next) {
		return StatusTransition{From: current, To: next, Applied: true}
	}
	return StatusTransition{From: current, To: current, Applied: false}
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
