package enums

import "fmt"

// MaterialOrderStatus tracks the lifecycle of a material order aggregate.
type MaterialOrderStatus string

const (
	MaterialOrderStatusPendingPayment MaterialOrderStatus = "pending_payment"
	MaterialOrderStatusPaid           MaterialOrderStatus = "paid"
	MaterialOrderStatusPurchasing     MaterialOrderStatus = "purchasing"
	MaterialOrderStatusOrdered        MaterialOrderStatus = "ordered"
	MaterialOrderStatusShipped        MaterialOrderStatus = "shipped"
	MaterialOrderStatusDelivered      MaterialOrderStatus = "delivered"
	MaterialOrderStatusCancelled      MaterialOrderStatus = "cancelled"
)

var validMaterialOrderStatuses = []MaterialOrderStatus{
	MaterialOrderStatusPendingPayment,
	MaterialOrderStatusPaid,
	MaterialOrderStatusPurchasing,
	MaterialOrderStatusOrdered,
	MaterialOrderStatusShipped,
	MaterialOrderStatusDelivered,
	MaterialOrderStatusCancelled,
}

// materialOrderTransitions is the full table of legal forward transitions.
// Cancellation is handled separately: any non-terminal status may cancel.
var materialOrderTransitions = map[MaterialOrderStatus][]MaterialOrderStatus{
	MaterialOrderStatusPendingPayment: {MaterialOrderStatusPaid},
	MaterialOrderStatusPaid:           {MaterialOrderStatusPurchasing},
	MaterialOrderStatusPurchasing:     {MaterialOrderStatusOrdered},
	MaterialOrderStatusOrdered:        {MaterialOrderStatusShipped},
	MaterialOrderStatusShipped:        {MaterialOrderStatusDelivered},
}

// String implements fmt.Stringer.
func (m MaterialOrderStatus) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MaterialOrderStatus.
func (m MaterialOrderStatus) IsValid() bool {
	for _, candidate := range validMaterialOrderStatuses {
		if candidate == m {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status permits no further transitions.
func (m MaterialOrderStatus) IsTerminal() bool {
	return m == MaterialOrderStatusDelivered || m == MaterialOrderStatusCancelled
}

// CanTransitionTo reports whether moving to next is legal from the current
// status. Cancellation is legal from any non-terminal status.
func (m MaterialOrderStatus) CanTransitionTo(next MaterialOrderStatus) bool {
	if m.IsTerminal() {
		return false
	}
	if next == MaterialOrderStatusCancelled {
		return true
	}
	for _, candidate := range materialOrderTransitions[m] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseMaterialOrderStatus converts raw input into a MaterialOrderStatus.
func ParseMaterialOrderStatus(value string) (MaterialOrderStatus, error) {
	for _, candidate := range validMaterialOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid material order status %q", value)
}
