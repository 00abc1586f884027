package enums

import "fmt"

// DeliveryStatus is the driver-facing delivery lifecycle.
type DeliveryStatus string

const (
	DeliveryStatusAssigned       DeliveryStatus = "assigned"
	DeliveryStatusPickedUp       DeliveryStatus = "picked_up"
	DeliveryStatusInTransit      DeliveryStatus = "in_transit"
	DeliveryStatusOutForDelivery DeliveryStatus = "out_for_delivery"
	DeliveryStatusDelivered      DeliveryStatus = "delivered"
)

var deliveryStatusSequence = []DeliveryStatus{
	DeliveryStatusAssigned,
	DeliveryStatusPickedUp,
	DeliveryStatusInTransit,
	DeliveryStatusOutForDelivery,
	DeliveryStatusDelivered,
}

// String implements fmt.Stringer.
func (d DeliveryStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryStatus.
func (d DeliveryStatus) IsValid() bool {
	return d.Rank() >= 0
}

// Rank returns the position of the status in the forward sequence, or -1.
func (d DeliveryStatus) Rank() int {
	for i, candidate := range deliveryStatusSequence {
		if candidate == d {
			return i
		}
	}
	return -1
}

// OrderStatus maps the driver status onto the order status it implies.
// assigned implies nothing and returns false.
func (d DeliveryStatus) OrderStatus() (OrderStatus, bool) {
	switch d {
	case DeliveryStatusPickedUp, DeliveryStatusInTransit, DeliveryStatusOutForDelivery:
		return OrderStatusShipped, true
	case DeliveryStatusDelivered:
		return OrderStatusDelivered, true
	default:
		return "", false
	}
}

// DeliveryStatusesImplying returns every driver status that maps onto target.
func DeliveryStatusesImplying(target OrderStatus) []DeliveryStatus {
	var out []DeliveryStatus
	for _, candidate := range deliveryStatusSequence {
		if mapped, ok := candidate.OrderStatus(); ok && mapped == target {
			out = append(out, candidate)
		}
	}
	return out
}

// ParseDeliveryStatus converts raw input into a DeliveryStatus.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	status := DeliveryStatus(value)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid delivery status %q", value)
	}
	return status, nil
}
