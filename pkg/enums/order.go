package enums

import "fmt"

// OrderType records which catalog the order's lines came from.
type OrderType string

const (
	OrderTypeProduct OrderType = "product"
	OrderTypeCrop    OrderType = "crop"
)

var validOrderTypes = []OrderType{
	OrderTypeProduct,
	OrderTypeCrop,
}

// String implements fmt.Stringer.
func (o OrderType) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderType.
func (o OrderType) IsValid() bool {
	for _, candidate := range validOrderTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderType converts raw input into an OrderType.
func ParseOrderType(value string) (OrderType, error) {
	for _, candidate := range validOrderTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order type %q", value)
}

// OrderStatus tracks the buyer-facing lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// forward order; cancelled is a terminal branch outside this sequence.
var orderStatusSequence = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	return o == OrderStatusCancelled || o.Rank() >= 0
}

// Rank returns the position of the status in the forward sequence, or -1.
func (o OrderStatus) Rank() int {
	for i, candidate := range orderStatusSequence {
		if candidate == o {
			return i
		}
	}
	return -1
}

// IsTerminal reports whether no further transition is possible.
func (o OrderStatus) IsTerminal() bool {
	return o == OrderStatusDelivered || o == OrderStatusCancelled
}

// CanAdvanceTo reports whether moving from o to next is a forward transition.
// Cancellation is allowed from any non-terminal state.
func (o OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	if o.IsTerminal() || !next.IsValid() {
		return false
	}
	if next == OrderStatusCancelled {
		return true
	}
	return next.Rank() > o.Rank()
}

// Predecessors returns the statuses below o in the forward sequence.
func (o OrderStatus) Predecessors() []OrderStatus {
	rank := o.Rank()
	if rank <= 0 {
		return nil
	}
	out := make([]OrderStatus, rank)
	copy(out, orderStatusSequence[:rank])
	return out
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	status := OrderStatus(value)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid order status %q", value)
	}
	return status, nil
}
