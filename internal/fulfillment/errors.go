package fulfillment

import (
	"fmt"

	"github.com/google/uuid"
)

// PartitionWarning reports a line dropped before partitioning.
type PartitionWarning struct {
	LineID uuid.UUID
	Ref    LineRef
	Reason string
	Err    error
}

func newPartitionWarning(line Line, reason string, err error) *PartitionWarning {
	return &PartitionWarning{LineID: line.ID, Ref: line.Ref, Reason: reason, Err: err}
}

func (w *PartitionWarning) Error() string {
	if w.Err != nil {
		return fmt.Sprintf("partition warning: line %s (%s): %s: %v", w.LineID, w.Ref, w.Reason, w.Err)
	}
	return fmt.Sprintf("partition warning: line %s (%s): %s", w.LineID, w.Ref, w.Reason)
}

func (w *PartitionWarning) Unwrap() error { return w.Err }

// OrderCreationError reports a partition skipped because its order could not
// be written. Its cart lines stay in the cart.
type OrderCreationError struct {
	SellerID uuid.UUID
	LineIDs  []uuid.UUID
	Err      error
}

func (e *OrderCreationError) Error() string {
	return fmt.Sprintf("create order for seller %s: %v", e.SellerID, e.Err)
}

func (e *OrderCreationError) Unwrap() error { return e.Err }

// ItemFulfillmentError reports one line whose item insert or inventory
// decrement failed. The order keeps its other items.
type ItemFulfillmentError struct {
	OrderID uuid.UUID
	LineID  uuid.UUID
	Ref     LineRef
	Err     error
}

func (e *ItemFulfillmentError) Error() string {
	return fmt.Sprintf("fulfill item %s of order %s: %v", e.Ref, e.OrderID, e.Err)
}

func (e *ItemFulfillmentError) Unwrap() error { return e.Err }

// NotificationError reports a seller notification that could not be written.
type NotificationError struct {
	OrderID  uuid.UUID
	SellerID uuid.UUID
	Err      error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notify seller %s of order %s: %v", e.SellerID, e.OrderID, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

// CartClearError reports that fulfilled lines could not be removed from the cart.
type CartClearError struct {
	BuyerID uuid.UUID
	LineIDs []uuid.UUID
	Err     error
}

func (e *CartClearError) Error() string {
	return fmt.Sprintf("clear %d cart lines for buyer %s: %v", len(e.LineIDs), e.BuyerID, e.Err)
}

func (e *CartClearError) Unwrap() error { return e.Err }
