package fulfillment

import (
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/harvest-fulfillment/pkg/db/models"
)

// OrderOutcome is one order created during a run.
type OrderOutcome struct {
	Order       *models.Order
	SellerName  string
	LinesTotal  int
	ItemsFailed int
	Notified    bool
}

// AmountMismatch records a charged amount that differs from the partition totals.
type AmountMismatch struct {
	EventAmountCents    int64 `json:"event_amount_cents"`
	PartitionTotalCents int64 `json:"partition_total_cents"`
}

// Report collects every outcome of one Fulfill call, including the non-fatal
// failures that did not stop it.
type Report struct {
	BuyerID              uuid.UUID
	EventID              string
	Orders               []OrderOutcome
	PartitionWarnings    []*PartitionWarning
	OrderFailures        []*OrderCreationError
	ItemFailures         []*ItemFulfillmentError
	NotificationFailures []*NotificationError
	CartClearFailure     *CartClearError
	CartCleared          int64
	AmountMismatch       *AmountMismatch
}

// CreatedOrders returns the persisted orders in partition order.
func (r *Report) CreatedOrders() []*models.Order {
	out := make([]*models.Order, 0, len(r.Orders))
	for _, outcome := range r.Orders {
		out = append(out, outcome.Order)
	}
	return out
}

// Err combines every recorded failure. Nil means the run was clean.
func (r *Report) Err() error {
	var err error
	for _, w := range r.PartitionWarnings {
		err = multierr.Append(err, w)
	}
	for _, e := range r.OrderFailures {
		err = multierr.Append(err, e)
	}
	for _, e := range r.ItemFailures {
		err = multierr.Append(err, e)
	}
	for _, e := range r.NotificationFailures {
		err = multierr.Append(err, e)
	}
	if r.CartClearFailure != nil {
		err = multierr.Append(err, r.CartClearFailure)
	}
	return err
}

// Summary is the JSON-friendly view of a Report.
type Summary struct {
	OrderIDs             []uuid.UUID     `json:"order_ids"`
	PartitionWarnings    []string        `json:"partition_warnings,omitempty"`
	OrderFailures        []string        `json:"order_failures,omitempty"`
	ItemFailures         []string        `json:"item_failures,omitempty"`
	NotificationFailures []string        `json:"notification_failures,omitempty"`
	CartCleared          int64           `json:"cart_cleared"`
	AmountMismatch       *AmountMismatch `json:"amount_mismatch,omitempty"`
}

// Summary flattens the report for API responses.
func (r *Report) Summary() Summary {
	s := Summary{
		OrderIDs:       make([]uuid.UUID, 0, len(r.Orders)),
		CartCleared:    r.CartCleared,
		AmountMismatch: r.AmountMismatch,
	}
	for _, outcome := range r.Orders {
		s.OrderIDs = append(s.OrderIDs, outcome.Order.ID)
	}
	for _, w := range r.PartitionWarnings {
		s.PartitionWarnings = append(s.PartitionWarnings, w.Error())
	}
	for _, e := range r.OrderFailures {
		s.OrderFailures = append(s.OrderFailures, e.Error())
	}
	for _, e := range r.ItemFailures {
		s.ItemFailures = append(s.ItemFailures, e.Error())
	}
	for _, e := range r.NotificationFailures {
		s.NotificationFailures = append(s.NotificationFailures, e.Error())
	}
	return s
}
