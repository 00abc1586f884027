package tracking

import (
	"time"

	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
)

// MilestoneState is the lifecycle position of one milestone.
type MilestoneState string

const (
	MilestoneCompleted MilestoneState = "completed"
	MilestoneCurrent   MilestoneState = "current"
	MilestonePending   MilestoneState = "pending"
)

// Milestone tags in their fixed forward order.
const (
	TagOrderPlaced      = "order_placed"
	TagPaymentConfirmed = "payment_confirmed"
	TagOrderConfirmed   = "order_confirmed"
	TagPreparing        = "preparing"
	TagDispatched       = "dispatched"
	TagInTransit        = "in_transit"
	TagOutForDelivery   = "out_for_delivery"
	TagDelivered        = "delivered"
)

// Milestone is one stage of the buyer-facing delivery narrative.
type Milestone struct {
	Tag         string         `json:"tag"`
	Description string         `json:"description"`
	State       MilestoneState `json:"state"`
	Timestamp   *time.Time     `json:"timestamp,omitempty"`
	EstimatedAt *time.Time     `json:"estimated_at,omitempty"`
	ETAHint     string         `json:"eta_hint,omitempty"`
}

type stage struct {
	tag         string
	description string
	offset      time.Duration
	etaHint     string
}

var stages = []stage{
	{tag: TagOrderPlaced, description: "Order placed", offset: 0},
	{tag: TagPaymentConfirmed, description: "Payment confirmed", offset: time.Minute},
	{tag: TagOrderConfirmed, description: "Seller confirmed the order", offset: 5 * time.Minute, etaHint: "within a few minutes"},
	{tag: TagPreparing, description: "Seller is preparing the order", offset: 2 * time.Hour, etaHint: "within 2 hours"},
	{tag: TagDispatched, description: "Handed to the driver", offset: 24 * time.Hour, etaHint: "within 1 day"},
	{tag: TagInTransit, description: "On the way", offset: 26 * time.Hour, etaHint: "1 to 2 days"},
	{tag: TagOutForDelivery, description: "Out for delivery", offset: 48 * time.Hour, etaHint: "about 2 days"},
	{tag: TagDelivered, description: "Delivered", offset: 52 * time.Hour, etaHint: "2 to 3 days"},
}

// always completed once an order exists
const alwaysCompleted = 2

// currentStage maps an order status onto the index of its current milestone.
// delivered returns len(stages), which completes every milestone.
func currentStage(status enums.OrderStatus) (int, bool) {
	switch status {
	case enums.OrderStatusConfirmed:
		return 2, true
	case enums.OrderStatusProcessing:
		return 3, true
	case enums.OrderStatusShipped:
		return 5, true
	case enums.OrderStatusDelivered:
		return len(stages), true
	default:
		return 0, false
	}
}

// Synthesize derives the milestone list from the order status and creation
// time. It reads no clock and has no side effects.
func Synthesize(status enums.OrderStatus, createdAt time.Time) []Milestone {
	current, matched := currentStage(status)
	out := make([]Milestone, len(stages))
	for i, st := range stages {
		at := createdAt.Add(st.offset)
		m := Milestone{Tag: st.tag, Description: st.description}
		switch {
		case i < alwaysCompleted, matched && i < current:
			m.State = MilestoneCompleted
			m.Timestamp = &at
		case matched && i == current:
			m.State = MilestoneCurrent
			m.Timestamp = &at
		default:
			m.State = MilestonePending
			m.EstimatedAt = &at
			m.ETAHint = st.etaHint
		}
		out[i] = m
	}
	return out
}

// States returns just the state column of a milestone list.
func States(milestones []Milestone) []MilestoneState {
	out := make([]MilestoneState, len(milestones))
	for i, m := range milestones {
		out[i] = m.State
	}
	return out
}
