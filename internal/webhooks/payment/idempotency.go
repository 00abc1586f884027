package paymentwebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/harvest-fulfillment/pkg/redis"
)

// DefaultScope namespaces the claim keys of payment events.
const DefaultScope = "payment-webhook"

// Claim is the outcome of claiming a payment event for fulfillment.
type Claim int

const (
	// Claimed means this caller owns the event and its payment.
	Claimed Claim = iota
	// DuplicateEvent is a redelivery of an event already claimed.
	DuplicateEvent
	// DuplicatePayment is a new event for a payment another event already
	// claimed, as when the processor sends several payment.updated events
	// after completion.
	DuplicatePayment
)

func (c Claim) String() string {
	switch c {
	case Claimed:
		return "claimed"
	case DuplicateEvent:
		return "event"
	case DuplicatePayment:
		return "payment"
	default:
		return "unknown"
	}
}

// EventClaims makes a completed payment fulfill once. It claims the event id
// and the payment id with atomic test-and-set markers, each holding the
// other id for tracing.
type EventClaims struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewEventClaims(store redis.IdempotencyStore, ttl time.Duration, scope string) (*EventClaims, error) {
	switch {
	case store == nil:
		return nil, errors.New("claim store is required")
	case ttl < 0:
		return nil, errors.New("ttl must be non-negative")
	case scope == "":
		return nil, errors.New("scope is required")
	}
	return &EventClaims{store: store, ttl: ttl, scope: scope}, nil
}

func (c *EventClaims) eventKey(eventID string) string {
	return c.store.IdempotencyKey(c.scope, "evt:"+eventID)
}

func (c *EventClaims) paymentKey(paymentID string) string {
	return c.store.IdempotencyKey(c.scope, "pay:"+paymentID)
}

// Claim marks eventID, then paymentID when one is given. A failure on the
// payment marker releases the event marker so the retry starts clean.
func (c *EventClaims) Claim(ctx context.Context, eventID, paymentID string) (Claim, error) {
	if eventID == "" {
		return Claimed, errors.New("event id is required")
	}
	fresh, err := c.store.SetNX(ctx, c.eventKey(eventID), paymentID, c.ttl)
	if err != nil {
		return Claimed, fmt.Errorf("claim event %s: %w", eventID, err)
	}
	if !fresh {
		return DuplicateEvent, nil
	}
	if paymentID == "" {
		return Claimed, nil
	}

	fresh, err = c.store.SetNX(ctx, c.paymentKey(paymentID), eventID, c.ttl)
	if err != nil {
		if delErr := c.store.Del(ctx, c.eventKey(eventID)); delErr != nil {
			err = errors.Join(err, delErr)
		}
		return Claimed, fmt.Errorf("claim payment %s: %w", paymentID, err)
	}
	if !fresh {
		return DuplicatePayment, nil
	}
	return Claimed, nil
}

// Release drops both markers so a redelivery is processed again. Only call it
// after a Claimed result.
func (c *EventClaims) Release(ctx context.Context, eventID, paymentID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	keys := []string{c.eventKey(eventID)}
	if paymentID != "" {
		keys = append(keys, c.paymentKey(paymentID))
	}
	return c.store.Del(ctx, keys...)
}
