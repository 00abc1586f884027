package paymentwebhook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvest-fulfillment/internal/catalog"
	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
	"github.com/angelmondragon/harvest-fulfillment/pkg/types"
)

const (
	EventTypePaymentCreated = "payment.created"
	EventTypePaymentUpdated = "payment.updated"

	PaymentStatusCompleted = "COMPLETED"
)

// Metadata keys written by checkout. Checkout puts them on the processor
// order behind the payment link; the sender copies them onto the payment, or
// posts the order next to it in data.object.order.
const (
	MetaBuyerID        = "buyer_id"
	MetaCartCheckout   = "cart_checkout"
	MetaCartItemIDs    = "cart_item_ids"
	MetaSellerID       = "seller_id"
	MetaOrderType      = "order_type"
	MetaProductID      = "product_id"
	MetaCropListingID  = "crop_listing_id"
	MetaQuantity       = "quantity"
	MetaUnitPriceCents = "unit_price_cents"
	MetaPaymentMethod  = "payment_method"
)

// Event is the signed envelope posted by the payment processor.
type Event struct {
	EventID   string    `json:"event_id"`
	Type      string    `json:"type"`
	CreatedAt string    `json:"created_at"`
	Data      EventData `json:"data"`
}

type EventData struct {
	Type   string      `json:"type"`
	ID     string      `json:"id"`
	Object EventObject `json:"object"`
}

type EventObject struct {
	Payment *Payment `json:"payment"`
	Order   *Order   `json:"order,omitempty"`
}

// Order is the processor order a payment link created.
type Order struct {
	ID          string            `json:"id"`
	ReferenceID string            `json:"reference_id"`
	Metadata    map[string]string `json:"metadata"`
}

type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Payment is the processor's payment resource.
type Payment struct {
	ID              string            `json:"id"`
	Status          string            `json:"status"`
	AmountMoney     Money             `json:"amount_money"`
	ReferenceID     string            `json:"reference_id"`
	Note            string            `json:"note"`
	Metadata        map[string]string `json:"metadata"`
	ShippingAddress *types.Address    `json:"shipping_address,omitempty"`
	BillingAddress  *types.Address    `json:"billing_address,omitempty"`
}

// DecodeEvent parses an authenticated body.
func DecodeEvent(raw []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("decode payment event: %w", err)
	}
	event.Data.Object.adoptOrder()
	return &event, nil
}

// adoptOrder fills payment metadata missing from the payment itself from the
// accompanying order. Payment values win.
func (o *EventObject) adoptOrder() {
	if o.Payment == nil || o.Order == nil {
		return
	}
	if len(o.Order.Metadata) > 0 && o.Payment.Metadata == nil {
		o.Payment.Metadata = make(map[string]string, len(o.Order.Metadata))
	}
	for k, v := range o.Order.Metadata {
		if strings.TrimSpace(o.Payment.Metadata[k]) == "" {
			o.Payment.Metadata[k] = v
		}
	}
	if strings.TrimSpace(o.Payment.ReferenceID) == "" {
		o.Payment.ReferenceID = o.Order.ReferenceID
	}
}

// ID returns the dedup key of the event, falling back to the data id.
func (e *Event) ID() string {
	if e == nil {
		return ""
	}
	if id := strings.TrimSpace(e.EventID); id != "" {
		return id
	}
	return strings.TrimSpace(e.Data.ID)
}

// CompletedPayment returns the payment when the event confirms a capture.
func (e *Event) CompletedPayment() (*Payment, bool) {
	if e == nil {
		return nil, false
	}
	switch strings.ToLower(strings.TrimSpace(e.Type)) {
	case EventTypePaymentCreated, EventTypePaymentUpdated:
	default:
		return nil, false
	}
	payment := e.Data.Object.Payment
	if payment == nil || !strings.EqualFold(payment.Status, PaymentStatusCompleted) {
		return nil, false
	}
	return payment, true
}

func (p *Payment) meta(key string) string {
	if p == nil || p.Metadata == nil {
		return ""
	}
	return strings.TrimSpace(p.Metadata[key])
}

// BuyerID reads the buyer from the metadata, falling back to the reference id.
func (p *Payment) BuyerID() (uuid.UUID, error) {
	raw := p.meta(MetaBuyerID)
	if raw == "" && p != nil {
		raw = strings.TrimSpace(p.ReferenceID)
	}
	if raw == "" {
		return uuid.Nil, fmt.Errorf("buyer id missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid buyer id %q: %w", raw, err)
	}
	return id, nil
}

// IsCartCheckout reports whether the payment settles the buyer's cart.
func (p *Payment) IsCartCheckout() bool {
	v, err := strconv.ParseBool(p.meta(MetaCartCheckout))
	return err == nil && v
}

// CartItemIDs returns the cart lines the checkout covered, if it named any.
func (p *Payment) CartItemIDs() ([]uuid.UUID, error) {
	raw := p.meta(MetaCartItemIDs)
	if raw == "" {
		return nil, nil
	}
	var ids []uuid.UUID
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, fmt.Errorf("invalid cart item id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// PaymentMethod defaults to card, the only method the processor settles.
func (p *Payment) PaymentMethod() enums.PaymentMethod {
	if method, err := enums.ParsePaymentMethod(p.meta(MetaPaymentMethod)); err == nil {
		return method
	}
	return enums.PaymentMethodCard
}

// DirectPurchase describes a single-item purchase made outside the cart.
type DirectPurchase struct {
	Ref            catalog.Ref
	Quantity       int
	UnitPriceCents int64
	SellerID       *uuid.UUID
}

// DirectPurchase builds the synthetic line of a non-cart payment.
func (p *Payment) DirectPurchase() (DirectPurchase, error) {
	var out DirectPurchase

	productID, err := optionalUUID(p.meta(MetaProductID))
	if err != nil {
		return out, fmt.Errorf("product id: %w", err)
	}
	listingID, err := optionalUUID(p.meta(MetaCropListingID))
	if err != nil {
		return out, fmt.Errorf("crop listing id: %w", err)
	}
	if productID == nil && listingID == nil {
		return out, fmt.Errorf("direct purchase references no %s item", orderTypeHint(p.meta(MetaOrderType)))
	}
	out.Ref, err = catalog.RefFromIDs(productID, listingID)
	if err != nil {
		return out, err
	}

	out.Quantity = 1
	if raw := p.meta(MetaQuantity); raw != "" {
		qty, err := strconv.Atoi(raw)
		if err != nil || qty <= 0 {
			return out, fmt.Errorf("invalid quantity %q", raw)
		}
		out.Quantity = qty
	}

	if raw := p.meta(MetaUnitPriceCents); raw != "" {
		price, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || price < 0 {
			return out, fmt.Errorf("invalid unit price %q", raw)
		}
		out.UnitPriceCents = price
	} else {
		out.UnitPriceCents = p.AmountMoney.Amount / int64(out.Quantity)
	}

	sellerID, err := optionalUUID(p.meta(MetaSellerID))
	if err != nil {
		return out, fmt.Errorf("seller id: %w", err)
	}
	out.SellerID = sellerID
	return out, nil
}

func optionalUUID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func orderTypeHint(raw string) string {
	if orderType, err := enums.ParseOrderType(strings.ToLower(raw)); err == nil {
		return string(orderType)
	}
	return "catalog"
}
