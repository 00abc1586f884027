package notifications

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/harvest-fulfillment/pkg/db/models"
	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/harvest-fulfillment/pkg/errors"
)

const defaultDispatchTimeout = 2 * time.Second

type creator interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// DispatcherParams configures the Dispatcher.
type DispatcherParams struct {
	Repository creator
	Timeout    time.Duration
	SellerLink string
	BuyerLink  string
}

// Dispatcher writes one-off notifications for fulfillment and delivery events.
// Each write is bounded by Timeout and detached from caller cancellation, so a
// slow store cannot hold up the request that triggered it.
type Dispatcher struct {
	repo       creator
	timeout    time.Duration
	sellerLink string
	buyerLink  string
}

// NewDispatcher builds a Dispatcher.
func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	sellerLink := strings.TrimSpace(params.SellerLink)
	if sellerLink == "" {
		sellerLink = "/seller/orders"
	}
	buyerLink := strings.TrimSpace(params.BuyerLink)
	if buyerLink == "" {
		buyerLink = "/orders"
	}
	return &Dispatcher{
		repo:       params.Repository,
		timeout:    timeout,
		sellerLink: sellerLink,
		buyerLink:  buyerLink,
	}, nil
}

// OrderCreated notifies the seller of a new order.
func (d *Dispatcher) OrderCreated(ctx context.Context, order *models.Order) error {
	if order == nil || order.SellerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order with seller required")
	}
	total := decimal.New(order.TotalCents, -2).StringFixed(2)
	link := withQuery(d.sellerLink, "highlight", order.ID.String())
	return d.write(ctx, &models.Notification{
		UserID:  order.SellerID,
		OrderID: &order.ID,
		Type:    enums.NotificationTypeOrder,
		Title:   "New order received",
		Message: fmt.Sprintf("Order #%s for %s %s has been paid.", shortID(order.ID), total, order.Currency),
		Link:    &link,
	})
}

// DeliveryStatusChanged tells the buyer their delivery moved.
func (d *Dispatcher) DeliveryStatusChanged(ctx context.Context, buyerID, orderID uuid.UUID, status enums.DeliveryStatus) error {
	if buyerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	link := strings.TrimRight(d.buyerLink, "/") + "/" + orderID.String()
	return d.write(ctx, &models.Notification{
		UserID:  buyerID,
		OrderID: &orderID,
		Type:    enums.NotificationTypeDelivery,
		Title:   "Delivery update",
		Message: fmt.Sprintf("Order #%s is now %s.", shortID(orderID), humanize(string(status))),
		Link:    &link,
	})
}

func (d *Dispatcher) write(ctx context.Context, notification *models.Notification) error {
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()
	if err := d.repo.Create(writeCtx, notification); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}
	return nil
}

func shortID(id uuid.UUID) string {
	return strings.ToUpper(id.String()[:8])
}

func humanize(value string) string {
	return strings.ReplaceAll(value, "_", " ")
}

func withQuery(base, key, value string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
}
