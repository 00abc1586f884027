package fulfillment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/harvest-fulfillment/internal/cart"
	"github.com/angelmondragon/harvest-fulfillment/internal/catalog"
	"github.com/angelmondragon/harvest-fulfillment/internal/inventory"
	"github.com/angelmondragon/harvest-fulfillment/internal/orders"
	"github.com/angelmondragon/harvest-fulfillment/pkg/db/models"
	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/harvest-fulfillment/pkg/errors"
	"github.com/angelmondragon/harvest-fulfillment/pkg/logger"
	"github.com/angelmondragon/harvest-fulfillment/pkg/metrics"
	"github.com/angelmondragon/harvest-fulfillment/pkg/types"
)

const defaultCurrency = "USD"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// OrderNotifier is told about every order the coordinator creates.
type OrderNotifier interface {
	OrderCreated(ctx context.Context, order *models.Order) error
}

// Request describes one paid purchase to fulfill.
type Request struct {
	BuyerID          uuid.UUID
	Lines            []Line
	PaymentMethod    enums.PaymentMethod
	PaymentReference string
	EventID          string
	// AmountCents is the amount the processor charged; zero when unknown.
	AmountCents     int64
	Currency        string
	ShippingAddress *types.Address
	BillingAddress  *types.Address
	// ClearCart removes fulfilled cart lines once all partitions ran.
	ClearCart bool
}

// ServiceParams wires the coordinator.
type ServiceParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Resolver  catalog.Resolver
	Orders    orders.Repository
	Inventory inventory.Repository
	Cart      cart.Repository
	Notifier  OrderNotifier
	Metrics   *metrics.FulfillmentMetrics
	Currency  string
}

// Service turns a paid purchase into seller-scoped orders.
type Service struct {
	logg      *logger.Logger
	tx        txRunner
	resolver  catalog.Resolver
	orders    orders.Repository
	inventory inventory.Repository
	cart      cart.Repository
	notifier  OrderNotifier
	metrics   *metrics.FulfillmentMetrics
	currency  string
	now       func() time.Time
}

// NewService validates the dependencies and builds the coordinator.
func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	case params.DB == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	case params.Resolver == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog resolver required")
	case params.Orders == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	case params.Inventory == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "inventory repository required")
	case params.Cart == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart repository required")
	case params.Notifier == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	}
	currency := strings.ToUpper(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	return &Service{
		logg:      params.Logger,
		tx:        params.DB,
		resolver:  params.Resolver,
		orders:    params.Orders,
		inventory: params.Inventory,
		cart:      params.Cart,
		notifier:  params.Notifier,
		metrics:   params.Metrics,
		currency:  currency,
		now:       time.Now,
	}, nil
}

// Fulfill partitions the lines by seller and creates one order per partition.
// Partitions run sequentially. Failures after validation never abort the run;
// they are recorded on the returned Report.
func (s *Service) Fulfill(ctx context.Context, req Request) (*Report, error) {
	if req.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if len(req.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line required")
	}
	if !req.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", req.PaymentMethod))
	}

	start := s.now()
	ctx = s.logg.WithFields(ctx, map[string]any{
		"buyer_id":       req.BuyerID.String(),
		"payment_method": string(req.PaymentMethod),
	})
	if req.EventID != "" {
		ctx = s.logg.WithEventID(ctx, req.EventID)
	}

	report := &Report{BuyerID: req.BuyerID, EventID: req.EventID}

	partitions, warnings := Partition(ctx, s.resolver, req.Lines)
	report.PartitionWarnings = warnings
	for _, w := range warnings {
		s.logg.Warn(s.logg.WithField(ctx, "line_id", w.LineID.String()), w.Error())
	}

	s.reconcileAmount(ctx, req, partitions, report)

	var fulfilledLines []uuid.UUID
	for _, partition := range partitions {
		outcome, ok := s.fulfillPartition(ctx, req, partition, report)
		if !ok {
			continue
		}
		report.Orders = append(report.Orders, outcome)
		fulfilledLines = append(fulfilledLines, partition.CartLineIDs()...)
	}

	if req.ClearCart {
		s.clearCart(ctx, req.BuyerID, fulfilledLines, report)
	}

	s.observe(report, s.now().Sub(start))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"partitions":            len(partitions),
		"orders_created":        len(report.Orders),
		"order_failures":        len(report.OrderFailures),
		"item_failures":         len(report.ItemFailures),
		"partition_warnings":    len(report.PartitionWarnings),
		"notification_failures": len(report.NotificationFailures),
		"cart_cleared":          report.CartCleared,
	}), "fulfillment complete")
	return report, nil
}

func (s *Service) fulfillPartition(ctx context.Context, req Request, partition SellerPartition, report *Report) (OrderOutcome, bool) {
	ctx = s.logg.WithField(ctx, "seller_id", partition.SellerID.String())

	order := &models.Order{
		ID:              uuid.New(),
		BuyerID:         req.BuyerID,
		SellerID:        partition.SellerID,
		OrderType:       partition.OrderType,
		TotalCents:      partition.TotalCents,
		Currency:        s.currencyFor(req),
		Status:          enums.OrderStatusConfirmed,
		PaymentStatus:   enums.PaymentStatusPaid,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
	}
	if ref := strings.TrimSpace(req.PaymentReference); ref != "" {
		order.PaymentReference = &ref
	}
	if req.EventID != "" {
		eventID := req.EventID
		order.PaymentEventID = &eventID
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.orders.WithTx(tx).CreateOrder(ctx, order)
	})
	if err != nil {
		failure := &OrderCreationError{SellerID: partition.SellerID, LineIDs: partition.CartLineIDs(), Err: err}
		report.OrderFailures = append(report.OrderFailures, failure)
		s.logg.Error(ctx, "order creation failed; partition skipped", err)
		return OrderOutcome{}, false
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	outcome := OrderOutcome{Order: order, SellerName: partition.SellerName, LinesTotal: len(partition.Lines)}
	for _, line := range partition.Lines {
		item, err := s.fulfillLine(ctx, order.ID, line)
		if err != nil {
			outcome.ItemsFailed++
			report.ItemFailures = append(report.ItemFailures, &ItemFulfillmentError{
				OrderID: order.ID,
				LineID:  line.ID,
				Ref:     line.Ref,
				Err:     err,
			})
			s.logg.Warn(s.logg.WithField(ctx, "line_id", line.ID.String()), fmt.Sprintf("item skipped: %v", err))
			continue
		}
		order.Items = append(order.Items, *item)
	}

	if err := s.notifier.OrderCreated(ctx, order); err != nil {
		report.NotificationFailures = append(report.NotificationFailures, &NotificationError{
			OrderID:  order.ID,
			SellerID: order.SellerID,
			Err:      err,
		})
		s.logg.Warn(ctx, fmt.Sprintf("seller notification failed: %v", err))
	} else {
		outcome.Notified = true
	}
	return outcome, true
}

// fulfillLine writes one order item and its inventory decrement atomically.
func (s *Service) fulfillLine(ctx context.Context, orderID uuid.UUID, line ResolvedLine) (*models.OrderItem, error) {
	item := &models.OrderItem{
		ID:              uuid.New(),
		OrderID:         orderID,
		Kind:            line.Ref.Kind,
		Name:            line.ItemName,
		Quantity:        line.Quantity,
		UnitPriceCents:  line.UnitPriceCents,
		TotalPriceCents: line.Subtotal(),
	}
	ref := line.Ref.ID
	switch line.Ref.Kind {
	case enums.LineKindProduct:
		item.ProductID = &ref
	case enums.LineKindCropListing:
		item.CropListingID = &ref
	case enums.LineKindEquipment:
		item.EquipmentID = &ref
	}

	var stock inventory.Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).CreateItem(ctx, item); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
		if line.Ref.Kind == enums.LineKindEquipment {
			return nil
		}
		res, err := s.inventory.Decrement(ctx, tx, line.Ref, line.Quantity)
		if err != nil {
			return fmt.Errorf("decrement inventory: %w", err)
		}
		stock = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	if stock.Deactivated || stock.CropSold {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"ref":         line.Ref.String(),
			"deactivated": stock.Deactivated,
			"crop_sold":   stock.CropSold,
		}), "listing exhausted")
	}
	return item, nil
}

func (s *Service) reconcileAmount(ctx context.Context, req Request, partitions []SellerPartition, report *Report) {
	if req.AmountCents <= 0 {
		return
	}
	var total int64
	for _, p := range partitions {
		total += p.TotalCents
	}
	if total == req.AmountCents {
		return
	}
	report.AmountMismatch = &AmountMismatch{EventAmountCents: req.AmountCents, PartitionTotalCents: total}
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"event_amount_cents":    req.AmountCents,
		"partition_total_cents": total,
	}), "charged amount differs from partition totals; proceeding")
}

func (s *Service) clearCart(ctx context.Context, buyerID uuid.UUID, lineIDs []uuid.UUID, report *Report) {
	if len(lineIDs) == 0 {
		return
	}
	deleted, err := s.cart.DeleteItems(ctx, buyerID, lineIDs)
	if err != nil {
		report.CartClearFailure = &CartClearError{BuyerID: buyerID, LineIDs: lineIDs, Err: err}
		s.logg.Error(ctx, "cart clear failed", err)
		return
	}
	report.CartCleared = deleted
}

func (s *Service) currencyFor(req Request) string {
	if c := strings.ToUpper(strings.TrimSpace(req.Currency)); c != "" {
		return c
	}
	return s.currency
}

func (s *Service) observe(report *Report, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.Observe(metrics.FulfillmentOutcome{
		OrdersCreated:        len(report.Orders),
		OrderFailures:        len(report.OrderFailures),
		ItemFailures:         len(report.ItemFailures),
		PartitionWarnings:    len(report.PartitionWarnings),
		NotificationFailures: len(report.NotificationFailures),
		AmountMismatch:       report.AmountMismatch != nil,
		Duration:             duration,
	})
}
