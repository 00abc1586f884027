package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/harvest-fulfillment/internal/tracking"
	"github.com/angelmondragon/harvest-fulfillment/pkg/db/models"
	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/harvest-fulfillment/pkg/errors"
	"github.com/angelmondragon/harvest-fulfillment/pkg/logger"
	"github.com/angelmondragon/harvest-fulfillment/pkg/redis"
)

const (
	defaultCacheTTL = 5 * time.Second
	cacheNamespace  = "order"
)

type deliveryLookup interface {
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error)
}

// Position is the last received location of a delivery.
type Position struct {
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	Accuracy   *float64   `json:"accuracy,omitempty"`
	Speed      *float64   `json:"speed,omitempty"`
	Heading    *float64   `json:"heading,omitempty"`
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
}

type DeliveryView struct {
	ID          uuid.UUID            `json:"id"`
	DriverID    uuid.UUID            `json:"driver_id"`
	Status      enums.DeliveryStatus `json:"status"`
	Current     *Position            `json:"current_location,omitempty"`
	PickedUpAt  *time.Time           `json:"picked_up_at,omitempty"`
	DeliveredAt *time.Time           `json:"delivered_at,omitempty"`
}

type ItemView struct {
	ID              uuid.UUID      `json:"id"`
	Kind            enums.LineKind `json:"kind"`
	RefID           *uuid.UUID     `json:"ref_id,omitempty"`
	Name            string         `json:"name"`
	Quantity        int            `json:"quantity"`
	UnitPriceCents  int64          `json:"unit_price_cents"`
	TotalPriceCents int64          `json:"total_price_cents"`
}

// OrderView is the buyer-facing read model of one order.
type OrderView struct {
	ID               uuid.UUID            `json:"id"`
	BuyerID          uuid.UUID            `json:"buyer_id"`
	SellerID         uuid.UUID            `json:"seller_id"`
	OrderType        enums.OrderType      `json:"order_type"`
	Status           enums.OrderStatus    `json:"status"`
	PaymentStatus    enums.PaymentStatus  `json:"payment_status"`
	PaymentMethod    enums.PaymentMethod  `json:"payment_method"`
	TotalCents       int64                `json:"total_cents"`
	Total            string               `json:"total"`
	Currency         string               `json:"currency"`
	Items            []ItemView           `json:"items"`
	Milestones       []tracking.Milestone `json:"milestones"`
	Delivery         *DeliveryView        `json:"delivery,omitempty"`
	PaymentReference *string              `json:"payment_reference,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

type ServiceParams struct {
	Logger     *logger.Logger
	Repo       Repository
	Deliveries deliveryLookup
	Cache      redis.JSONCache
	CacheTTL   time.Duration
}

// Service serves the order read model and seller status changes.
type Service struct {
	logg       *logger.Logger
	repo       Repository
	deliveries deliveryLookup
	cache      redis.JSONCache
	ttl        time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	}
	if params.Deliveries == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "delivery lookup required")
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Service{
		logg:       params.Logger,
		repo:       params.Repo,
		deliveries: params.Deliveries,
		cache:      params.Cache,
		ttl:        ttl,
	}, nil
}

// Get returns the read model, served from cache for a short TTL.
func (s *Service) Get(ctx context.Context, orderID uuid.UUID) (*OrderView, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	if s.cache != nil {
		var cached OrderView
		err := s.cache.GetJSON(ctx, s.cacheKey(orderID), &cached)
		switch {
		case err == nil:
			return &cached, nil
		case !errors.Is(err, redis.ErrCacheMiss):
			s.logg.Warn(ctx, fmt.Sprintf("order cache read failed: %v", err))
		}
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	delivery, err := s.deliveries.FindByOrderID(ctx, orderID)
	if err != nil && !errors.Is(err, tracking.ErrDeliveryNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}

	view := buildView(order, delivery)
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, s.cacheKey(orderID), view, s.ttl); err != nil {
			s.logg.Warn(ctx, fmt.Sprintf("order cache write failed: %v", err))
		}
	}
	return view, nil
}

// UpdateStatus moves an order forward, or cancels a non-terminal one.
// Repeating the current status is a no-op.
func (s *Service) UpdateStatus(ctx context.Context, orderID uuid.UUID, next enums.OrderStatus) (*OrderView, error) {
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", next))
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	changed, err := s.repo.AdvanceStatus(ctx, orderID, next, sourcesFor(next))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !changed {
		order, err := s.repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status != next {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order cannot move from %s to %s", order.Status, next)).
				WithDetails(map[string]any{"current": order.Status, "requested": next})
		}
	} else {
		s.logg.Info(s.logg.WithField(ctx, "status", string(next)), "order status updated")
	}
	s.InvalidateOrder(ctx, orderID)
	return s.Get(ctx, orderID)
}

// AdvanceOrderStatus moves the order to target inside tx when that is a
// forward step. It never regresses or resurrects a cancelled order.
func (s *Service) AdvanceOrderStatus(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, target enums.OrderStatus) (bool, error) {
	if target == enums.OrderStatusCancelled {
		return false, nil
	}
	return s.repo.WithTx(tx).AdvanceStatus(ctx, orderID, target, target.Predecessors())
}

// InvalidateOrder drops the cached read model. Failures only log.
func (s *Service) InvalidateOrder(ctx context.Context, orderID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.cacheKey(orderID)); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("order cache invalidation failed: %v", err))
	}
}

func (s *Service) cacheKey(orderID uuid.UUID) string {
	return s.cache.CacheKey(cacheNamespace, orderID.String())
}

func sourcesFor(next enums.OrderStatus) []enums.OrderStatus {
	if next != enums.OrderStatusCancelled {
		return next.Predecessors()
	}
	var out []enums.OrderStatus
	for _, status := range enums.OrderStatusDelivered.Predecessors() {
		if status.CanAdvanceTo(enums.OrderStatusCancelled) {
			out = append(out, status)
		}
	}
	return out
}

func buildView(order *models.Order, delivery *models.Delivery) *OrderView {
	view := &OrderView{
		ID:               order.ID,
		BuyerID:          order.BuyerID,
		SellerID:         order.SellerID,
		OrderType:        order.OrderType,
		Status:           order.Status,
		PaymentStatus:    order.PaymentStatus,
		PaymentMethod:    order.PaymentMethod,
		TotalCents:       order.TotalCents,
		Total:            decimal.New(order.TotalCents, -2).StringFixed(2),
		Currency:         order.Currency,
		Items:            make([]ItemView, 0, len(order.Items)),
		Milestones:       tracking.Synthesize(order.Status, order.CreatedAt),
		PaymentReference: order.PaymentReference,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
	for _, item := range order.Items {
		ref := item.ProductID
		switch {
		case item.CropListingID != nil:
			ref = item.CropListingID
		case item.EquipmentID != nil:
			ref = item.EquipmentID
		}
		view.Items = append(view.Items, ItemView{
			ID:              item.ID,
			Kind:            item.Kind,
			RefID:           ref,
			Name:            item.Name,
			Quantity:        item.Quantity,
			UnitPriceCents:  item.UnitPriceCents,
			TotalPriceCents: item.TotalPriceCents,
		})
	}
	if delivery != nil {
		dv := &DeliveryView{
			ID:          delivery.ID,
			DriverID:    delivery.DriverID,
			Status:      delivery.Status,
			PickedUpAt:  delivery.PickedUpAt,
			DeliveredAt: delivery.DeliveredAt,
		}
		if delivery.CurrentLat != nil && delivery.CurrentLng != nil {
			dv.Current = &Position{
				Latitude:   *delivery.CurrentLat,
				Longitude:  *delivery.CurrentLng,
				Accuracy:   delivery.CurrentAccuracy,
				Speed:      delivery.CurrentSpeed,
				Heading:    delivery.CurrentHeading,
				RecordedAt: delivery.CurrentFixAt,
			}
		}
		view.Delivery = dv
	}
	return view
}
