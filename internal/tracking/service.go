package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/harvest-fulfillment/pkg/db"
	"github.com/angelmondragon/harvest-fulfillment/pkg/db/models"
	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/harvest-fulfillment/pkg/errors"
	"github.com/angelmondragon/harvest-fulfillment/pkg/logger"
	"github.com/angelmondragon/harvest-fulfillment/pkg/metrics"
)

const defaultHistoryLimit = 500

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// OrderStatusAdvancer moves an order forward inside the caller's transaction.
// It must never regress the order.
type OrderStatusAdvancer interface {
	AdvanceOrderStatus(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, target enums.OrderStatus) (bool, error)
}

// OrderCacheInvalidator drops cached read models of an order.
type OrderCacheInvalidator interface {
	InvalidateOrder(ctx context.Context, orderID uuid.UUID)
}

type buyerNotifier interface {
	DeliveryStatusChanged(ctx context.Context, buyerID, orderID uuid.UUID, status enums.DeliveryStatus) error
}

// FixInput is one GPS sample as reported by the driver app.
type FixInput struct {
	Latitude   float64
	Longitude  float64
	Accuracy   *float64
	Speed      *float64
	Heading    *float64
	RecordedAt *time.Time
}

type ServiceParams struct {
	Logger   *logger.Logger
	DB       txRunner
	Repo     Repository
	Orders   OrderStatusAdvancer
	Cache    OrderCacheInvalidator
	Notifier buyerNotifier
	Metrics  *metrics.TrackingMetrics
	// Reconcile forward-maps delivery status changes onto the order.
	Reconcile    bool
	HistoryLimit int
}

// Service ingests driver location fixes and delivery status changes.
type Service struct {
	logg         *logger.Logger
	tx           txRunner
	repo         Repository
	orders       OrderStatusAdvancer
	cache        OrderCacheInvalidator
	notifier     buyerNotifier
	metrics      *metrics.TrackingMetrics
	reconcile    bool
	historyLimit int
	now          func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tracking repository required")
	}
	if params.Reconcile && params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "order status advancer required for reconciliation")
	}
	limit := params.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &Service{
		logg:         params.Logger,
		tx:           params.DB,
		repo:         params.Repo,
		orders:       params.Orders,
		cache:        params.Cache,
		notifier:     params.Notifier,
		metrics:      params.Metrics,
		reconcile:    params.Reconcile,
		historyLimit: limit,
		now:          time.Now,
	}, nil
}

// AssignDriver opens the single delivery of an order.
func (s *Service) AssignDriver(ctx context.Context, orderID, driverID uuid.UUID) (*models.Delivery, error) {
	if orderID == uuid.Nil || driverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and driver id required")
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	delivery := &models.Delivery{
		ID:       uuid.New(),
		OrderID:  orderID,
		DriverID: driverID,
		Status:   enums.DeliveryStatusAssigned,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.OrderSummary(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status == enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is cancelled")
		}
		if err := repo.CreateDelivery(ctx, delivery); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "order already has a delivery")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create delivery")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithDeliveryID(ctx, delivery.ID.String()), "driver assigned")
	return delivery, nil
}

// RecordFix appends a fix and points the delivery's current position at it.
// The latest received fix wins even when its device time is older.
func (s *Service) RecordFix(ctx context.Context, deliveryID uuid.UUID, input FixInput) (*models.LocationFix, error) {
	if deliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}
	received := s.now().UTC()
	fix := &models.LocationFix{
		ID:         uuid.New(),
		DeliveryID: deliveryID,
		Latitude:   input.Latitude,
		Longitude:  input.Longitude,
		Accuracy:   input.Accuracy,
		Speed:      input.Speed,
		Heading:    input.Heading,
		RecordedAt: received,
		ReceivedAt: received,
	}
	if input.RecordedAt != nil && !input.RecordedAt.IsZero() {
		fix.RecordedAt = input.RecordedAt.UTC()
	}

	var orderID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		delivery, err := repo.FindByID(ctx, deliveryID)
		if err != nil {
			return mapDeliveryErr(err)
		}
		orderID = delivery.OrderID
		if err := repo.AppendFix(ctx, fix); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append location fix")
		}
		if err := repo.SetCurrentFix(ctx, deliveryID, fix); err != nil {
			return mapDeliveryErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncFix()
	s.invalidate(ctx, orderID)
	return fix, nil
}

// History returns the fixes of a delivery ordered by device time.
func (s *Service) History(ctx context.Context, deliveryID uuid.UUID) ([]models.LocationFix, error) {
	if _, err := s.repo.FindByID(ctx, deliveryID); err != nil {
		return nil, mapDeliveryErr(err)
	}
	fixes, err := s.repo.ListFixes(ctx, deliveryID, s.historyLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list location fixes")
	}
	return fixes, nil
}

// DeliveryForOrder returns the delivery of an order, or nil when none exists.
func (s *Service) DeliveryForOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	delivery, err := s.repo.FindByOrderID(ctx, orderID)
	if errors.Is(err, ErrDeliveryNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}
	return delivery, nil
}

// UpdateStatus advances the driver-facing status. Repeating the current
// status is a no-op and moving backwards is a STATE_CONFLICT. With
// reconciliation on, the order is forward-mapped in the same transaction.
func (s *Service) UpdateStatus(ctx context.Context, deliveryID uuid.UUID, next enums.DeliveryStatus) (*models.Delivery, error) {
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid delivery status %q", next))
	}
	ctx = s.logg.WithDeliveryID(ctx, deliveryID.String())

	var (
		updated *models.Delivery
		changed bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, deliveryID)
		if err != nil {
			return mapDeliveryErr(err)
		}
		if current.Status == next {
			updated = current
			return nil
		}
		if next.Rank() < current.Status.Rank() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("delivery cannot move from %s to %s", current.Status, next)).
				WithDetails(map[string]any{"current": current.Status, "requested": next})
		}

		ok, err := repo.AdvanceStatus(ctx, deliveryID, next, lowerDeliveryStatuses(next), s.now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update delivery status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "delivery status changed concurrently")
		}
		changed = true

		if s.reconcile {
			if target, implies := next.OrderStatus(); implies {
				if _, err := s.orders.AdvanceOrderStatus(ctx, tx, current.OrderID, target); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconcile order status")
				}
			}
		}

		updated, err = repo.FindByID(ctx, deliveryID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return updated, nil
	}

	s.metrics.IncStatusChange(string(next))
	s.invalidate(ctx, updated.OrderID)
	s.notifyBuyer(ctx, updated.OrderID, next)
	s.logg.Info(s.logg.WithField(ctx, "status", string(next)), "delivery status updated")
	return updated, nil
}

// ReconcileDrifted forward-fixes orders that lag behind their delivery and
// returns how many changed.
func (s *Service) ReconcileDrifted(ctx context.Context, limit int) (int, error) {
	if s.orders == nil {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, "order status advancer required")
	}
	rows, err := s.repo.ListDrifted(ctx, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list drifted deliveries")
	}
	fixed := 0
	for _, row := range rows {
		target, implies := row.Status.OrderStatus()
		if !implies || target.Rank() <= row.OrderStatus.Rank() {
			continue
		}
		var advanced bool
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			advanced, err = s.orders.AdvanceOrderStatus(ctx, tx, row.OrderID, target)
			return err
		})
		if err != nil {
			return fixed, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconcile order status")
		}
		if advanced {
			fixed++
			s.invalidate(ctx, row.OrderID)
		}
	}
	return fixed, nil
}

func (s *Service) notifyBuyer(ctx context.Context, orderID uuid.UUID, status enums.DeliveryStatus) {
	if s.notifier == nil {
		return
	}
	order, err := s.repo.OrderSummary(ctx, orderID)
	if err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("load order for buyer notification: %v", err))
		return
	}
	if err := s.notifier.DeliveryStatusChanged(ctx, order.BuyerID, orderID, status); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("buyer notification failed: %v", err))
	}
}

func (s *Service) invalidate(ctx context.Context, orderID uuid.UUID) {
	if s.cache != nil && orderID != uuid.Nil {
		s.cache.InvalidateOrder(ctx, orderID)
	}
}

func lowerDeliveryStatuses(next enums.DeliveryStatus) []enums.DeliveryStatus {
	var out []enums.DeliveryStatus
	for _, candidate := range []enums.DeliveryStatus{
		enums.DeliveryStatusAssigned,
		enums.DeliveryStatusPickedUp,
		enums.DeliveryStatusInTransit,
		enums.DeliveryStatusOutForDelivery,
		enums.DeliveryStatusDelivered,
	} {
		if candidate.Rank() < next.Rank() {
			out = append(out, candidate)
		}
	}
	return out
}

func mapDeliveryErr(err error) error {
	if errors.Is(err, ErrDeliveryNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
}
