package tracking

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/harvest-fulfillment/pkg/db/models"
	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
)

var ErrDeliveryNotFound = errors.New("delivery not found")

// Repository persists deliveries and their location history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateDelivery(ctx context.Context, delivery *models.Delivery) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error)
	AppendFix(ctx context.Context, fix *models.LocationFix) error
	SetCurrentFix(ctx context.Context, deliveryID uuid.UUID, fix *models.LocationFix) error
	ListFixes(ctx context.Context, deliveryID uuid.UUID, limit int) ([]models.LocationFix, error)
	AdvanceStatus(ctx context.Context, id uuid.UUID, next enums.DeliveryStatus, from []enums.DeliveryStatus, at time.Time) (bool, error)
	OrderSummary(ctx context.Context, orderID uuid.UUID) (*OrderSummary, error)
	ListDrifted(ctx context.Context, limit int) ([]DriftedDelivery, error)
}

// OrderSummary is the slice of an order the tracking service reads.
type OrderSummary struct {
	ID      uuid.UUID
	BuyerID uuid.UUID
	Status  enums.OrderStatus
}

// DriftedDelivery is a delivery whose order may lag behind it.
type DriftedDelivery struct {
	DeliveryID  uuid.UUID
	OrderID     uuid.UUID
	Status      enums.DeliveryStatus
	OrderStatus enums.OrderStatus
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateDelivery(ctx context.Context, delivery *models.Delivery) error {
	return r.db.WithContext(ctx).Create(delivery).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	return r.first(ctx, "order_id = ?", orderID)
}

func (r *repository) first(ctx context.Context, query string, arg any) (*models.Delivery, error) {
	var delivery models.Delivery
	if err := r.db.WithContext(ctx).Where(query, arg).First(&delivery).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeliveryNotFound
		}
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) AppendFix(ctx context.Context, fix *models.LocationFix) error {
	return r.db.WithContext(ctx).Create(fix).Error
}

// SetCurrentFix overwrites the mirrored position with fix, whatever its
// recorded time.
func (r *repository) SetCurrentFix(ctx context.Context, deliveryID uuid.UUID, fix *models.LocationFix) error {
	res := r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("id = ?", deliveryID).
		Updates(map[string]any{
			"current_lat":      fix.Latitude,
			"current_lng":      fix.Longitude,
			"current_accuracy": fix.Accuracy,
			"current_speed":    fix.Speed,
			"current_heading":  fix.Heading,
			"current_fix_at":   fix.RecordedAt,
			"current_fix_id":   fix.ID,
			"updated_at":       fix.ReceivedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDeliveryNotFound
	}
	return nil
}

// ListFixes returns the newest limit fixes in device-time order. Ties keep
// receipt order.
func (r *repository) ListFixes(ctx context.Context, deliveryID uuid.UUID, limit int) ([]models.LocationFix, error) {
	query := r.db.WithContext(ctx).
		Where("delivery_id = ?", deliveryID).
		Order("recorded_at DESC, received_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var fixes []models.LocationFix
	if err := query.Find(&fixes).Error; err != nil {
		return nil, err
	}
	slices.Reverse(fixes)
	return fixes, nil
}

// AdvanceStatus moves the delivery to next only while its status is one of
// from, stamping picked_up_at and delivered_at the first time they apply.
func (r *repository) AdvanceStatus(ctx context.Context, id uuid.UUID, next enums.DeliveryStatus, from []enums.DeliveryStatus, at time.Time) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	updates := map[string]any{"status": next, "updated_at": at}
	if next.Rank() >= enums.DeliveryStatusPickedUp.Rank() {
		updates["picked_up_at"] = gorm.Expr("COALESCE(picked_up_at, ?)", at)
	}
	if next == enums.DeliveryStatusDelivered {
		updates["delivered_at"] = gorm.Expr("COALESCE(delivered_at, ?)", at)
	}
	res := r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) OrderSummary(ctx context.Context, orderID uuid.UUID) (*OrderSummary, error) {
	var rows []OrderSummary
	err := r.db.WithContext(ctx).
		Table("orders").
		Select("id, buyer_id, status").
		Where("id = ?", orderID).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[0], nil
}

// ListDrifted returns deliveries whose status implies an order status ahead
// of the one stored, oldest first.
func (r *repository) ListDrifted(ctx context.Context, limit int) ([]DriftedDelivery, error) {
	var clauses []string
	var args []any
	for _, target := range []enums.OrderStatus{enums.OrderStatusShipped, enums.OrderStatusDelivered} {
		clauses = append(clauses, "(deliveries.status IN ? AND orders.status IN ?)")
		args = append(args, enums.DeliveryStatusesImplying(target), target.Predecessors())
	}
	query := r.db.WithContext(ctx).
		Table("deliveries").
		Select("deliveries.id AS delivery_id, deliveries.order_id AS order_id, deliveries.status AS status, orders.status AS order_status").
		Joins("JOIN orders ON orders.id = deliveries.order_id").
		Where("("+strings.Join(clauses, " OR ")+")", args...).
		Order("deliveries.updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []DriftedDelivery
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
