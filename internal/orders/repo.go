package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/harvest-fulfillment/pkg/db/models"
	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
)

// ErrNotFound is returned when an order does not exist.
var ErrNotFound = errors.New("order not found")

// Repository exposes order persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateItem(ctx context.Context, item *models.OrderItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByEvent(ctx context.Context, eventID string) ([]models.Order, error)
	AdvanceStatus(ctx context.Context, id uuid.UUID, next enums.OrderStatus, from []enums.OrderStatus) (bool, error)
}

type repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db, now: time.Now}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx, now: r.now}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	// items are written one by one by the caller
	return r.db.WithContext(ctx).Omit("Items").Create(order).Error
}

func (r *repository) CreateItem(ctx context.Context, item *models.OrderItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByEvent(ctx context.Context, eventID string) ([]models.Order, error) {
	var out []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("payment_event_id = ?", eventID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// AdvanceStatus moves the order to next only while its current status is one
// of from. It reports whether a row changed.
func (r *repository) AdvanceStatus(ctx context.Context, id uuid.UUID, next enums.OrderStatus, from []enums.OrderStatus) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]any{"status": next, "updated_at": r.now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
