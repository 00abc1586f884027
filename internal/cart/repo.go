package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/harvest-fulfillment/pkg/db/models"
)

// Repository exposes persistence helpers for buyer cart lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, ids []uuid.UUID) ([]models.CartItem, error)
	DeleteItems(ctx context.Context, buyerID uuid.UUID, ids []uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// ListByBuyer returns the buyer's lines in insertion order. A non-empty ids
// slice restricts the result to those lines.
func (r *repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID, ids []uuid.UUID) ([]models.CartItem, error) {
	query := r.db.WithContext(ctx).Where("buyer_id = ?", buyerID)
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}
	var items []models.CartItem
	if err := query.Order("created_at ASC, id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteItems removes the given lines of one buyer in a single statement.
func (r *repository) DeleteItems(ctx context.Context, buyerID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("buyer_id = ? AND id IN ?", buyerID, ids).
		Delete(&models.CartItem{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
