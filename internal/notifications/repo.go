package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/harvest-fulfillment/pkg/db/models"
	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
)

// Repository persists notifications and answers inbox queries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, filter inboxFilter, after *pageKey, limit int) ([]models.Notification, error)
	CountUnread(ctx context.Context, filter inboxFilter) (int64, error)
	MarkRead(ctx context.Context, filter inboxFilter, notificationID uuid.UUID, now time.Time) (readOutcome, error)
	MarkAllRead(ctx context.Context, filter inboxFilter, now time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// inboxFilter narrows queries to one recipient's notification types.
type inboxFilter struct {
	UserID     uuid.UUID
	Types      []enums.NotificationType
	OrderID    *uuid.UUID
	UnreadOnly bool
}

func (f inboxFilter) scope(db *gorm.DB) *gorm.DB {
	db = db.Where("user_id = ?", f.UserID)
	if len(f.Types) > 0 {
		db = db.Where("type IN ?", f.Types)
	}
	if f.OrderID != nil {
		db = db.Where("order_id = ?", *f.OrderID)
	}
	if f.UnreadOnly {
		db = db.Where("read_at IS NULL")
	}
	return db
}

type readOutcome int

const (
	readMissing readOutcome = iota
	readAlready
	readMarked
)

type repository struct {
	db *gorm.DB
}

// NewRepository returns a notifications repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) notifications(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Notification{})
}

func (r *repository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

// List returns up to limit rows newest first, strictly after the key when set.
func (r *repository) List(ctx context.Context, filter inboxFilter, after *pageKey, limit int) ([]models.Notification, error) {
	query := filter.scope(r.notifications(ctx))
	if after != nil {
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", after.CreatedAt, after.CreatedAt, after.ID)
	}
	var rows []models.Notification
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CountUnread(ctx context.Context, filter inboxFilter) (int64, error) {
	filter.UnreadOnly = true
	var count int64
	err := filter.scope(r.notifications(ctx)).Count(&count).Error
	return count, err
}

// MarkRead stamps read_at once. A row outside the filter reads as missing.
func (r *repository) MarkRead(ctx context.Context, filter inboxFilter, notificationID uuid.UUID, now time.Time) (readOutcome, error) {
	filter.UnreadOnly = false
	result := filter.scope(r.notifications(ctx)).
		Where("id = ? AND read_at IS NULL", notificationID).
		UpdateColumn("read_at", now)
	if result.Error != nil {
		return readMissing, result.Error
	}
	if result.RowsAffected > 0 {
		return readMarked, nil
	}

	var count int64
	if err := filter.scope(r.notifications(ctx)).Where("id = ?", notificationID).Count(&count).Error; err != nil {
		return readMissing, err
	}
	if count == 0 {
		return readMissing, nil
	}
	return readAlready, nil
}

func (r *repository) MarkAllRead(ctx context.Context, filter inboxFilter, now time.Time) (int64, error) {
	filter.UnreadOnly = true
	result := filter.scope(r.notifications(ctx)).UpdateColumn("read_at", now)
	return result.RowsAffected, result.Error
}

// DeleteOlderThan removes read notifications created before cutoff. Unread
// rows are kept regardless of age.
func (r *repository) DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	db := r.db
	if tx != nil {
		db = tx
	}
	result := db.WithContext(ctx).
		Where("created_at < ? AND read_at IS NOT NULL", cutoff).
		Delete(&models.Notification{})
	return result.RowsAffected, result.Error
}
