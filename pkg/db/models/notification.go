package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
)

// Notification stores in-app notification payloads for one recipient.
type Notification struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID   *uuid.UUID             `gorm:"column:order_id;type:uuid"`
	Type      enums.NotificationType `gorm:"column:type;type:notification_type;not null"`
	Title     string                 `gorm:"column:title;not null"`
	Message   string                 `gorm:"column:message;not null"`
	Link      *string                `gorm:"column:link"`
	ReadAt    *time.Time             `gorm:"column:read_at"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	ensureID(&n.ID)
	return nil
}
