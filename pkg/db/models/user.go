package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the read-only identity row used to resolve seller display names.
type User struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Email       string    `gorm:"column:email;not null;uniqueIndex"`
	DisplayName string    `gorm:"column:display_name;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}
