package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is a catalog item sold by a seller. Stock is decremented on fulfillment.
type Product struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SellerID   uuid.UUID `gorm:"column:seller_id;type:uuid;not null;index"`
	Name       string    `gorm:"column:name;not null"`
	PriceCents int64     `gorm:"column:price_cents;not null"`
	Stock      int       `gorm:"column:stock;not null;default:0"`
	IsActive   bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
