package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
)

// Crop is a farmer's harvest; listings sell portions of it.
type Crop struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	FarmerID  uuid.UUID        `gorm:"column:farmer_id;type:uuid;not null;index"`
	Name      string           `gorm:"column:name;not null"`
	Status    enums.CropStatus `gorm:"column:status;type:crop_status;not null;default:'growing'"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Crop) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// CropListing offers a quantity of a crop at a price.
type CropListing struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CropID         uuid.UUID `gorm:"column:crop_id;type:uuid;not null;index"`
	SellerID       uuid.UUID `gorm:"column:seller_id;type:uuid;not null;index"`
	Title          string    `gorm:"column:title;not null"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	AvailableQty   int       `gorm:"column:available_qty;not null;default:0"`
	IsActive       bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *CropListing) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
