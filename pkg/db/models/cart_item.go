package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartItem is one buyer cart line. Exactly one of ProductID and CropListingID
// is set; UnitPriceCents is the price snapshot taken when the line was added.
type CartItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID        uuid.UUID  `gorm:"column:buyer_id;type:uuid;not null;index"`
	ProductID      *uuid.UUID `gorm:"column:product_id;type:uuid"`
	CropListingID  *uuid.UUID `gorm:"column:crop_listing_id;type:uuid"`
	Quantity       int        `gorm:"column:quantity;not null"`
	UnitPriceCents int64      `gorm:"column:unit_price_cents;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (c *CartItem) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
