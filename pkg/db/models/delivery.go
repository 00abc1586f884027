package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
)

// Delivery tracks the driver leg of an order. The Current* columns mirror the
// most recently received LocationFix.
type Delivery struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	DriverID        uuid.UUID            `gorm:"column:driver_id;type:uuid;not null;index"`
	Status          enums.DeliveryStatus `gorm:"column:status;type:delivery_status;not null;default:'assigned'"`
	CurrentLat      *float64             `gorm:"column:current_lat"`
	CurrentLng      *float64             `gorm:"column:current_lng"`
	CurrentAccuracy *float64             `gorm:"column:current_accuracy"`
	CurrentSpeed    *float64             `gorm:"column:current_speed"`
	CurrentHeading  *float64             `gorm:"column:current_heading"`
	CurrentFixAt    *time.Time           `gorm:"column:current_fix_at"`
	CurrentFixID    *uuid.UUID           `gorm:"column:current_fix_id;type:uuid"`
	PickedUpAt      *time.Time           `gorm:"column:picked_up_at"`
	DeliveredAt     *time.Time           `gorm:"column:delivered_at"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *Delivery) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}

// LocationFix is one append-only GPS sample. RecordedAt is the device time,
// ReceivedAt the server time.
type LocationFix struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	DeliveryID uuid.UUID `gorm:"column:delivery_id;type:uuid;not null;index"`
	Latitude   float64   `gorm:"column:latitude;not null"`
	Longitude  float64   `gorm:"column:longitude;not null"`
	Accuracy   *float64  `gorm:"column:accuracy"`
	Speed      *float64  `gorm:"column:speed"`
	Heading    *float64  `gorm:"column:heading"`
	RecordedAt time.Time `gorm:"column:recorded_at;not null"`
	ReceivedAt time.Time `gorm:"column:received_at;not null"`
}

func (f *LocationFix) BeforeCreate(*gorm.DB) error {
	ensureID(&f.ID)
	return nil
}
