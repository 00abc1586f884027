package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
	"github.com/angelmondragon/harvest-fulfillment/pkg/types"
)

// Order is one seller-scoped order created from a paid cart partition.
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID          uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID         uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	OrderType        enums.OrderType     `gorm:"column:order_type;type:order_type;not null"`
	TotalCents       int64               `gorm:"column:total_cents;not null"`
	Currency         string              `gorm:"column:currency;not null;default:'USD'"`
	Status           enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending'"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	PaymentMethod    enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	PaymentReference *string             `gorm:"column:payment_reference"`
	PaymentEventID   *string             `gorm:"column:payment_event_id;index"`
	ShippingAddress  *types.Address      `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	BillingAddress   *types.Address      `gorm:"column:billing_address;type:jsonb;serializer:json"`
	Items            []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderItem is an immutable line of an Order. TotalPriceCents is fixed at insert.
type OrderItem struct {
	ID              uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID      `gorm:"column:order_id;type:uuid;not null;index"`
	Kind            enums.LineKind `gorm:"column:kind;type:line_kind;not null"`
	ProductID       *uuid.UUID     `gorm:"column:product_id;type:uuid"`
	CropListingID   *uuid.UUID     `gorm:"column:crop_listing_id;type:uuid"`
	EquipmentID     *uuid.UUID     `gorm:"column:equipment_id;type:uuid"`
	Name            string         `gorm:"column:name;not null"`
	Quantity        int            `gorm:"column:quantity;not null"`
	UnitPriceCents  int64          `gorm:"column:unit_price_cents;not null"`
	TotalPriceCents int64          `gorm:"column:total_price_cents;not null"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
