package models

import (
	"github.com/google/uuid"
)

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every model in dependency order, for gorm AutoMigrate on sqlite.
func All() []any {
	return []any{
		&User{},
		&Product{},
		&Crop{},
		&CropListing{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&Notification{},
		&Delivery{},
		&LocationFix{},
		&ProcessedEvent{},
	}
}
