package models

import "time"

// ProcessedEvent marks an inbound event id as handled for one scope.
type ProcessedEvent struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	Scope       string    `gorm:"column:scope;not null"`
	ProcessedAt time.Time `gorm:"column:processed_at;not null"`
}
