package paymentwebhook

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/harvest-fulfillment/pkg/db/models"
)

// DBStore keeps processed markers in the processed_events table. The primary
// key makes the insert the test-and-set.
type DBStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db, now: time.Now}
}

func (s *DBStore) IdempotencyKey(scope, id string) string {
	return scope + ":" + id
}

// SetNX inserts the marker and reports whether this call created it. Expiry is
// handled by the retention job, so ttl is ignored here.
func (s *DBStore) SetNX(ctx context.Context, key string, _ any, _ time.Duration) (bool, error) {
	scope := key
	if i := strings.Index(key, ":"); i > 0 {
		scope = key[:i]
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(&models.ProcessedEvent{EventID: key, Scope: scope, ProcessedAt: s.now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *DBStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Where("event_id IN ?", keys).Delete(&models.ProcessedEvent{}).Error
}

// DeleteOlderThan prunes markers processed before cutoff.
func (s *DBStore) DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	db := s.db
	if tx != nil {
		db = tx
	}
	res := db.WithContext(ctx).Where("processed_at < ?", cutoff).Delete(&models.ProcessedEvent{})
	return res.RowsAffected, res.Error
}
