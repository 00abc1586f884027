package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	notificationRetentionDays = 30
	processedEventRetention   = 30 * 24 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Pruner deletes rows that aged past cutoff.
type Pruner interface {
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// PruneJob deletes rows older than its window in one transaction.
type PruneJob struct {
	name   string
	db     txRunner
	pruner Pruner
	window time.Duration
	now    func() time.Time
}

// NewPruneJob builds a retention job over pruner.
func NewPruneJob(name string, db txRunner, pruner Pruner, window time.Duration) (*PruneJob, error) {
	if name == "" {
		return nil, fmt.Errorf("job name required")
	}
	if db == nil {
		return nil, fmt.Errorf("%s: db runner required", name)
	}
	if pruner == nil {
		return nil, fmt.Errorf("%s: pruner required", name)
	}
	if window <= 0 {
		return nil, fmt.Errorf("%s: window must be positive", name)
	}
	return &PruneJob{name: name, db: db, pruner: pruner, window: window, now: time.Now}, nil
}

// NewNotificationCleanupJob purges read notifications older than
// retentionDays (30 when unset).
func NewNotificationCleanupJob(db txRunner, repo Pruner, retentionDays int) (*PruneJob, error) {
	if retentionDays <= 0 {
		retentionDays = notificationRetentionDays
	}
	return NewPruneJob("notification-cleanup", db, repo, time.Duration(retentionDays)*24*time.Hour)
}

// NewProcessedEventRetentionJob prunes webhook markers older than the
// idempotency ttl. A pruned marker lets a redelivered event through again, so
// ttl should match the guard's.
func NewProcessedEventRetentionJob(db txRunner, store Pruner, ttl time.Duration) (*PruneJob, error) {
	if ttl <= 0 {
		ttl = processedEventRetention
	}
	return NewPruneJob("processed-event-retention", db, store, ttl)
}

func (j *PruneJob) Name() string { return j.name }

// Cutoff is the oldest timestamp the next run keeps.
func (j *PruneJob) Cutoff() time.Time {
	return j.now().UTC().Add(-j.window)
}

func (j *PruneJob) Run(ctx context.Context) (int64, error) {
	cutoff := j.Cutoff()
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.pruner.DeleteOlderThan(ctx, tx, cutoff)
		deleted = rows
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return deleted, nil
}
