package cron

import (
	"context"
	"fmt"
)

const deliveryReconcileBatch = 200

type deliveryReconciler interface {
	ReconcileDrifted(ctx context.Context, limit int) (int, error)
}

// DeliveryReconcileJob forward-fixes orders whose status lags behind their
// delivery, for example after a reconcile failure or with reconciliation off.
type DeliveryReconcileJob struct {
	reconciler deliveryReconciler
	batch      int
}

// NewDeliveryReconcileJob repairs at most batch orders per run (200 when unset).
func NewDeliveryReconcileJob(reconciler deliveryReconciler, batch int) (*DeliveryReconcileJob, error) {
	if reconciler == nil {
		return nil, fmt.Errorf("delivery reconciler required")
	}
	if batch <= 0 {
		batch = deliveryReconcileBatch
	}
	return &DeliveryReconcileJob{reconciler: reconciler, batch: batch}, nil
}

func (j *DeliveryReconcileJob) Name() string { return "delivery-order-reconcile" }

func (j *DeliveryReconcileJob) Run(ctx context.Context) (int64, error) {
	fixed, err := j.reconciler.ReconcileDrifted(ctx, j.batch)
	if err != nil {
		return int64(fixed), fmt.Errorf("reconcile after %d orders: %w", fixed, err)
	}
	return int64(fixed), nil
}
