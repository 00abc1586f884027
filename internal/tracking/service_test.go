package tracking

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/harvest-fulfillment/pkg/db"
	"github.com/angelmondragon/harvest-fulfillment/pkg/db/dbtest"
	"github.com/angelmondragon/harvest-fulfillment/pkg/db/models"
	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/harvest-fulfillment/pkg/errors"
	"github.com/angelmondragon/harvest-fulfillment/pkg/logger"
)

type sqlAdvancer struct{}

func (sqlAdvancer) AdvanceOrderStatus(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, target enums.OrderStatus) (bool, error) {
	res := tx.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status IN ?", orderID, target.Predecessors()).
		Update("status", target)
	return res.RowsAffected > 0, res.Error
}

type failingAdvancer struct{}

func (failingAdvancer) AdvanceOrderStatus(context.Context, *gorm.DB, uuid.UUID, enums.OrderStatus) (bool, error) {
	return false, errors.New("orders table locked")
}

type recordingCache struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (c *recordingCache) InvalidateOrder(_ context.Context, orderID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, orderID)
}

type recordingBuyerNotifier struct {
	statuses []enums.DeliveryStatus
	buyers   []uuid.UUID
	err      error
}

func (n *recordingBuyerNotifier) DeliveryStatusChanged(_ context.Context, buyerID, _ uuid.UUID, status enums.DeliveryStatus) error {
	n.buyers = append(n.buyers, buyerID)
	n.statuses = append(n.statuses, status)
	return n.err
}

type trackingHarness struct {
	client   *db.Client
	svc      *Service
	cache    *recordingCache
	notifier *recordingBuyerNotifier
	order    models.Order
	driver   models.User
}

func newTrackingHarness(t *testing.T, configure func(*ServiceParams)) *trackingHarness {
	t.Helper()
	client := dbtest.New(t)
	buyer := dbtest.SeedUser(t, client, "buyer")
	seller := dbtest.SeedUser(t, client, "seller")
	driver := dbtest.SeedUser(t, client, "driver")
	order := models.Order{
		ID:            uuid.New(),
		BuyerID:       buyer.ID,
		SellerID:      seller.ID,
		OrderType:     enums.OrderTypeProduct,
		TotalCents:    1000,
		Currency:      "USD",
		Status:        enums.OrderStatusConfirmed,
		PaymentStatus: enums.PaymentStatusPaid,
		PaymentMethod: enums.PaymentMethodCard,
	}
	require.NoError(t, client.DB().Create(&order).Error)

	cache := &recordingCache{}
	notifier := &recordingBuyerNotifier{}
	params := ServiceParams{
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:        client,
		Repo:      NewRepository(client.DB()),
		Orders:    sqlAdvancer{},
		Cache:     cache,
		Notifier:  notifier,
		Reconcile: true,
	}
	if configure != nil {
		configure(&params)
	}
	svc, err := NewService(params)
	require.NoError(t, err)
	return &trackingHarness{client: client, svc: svc, cache: cache, notifier: notifier, order: order, driver: driver}
}

func (h *trackingHarness) assign(t *testing.T) *models.Delivery {
	t.Helper()
	delivery, err := h.svc.AssignDriver(context.Background(), h.order.ID, h.driver.ID)
	require.NoError(t, err)
	return delivery
}

func (h *trackingHarness) orderStatus(t *testing.T) enums.OrderStatus {
	t.Helper()
	var order models.Order
	require.NoError(t, h.client.DB().First(&order, "id = ?", h.order.ID).Error)
	return order.Status
}

func ptr(v float64) *float64 { return &v }

func TestAssignDriverOncePerOrder(t *testing.T) {
	h := newTrackingHarness(t, nil)
	delivery := h.assign(t)
	assert.Equal(t, enums.DeliveryStatusAssigned, delivery.Status)

	_, err := h.svc.AssignDriver(context.Background(), h.order.ID, h.driver.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))

	_, err = h.svc.AssignDriver(context.Background(), uuid.New(), h.driver.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestRecordFixAppendsAndMovesPointerToLastReceived(t *testing.T) {
	h := newTrackingHarness(t, nil)
	delivery := h.assign(t)
	ctx := context.Background()

	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	inputs := []FixInput{
		{Latitude: -1.28, Longitude: 36.82, RecordedAt: timePtr(base.Add(2 * time.Minute)), Accuracy: ptr(5)},
		{Latitude: -1.29, Longitude: 36.83, RecordedAt: timePtr(base.Add(4 * time.Minute)), Speed: ptr(11.5)},
		// arrives late with an older device time
		{Latitude: -1.27, Longitude: 36.81, RecordedAt: timePtr(base.Add(1 * time.Minute)), Heading: ptr(90)},
	}

	var last *models.LocationFix
	for i, input := range inputs {
		fix, err := h.svc.RecordFix(ctx, delivery.ID, input)
		require.NoError(t, err)
		last = fix

		history, err := h.svc.History(ctx, delivery.ID)
		require.NoError(t, err)
		assert.Len(t, history, i+1, "history grows by exactly one per fix")

		var stored models.Delivery
		require.NoError(t, h.client.DB().First(&stored, "id = ?", delivery.ID).Error)
		require.NotNil(t, stored.CurrentFixID)
		assert.Equal(t, fix.ID, *stored.CurrentFixID)
		assert.Equal(t, input.Latitude, *stored.CurrentLat)
	}

	history, err := h.svc.History(ctx, delivery.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, last.ID, history[0].ID, "history is ordered by device time")
	assert.Equal(t, -1.29, history[2].Latitude)
	assert.Len(t, h.cache.ids, 3)
}

func TestRecordFixDefaultsRecordedAtAndRejectsUnknownDelivery(t *testing.T) {
	h := newTrackingHarness(t, nil)
	delivery := h.assign(t)
	now := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	h.svc.now = func() time.Time { return now }

	fix, err := h.svc.RecordFix(context.Background(), delivery.ID, FixInput{Latitude: 1, Longitude: 2})
	require.NoError(t, err)
	assert.Equal(t, now, fix.RecordedAt)
	assert.Equal(t, now, fix.ReceivedAt)

	_, err = h.svc.RecordFix(context.Background(), uuid.New(), FixInput{Latitude: 1, Longitude: 2})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	var count int64
	require.NoError(t, h.client.DB().Model(&models.LocationFix{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpdateStatusReconcilesOrderForward(t *testing.T) {
	h := newTrackingHarness(t, nil)
	delivery := h.assign(t)
	ctx := context.Background()

	updated, err := h.svc.UpdateStatus(ctx, delivery.ID, enums.DeliveryStatusPickedUp)
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryStatusPickedUp, updated.Status)
	assert.NotNil(t, updated.PickedUpAt)
	assert.Equal(t, enums.OrderStatusShipped, h.orderStatus(t))

	_, err = h.svc.UpdateStatus(ctx, delivery.ID, enums.DeliveryStatusOutForDelivery)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusShipped, h.orderStatus(t))

	updated, err = h.svc.UpdateStatus(ctx, delivery.ID, enums.DeliveryStatusDelivered)
	require.NoError(t, err)
	assert.NotNil(t, updated.DeliveredAt)
	assert.Equal(t, enums.OrderStatusDelivered, h.orderStatus(t))

	assert.Equal(t, []enums.DeliveryStatus{
		enums.DeliveryStatusPickedUp, enums.DeliveryStatusOutForDelivery, enums.DeliveryStatusDelivered,
	}, h.notifier.statuses)
	assert.Equal(t, h.order.BuyerID, h.notifier.buyers[0])
}

func TestUpdateStatusRejectsRegressionAndRepeatsAreNoops(t *testing.T) {
	h := newTrackingHarness(t, nil)
	delivery := h.assign(t)
	ctx := context.Background()

	_, err := h.svc.UpdateStatus(ctx, delivery.ID, enums.DeliveryStatusInTransit)
	require.NoError(t, err)

	_, err = h.svc.UpdateStatus(ctx, delivery.ID, enums.DeliveryStatusPickedUp)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	same, err := h.svc.UpdateStatus(ctx, delivery.ID, enums.DeliveryStatusInTransit)
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryStatusInTransit, same.Status)
	assert.Len(t, h.notifier.statuses, 1, "a repeated status sends nothing")

	_, err = h.svc.UpdateStatus(ctx, delivery.ID, "teleported")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestUpdateStatusNeverRegressesOrder(t *testing.T) {
	h := newTrackingHarness(t, nil)
	require.NoError(t, h.client.DB().Model(&models.Order{}).Where("id = ?", h.order.ID).Update("status", enums.OrderStatusDelivered).Error)
	delivery := h.assign(t)

	_, err := h.svc.UpdateStatus(context.Background(), delivery.ID, enums.DeliveryStatusPickedUp)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDelivered, h.orderStatus(t))
}

func TestUpdateStatusRollsBackWhenReconcileFails(t *testing.T) {
	h := newTrackingHarness(t, func(p *ServiceParams) { p.Orders = failingAdvancer{} })
	delivery := h.assign(t)

	_, err := h.svc.UpdateStatus(context.Background(), delivery.ID, enums.DeliveryStatusPickedUp)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))

	var stored models.Delivery
	require.NoError(t, h.client.DB().First(&stored, "id = ?", delivery.ID).Error)
	assert.Equal(t, enums.DeliveryStatusAssigned, stored.Status)
}

func TestUpdateStatusWithoutReconcileLeavesOrder(t *testing.T) {
	h := newTrackingHarness(t, func(p *ServiceParams) { p.Reconcile = false })
	delivery := h.assign(t)

	_, err := h.svc.UpdateStatus(context.Background(), delivery.ID, enums.DeliveryStatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, h.orderStatus(t))
}

func TestReconcileDrifted(t *testing.T) {
	h := newTrackingHarness(t, func(p *ServiceParams) { p.Reconcile = false })
	delivery := h.assign(t)
	_, err := h.svc.UpdateStatus(context.Background(), delivery.ID, enums.DeliveryStatusDelivered)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusConfirmed, h.orderStatus(t))

	h.svc.orders = sqlAdvancer{}
	fixed, err := h.svc.ReconcileDrifted(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)
	assert.Equal(t, enums.OrderStatusDelivered, h.orderStatus(t))

	fixed, err = h.svc.ReconcileDrifted(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, fixed)
}

func TestDeliveryForOrder(t *testing.T) {
	h := newTrackingHarness(t, nil)
	none, err := h.svc.DeliveryForOrder(context.Background(), h.order.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	delivery := h.assign(t)
	found, err := h.svc.DeliveryForOrder(context.Background(), h.order.ID)
	require.NoError(t, err)
	assert.Equal(t, delivery.ID, found.ID)
}

func timePtr(t time.Time) *time.Time { return &t }

func TestHistoryKeepsNewestFixesBeyondLimit(t *testing.T) {
	h := newTrackingHarness(t, func(p *ServiceParams) { p.HistoryLimit = 3 })
	delivery := h.assign(t)
	ctx := context.Background()

	base := time.Date(2026, 4, 3, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := h.svc.RecordFix(ctx, delivery.ID, FixInput{
			Latitude:   float64(i),
			Longitude:  36.8,
			RecordedAt: timePtr(base.Add(time.Duration(i) * time.Minute)),
		})
		require.NoError(t, err)
	}

	history, err := h.svc.History(ctx, delivery.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	lats := []float64{history[0].Latitude, history[1].Latitude, history[2].Latitude}
	assert.Equal(t, []float64{2, 3, 4}, lats, "newest fixes in device-time order")
}

func TestReconcileDriftedSkipsConsistentRowsInBatch(t *testing.T) {
	h := newTrackingHarness(t, func(p *ServiceParams) { p.Reconcile = false })
	ctx := context.Background()

	shipped := models.Order{
		ID:            uuid.New(),
		BuyerID:       h.order.BuyerID,
		SellerID:      h.order.SellerID,
		OrderType:     enums.OrderTypeProduct,
		TotalCents:    500,
		Currency:      "USD",
		Status:        enums.OrderStatusShipped,
		PaymentStatus: enums.PaymentStatusPaid,
		PaymentMethod: enums.PaymentMethodCard,
	}
	require.NoError(t, h.client.DB().Create(&shipped).Error)
	consistent, err := h.svc.AssignDriver(ctx, shipped.ID, h.driver.ID)
	require.NoError(t, err)
	_, err = h.svc.UpdateStatus(ctx, consistent.ID, enums.DeliveryStatusInTransit)
	require.NoError(t, err)

	drifted := h.assign(t)
	_, err = h.svc.UpdateStatus(ctx, drifted.ID, enums.DeliveryStatusDelivered)
	require.NoError(t, err)
	require.NoError(t, h.client.DB().Model(&models.Delivery{}).
		Where("id = ?", consistent.ID).
		UpdateColumn("updated_at", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)).Error)

	h.svc.orders = sqlAdvancer{}
	fixed, err := h.svc.ReconcileDrifted(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)
	assert.Equal(t, enums.OrderStatusDelivered, h.orderStatus(t))

	var untouched models.Order
	require.NoError(t, h.client.DB().First(&untouched, "id = ?", shipped.ID).Error)
	assert.Equal(t, enums.OrderStatusShipped, untouched.Status)
}
