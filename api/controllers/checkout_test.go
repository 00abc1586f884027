package controllers

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	checkoutsvc "github.com/angelmondragon/harvest-fulfillment/internal/checkout"
	"github.com/angelmondragon/harvest-fulfillment/internal/fulfillment"
	"github.com/angelmondragon/harvest-fulfillment/pkg/db/models"
	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/harvest-fulfillment/pkg/errors"
)

type fakeCheckout struct {
	input  checkoutsvc.Input
	calls  int
	result *checkoutsvc.Result
	err    error
}

func (f *fakeCheckout) Execute(_ context.Context, input checkoutsvc.Input) (*checkoutsvc.Result, error) {
	f.calls++
	f.input = input
	return f.result, f.err
}

func TestCheckoutCardReturnsRedirect(t *testing.T) {
	buyerID := uuid.New()
	svc := &fakeCheckout{result: &checkoutsvc.Result{
		PaymentMethod: enums.PaymentMethodCard,
		AmountCents:   4200,
		RedirectURL:   "https://pay.example.test/link/abc",
		PaymentLinkID: "abc",
	}}

	body := fmt.Sprintf(`{"buyer_id":%q,"payment_method":"card","buyer_email":"buyer@example.test"}`, buyerID)
	rec := serve(Checkout(svc, testLogger()), newRequest(http.MethodPost, "/api/v1/checkout", body, nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp cardCheckoutResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, "https://pay.example.test/link/abc", resp.RedirectURL)
	assert.Equal(t, int64(4200), resp.AmountCents)
	assert.Equal(t, buyerID, svc.input.BuyerID)
	assert.Equal(t, enums.PaymentMethodCard, svc.input.PaymentMethod)
	assert.Equal(t, "buyer@example.test", svc.input.BuyerEmail)
}

func TestCheckoutCashCreatesOrders(t *testing.T) {
	sellerID := uuid.New()
	order := &models.Order{
		ID:         uuid.New(),
		SellerID:   sellerID,
		OrderType:  enums.OrderTypeProduct,
		Status:     enums.OrderStatusPending,
		TotalCents: 1500,
		Currency:   "USD",
		Items:      []models.OrderItem{{Name: "Tomatoes", Quantity: 3, UnitPriceCents: 500, TotalPriceCents: 1500}},
	}
	svc := &fakeCheckout{result: &checkoutsvc.Result{
		PaymentMethod: enums.PaymentMethodCash,
		AmountCents:   1500,
		Report: &fulfillment.Report{
			Orders:      []fulfillment.OrderOutcome{{Order: order, SellerName: "Green Acres", Notified: true}},
			CartCleared: 1,
		},
	}}

	body := fmt.Sprintf(`{"buyer_id":%q,"payment_method":"cash"}`, uuid.New())
	rec := serve(Checkout(svc, testLogger()), newRequest(http.MethodPost, "/api/v1/checkout", body, nil))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp cashCheckoutResponse
	decodeData(t, rec, &resp)
	require.Len(t, resp.Orders, 1)
	assert.Equal(t, order.ID, resp.Orders[0].ID)
	assert.Equal(t, "Green Acres", resp.Orders[0].SellerName)
	assert.Equal(t, 1, resp.Orders[0].Items)
	assert.True(t, resp.Orders[0].Notified)
	assert.Equal(t, []uuid.UUID{order.ID}, resp.Report.OrderIDs)
	assert.Equal(t, int64(1), resp.Report.CartCleared)
}

func TestCheckoutRejectsInvalidPayload(t *testing.T) {
	cases := map[string]string{
		"missing buyer":  `{"payment_method":"cash"}`,
		"unknown method": fmt.Sprintf(`{"buyer_id":%q,"payment_method":"barter"}`, uuid.New()),
		"bad email":      fmt.Sprintf(`{"buyer_id":%q,"payment_method":"card","buyer_email":"nope"}`, uuid.New()),
		"malformed":      `{"buyer_id":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &fakeCheckout{}
			rec := serve(Checkout(svc, testLogger()), newRequest(http.MethodPost, "/api/v1/checkout", body, nil))

			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, string(pkgerrors.CodeValidation), decodeEnvelope(t, rec).Error.Code)
			assert.Zero(t, svc.calls)
		})
	}
}

func TestCheckoutPropagatesServiceErrors(t *testing.T) {
	svc := &fakeCheckout{err: pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")}

	body := fmt.Sprintf(`{"buyer_id":%q,"payment_method":"cash"}`, uuid.New())
	rec := serve(Checkout(svc, testLogger()), newRequest(http.MethodPost, "/api/v1/checkout", body, nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "cart is empty", decodeEnvelope(t, rec).Error.Message)
}
