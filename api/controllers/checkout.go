package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvest-fulfillment/api/responses"
	"github.com/angelmondragon/harvest-fulfillment/api/validators"
	checkoutsvc "github.com/angelmondragon/harvest-fulfillment/internal/checkout"
	"github.com/angelmondragon/harvest-fulfillment/internal/fulfillment"
	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/harvest-fulfillment/pkg/errors"
	"github.com/angelmondragon/harvest-fulfillment/pkg/logger"
	"github.com/angelmondragon/harvest-fulfillment/pkg/types"
)

// CheckoutService starts a buyer checkout.
type CheckoutService interface {
	Execute(ctx context.Context, input checkoutsvc.Input) (*checkoutsvc.Result, error)
}

type checkoutRequest struct {
	BuyerID         uuid.UUID      `json:"buyer_id" validate:"required"`
	PaymentMethod   string         `json:"payment_method" validate:"required,oneof=card cash"`
	CartItemIDs     []uuid.UUID    `json:"cart_item_ids,omitempty"`
	ShippingAddress *types.Address `json:"shipping_address,omitempty" validate:"omitempty"`
	BillingAddress  *types.Address `json:"billing_address,omitempty" validate:"omitempty"`
	BuyerEmail      string         `json:"buyer_email,omitempty" validate:"omitempty,email"`
}

type cardCheckoutResponse struct {
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	RedirectURL   string              `json:"redirect_url"`
	PaymentLinkID string              `json:"payment_link_id"`
	AmountCents   int64               `json:"amount_cents"`
}

type checkoutOrder struct {
	ID          uuid.UUID         `json:"id"`
	SellerID    uuid.UUID         `json:"seller_id"`
	SellerName  string            `json:"seller_name,omitempty"`
	OrderType   enums.OrderType   `json:"order_type"`
	Status      enums.OrderStatus `json:"status"`
	TotalCents  int64             `json:"total_cents"`
	Currency    string            `json:"currency"`
	Items       int               `json:"items"`
	ItemsFailed int               `json:"items_failed,omitempty"`
	Notified    bool              `json:"notified"`
}

type cashCheckoutResponse struct {
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	AmountCents   int64               `json:"amount_cents"`
	Orders        []checkoutOrder     `json:"orders"`
	Report        fulfillment.Summary `json:"report"`
}

// Checkout turns the buyer's cart into a card redirect or, for cash, into
// orders created synchronously.
func Checkout(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Execute(r.Context(), checkoutsvc.Input{
			BuyerID:         payload.BuyerID,
			PaymentMethod:   enums.PaymentMethod(payload.PaymentMethod),
			CartItemIDs:     payload.CartItemIDs,
			ShippingAddress: payload.ShippingAddress,
			BillingAddress:  payload.BillingAddress,
			BuyerEmail:      validators.NormalizeEmail(payload.BuyerEmail),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if result.PaymentMethod == enums.PaymentMethodCard {
			responses.WriteSuccess(w, cardCheckoutResponse{
				PaymentMethod: result.PaymentMethod,
				RedirectURL:   result.RedirectURL,
				PaymentLinkID: result.PaymentLinkID,
				AmountCents:   result.AmountCents,
			})
			return
		}

		resp := cashCheckoutResponse{
			PaymentMethod: result.PaymentMethod,
			AmountCents:   result.AmountCents,
			Orders:        []checkoutOrder{},
		}
		if result.Report != nil {
			resp.Report = result.Report.Summary()
			for _, outcome := range result.Report.Orders {
				order := outcome.Order
				resp.Orders = append(resp.Orders, checkoutOrder{
					ID:          order.ID,
					SellerID:    order.SellerID,
					SellerName:  outcome.SellerName,
					OrderType:   order.OrderType,
					Status:      order.Status,
					TotalCents:  order.TotalCents,
					Currency:    order.Currency,
					Items:       len(order.Items),
					ItemsFailed: outcome.ItemsFailed,
					Notified:    outcome.Notified,
				})
			}
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}
