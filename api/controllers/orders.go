package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvest-fulfillment/api/responses"
	"github.com/angelmondragon/harvest-fulfillment/api/validators"
	"github.com/angelmondragon/harvest-fulfillment/internal/orders"
	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/harvest-fulfillment/pkg/errors"
	"github.com/angelmondragon/harvest-fulfillment/pkg/logger"
)

// OrdersService serves the order read model.
type OrdersService interface {
	Get(ctx context.Context, orderID uuid.UUID) (*orders.OrderView, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, next enums.OrderStatus) (*orders.OrderView, error)
}

type orderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=confirmed processing shipped delivered cancelled"`
}

// OrderDetail returns the order with its items, milestones and live position.
func OrderDetail(svc OrdersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := uuidParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// OrderUpdateStatus lets the seller move an order forward.
func OrderUpdateStatus(svc OrdersService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := uuidParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload orderStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.UpdateStatus(r.Context(), orderID, enums.OrderStatus(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
