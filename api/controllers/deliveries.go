package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvest-fulfillment/api/responses"
	"github.com/angelmondragon/harvest-fulfillment/api/validators"
	"github.com/angelmondragon/harvest-fulfillment/internal/tracking"
	"github.com/angelmondragon/harvest-fulfillment/pkg/db/models"
	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/harvest-fulfillment/pkg/errors"
	"github.com/angelmondragon/harvest-fulfillment/pkg/logger"
)

// TrackingService ingests driver updates.
type TrackingService interface {
	AssignDriver(ctx context.Context, orderID, driverID uuid.UUID) (*models.Delivery, error)
	RecordFix(ctx context.Context, deliveryID uuid.UUID, input tracking.FixInput) (*models.LocationFix, error)
	History(ctx context.Context, deliveryID uuid.UUID) ([]models.LocationFix, error)
	UpdateStatus(ctx context.Context, deliveryID uuid.UUID, next enums.DeliveryStatus) (*models.Delivery, error)
}

type assignDriverRequest struct {
	DriverID uuid.UUID `json:"driver_id" validate:"required"`
}

type locationRequest struct {
	Latitude  *float64   `json:"latitude" validate:"required,latitude"`
	Longitude *float64   `json:"longitude" validate:"required,longitude"`
	Accuracy  *float64   `json:"accuracy,omitempty"`
	Speed     *float64   `json:"speed,omitempty"`
	Heading   *float64   `json:"heading,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type deliveryStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=assigned picked_up in_transit out_for_delivery delivered"`
}

type deliveryResponse struct {
	ID          uuid.UUID            `json:"id"`
	OrderID     uuid.UUID            `json:"order_id"`
	DriverID    uuid.UUID            `json:"driver_id"`
	Status      enums.DeliveryStatus `json:"status"`
	Current     *fixResponse         `json:"current_location,omitempty"`
	PickedUpAt  *time.Time           `json:"picked_up_at,omitempty"`
	DeliveredAt *time.Time           `json:"delivered_at,omitempty"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

type fixResponse struct {
	ID         *uuid.UUID `json:"id,omitempty"`
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	Accuracy   *float64   `json:"accuracy,omitempty"`
	Speed      *float64   `json:"speed,omitempty"`
	Heading    *float64   `json:"heading,omitempty"`
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
	ReceivedAt *time.Time `json:"received_at,omitempty"`
}

func newDeliveryResponse(d *models.Delivery) deliveryResponse {
	resp := deliveryResponse{
		ID:          d.ID,
		OrderID:     d.OrderID,
		DriverID:    d.DriverID,
		Status:      d.Status,
		PickedUpAt:  d.PickedUpAt,
		DeliveredAt: d.DeliveredAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if d.CurrentLat != nil && d.CurrentLng != nil {
		resp.Current = &fixResponse{
			ID:         d.CurrentFixID,
			Latitude:   *d.CurrentLat,
			Longitude:  *d.CurrentLng,
			Accuracy:   d.CurrentAccuracy,
			Speed:      d.CurrentSpeed,
			Heading:    d.CurrentHeading,
			RecordedAt: d.CurrentFixAt,
		}
	}
	return resp
}

func newFixResponse(f models.LocationFix) fixResponse {
	id, recorded, received := f.ID, f.RecordedAt, f.ReceivedAt
	return fixResponse{
		ID:         &id,
		Latitude:   f.Latitude,
		Longitude:  f.Longitude,
		Accuracy:   f.Accuracy,
		Speed:      f.Speed,
		Heading:    f.Heading,
		RecordedAt: &recorded,
		ReceivedAt: &received,
	}
}

// AssignDriver opens the delivery of an order.
func AssignDriver(svc TrackingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tracking service unavailable"))
			return
		}
		orderID, err := uuidParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload assignDriverRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		delivery, err := svc.AssignDriver(r.Context(), orderID, payload.DriverID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newDeliveryResponse(delivery))
	}
}

// RecordLocation appends one driver fix.
func RecordLocation(svc TrackingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tracking service unavailable"))
			return
		}
		deliveryID, err := uuidParam(r, "deliveryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload locationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		fix, err := svc.RecordFix(r.Context(), deliveryID, tracking.FixInput{
			Latitude:   *payload.Latitude,
			Longitude:  *payload.Longitude,
			Accuracy:   payload.Accuracy,
			Speed:      payload.Speed,
			Heading:    payload.Heading,
			RecordedAt: payload.Timestamp,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newFixResponse(*fix))
	}
}

// LocationHistory returns the fixes of a delivery ordered by device time.
func LocationHistory(svc TrackingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tracking service unavailable"))
			return
		}
		deliveryID, err := uuidParam(r, "deliveryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		fixes, err := svc.History(r.Context(), deliveryID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]fixResponse, 0, len(fixes))
		for _, fix := range fixes {
			out = append(out, newFixResponse(fix))
		}
		responses.WriteSuccess(w, map[string]any{"delivery_id": deliveryID, "fixes": out})
	}
}

// UpdateDeliveryStatus advances the driver-facing status.
func UpdateDeliveryStatus(svc TrackingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tracking service unavailable"))
			return
		}
		deliveryID, err := uuidParam(r, "deliveryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload deliveryStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		delivery, err := svc.UpdateStatus(r.Context(), deliveryID, enums.DeliveryStatus(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newDeliveryResponse(delivery))
	}
}
