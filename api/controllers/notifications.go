package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvest-fulfillment/api/responses"
	"github.com/angelmondragon/harvest-fulfillment/api/validators"
	"github.com/angelmondragon/harvest-fulfillment/internal/notifications"
	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/harvest-fulfillment/pkg/errors"
	"github.com/angelmondragon/harvest-fulfillment/pkg/logger"
)

type notificationResponse struct {
	ID        uuid.UUID              `json:"id"`
	OrderID   *uuid.UUID             `json:"order_id,omitempty"`
	Type      enums.NotificationType `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Link      *string                `json:"link,omitempty"`
	Read      bool                   `json:"read"`
	ReadAt    *time.Time             `json:"read_at,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type notificationListResponse struct {
	Items  []notificationResponse `json:"items"`
	Cursor string                 `json:"cursor,omitempty"`
	Unread int64                  `json:"unread"`
}

// inboxFromPath reads the recipient id for audience from its route parameter.
func inboxFromPath(r *http.Request, audience notifications.Audience) (notifications.Inbox, error) {
	param := "sellerId"
	if audience == notifications.AudienceBuyer {
		param = "buyerId"
	}
	userID, err := uuidParam(r, param)
	if err != nil {
		return notifications.Inbox{}, err
	}
	return notifications.Inbox{UserID: userID, Audience: audience}, nil
}

// ListNotifications returns a page of the audience's inbox, optionally
// narrowed to one order.
func ListNotifications(svc notifications.Service, audience notifications.Audience, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}
		inbox, err := inboxFromPath(r, audience)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := validators.NewQuery(r)
		params := notifications.ListParams{
			Inbox:      inbox,
			OrderID:    query.UUID("orderId"),
			Limit:      query.Int("limit", notifications.DefaultPageSize, 1, notifications.MaxPageSize),
			Cursor:     query.Text("cursor", 256),
			UnreadOnly: query.Bool("unread"),
		}
		if err := query.Err(); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp := notificationListResponse{
			Items:  make([]notificationResponse, 0, len(result.Items)),
			Cursor: result.Cursor,
			Unread: result.Unread,
		}
		for _, n := range result.Items {
			resp.Items = append(resp.Items, notificationResponse{
				ID:        n.ID,
				OrderID:   n.OrderID,
				Type:      n.Type,
				Title:     n.Title,
				Message:   n.Message,
				Link:      n.Link,
				Read:      n.ReadAt != nil,
				ReadAt:    n.ReadAt,
				CreatedAt: n.CreatedAt,
			})
		}
		responses.WriteSuccess(w, resp)
	}
}

// MarkNotificationRead flags one notification of the inbox as read.
func MarkNotificationRead(svc notifications.Service, audience notifications.Audience, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}
		inbox, err := inboxFromPath(r, audience)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		notificationID, err := uuidParam(r, "notificationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.MarkRead(r.Context(), inbox, notificationID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"read": true})
	}
}

// MarkAllNotificationsRead flags every unread notification of the inbox.
func MarkAllNotificationsRead(svc notifications.Service, audience notifications.Audience, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}
		inbox, err := inboxFromPath(r, audience)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		count, err := svc.MarkAllRead(r.Context(), inbox)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"updated": count})
	}
}

