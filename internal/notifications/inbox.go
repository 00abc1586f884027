package notifications

import (
	"slices"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/harvest-fulfillment/pkg/errors"
)

// Audience is the side of a trade a notification is addressed to. One user
// can sell and buy, so each audience gets its own inbox.
type Audience string

const (
	AudienceSeller Audience = "seller"
	AudienceBuyer  Audience = "buyer"
)

var audienceTypes = map[Audience][]enums.NotificationType{
	AudienceSeller: {enums.NotificationTypeOrder, enums.NotificationTypeSystem},
	AudienceBuyer:  {enums.NotificationTypeDelivery, enums.NotificationTypeSystem},
}

// Types lists the notification types delivered to the audience.
func (a Audience) Types() []enums.NotificationType {
	return slices.Clone(audienceTypes[a])
}

// Inbox addresses the notifications one user sees in one audience.
type Inbox struct {
	UserID   uuid.UUID
	Audience Audience
}

func (i Inbox) validate() error {
	if i.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}
	if _, ok := audienceTypes[i.Audience]; !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown audience").
			WithDetails(map[string]any{"audience": i.Audience})
	}
	return nil
}

func (i Inbox) filter() inboxFilter {
	return inboxFilter{UserID: i.UserID, Types: i.Audience.Types()}
}
