package enums

import "fmt"

// NotificationType tags in-app notifications.
type NotificationType string

const (
	NotificationTypeOrder    NotificationType = "order"
	NotificationTypeDelivery NotificationType = "delivery"
	NotificationTypeSystem   NotificationType = "system"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrder,
	NotificationTypeDelivery,
	NotificationTypeSystem,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
