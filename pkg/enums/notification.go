package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeTaskReceived       NotificationType = "task_received"
	NotificationTypeNewTask            NotificationType = "new_task"
	NotificationTypeQuoteSent          NotificationType = "quote_sent"
	NotificationTypeStatusUpdate       NotificationType = "status_update"
	NotificationTypeNewMessage         NotificationType = "new_message"
	NotificationTypeNewFile            NotificationType = "new_file"
	NotificationTypeAccountApproved    NotificationType = "account_approved"
	NotificationTypeAccountRejected    NotificationType = "account_rejected"
	NotificationTypeAccountSuspended   NotificationType = "account_suspended"
	NotificationTypeAccountReactivated NotificationType = "account_reactivated"
	NotificationTypeGuestUpgraded      NotificationType = "guest_upgraded"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeTaskReceived,
	NotificationTypeNewTask,
	NotificationTypeQuoteSent,
	NotificationTypeStatusUpdate,
	NotificationTypeNewMessage,
	NotificationTypeNewFile,
	NotificationTypeAccountApproved,
	NotificationTypeAccountRejected,
	NotificationTypeAccountSuspended,
	NotificationTypeAccountReactivated,
	NotificationTypeGuestUpgraded,
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
