package enums

import "fmt"

// NotificationType groups notifications by the ledger flow that raised them.
type NotificationType string

const (
	NotificationTypeDeposit   NotificationType = "deposit"
	NotificationTypeReferral  NotificationType = "referral"
	NotificationTypeLoan      NotificationType = "loan"
	NotificationTypeSession   NotificationType = "session"
	NotificationTypeStock     NotificationType = "stock"
	NotificationTypeEmergency NotificationType = "emergency"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeDeposit,
	NotificationTypeReferral,
	NotificationTypeLoan,
	NotificationTypeSession,
	NotificationTypeStock,
	NotificationTypeEmergency,
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
