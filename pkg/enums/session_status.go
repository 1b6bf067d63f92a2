package enums

import "fmt"

// SessionStatus maps to the session_status_enum enum in Postgres.
type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusInProgress SessionStatus = "in-progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusCancelled  SessionStatus = "cancelled"
)

var validSessionStatuses = []SessionStatus{
	SessionStatusPending,
	SessionStatusInProgress,
	SessionStatusCompleted,
	SessionStatusCancelled,
}

// IsValid reports whether the value matches the canonical session status enum.
func (s SessionStatus) IsValid() bool {
	for _, candidate := range validSessionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSessionStatus converts raw input into SessionStatus.
func ParseSessionStatus(value string) (SessionStatus, error) {
	for _, candidate := range validSessionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid session status %q", value)
}

// SessionPaymentMode decides when the client is charged for a session.
type SessionPaymentMode string

const (
	// PaymentModeEscrow debits the client at booking and releases on completion.
	PaymentModeEscrow SessionPaymentMode = "escrow"
	// PaymentModeOnReview transfers client funds when the practitioner reviews.
	PaymentModeOnReview SessionPaymentMode = "on_review"
)

func (m SessionPaymentMode) IsValid() bool {
	return m == PaymentModeEscrow || m == PaymentModeOnReview
}
