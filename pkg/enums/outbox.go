package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateWallet    OutboxAggregateType = "wallet"
	AggregateLoan      OutboxAggregateType = "loan"
	AggregateSession   OutboxAggregateType = "session"
	AggregateStockItem OutboxAggregateType = "stock_item"
	AggregateEmergency OutboxAggregateType = "emergency"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateWallet,
	AggregateLoan,
	AggregateSession,
	AggregateStockItem,
	AggregateEmergency,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventDepositReceived     OutboxEventType = "deposit_received"
	EventReferralBonusPaid   OutboxEventType = "referral_bonus_paid"
	EventLoanDisbursed       OutboxEventType = "loan_disbursed"
	EventLoanRepaid          OutboxEventType = "loan_repaid"
	EventLoanDueReminder     OutboxEventType = "loan_due_reminder"
	EventSessionSettled      OutboxEventType = "session_settled"
	EventStockPurchased      OutboxEventType = "stock_purchased"
	EventEmergencyDispatched OutboxEventType = "emergency_dispatched"
)

var validOutboxEventTypes = []OutboxEventType{
	EventDepositReceived,
	EventReferralBonusPaid,
	EventLoanDisbursed,
	EventLoanRepaid,
	EventLoanDueReminder,
	EventSessionSettled,
	EventStockPurchased,
	EventEmergencyDispatched,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
