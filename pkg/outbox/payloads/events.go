package payloads

import (
	"time"

	"github.com/angelmondragon/carehub-backend/pkg/enums"
	"github.com/google/uuid"
)

// DepositReceivedEvent is emitted once per gateway reference credited to a wallet.
type DepositReceivedEvent struct {
	UserID       uuid.UUID `json:"user_id"`
	Reference    string    `json:"reference"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balance_after"`
}

// ReferralBonusPaidEvent is emitted when a referrer is credited for a signup.
type ReferralBonusPaidEvent struct {
	ReferrerID uuid.UUID `json:"referrer_id"`
	ReferredID uuid.UUID `json:"referred_id"`
	Amount     int64     `json:"amount"`
}

// LoanDisbursedEvent is emitted when an approved loan is credited.
type LoanDisbursedEvent struct {
	LoanID               uuid.UUID `json:"loan_id"`
	UserID               uuid.UUID `json:"user_id"`
	Amount               int64     `json:"amount"`
	Interest             int64     `json:"interest"`
	TotalRepayableAmount int64     `json:"total_repayable_amount"`
	DueDate              time.Time `json:"due_date"`
}

// LoanRepaidEvent is emitted for every repayment.
type LoanRepaidEvent struct {
	LoanID           uuid.UUID        `json:"loan_id"`
	UserID           uuid.UUID        `json:"user_id"`
	Amount           int64            `json:"amount"`
	TotalPaid        int64            `json:"total_paid"`
	RemainingBalance int64            `json:"remaining_balance"`
	Status           enums.LoanStatus `json:"status"`
}

// LoanDueReminderEvent asks the notification service to remind a borrower.
type LoanDueReminderEvent struct {
	LoanID           uuid.UUID `json:"loan_id"`
	UserID           uuid.UUID `json:"user_id"`
	RemainingBalance int64     `json:"remaining_balance"`
	DueDate          time.Time `json:"due_date"`
}

// SessionSettledEvent is emitted when session money moves to its final owner.
type SessionSettledEvent struct {
	SessionID      uuid.UUID                `json:"session_id"`
	ClientID       uuid.UUID                `json:"client_id"`
	PractitionerID uuid.UUID                `json:"practitioner_id"`
	Amount         int64                    `json:"amount"`
	Status         enums.SessionStatus      `json:"status"`
	PaymentMode    enums.SessionPaymentMode `json:"payment_mode"`
	Refunded       bool                     `json:"refunded"`
}

// StockPurchasedEvent is emitted after a buyer pays for stock.
type StockPurchasedEvent struct {
	StockItemID uuid.UUID       `json:"stock_item_id"`
	OwnerID     uuid.UUID       `json:"owner_id"`
	BuyerID     uuid.UUID       `json:"buyer_id"`
	Kind        enums.StockKind `json:"kind"`
	Quantity    int             `json:"quantity"`
	TotalAmount int64           `json:"total_amount"`
}

// EmergencyDispatchedEvent is relayed to the alerting topic so the provider's
// chat channel receives the incident.
type EmergencyDispatchedEvent struct {
	RecordID         uuid.UUID `json:"record_id"`
	CallerID         uuid.UUID `json:"caller_id"`
	FacilityID       uuid.UUID `json:"facility_id"`
	NatureOfIncident string    `json:"nature_of_incident"`
	Address          string    `json:"address"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	DistanceKM       float64   `json:"distance_km"`
	ServiceAmount    int64     `json:"service_amount"`
}
