package notifications

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/carehub-backend/pkg/db/models"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
	"github.com/angelmondragon/carehub-backend/pkg/outbox/payloads"
)

const dueDateLayout = "2006-01-02"

// errUnhandled marks event types that never produce notifications.
var errUnhandled = errors.New("event type not handled")

// Build turns one decoded ledger event into the notifications it implies.
// Events that concern two parties produce one row per party.
func Build(eventType enums.OutboxEventType, eventID uuid.UUID, data json.RawMessage) ([]models.Notification, error) {
	switch eventType {
	case enums.EventDepositReceived:
		var p payloads.DepositReceivedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return []models.Notification{
			row(eventID, p.UserID, enums.NotificationTypeDeposit, "Deposit received",
				fmt.Sprintf("Your wallet was credited with %d. New balance: %d.", p.Amount, p.BalanceAfter)),
		}, nil

	case enums.EventReferralBonusPaid:
		var p payloads.ReferralBonusPaidEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return []models.Notification{
			row(eventID, p.ReferrerID, enums.NotificationTypeReferral, "Referral bonus",
				fmt.Sprintf("You earned %d for referring a new member.", p.Amount)),
		}, nil

	case enums.EventLoanDisbursed:
		var p payloads.LoanDisbursedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return []models.Notification{
			row(eventID, p.UserID, enums.NotificationTypeLoan, "Loan approved",
				fmt.Sprintf("Your loan of %d was credited. Repay %d by %s.", p.Amount, p.TotalRepayableAmount, p.DueDate.Format(dueDateLayout))),
		}, nil

	case enums.EventLoanRepaid:
		var p payloads.LoanRepaidEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		if p.Status == enums.LoanStatusPaid {
			return []models.Notification{
				row(eventID, p.UserID, enums.NotificationTypeLoan, "Loan fully repaid",
					fmt.Sprintf("Your repayment of %d cleared the loan.", p.Amount)),
			}, nil
		}
		return []models.Notification{
			row(eventID, p.UserID, enums.NotificationTypeLoan, "Loan repayment received",
				fmt.Sprintf("You repaid %d. Remaining balance: %d.", p.Amount, p.RemainingBalance)),
		}, nil

	case enums.EventLoanDueReminder:
		var p payloads.LoanDueReminderEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return []models.Notification{
			row(eventID, p.UserID, enums.NotificationTypeLoan, "Loan due soon",
				fmt.Sprintf("Your loan balance of %d is due on %s.", p.RemainingBalance, p.DueDate.Format(dueDateLayout))),
		}, nil

	case enums.EventSessionSettled:
		var p payloads.SessionSettledEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		if p.Refunded {
			return []models.Notification{
				row(eventID, p.ClientID, enums.NotificationTypeSession, "Session refunded",
					fmt.Sprintf("%d was returned to your wallet for the cancelled session.", p.Amount)),
				row(eventID, p.PractitionerID, enums.NotificationTypeSession, "Session cancelled",
					"A booked session was cancelled and the client was refunded."),
			}, nil
		}
		return []models.Notification{
			row(eventID, p.ClientID, enums.NotificationTypeSession, "Session payment completed",
				fmt.Sprintf("You paid %d for your consultation.", p.Amount)),
			row(eventID, p.PractitionerID, enums.NotificationTypeSession, "Session payment received",
				fmt.Sprintf("%d was credited to your wallet for a completed session.", p.Amount)),
		}, nil

	case enums.EventStockPurchased:
		var p payloads.StockPurchasedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return []models.Notification{
			row(eventID, p.BuyerID, enums.NotificationTypeStock, "Purchase confirmed",
				fmt.Sprintf("You bought %d unit(s) for %d.", p.Quantity, p.TotalAmount)),
			row(eventID, p.OwnerID, enums.NotificationTypeStock, "New stock sale",
				fmt.Sprintf("A buyer purchased %d unit(s) from your %s catalog.", p.Quantity, p.Kind)),
		}, nil

	case enums.EventEmergencyDispatched:
		var p payloads.EmergencyDispatchedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return []models.Notification{
			row(eventID, p.CallerID, enums.NotificationTypeEmergency, "Help is on the way",
				fmt.Sprintf("A responder %.1f km away was dispatched. %d was charged to your wallet.", p.DistanceKM, p.ServiceAmount)),
			row(eventID, p.FacilityID, enums.NotificationTypeEmergency, "New emergency assigned",
				fmt.Sprintf("%s at %s, %.1f km away.", p.NatureOfIncident, p.Address, p.DistanceKM)),
		}, nil
	}
	return nil, errUnhandled
}

func row(eventID, userID uuid.UUID, kind enums.NotificationType, title, message string) models.Notification {
	return models.Notification{
		UserID:  userID,
		EventID: eventID,
		Type:    kind,
		Title:   title,
		Message: message,
	}
}
