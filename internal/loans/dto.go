package loans

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/carehub-backend/pkg/db/models"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
)

// LoanDTO is a loan as returned to the borrower.
type LoanDTO struct {
	ID                   uuid.UUID        `json:"id"`
	UserID               uuid.UUID        `json:"userId"`
	Amount               int64            `json:"amount"`
	Interest             int64            `json:"interest"`
	TotalRepayableAmount int64            `json:"totalRepayableAmount"`
	Status               enums.LoanStatus `json:"status"`
	DueDate              time.Time        `json:"dueDate"`
	PaidAt               *time.Time       `json:"paidAt,omitempty"`
	CreatedAt            time.Time        `json:"createdAt"`
}

// RepayInput identifies a repayment against one loan.
type RepayInput struct {
	UserID uuid.UUID
	LoanID uuid.UUID
	Amount int64
}

// RepayResult reports the running totals after a repayment.
type RepayResult struct {
	Message          string `json:"message"`
	TotalRepaid      int64  `json:"totalRepaid"`
	RemainingBalance int64  `json:"remainingBalance"`
}

// HistoryKind separates loan and repayment rows in the merged feed.
type HistoryKind string

const (
	HistoryLoan      HistoryKind = "loan"
	HistoryRepayment HistoryKind = "repayment"
)

// HistoryEntry is one row of the merged loan and repayment feed.
type HistoryEntry struct {
	Kind             HistoryKind      `json:"kind"`
	ID               uuid.UUID        `json:"id"`
	LoanID           uuid.UUID        `json:"loanId"`
	Amount           int64            `json:"amount"`
	Status           enums.LoanStatus `json:"status,omitempty"`
	TotalPaid        int64            `json:"totalPaid,omitempty"`
	RemainingBalance int64            `json:"remainingBalance"`
	Date             time.Time        `json:"date"`
}

// History is the borrower's loan feed in ascending date order.
type History struct {
	Entries          []HistoryEntry `json:"entries"`
	RemainingBalance int64          `json:"remainingBalance"`
	WalletBalance    int64          `json:"walletBalance"`
}

// LoanWithBalance adds repayment totals to a loan.
type LoanWithBalance struct {
	LoanDTO
	TotalRepaid      int64 `json:"totalRepaid"`
	RemainingBalance int64 `json:"remainingBalance"`
}

// Eligibility is the borrower's current borrowing headroom.
type Eligibility struct {
	UserID          uuid.UUID `json:"userId"`
	LoanEligibility int64     `json:"loanEligibility"`
	WalletBalance   int64     `json:"walletBalance"`
}

func toLoanDTO(l *models.Loan) LoanDTO {
	return LoanDTO{
		ID:                   l.ID,
		UserID:               l.UserID,
		Amount:               l.Amount,
		Interest:             l.Interest,
		TotalRepayableAmount: l.TotalRepayableAmount,
		Status:               l.Status,
		DueDate:              l.DueDate,
		PaidAt:               l.PaidAt,
		CreatedAt:            l.CreatedAt,
	}
}

func remaining(total, repaid int64) int64 {
	if repaid >= total {
		return 0
	}
	return total - repaid
}
