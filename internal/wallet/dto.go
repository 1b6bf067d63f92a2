package wallet

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/carehub-backend/pkg/db/models"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
)

// WalletDTO is the wallet as returned to its owner.
type WalletDTO struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"userId"`
	Balance         int64     `json:"balance"`
	LoanEligibility int64     `json:"loanEligibility"`
	LoanBalance     int64     `json:"loanBalance"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// TransactionDTO is one activity log entry.
type TransactionDTO struct {
	ID           uuid.UUID                  `json:"id"`
	Amount       int64                      `json:"amount"`
	Direction    enums.TransactionDirection `json:"direction"`
	Type         enums.TransactionType      `json:"type"`
	Description  string                     `json:"description,omitempty"`
	Payload      map[string]any             `json:"payload,omitempty"`
	BalanceAfter int64                      `json:"balanceAfter"`
	CreatedAt    time.Time                  `json:"createdAt"`
}

// TransactionList is a page of activity entries plus the next cursor.
type TransactionList struct {
	Transactions []TransactionDTO `json:"transactions"`
	NextCursor   string           `json:"nextCursor,omitempty"`
}

// TransferResultDTO summarizes a completed transfer for the caller.
type TransferResultDTO struct {
	Amount        int64     `json:"amount"`
	ToUserID      uuid.UUID `json:"toUserId"`
	BalanceAfter  int64     `json:"balanceAfter"`
	TransactionID uuid.UUID `json:"transactionId"`
}

func toWalletDTO(w *models.Wallet) WalletDTO {
	return WalletDTO{
		ID:              w.ID,
		UserID:          w.UserID,
		Balance:         w.Balance,
		LoanEligibility: w.LoanEligibility,
		LoanBalance:     w.LoanBalance,
		CreatedAt:       w.CreatedAt,
		UpdatedAt:       w.UpdatedAt,
	}
}

func toTransactionDTO(t models.WalletTransaction) TransactionDTO {
	return TransactionDTO{
		ID:           t.ID,
		Amount:       t.Amount,
		Direction:    t.Direction,
		Type:         t.Type,
		Description:  t.Description,
		Payload:      t.Payload,
		BalanceAfter: t.BalanceAfter,
		CreatedAt:    t.CreatedAt,
	}
}
