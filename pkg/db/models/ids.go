package models

import "github.com/google/uuid"

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every model so sqlite and dev AutoMigrate stay in step with the
// goose migrations.
func All() []any {
	return []any{
		&User{},
		&Wallet{},
		&WalletTransaction{},
		&Loan{},
		&LoanRepayment{},
		&MedicalIssue{},
		&Session{},
		&SessionReview{},
		&StockItem{},
		&DepositReference{},
		&EmergencyRecord{},
		&Notification{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
