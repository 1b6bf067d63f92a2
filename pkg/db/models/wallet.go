package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/carehub-backend/pkg/db/types"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
)

// Wallet is the single running balance per user. Amounts are minor units.
type Wallet struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_wallets_user_id"`
	Balance         int64     `gorm:"column:balance;not null;default:0"`
	LoanEligibility int64     `gorm:"column:loan_eligibility;not null"`
	LoanBalance     int64     `gorm:"column:loan_balance;not null;default:0"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (w *Wallet) BeforeCreate(*gorm.DB) error {
	ensureID(&w.ID)
	return nil
}

// WalletTransaction is an append-only activity log entry. Rows are never updated.
type WalletTransaction struct {
	ID           uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	WalletID     uuid.UUID                  `gorm:"column:wallet_id;type:uuid;not null;index"`
	UserID       uuid.UUID                  `gorm:"column:user_id;type:uuid;not null;index:idx_wallet_transactions_user_created,priority:1"`
	Amount       int64                      `gorm:"column:amount;not null"`
	Direction    enums.TransactionDirection `gorm:"column:direction;type:text;not null"`
	Type         enums.TransactionType      `gorm:"column:type;type:text;not null"`
	Description  string                     `gorm:"column:description;type:text"`
	Payload      dbtypes.JSONMap            `gorm:"column:payload"`
	BalanceAfter int64                      `gorm:"column:balance_after;not null"`
	CreatedAt    time.Time                  `gorm:"column:created_at;autoCreateTime;index:idx_wallet_transactions_user_created,priority:2"`
}

func (t *WalletTransaction) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
