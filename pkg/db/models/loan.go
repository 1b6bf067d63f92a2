package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/carehub-backend/pkg/enums"
)

// Loan is one borrowing. At most one approved loan per user, enforced by the
// partial unique index.
type Loan struct {
	ID                   uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	UserID               uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index;uniqueIndex:ux_loans_active_user,where:status = 'approved'"`
	Amount               int64            `gorm:"column:amount;not null"`
	Interest             int64            `gorm:"column:interest;not null"`
	TotalRepayableAmount int64            `gorm:"column:total_repayable_amount;not null"`
	Status               enums.LoanStatus `gorm:"column:status;type:text;not null"`
	DueDate              time.Time        `gorm:"column:due_date;not null"`
	RemindedAt           *time.Time       `gorm:"column:reminded_at"`
	PaidAt               *time.Time       `gorm:"column:paid_at"`
	CreatedAt            time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (l *Loan) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}

// LoanRepayment is appended once per repayment; TotalPaid is cumulative.
type LoanRepayment struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID           uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	LoanID           uuid.UUID `gorm:"column:loan_id;type:uuid;not null;index"`
	Amount           int64     `gorm:"column:amount;not null"`
	TotalPaid        int64     `gorm:"column:total_paid;not null"`
	RemainingBalance int64     `gorm:"column:remaining_balance;not null"`
	RepaymentDate    time.Time `gorm:"column:repayment_date;not null"`
}

func (r *LoanRepayment) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
