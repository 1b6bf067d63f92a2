package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DepositReference persists every applied gateway reference; the unique index
// is what makes webhook replays no-ops across instances and restarts.
type DepositReference struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Reference     string    `gorm:"column:reference;type:text;not null;uniqueIndex:ux_deposit_references_reference"`
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	Amount        int64     `gorm:"column:amount;not null"`
	GatewayStatus string    `gorm:"column:gateway_status;type:text;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (d *DepositReference) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}
