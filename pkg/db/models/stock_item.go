package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/carehub-backend/pkg/enums"
)

// StockItem is a pharmacy or medlab catalog entry owned by a seller account.
type StockItem struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID   uuid.UUID         `gorm:"column:owner_id;type:uuid;not null;index"`
	Kind      enums.StockKind   `gorm:"column:kind;type:text;not null"`
	Name      string            `gorm:"column:name;type:text;not null"`
	Price     int64             `gorm:"column:price;not null"`
	Quantity  int               `gorm:"column:quantity;not null;default:0"`
	Status    enums.StockStatus `gorm:"column:status;type:text;not null"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *StockItem) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	if s.Status == "" {
		s.Status = enums.StockStatusFor(s.Quantity)
	}
	return nil
}
