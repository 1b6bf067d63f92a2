package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/carehub-backend/pkg/db/types"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
)

// User mirrors the identity-service fields the ledger flows consult: role,
// referral handle, practitioner specialties and responder location.
type User struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Username      string            `gorm:"column:username;type:text;not null;uniqueIndex:ux_users_username"`
	Role          enums.UserRole    `gorm:"column:role;type:text;not null;index"`
	IsOnline      bool              `gorm:"column:is_online;not null;default:false"`
	Specialties   dbtypes.UUIDArray `gorm:"column:specialties"`
	Latitude      *float64          `gorm:"column:latitude"`
	Longitude     *float64          `gorm:"column:longitude"`
	ReferralCount int               `gorm:"column:referral_count;not null;default:0"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}
