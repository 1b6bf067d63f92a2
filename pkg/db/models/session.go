package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/carehub-backend/pkg/db/types"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
)

// MedicalIssue is a priced consultation topic; practitioners list the issues they treat.
type MedicalIssue struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;type:text;not null"`
	Price     int64     `gorm:"column:price;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (m *MedicalIssue) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}

// Session is a consultation booking. Settled flips once money has moved for
// the session, whichever path moved it.
type Session struct {
	ID              uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	PractitionerID  uuid.UUID                `gorm:"column:practitioner_id;type:uuid;not null;index"`
	MedicalIssueIDs dbtypes.UUIDArray        `gorm:"column:medical_issue_ids"`
	Price           int64                    `gorm:"column:price;not null"`
	Status          enums.SessionStatus      `gorm:"column:status;type:text;not null"`
	PaymentMode     enums.SessionPaymentMode `gorm:"column:payment_mode;type:text;not null"`
	Settled         bool                     `gorm:"column:settled;not null;default:false"`
	ReviewSubmitted bool                     `gorm:"column:review_submitted;not null;default:false"`
	CreatedAt       time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Session) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

type SessionReview struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SessionID      uuid.UUID `gorm:"column:session_id;type:uuid;not null;uniqueIndex:ux_session_reviews_session_id"`
	UserID         uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	PractitionerID uuid.UUID `gorm:"column:practitioner_id;type:uuid;not null"`
	Rating         int       `gorm:"column:rating;not null"`
	Comment        string    `gorm:"column:comment;type:text"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (r *SessionReview) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
