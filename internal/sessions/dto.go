package sessions

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/carehub-backend/internal/users"
	"github.com/angelmondragon/carehub-backend/pkg/db/models"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
)

// BookInput books a session with a chosen practitioner.
type BookInput struct {
	UserID          uuid.UUID
	PractitionerID  uuid.UUID
	MedicalIssueIDs []uuid.UUID
}

// BookAnyInput books a session with the best matching practitioner.
type BookAnyInput struct {
	UserID          uuid.UUID
	MedicalIssueIDs []uuid.UUID
}

// UpdateStatusInput requests a status transition on behalf of a participant.
type UpdateStatusInput struct {
	SessionID uuid.UUID
	ActorID   uuid.UUID
	Status    enums.SessionStatus
}

// ReviewInput is a practitioner's review that closes a session.
type ReviewInput struct {
	SessionID      uuid.UUID
	PractitionerID uuid.UUID
	Rating         int
	Comment        string
}

type SessionDTO struct {
	ID              uuid.UUID                `json:"id"`
	UserID          uuid.UUID                `json:"userId"`
	PractitionerID  uuid.UUID                `json:"practitionerId"`
	MedicalIssueIDs []uuid.UUID              `json:"medicalIssueIds"`
	Price           int64                    `json:"price"`
	Status          enums.SessionStatus      `json:"status"`
	PaymentMode     enums.SessionPaymentMode `json:"paymentMode"`
	Settled         bool                     `json:"settled"`
	ReviewSubmitted bool                     `json:"reviewSubmitted"`
	CreatedAt       time.Time                `json:"createdAt"`
	UpdatedAt       time.Time                `json:"updatedAt"`
}

type ReviewDTO struct {
	ID             uuid.UUID `json:"id"`
	SessionID      uuid.UUID `json:"sessionId"`
	PractitionerID uuid.UUID `json:"practitionerId"`
	Rating         int       `json:"rating"`
	Comment        string    `json:"comment,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// SessionWithReview pairs a session with its review, if any.
type SessionWithReview struct {
	Session SessionDTO `json:"session"`
	Review  *ReviewDTO `json:"review,omitempty"`
}

// MonthGroup collects a user's sessions for one calendar month.
type MonthGroup struct {
	Year     int          `json:"year"`
	Month    time.Month   `json:"month"`
	Sessions []SessionDTO `json:"sessions"`
}

// MatchResult lists practitioners able to treat the issues and the total cost.
type MatchResult struct {
	Practitioners []users.PractitionerDTO `json:"practitioners"`
	Cost          int64                   `json:"cost"`
	IssueIDs      []uuid.UUID             `json:"medicalIssueIds"`
}

type MedicalIssueDTO struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Price int64     `json:"price"`
}

func toSessionDTO(s *models.Session) SessionDTO {
	return SessionDTO{
		ID:              s.ID,
		UserID:          s.UserID,
		PractitionerID:  s.PractitionerID,
		MedicalIssueIDs: []uuid.UUID(s.MedicalIssueIDs),
		Price:           s.Price,
		Status:          s.Status,
		PaymentMode:     s.PaymentMode,
		Settled:         s.Settled,
		ReviewSubmitted: s.ReviewSubmitted,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func toReviewDTO(r *models.SessionReview) *ReviewDTO {
	return &ReviewDTO{
		ID:             r.ID,
		SessionID:      r.SessionID,
		PractitionerID: r.PractitionerID,
		Rating:         r.Rating,
		Comment:        r.Comment,
		CreatedAt:      r.CreatedAt,
	}
}

// groupByMonth expects sessions sorted newest first and keeps that order.
func groupByMonth(rows []models.Session) []MonthGroup {
	groups := make([]MonthGroup, 0)
	for i := range rows {
		created := rows[i].CreatedAt.UTC()
		n := len(groups)
		if n == 0 || groups[n-1].Year != created.Year() || groups[n-1].Month != created.Month() {
			groups = append(groups, MonthGroup{Year: created.Year(), Month: created.Month()})
			n++
		}
		groups[n-1].Sessions = append(groups[n-1].Sessions, toSessionDTO(&rows[i]))
	}
	return groups
}
