package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/carehub-backend/internal/repo"
	"github.com/angelmondragon/carehub-backend/pkg/db"
	"github.com/angelmondragon/carehub-backend/pkg/db/models"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
)

// ErrStaleStatus is returned when a conditional status update matched no row.
var ErrStaleStatus = errors.New("session status changed concurrently")

// ErrReviewExists is returned when a session already carries a review.
var ErrReviewExists = errors.New("session review already exists")

// Repository persists sessions, their reviews and the priced issue catalog.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateIssue(ctx context.Context, issue *models.MedicalIssue) error
	FindIssues(ctx context.Context, ids []uuid.UUID) ([]models.MedicalIssue, error)
	ListIssues(ctx context.Context) ([]models.MedicalIssue, error)
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.SessionStatus) error
	ClaimSettlement(ctx context.Context, id uuid.UUID) (bool, error)
	MarkReviewed(ctx context.Context, id uuid.UUID) error
	InsertReview(ctx context.Context, review *models.SessionReview) error
	FindReview(ctx context.Context, sessionID uuid.UUID) (*models.SessionReview, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Session, error)
	ListPendingForPractitioner(ctx context.Context, practitionerID uuid.UUID) ([]models.Session, error)
}

type repository struct {
	base repo.Base
}

func NewRepository(conn *gorm.DB) Repository {
	return &repository{base: repo.NewBase(conn)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) CreateIssue(ctx context.Context, issue *models.MedicalIssue) error {
	return r.base.DB(ctx).Create(issue).Error
}

func (r *repository) FindIssues(ctx context.Context, ids []uuid.UUID) ([]models.MedicalIssue, error) {
	var rows []models.MedicalIssue
	if len(ids) == 0 {
		return rows, nil
	}
	err := r.base.DB(ctx).Where("id IN ?", ids).Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) ListIssues(ctx context.Context) ([]models.MedicalIssue, error) {
	var rows []models.MedicalIssue
	err := r.base.DB(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) Create(ctx context.Context, session *models.Session) error {
	return r.base.DB(ctx).Create(session).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	var session models.Session
	if err := r.base.DB(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// TransitionStatus moves the session from one status to another only if it is
// still in the expected status.
func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.SessionStatus) error {
	res := r.base.DB(ctx).Model(&models.Session{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

// ClaimSettlement flips settled to true and reports whether this caller won.
func (r *repository) ClaimSettlement(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.base.DB(ctx).Model(&models.Session{}).
		Where("id = ? AND settled = ?", id, false).
		Updates(map[string]any{"settled": true, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) MarkReviewed(ctx context.Context, id uuid.UUID) error {
	res := r.base.DB(ctx).Model(&models.Session{}).
		Where("id = ? AND review_submitted = ?", id, false).
		Updates(map[string]any{
			"review_submitted": true,
			"status":           enums.SessionStatusCompleted,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrReviewExists
	}
	return nil
}

func (r *repository) InsertReview(ctx context.Context, review *models.SessionReview) error {
	if err := r.base.DB(ctx).Create(review).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return ErrReviewExists
		}
		return err
	}
	return nil
}

func (r *repository) FindReview(ctx context.Context, sessionID uuid.UUID) (*models.SessionReview, error) {
	var review models.SessionReview
	if err := r.base.DB(ctx).Where("session_id = ?", sessionID).First(&review).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

// ListForUser returns sessions where the user is client or practitioner, newest first.
func (r *repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	var rows []models.Session
	err := r.base.DB(ctx).
		Where("user_id = ? OR practitioner_id = ?", userID, userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListPendingForPractitioner(ctx context.Context, practitionerID uuid.UUID) ([]models.Session, error) {
	var rows []models.Session
	err := r.base.DB(ctx).
		Where("practitioner_id = ? AND status = ?", practitionerID, enums.SessionStatusPending).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
