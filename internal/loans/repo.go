package loans

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

// ErrActiveLoanRace is returned when the partial unique index rejects a second
// approved loan for the same user.
var ErrActiveLoanRace = errors.New("approved loan already exists")

// Repository persists loans and their repayments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, loan *models.Loan) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Loan, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Loan, error)
	MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) error
	InsertRepayment(ctx context.Context, repayment *models.LoanRepayment) error
	SumRepayments(ctx context.Context, loanID uuid.UUID) (int64, error)
	RepaidByLoan(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]int64, error)
	ListRepaymentsByUser(ctx context.Context, userID uuid.UUID) ([]models.LoanRepayment, error)
	DueSoon(ctx context.Context, before time.Time, limit int) ([]models.Loan, error)
	MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error
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

func (r *repository) Create(ctx context.Context, loan *models.Loan) error {
	if err := r.base.DB(ctx).Create(loan).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return ErrActiveLoanRace
		}
		return err
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	var loan models.Loan
	if err := r.base.DB(ctx).Where("id = ?", id).First(&loan).Error; err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *repository) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Loan, error) {
	var loan models.Loan
	err := r.base.DB(ctx).
		Where("user_id = ? AND status = ?", userID, enums.LoanStatusApproved).
		Order("created_at DESC").
		First(&loan).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Loan, error) {
	var rows []models.Loan
	err := r.base.DB(ctx).Where("user_id = ?", userID).Order("created_at ASC").Order("id ASC").Find(&rows).Error
	return rows, err
}

// MarkPaid flips an approved loan to paid. Loans in any other status are left alone.
func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.base.DB(ctx).Model(&models.Loan{}).
		Where("id = ? AND status = ?", id, enums.LoanStatusApproved).
		Updates(map[string]any{
			"status":     enums.LoanStatusPaid,
			"paid_at":    at,
			"updated_at": at,
		}).Error
}

func (r *repository) InsertRepayment(ctx context.Context, repayment *models.LoanRepayment) error {
	return r.base.DB(ctx).Create(repayment).Error
}

func (r *repository) SumRepayments(ctx context.Context, loanID uuid.UUID) (int64, error) {
	var total int64
	err := r.base.DB(ctx).Model(&models.LoanRepayment{}).
		Where("loan_id = ?", loanID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

func (r *repository) RepaidByLoan(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]int64, error) {
	type row struct {
		LoanID uuid.UUID
		Total  int64
	}
	var rows []row
	err := r.base.DB(ctx).Model(&models.LoanRepayment{}).
		Select("loan_id, COALESCE(SUM(amount), 0) AS total").
		Where("user_id = ?", userID).
		Group("loan_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]int64, len(rows))
	for _, r := range rows {
		out[r.LoanID] = r.Total
	}
	return out, nil
}

func (r *repository) ListRepaymentsByUser(ctx context.Context, userID uuid.UUID) ([]models.LoanRepayment, error) {
	var rows []models.LoanRepayment
	err := r.base.DB(ctx).Where("user_id = ?", userID).Order("repayment_date ASC").Order("id ASC").Find(&rows).Error
	return rows, err
}

// DueSoon lists approved loans due before the cutoff that have not been reminded.
func (r *repository) DueSoon(ctx context.Context, before time.Time, limit int) ([]models.Loan, error) {
	var rows []models.Loan
	err := r.base.DB(ctx).
		Where("status = ? AND reminded_at IS NULL AND due_date <= ?", enums.LoanStatusApproved, before).
		Order("due_date ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.base.DB(ctx).Model(&models.Loan{}).
		Where("id = ?", id).
		Updates(map[string]any{"reminded_at": at, "updated_at": at}).Error
}
