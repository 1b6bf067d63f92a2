package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/carehub-backend/internal/repo"
	"github.com/angelmondragon/carehub-backend/pkg/db"
	"github.com/angelmondragon/carehub-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/carehub-backend/pkg/errors"
	"github.com/angelmondragon/carehub-backend/pkg/pagination"
)

// ErrConditionFailed is returned by the conditional update primitives when no
// row satisfied the guard.
var ErrConditionFailed = errors.New("wallet condition not met")

// Repository persists wallets and their activity log. Every balance mutation
// is a single UPDATE so concurrent callers cannot interleave a read and a write.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, wallet *models.Wallet) error
	CreateIfMissing(ctx context.Context, wallet *models.Wallet) error
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	LockByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	CreditBalance(ctx context.Context, userID uuid.UUID, amount int64) error
	DebitBalance(ctx context.Context, userID uuid.UUID, amount int64) error
	ReduceEligibility(ctx context.Context, userID uuid.UUID, amount int64) error
	SetEligibility(ctx context.Context, userID uuid.UUID, value int64) error
	AddLoanBalance(ctx context.Context, userID uuid.UUID, amount int64) error
	ReduceLoanBalance(ctx context.Context, userID uuid.UUID, amount int64) error
	InsertTransaction(ctx context.Context, entry *models.WalletTransaction) error
	ListTransactions(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.WalletTransaction, error)
}

type repository struct {
	base repo.Base
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{base: repo.NewBase(conn)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.WithTx(tx)}
}

// Create inserts a wallet and maps a duplicate user_id to Conflict. user_id is
// the only unique column besides the primary key.
func (r *repository) Create(ctx context.Context, wallet *models.Wallet) error {
	if err := r.base.DB(ctx).Create(wallet).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.New(pkgerrors.CodeConflict, "wallet already exists for this user")
		}
		return err
	}
	return nil
}

// CreateIfMissing inserts the wallet unless one exists for the user. It never
// raises a unique violation, so it is safe inside a postgres transaction.
func (r *repository) CreateIfMissing(ctx context.Context, wallet *models.Wallet) error {
	return r.base.DB(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(wallet).Error
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.base.DB(ctx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) LockByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.base.ForUpdate(ctx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) CreditBalance(ctx context.Context, userID uuid.UUID, amount int64) error {
	return conditional(r.base.DB(ctx).Model(&models.Wallet{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance + ?", amount),
			"updated_at": time.Now().UTC(),
		}))
}

func (r *repository) DebitBalance(ctx context.Context, userID uuid.UUID, amount int64) error {
	return conditional(r.base.DB(ctx).Model(&models.Wallet{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": time.Now().UTC(),
		}))
}

func (r *repository) ReduceEligibility(ctx context.Context, userID uuid.UUID, amount int64) error {
	return conditional(r.base.DB(ctx).Model(&models.Wallet{}).
		Where("user_id = ? AND loan_eligibility >= ?", userID, amount).
		Updates(map[string]any{
			"loan_eligibility": gorm.Expr("loan_eligibility - ?", amount),
			"updated_at":       time.Now().UTC(),
		}))
}

func (r *repository) SetEligibility(ctx context.Context, userID uuid.UUID, value int64) error {
	return conditional(r.base.DB(ctx).Model(&models.Wallet{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"loan_eligibility": value,
			"updated_at":       time.Now().UTC(),
		}))
}

func (r *repository) AddLoanBalance(ctx context.Context, userID uuid.UUID, amount int64) error {
	return conditional(r.base.DB(ctx).Model(&models.Wallet{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"loan_balance": gorm.Expr("loan_balance + ?", amount),
			"updated_at":   time.Now().UTC(),
		}))
}

// ReduceLoanBalance decrements loan_balance and floors it at zero.
func (r *repository) ReduceLoanBalance(ctx context.Context, userID uuid.UUID, amount int64) error {
	floor := "CASE WHEN loan_balance > ? THEN loan_balance - ? ELSE 0 END"
	return conditional(r.base.DB(ctx).Model(&models.Wallet{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"loan_balance": gorm.Expr(floor, amount, amount),
			"updated_at":   time.Now().UTC(),
		}))
}

func (r *repository) InsertTransaction(ctx context.Context, entry *models.WalletTransaction) error {
	return r.base.DB(ctx).Create(entry).Error
}

// ListTransactions returns entries newest first, continuing after cursor.
func (r *repository) ListTransactions(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.WalletTransaction, error) {
	q := r.base.DB(ctx).Where("user_id = ?", userID)
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var rows []models.WalletTransaction
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func conditional(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConditionFailed
	}
	return nil
}
