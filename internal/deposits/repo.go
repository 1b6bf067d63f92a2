package deposits

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/carehub-backend/internal/repo"
	"github.com/angelmondragon/carehub-backend/pkg/db"
	"github.com/angelmondragon/carehub-backend/pkg/db/models"
)

// ErrDuplicateReference is returned when the gateway reference was already applied.
var ErrDuplicateReference = errors.New("deposit reference already applied")

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, ref *models.DepositReference) error
	FindByReference(ctx context.Context, reference string) (*models.DepositReference, error)
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

func (r *repository) Insert(ctx context.Context, ref *models.DepositReference) error {
	if err := r.base.DB(ctx).Create(ref).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}

func (r *repository) FindByReference(ctx context.Context, reference string) (*models.DepositReference, error) {
	var ref models.DepositReference
	if err := r.base.DB(ctx).Where("reference = ?", reference).First(&ref).Error; err != nil {
		return nil, err
	}
	return &ref, nil
}
