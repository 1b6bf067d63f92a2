package emergency

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/carehub-backend/internal/repo"
	"github.com/angelmondragon/carehub-backend/pkg/db/models"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.EmergencyRecord) error
	ListByFacility(ctx context.Context, facilityID uuid.UUID) ([]models.EmergencyRecord, error)
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

func (r *repository) Create(ctx context.Context, record *models.EmergencyRecord) error {
	return r.base.DB(ctx).Create(record).Error
}

// ListByFacility returns the provider's dispatches, newest first.
func (r *repository) ListByFacility(ctx context.Context, facilityID uuid.UUID) ([]models.EmergencyRecord, error) {
	var rows []models.EmergencyRecord
	err := r.base.DB(ctx).
		Where("facility_id = ?", facilityID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}
