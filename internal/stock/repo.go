package stock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/carehub-backend/internal/repo"
	"github.com/angelmondragon/carehub-backend/pkg/db/models"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
)

// ErrNotEnoughStock is returned when a conditional decrement matched no row.
var ErrNotEnoughStock = errors.New("not enough stock")

const statusFromQuantity = "CASE WHEN quantity - ? <= 0 THEN ? ELSE ? END"

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, item *models.StockItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.StockItem, error)
	List(ctx context.Context, kind enums.StockKind, ownerID *uuid.UUID) ([]models.StockItem, error)
	Decrement(ctx context.Context, id uuid.UUID, qty int) error
	SetQuantity(ctx context.Context, id uuid.UUID, qty int) error
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

func (r *repository) Create(ctx context.Context, item *models.StockItem) error {
	return r.base.DB(ctx).Create(item).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.StockItem, error) {
	var item models.StockItem
	if err := r.base.DB(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) List(ctx context.Context, kind enums.StockKind, ownerID *uuid.UUID) ([]models.StockItem, error) {
	q := r.base.DB(ctx).Where("kind = ?", kind)
	if ownerID != nil {
		q = q.Where("owner_id = ?", *ownerID)
	}
	var rows []models.StockItem
	err := q.Order("name ASC").Find(&rows).Error
	return rows, err
}

// Decrement removes qty units only if that many remain, recomputing status in
// the same statement.
func (r *repository) Decrement(ctx context.Context, id uuid.UUID, qty int) error {
	res := r.base.DB(ctx).Model(&models.StockItem{}).
		Where("id = ? AND quantity >= ?", id, qty).
		Updates(map[string]any{
			"status":     gorm.Expr(statusFromQuantity, qty, enums.StockStatusOutOfStock, enums.StockStatusAvailable),
			"quantity":   gorm.Expr("quantity - ?", qty),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotEnoughStock
	}
	return nil
}

func (r *repository) SetQuantity(ctx context.Context, id uuid.UUID, qty int) error {
	return r.base.DB(ctx).Model(&models.StockItem{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"quantity":   qty,
			"status":     enums.StockStatusFor(qty),
			"updated_at": time.Now().UTC(),
		}).Error
}
