package stock

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/carehub-backend/pkg/db/models"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
)

type CreateItemInput struct {
	OwnerID   uuid.UUID
	OwnerRole enums.UserRole
	Name      string
	Price     int64
	Quantity  int
}

type AdjustInput struct {
	ItemID   uuid.UUID
	OwnerID  uuid.UUID
	Quantity int
}

type BuyInput struct {
	ItemID   uuid.UUID
	BuyerID  uuid.UUID
	Quantity int
}

type ItemDTO struct {
	ID        uuid.UUID         `json:"id"`
	OwnerID   uuid.UUID         `json:"ownerId"`
	Kind      enums.StockKind   `json:"kind"`
	Name      string            `json:"name"`
	Price     int64             `json:"price"`
	Quantity  int               `json:"quantity"`
	Status    enums.StockStatus `json:"status"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// PurchaseResult is returned to the buyer after a successful purchase.
type PurchaseResult struct {
	Message                string `json:"message"`
	ItemName               string `json:"itemName"`
	QuantityBought         int    `json:"quantityBought"`
	TotalAmountCharged     int64  `json:"totalAmountCharged"`
	RemainingWalletBalance int64  `json:"remainingWalletBalance"`
}

func toItemDTO(item *models.StockItem) ItemDTO {
	return ItemDTO{
		ID:        item.ID,
		OwnerID:   item.OwnerID,
		Kind:      item.Kind,
		Name:      item.Name,
		Price:     item.Price,
		Quantity:  item.Quantity,
		Status:    item.Status,
		UpdatedAt: item.UpdatedAt,
	}
}
