package stock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/carehub-backend/internal/wallet"
	"github.com/angelmondragon/carehub-backend/pkg/db"
	"github.com/angelmondragon/carehub-backend/pkg/db/models"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carehub-backend/pkg/errors"
	"github.com/angelmondragon/carehub-backend/pkg/logger"
	"github.com/angelmondragon/carehub-backend/pkg/outbox"
	"github.com/angelmondragon/carehub-backend/pkg/outbox/payloads"
)

const (
	msgItemNotFound      = "Stock item not found"
	msgNotEnoughStock    = "Not enough stock available"
	msgWalletNotFound    = "Wallet not found"
	msgInsufficientFunds = "Insufficient wallet balance"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service covers the pharmacy and medlab catalogs.
type Service interface {
	CreateItem(ctx context.Context, input CreateItemInput) (*ItemDTO, error)
	AdjustQuantity(ctx context.Context, input AdjustInput) (*ItemDTO, error)
	ListItems(ctx context.Context, kind enums.StockKind) ([]ItemDTO, error)
	BuyItem(ctx context.Context, input BuyInput) (*PurchaseResult, error)
}

type service struct {
	repo   Repository
	ledger wallet.Ledger
	tx     txRunner
	outbox outbox.Emitter
	logg   *logger.Logger
}

func NewService(repo Repository, ledger wallet.Ledger, tx txRunner, emitter outbox.Emitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, ledger: ledger, tx: tx, outbox: emitter, logg: logg}, nil
}

func (s *service) CreateItem(ctx context.Context, input CreateItemInput) (*ItemDTO, error) {
	kind, ok := enums.StockKindForRole(input.OwnerRole)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only pharmacy and medlab accounts can list stock")
	}
	name := strings.TrimSpace(input.Name)
	switch {
	case input.OwnerID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	case name == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	case input.Price < 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	case input.Quantity < 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	item := &models.StockItem{
		OwnerID:  input.OwnerID,
		Kind:     kind,
		Name:     name,
		Price:    input.Price,
		Quantity: input.Quantity,
		Status:   enums.StockStatusFor(input.Quantity),
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock item")
	}
	dto := toItemDTO(item)
	return &dto, nil
}

func (s *service) AdjustQuantity(ctx context.Context, input AdjustInput) (*ItemDTO, error) {
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	var out models.StockItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		items := s.repo.WithTx(tx)
		item, err := s.load(ctx, items, input.ItemID)
		if err != nil {
			return err
		}
		if item.OwnerID != input.OwnerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "You do not own this stock item.")
		}
		if err := items.SetQuantity(ctx, item.ID, input.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stock quantity")
		}
		reloaded, err := s.load(ctx, items, item.ID)
		if err != nil {
			return err
		}
		out = *reloaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := toItemDTO(&out)
	return &dto, nil
}

func (s *service) ListItems(ctx context.Context, kind enums.StockKind) ([]ItemDTO, error) {
	if !kind.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid stock kind %q", kind)
	}
	rows, err := s.repo.List(ctx, kind, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock")
	}
	out := make([]ItemDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toItemDTO(&rows[i]))
	}
	return out, nil
}

// BuyItem debits the buyer and decrements stock in one transaction.
func (s *service) BuyItem(ctx context.Context, input BuyInput) (*PurchaseResult, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}

	var result PurchaseResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		items := s.repo.WithTx(tx)
		ledger := s.ledger.WithTx(tx)

		item, err := s.load(ctx, items, input.ItemID)
		if err != nil {
			return err
		}
		if item.Quantity < input.Quantity {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, msgNotEnoughStock)
		}
		total := item.Price * int64(input.Quantity)

		w, err := ledger.Lock(ctx, input.BuyerID)
		if err != nil {
			return walletError(err)
		}
		if w.Balance < total {
			return pkgerrors.New(pkgerrors.CodeInsufficientFunds, msgInsufficientFunds)
		}

		balanceAfter := w.Balance
		if total > 0 {
			entry, err := ledger.Debit(ctx, input.BuyerID, wallet.Entry{
				Type:        enums.TransactionStockPurchase,
				Amount:      total,
				Description: fmt.Sprintf("Purchased %d unit(s) of %s", input.Quantity, item.Name),
				Payload: map[string]any{
					"stockItemId": item.ID.String(),
					"kind":        string(item.Kind),
					"quantity":    input.Quantity,
				},
			})
			if err != nil {
				return walletError(err)
			}
			balanceAfter = entry.BalanceAfter
		}

		if err := items.Decrement(ctx, item.ID, input.Quantity); err != nil {
			if errors.Is(err, ErrNotEnoughStock) {
				return pkgerrors.New(pkgerrors.CodeInsufficientStock, msgNotEnoughStock)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
		}

		result = PurchaseResult{
			Message:                "Purchase successful",
			ItemName:               item.Name,
			QuantityBought:         input.Quantity,
			TotalAmountCharged:     total,
			RemainingWalletBalance: balanceAfter,
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockPurchased,
			AggregateType: enums.AggregateStockItem,
			AggregateID:   item.ID,
			Actor:         &outbox.ActorRef{UserID: input.BuyerID},
			Data: payloads.StockPurchasedEvent{
				StockItemID: item.ID,
				OwnerID:     item.OwnerID,
				BuyerID:     input.BuyerID,
				Kind:        item.Kind,
				Quantity:    input.Quantity,
				TotalAmount: total,
			},
			OccurredAt: time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *service) load(ctx context.Context, items Repository, id uuid.UUID) (*models.StockItem, error) {
	item, err := items.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, msgItemNotFound)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock item")
	}
	return item, nil
}

// walletError restates ledger failures with the catalog's wording.
func walletError(err error) error {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, msgWalletNotFound)
	case pkgerrors.CodeInsufficientFunds:
		return pkgerrors.New(pkgerrors.CodeInsufficientFunds, msgInsufficientFunds)
	}
	return err
}
