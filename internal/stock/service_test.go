package stock

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/carehub-backend/internal/wallet"
	"github.com/angelmondragon/carehub-backend/pkg/db/dbtest"
	"github.com/angelmondragon/carehub-backend/pkg/db/models"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carehub-backend/pkg/errors"
	"github.com/angelmondragon/carehub-backend/pkg/outbox"
)

type fixture struct {
	ledger  wallet.Ledger
	repo    Repository
	service Service
	owner   uuid.UUID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.Open(t)
	ledger, err := wallet.NewLedger(wallet.LedgerParams{
		Repository:         wallet.NewRepository(client.DB()),
		DefaultEligibility: 20000,
	})
	require.NoError(t, err)
	repo := NewRepository(client.DB())
	svc, err := NewService(repo, ledger, client, outbox.NewService(outbox.NewRepository(client.DB()), nil), nil)
	require.NoError(t, err)
	return fixture{ledger: ledger, repo: repo, service: svc, owner: uuid.New()}
}

func (f fixture) item(t *testing.T, price int64, qty int) *ItemDTO {
	t.Helper()
	item, err := f.service.CreateItem(context.Background(), CreateItemInput{
		OwnerID:   f.owner,
		OwnerRole: enums.RolePharmacy,
		Name:      "Paracetamol",
		Price:     price,
		Quantity:  qty,
	})
	require.NoError(t, err)
	return item
}

func (f fixture) fund(t *testing.T, userID uuid.UUID, amount int64) {
	t.Helper()
	_, err := f.ledger.Credit(context.Background(), userID, wallet.Entry{Type: enums.TransactionDeposit, Amount: amount})
	require.NoError(t, err)
}

func (f fixture) stored(t *testing.T, id uuid.UUID) *models.StockItem {
	t.Helper()
	item, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return item
}

func TestBuyLastUnitsMarksOutOfStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()
	f.fund(t, buyer, 1000)
	item := f.item(t, 120, 3)

	res, err := f.service.BuyItem(ctx, BuyInput{ItemID: item.ID, BuyerID: buyer, Quantity: 3})
	require.NoError(t, err)
	require.Equal(t, "Purchase successful", res.Message)
	require.Equal(t, int64(360), res.TotalAmountCharged)
	require.Equal(t, int64(640), res.RemainingWalletBalance)
	require.Equal(t, "Paracetamol", res.ItemName)

	stored := f.stored(t, item.ID)
	require.Zero(t, stored.Quantity)
	require.Equal(t, enums.StockStatusOutOfStock, stored.Status)
}

func TestBuyPartialKeepsAvailable(t *testing.T) {
	f := newFixture(t)
	buyer := uuid.New()
	f.fund(t, buyer, 1000)
	item := f.item(t, 10, 5)

	_, err := f.service.BuyItem(context.Background(), BuyInput{ItemID: item.ID, BuyerID: buyer, Quantity: 2})
	require.NoError(t, err)
	stored := f.stored(t, item.ID)
	require.Equal(t, 3, stored.Quantity)
	require.Equal(t, enums.StockStatusAvailable, stored.Status)
}

func TestBuyFailuresChangeNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := uuid.New()
	item := f.item(t, 100, 2)

	_, err := f.service.BuyItem(ctx, BuyInput{ItemID: item.ID, BuyerID: buyer, Quantity: 1})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	require.Equal(t, "Wallet not found", pkgerrors.As(err).Message())

	f.fund(t, buyer, 150)
	_, err = f.service.BuyItem(ctx, BuyInput{ItemID: item.ID, BuyerID: buyer, Quantity: 2})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds))
	require.Equal(t, "Insufficient wallet balance", pkgerrors.As(err).Message())

	_, err = f.service.BuyItem(ctx, BuyInput{ItemID: item.ID, BuyerID: buyer, Quantity: 3})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))
	require.Equal(t, "Not enough stock available", pkgerrors.As(err).Message())

	_, err = f.service.BuyItem(ctx, BuyInput{ItemID: uuid.New(), BuyerID: buyer, Quantity: 1})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	require.Equal(t, "Stock item not found", pkgerrors.As(err).Message())

	w, err := f.ledger.Get(ctx, buyer)
	require.NoError(t, err)
	require.Equal(t, int64(150), w.Balance)
	require.Equal(t, 2, f.stored(t, item.ID).Quantity)
}

func TestCreateAndAdjustRequireOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.CreateItem(ctx, CreateItemInput{OwnerID: f.owner, OwnerRole: enums.RoleClient, Name: "x", Quantity: 1})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	lab, err := f.service.CreateItem(ctx, CreateItemInput{OwnerID: f.owner, OwnerRole: enums.RoleMedLab, Name: "Blood panel", Price: 900})
	require.NoError(t, err)
	require.Equal(t, enums.StockKindMedLab, lab.Kind)
	require.Equal(t, enums.StockStatusOutOfStock, lab.Status)

	_, err = f.service.AdjustQuantity(ctx, AdjustInput{ItemID: lab.ID, OwnerID: uuid.New(), Quantity: 4})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	adjusted, err := f.service.AdjustQuantity(ctx, AdjustInput{ItemID: lab.ID, OwnerID: f.owner, Quantity: 4})
	require.NoError(t, err)
	require.Equal(t, 4, adjusted.Quantity)
	require.Equal(t, enums.StockStatusAvailable, adjusted.Status)

	labs, err := f.service.ListItems(ctx, enums.StockKindMedLab)
	require.NoError(t, err)
	require.Len(t, labs, 1)
	pharmacy, err := f.service.ListItems(ctx, enums.StockKindPharmacy)
	require.NoError(t, err)
	require.Empty(t, pharmacy)
}

func TestRepositoryDecrementGuard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, 1, 1)

	require.ErrorIs(t, f.repo.Decrement(ctx, item.ID, 2), ErrNotEnoughStock)
	require.NoError(t, f.repo.Decrement(ctx, item.ID, 1))
	require.ErrorIs(t, f.repo.Decrement(ctx, item.ID, 1), ErrNotEnoughStock)
}
