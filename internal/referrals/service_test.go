package referrals

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/carehub-backend/internal/users"
	"github.com/angelmondragon/carehub-backend/internal/wallet"
	"github.com/angelmondragon/carehub-backend/pkg/db"
	"github.com/angelmondragon/carehub-backend/pkg/db/dbtest"
	"github.com/angelmondragon/carehub-backend/pkg/db/models"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carehub-backend/pkg/errors"
	"github.com/angelmondragon/carehub-backend/pkg/outbox"
)

type fixture struct {
	client  *db.Client
	users   *users.Repository
	ledger  wallet.Ledger
	service Service
}

func newFixture(t *testing.T, bonus int64) fixture {
	t.Helper()
	client := dbtest.Open(t)
	ledger, err := wallet.NewLedger(wallet.LedgerParams{
		Repository:         wallet.NewRepository(client.DB()),
		DefaultEligibility: 20000,
	})
	require.NoError(t, err)
	usersRepo := users.NewRepository(client.DB())
	svc, err := NewService(ServiceParams{
		Users:  usersRepo,
		Ledger: ledger,
		Tx:     client,
		Outbox: outbox.NewService(outbox.NewRepository(client.DB()), nil),
		Bonus:  bonus,
	})
	require.NoError(t, err)
	return fixture{client: client, users: usersRepo, ledger: ledger, service: svc}
}

func (f fixture) signup(t *testing.T, username, code string) (*SignupResult, uuid.UUID) {
	t.Helper()
	id := uuid.New()
	res, err := f.service.ApplySignup(context.Background(), SignupInput{
		UserID:       id,
		Username:     username,
		Role:         enums.RoleClient,
		ReferralCode: code,
	})
	require.NoError(t, err)
	return res, id
}

func (f fixture) events(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.client.DB().Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventReferralBonusPaid).Count(&n).Error)
	return n
}

func TestSignupPaysReferrer(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()
	_, referrerID := f.signup(t, "ada", "")

	res, referredID := f.signup(t, "grace", "ada")
	require.NotNil(t, res.ReferrerID)
	require.Equal(t, referrerID, *res.ReferrerID)
	require.Equal(t, int64(1000), res.BonusPaid)

	w, err := f.ledger.Get(ctx, referrerID)
	require.NoError(t, err)
	require.Equal(t, int64(1000), w.Balance)

	referred, err := f.ledger.Get(ctx, referredID)
	require.NoError(t, err)
	require.Zero(t, referred.Balance)
	require.Equal(t, res.WalletID, referred.ID)

	referrer, err := f.users.FindByID(ctx, referrerID)
	require.NoError(t, err)
	require.Equal(t, 1, referrer.ReferralCount)
	require.Equal(t, int64(1), f.events(t))
}

func TestReplayedSignupDoesNotPayTwice(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()
	_, referrerID := f.signup(t, "ada", "")
	input := SignupInput{UserID: uuid.New(), Username: "grace", Role: enums.RoleClient, ReferralCode: "ada"}

	_, err := f.service.ApplySignup(ctx, input)
	require.NoError(t, err)
	input.IsOnline = true
	res, err := f.service.ApplySignup(ctx, input)
	require.NoError(t, err)
	require.Nil(t, res.ReferrerID)

	w, err := f.ledger.Get(ctx, referrerID)
	require.NoError(t, err)
	require.Equal(t, int64(1000), w.Balance)

	mirrored, err := f.users.FindByID(ctx, input.UserID)
	require.NoError(t, err)
	require.True(t, mirrored.IsOnline)
	require.Equal(t, int64(1), f.events(t))
}

func TestUnknownOrSelfCodeIsIgnored(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()

	res, id := f.signup(t, "ada", "nobody")
	require.Nil(t, res.ReferrerID)
	w, err := f.ledger.Get(ctx, id)
	require.NoError(t, err)
	require.Zero(t, w.Balance)

	res, id = f.signup(t, "grace", "grace")
	require.Nil(t, res.ReferrerID)
	user, err := f.users.FindByID(ctx, id)
	require.NoError(t, err)
	require.Zero(t, user.ReferralCount)
	require.Zero(t, f.events(t))
}

func TestSignupValidation(t *testing.T) {
	f := newFixture(t, 1000)
	cases := []SignupInput{
		{Username: "ada", Role: enums.RoleClient},
		{UserID: uuid.New(), Username: " ", Role: enums.RoleClient},
		{UserID: uuid.New(), Username: "ada", Role: "wizard"},
	}
	for _, input := range cases {
		_, err := f.service.ApplySignup(context.Background(), input)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "input %+v: %v", input, err)
	}
}

func TestNewServiceRejectsNegativeBonus(t *testing.T) {
	client := dbtest.Open(t)
	ledger, err := wallet.NewLedger(wallet.LedgerParams{Repository: wallet.NewRepository(client.DB())})
	require.NoError(t, err)
	_, err = NewService(ServiceParams{
		Users:  users.NewRepository(client.DB()),
		Ledger: ledger,
		Tx:     client,
		Outbox: outbox.NewService(outbox.NewRepository(client.DB()), nil),
		Bonus:  -1,
	})
	require.Error(t, err)
}
