package emergency

import (
	"context"
	"errors"
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
	"github.com/angelmondragon/carehub-backend/pkg/maps"
	"github.com/angelmondragon/carehub-backend/pkg/outbox"
)

type fakeGeocoder struct {
	result *maps.GeocodeResult
	err    error
	query  string
}

func (f *fakeGeocoder) Geocode(_ context.Context, address string) (*maps.GeocodeResult, error) {
	f.query = address
	return f.result, f.err
}

type fixture struct {
	client  *db.Client
	users   *users.Repository
	ledger  wallet.Ledger
	geo     *fakeGeocoder
	service Service
}

// Incident in central Lagos.
var incident = maps.LatLng{Latitude: 6.4541, Longitude: 3.3947}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.Open(t)
	ledger, err := wallet.NewLedger(wallet.LedgerParams{
		Repository:         wallet.NewRepository(client.DB()),
		DefaultEligibility: 20000,
	})
	require.NoError(t, err)
	usersRepo := users.NewRepository(client.DB())
	geo := &fakeGeocoder{result: &maps.GeocodeResult{FormattedAddress: "1 Marina, Lagos", Location: incident}}
	svc, err := NewService(ServiceParams{
		Repository:  NewRepository(client.DB()),
		Geocoder:    geo,
		Providers:   usersRepo,
		Ledger:      ledger,
		Tx:          client,
		Outbox:      outbox.NewService(outbox.NewRepository(client.DB()), nil),
		ServiceCost: 500,
		Percentage:  50,
	})
	require.NoError(t, err)
	return fixture{client: client, users: usersRepo, ledger: ledger, geo: geo, service: svc}
}

func (f fixture) provider(t *testing.T, name string, lat, lng float64) uuid.UUID {
	t.Helper()
	u, err := f.users.Upsert(context.Background(), users.UpsertUserDTO{
		ID:        uuid.New(),
		Username:  name,
		Role:      enums.RoleEmergencyServices,
		Latitude:  &lat,
		Longitude: &lng,
	})
	require.NoError(t, err)
	return u.ID
}

func (f fixture) fund(t *testing.T, userID uuid.UUID, amount int64) {
	t.Helper()
	_, err := f.ledger.Credit(context.Background(), userID, wallet.Entry{Type: enums.TransactionDeposit, Amount: amount})
	require.NoError(t, err)
}

func (f fixture) balance(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	w, err := f.ledger.Ensure(context.Background(), userID)
	require.NoError(t, err)
	return w.Balance
}

func input(caller uuid.UUID) RequestInput {
	return RequestInput{
		CallerID:         caller,
		NatureOfIncident: "Road accident",
		Address:          "1 Marina",
		Ward:             "Ward A",
		LGA:              "Lagos Island",
		State:            "Lagos",
	}
}

func TestRequestPaysNearestProvider(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	near := f.provider(t, "ikoyi-ems", 6.4474, 3.4160)
	far := f.provider(t, "ikeja-ems", 6.6018, 3.3515)
	_, err := f.users.Upsert(ctx, users.UpsertUserDTO{ID: uuid.New(), Username: "unlocated", Role: enums.RoleEmergencyServices})
	require.NoError(t, err)
	caller := uuid.New()
	f.fund(t, caller, 800)

	res, err := f.service.Request(ctx, input(caller))
	require.NoError(t, err)
	require.Equal(t, "Emergency request handled successfully", res.Message)
	require.Equal(t, "1 Marina, Ward A, Lagos Island, Lagos", f.geo.query)
	require.Equal(t, near, res.Provider.ID)
	require.Greater(t, res.Provider.DistanceKM, 0.0)
	require.Less(t, res.Provider.DistanceKM, 5.0)

	require.Equal(t, int64(300), f.balance(t, caller))
	require.Equal(t, int64(500), f.balance(t, near))
	require.Zero(t, f.balance(t, far))

	records, err := f.service.ListByFacility(ctx, near)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, res.RecordID, records[0].ID)
	require.Equal(t, 50, records[0].PercentageAmount)
	require.Equal(t, int64(500), records[0].ServiceAmount)

	var events int64
	require.NoError(t, f.client.DB().Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventEmergencyDispatched).Count(&events).Error)
	require.Equal(t, int64(1), events)
}

func TestRequestInsufficientFundsMovesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	provider := f.provider(t, "ikoyi-ems", 6.4474, 3.4160)
	caller := uuid.New()
	f.fund(t, caller, 200)

	_, err := f.service.Request(ctx, input(caller))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds))
	require.Equal(t, "Insufficient funds. Required: 500, Available: 200", pkgerrors.As(err).Message())

	require.Equal(t, int64(200), f.balance(t, caller))
	require.Zero(t, f.balance(t, provider))
	records, err := f.service.ListByFacility(ctx, provider)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestRequestWithoutProviderDoesNotDebit(t *testing.T) {
	f := newFixture(t)
	caller := uuid.New()
	f.fund(t, caller, 800)

	_, err := f.service.Request(context.Background(), input(caller))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	require.Equal(t, "No emergency service provider available nearby.", pkgerrors.As(err).Message())
	require.Equal(t, int64(800), f.balance(t, caller))
}

func TestRequestGeocodeFailures(t *testing.T) {
	f := newFixture(t)
	f.provider(t, "ikoyi-ems", 6.4474, 3.4160)
	caller := uuid.New()
	f.fund(t, caller, 800)

	f.geo.err = pkgerrors.New(pkgerrors.CodeNotFound, "address could not be located")
	_, err := f.service.Request(context.Background(), input(caller))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, "Unable to find location for the given address", pkgerrors.As(err).Message())

	f.geo.err = pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("timeout"), "execute geocode request")
	_, err = f.service.Request(context.Background(), input(caller))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	require.Equal(t, int64(800), f.balance(t, caller))
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t)
	in := input(uuid.New())
	in.Ward = " "
	_, err := f.service.Request(context.Background(), in)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, map[string]string{"ward": "required"}, pkgerrors.As(err).Details())
	require.Empty(t, f.geo.query)

	_, err = f.service.Request(context.Background(), input(uuid.Nil))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestFullAddressSkipsBlankParts(t *testing.T) {
	in := RequestInput{Address: " 1 Marina ", State: "Lagos"}
	if got := in.FullAddress(); got != "1 Marina, Lagos" {
		t.Fatalf("unexpected address %q", got)
	}
}
