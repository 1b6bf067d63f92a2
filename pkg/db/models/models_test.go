package models

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"

	"github.com/angelmondragon/carehub-backend/pkg/db"
	dbtypes "github.com/angelmondragon/carehub-backend/pkg/db/types"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
)

func TestEveryModelSchemaParses(t *testing.T) {
	cache := &sync.Map{}
	for _, model := range All() {
		_, err := schema.Parse(model, cache, schema.NamingStrategy{})
		require.NoError(t, err, "%T", model)
	}
}

func TestAutoMigrateAndHooks(t *testing.T) {
	conn, err := db.OpenSQLite("file:models_" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(All()...))

	issue := uuid.New()
	session := &Session{
		UserID:          uuid.New(),
		PractitionerID:  uuid.New(),
		MedicalIssueIDs: dbtypes.UUIDArray{issue},
		Price:           700,
		Status:          enums.SessionStatusPending,
		PaymentMode:     enums.PaymentModeEscrow,
	}
	require.NoError(t, conn.Create(session).Error)
	require.NotEqual(t, uuid.Nil, session.ID)

	var loaded Session
	require.NoError(t, conn.First(&loaded, "id = ?", session.ID).Error)
	require.Equal(t, dbtypes.UUIDArray{issue}, loaded.MedicalIssueIDs)

	item := &StockItem{OwnerID: uuid.New(), Kind: enums.StockKindPharmacy, Name: "Paracetamol", Price: 50}
	require.NoError(t, conn.Create(item).Error)
	require.Equal(t, enums.StockStatusOutOfStock, item.Status)

	entry := &WalletTransaction{
		WalletID:  uuid.New(),
		UserID:    uuid.New(),
		Amount:    10,
		Direction: enums.DirectionCredit,
		Type:      enums.TransactionDeposit,
		Payload:   dbtypes.JSONMap{"reference": "ref-1"},
	}
	require.NoError(t, conn.Create(entry).Error)

	var stored WalletTransaction
	require.NoError(t, conn.First(&stored, "id = ?", entry.ID).Error)
	require.Equal(t, "ref-1", stored.Payload["reference"])
}
