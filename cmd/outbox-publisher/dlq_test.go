package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/carehub-backend/pkg/db/dbtest"
	"github.com/angelmondragon/carehub-backend/pkg/db/models"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
	"github.com/angelmondragon/carehub-backend/pkg/outbox"
)

func TestRunDLQListAndReplay(t *testing.T) {
	client := dbtest.Open(t)
	dlq := outbox.NewDLQRepository(client.DB())
	ctx := context.Background()
	eventID := uuid.New()
	msg := "no publisher for topic"
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return dlq.InsertTx(tx, models.OutboxDLQ{
			EventID:       eventID,
			EventType:     enums.EventEmergencyDispatched,
			AggregateType: enums.AggregateEmergency,
			AggregateID:   uuid.New(),
			Payload:       []byte(`{"version":1}`),
			ErrorReason:   enums.OutboxDLQReasonNonRetryable,
			ErrorMessage:  &msg,
			FailedAt:      time.Now().UTC(),
		})
	}))

	var out bytes.Buffer
	require.NoError(t, runDLQ(ctx, &out, client, dlq, []string{"list", "non_retryable"}))
	require.Contains(t, out.String(), eventID.String())
	require.Contains(t, out.String(), msg)

	out.Reset()
	require.NoError(t, runDLQ(ctx, &out, client, dlq, []string{"replay", eventID.String()}))
	require.True(t, strings.HasPrefix(out.String(), "requeued"))

	var row models.OutboxEvent
	require.NoError(t, client.DB().First(&row, "id = ?", eventID).Error)

	require.Error(t, runDLQ(ctx, &out, client, dlq, []string{"list", "gave_up"}))
	require.Error(t, runDLQ(ctx, &out, client, dlq, []string{"replay", "nope"}))
	require.Error(t, runDLQ(ctx, &out, client, dlq, nil))
}
