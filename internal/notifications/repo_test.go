package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/carehub-backend/pkg/db/dbtest"
	"github.com/angelmondragon/carehub-backend/pkg/db/models"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
)

func TestRepositoryCreateManySkipsDuplicates(t *testing.T) {
	client := dbtest.Open(t)
	r := NewRepository(client.DB())
	ctx := context.Background()

	eventID := uuid.New()
	client1, client2 := uuid.New(), uuid.New()
	rows := []models.Notification{
		row(eventID, client1, enums.NotificationTypeSession, "Session payment completed", "paid"),
		row(eventID, client2, enums.NotificationTypeSession, "Session payment received", "credited"),
	}
	created, err := r.CreateMany(ctx, rows)
	require.NoError(t, err)
	require.Equal(t, int64(2), created)

	replay := []models.Notification{
		row(eventID, client1, enums.NotificationTypeSession, "Session payment completed", "paid"),
		row(eventID, client2, enums.NotificationTypeSession, "Session payment received", "credited"),
	}
	created, err = r.CreateMany(ctx, replay)
	require.NoError(t, err)
	require.Equal(t, int64(0), created)

	var count int64
	require.NoError(t, client.DB().Model(&models.Notification{}).Count(&count).Error)
	require.Equal(t, int64(2), count)

	created, err = r.CreateMany(ctx, nil)
	require.NoError(t, err)
	require.Zero(t, created)
}

func TestRepositoryListPagesNewestFirst(t *testing.T) {
	client := dbtest.Open(t)
	r := NewRepository(client.DB())
	ctx := context.Background()

	userID := uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		n := row(uuid.New(), userID, enums.NotificationTypeDeposit, "Deposit received", "credited")
		n.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		_, err := r.CreateMany(ctx, []models.Notification{n})
		require.NoError(t, err)
	}
	_, err := r.CreateMany(ctx, []models.Notification{row(uuid.New(), uuid.New(), enums.NotificationTypeLoan, "Loan approved", "other user")})
	require.NoError(t, err)

	first, next, err := r.List(ctx, listNotificationsParams{UserID: userID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.NotNil(t, next)
	require.True(t, first[0].CreatedAt.After(first[1].CreatedAt))
	require.Equal(t, first[1].ID, next.ID)

	rest, tail, err := r.List(ctx, listNotificationsParams{UserID: userID, Limit: 10, Cursor: next})
	require.NoError(t, err)
	require.Nil(t, tail)
	require.Len(t, rest, 3)
	require.True(t, rest[0].CreatedAt.Before(first[1].CreatedAt))
}

func TestRepositoryMarkRead(t *testing.T) {
	client := dbtest.Open(t)
	r := NewRepository(client.DB())
	ctx := context.Background()

	userID := uuid.New()
	rows := []models.Notification{
		row(uuid.New(), userID, enums.NotificationTypeStock, "Purchase confirmed", "bought"),
		row(uuid.New(), userID, enums.NotificationTypeStock, "Purchase confirmed", "bought again"),
	}
	_, err := r.CreateMany(ctx, rows)
	require.NoError(t, err)

	var stored []models.Notification
	require.NoError(t, client.DB().Where("user_id = ?", userID).Find(&stored).Error)
	require.Len(t, stored, 2)

	now := time.Now().UTC()
	mark, err := r.MarkRead(ctx, userID, stored[0].ID, now)
	require.NoError(t, err)
	require.True(t, mark.Found)
	require.True(t, mark.Updated)

	mark, err = r.MarkRead(ctx, userID, stored[0].ID, now)
	require.NoError(t, err)
	require.True(t, mark.Found)
	require.False(t, mark.Updated)

	mark, err = r.MarkRead(ctx, uuid.New(), stored[0].ID, now)
	require.NoError(t, err)
	require.False(t, mark.Found)

	unread, _, err := r.List(ctx, listNotificationsParams{UserID: userID, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 1)
	require.Equal(t, stored[1].ID, unread[0].ID)

	count, err := r.MarkAllRead(ctx, userID, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}
