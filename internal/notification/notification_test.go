package notification

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/finalcall/auction-api/internal/database"
	"github.com/finalcall/auction-api/internal/types"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return NewService(db)
}

func TestCreateNotificationAssignsDefaults(t *testing.T) {
	service := newTestService(t)

	n := &types.Notification{
		UserID:  42,
		Type:    types.NotificationOutbid,
		Message: "You have been outbid",
	}
	require.NoError(t, service.CreateNotification(n))
	require.NotEmpty(t, n.NotificationID)
	require.False(t, n.Timestamp.IsZero())

	// Caller-supplied id and timestamp are kept.
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m := &types.Notification{
		NotificationID: "fixed-id",
		UserID:         42,
		Type:           types.NotificationAuctionWon,
		Timestamp:      ts,
	}
	require.NoError(t, service.CreateNotification(m))
	require.Equal(t, "fixed-id", m.NotificationID)
	require.Equal(t, ts, m.Timestamp)
}

func TestListForUserNewestFirst(t *testing.T) {
	service := newTestService(t)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		require.NoError(t, service.CreateNotification(&types.Notification{
			UserID:    42,
			Type:      types.NotificationOutbid,
			Message:   "outbid",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, service.CreateNotification(&types.Notification{
		UserID:  99,
		Type:    types.NotificationAuctionWon,
		Message: "someone else's",
	}))

	list, err := service.ListForUser(42)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.True(t, list[0].Timestamp.After(list[1].Timestamp))
	require.True(t, list[1].Timestamp.After(list[2].Timestamp))
}

func TestMarkRead(t *testing.T) {
	service := newTestService(t)

	n := &types.Notification{UserID: 42, Type: types.NotificationOutbid, Message: "outbid"}
	require.NoError(t, service.CreateNotification(n))

	t.Run("flips_flag", func(t *testing.T) {
		got, err := service.MarkRead(n.NotificationID, 42)
		require.NoError(t, err)
		require.True(t, got.Read)
	})

	t.Run("repeat_is_noop", func(t *testing.T) {
		got, err := service.MarkRead(n.NotificationID, 42)
		require.NoError(t, err)
		require.True(t, got.Read)
	})

	t.Run("wrong_user", func(t *testing.T) {
		_, err := service.MarkRead(n.NotificationID, 99)
		require.ErrorIs(t, err, ErrNotificationNotFound)
	})

	t.Run("unknown_id", func(t *testing.T) {
		_, err := service.MarkRead("no-such-id", 42)
		require.ErrorIs(t, err, ErrNotificationNotFound)
	})
}
