package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/finalcall/auction-api/internal/types"
)

type recordedBroadcast struct {
	topic   string
	msgType string
	payload interface{}
}

type fakeBroadcaster struct {
	mu    sync.Mutex
	calls []recordedBroadcast
}

func (f *fakeBroadcaster) Broadcast(topic, msgType string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedBroadcast{topic: topic, msgType: msgType, payload: payload})
}

func (f *fakeBroadcaster) snapshot() []recordedBroadcast {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedBroadcast(nil), f.calls...)
}

type fakeNotificationStore struct {
	mu      sync.Mutex
	created []types.Notification
	err     error
}

func (f *fakeNotificationStore) CreateNotification(n *types.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, *n)
	return nil
}

func TestDispatchRoutesAuctionUpdates(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	fanout := NewFanout(NewBus(8), broadcaster, &fakeNotificationStore{})

	auction := types.Auction{ID: 7, CurrentBidPrice: 150}
	fanout.dispatch(AuctionUpdated{Auction: auction})

	calls := broadcaster.snapshot()
	require.Len(t, calls, 1)
	require.Equal(t, "auction:7", calls[0].topic)
	require.Equal(t, "AUCTION_UPDATE", calls[0].msgType)
	require.Equal(t, auction, calls[0].payload)
}

func TestDispatchRoutesNewListings(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	fanout := NewFanout(NewBus(8), broadcaster, &fakeNotificationStore{})

	fanout.dispatch(NewListingCreated{Auction: types.Auction{ID: 3}})

	calls := broadcaster.snapshot()
	require.Len(t, calls, 1)
	require.Equal(t, TopicItems, calls[0].topic)
	require.Equal(t, "NEW_AUCTION", calls[0].msgType)
}

func TestDispatchPersistsThenBroadcastsNotifications(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	store := &fakeNotificationStore{}
	fanout := NewFanout(NewBus(8), broadcaster, store)

	fanout.dispatch(NotificationCreated{Notification: types.Notification{
		UserID:  42,
		Type:    types.NotificationOutbid,
		Message: "You have been outbid",
	}})

	require.Len(t, store.created, 1)
	calls := broadcaster.snapshot()
	require.Len(t, calls, 1)
	require.Equal(t, "user:42", calls[0].topic)
	require.Equal(t, "NOTIFICATION", calls[0].msgType)
}

func TestDispatchDropsNotificationOnPersistFailure(t *testing.T) {
	broadcaster := &fakeBroadcaster{}
	store := &fakeNotificationStore{err: errors.New("database locked")}
	fanout := NewFanout(NewBus(8), broadcaster, store)

	fanout.dispatch(NotificationCreated{Notification: types.Notification{UserID: 42}})

	require.Empty(t, broadcaster.snapshot())
}

func TestFanoutConsumesBus(t *testing.T) {
	bus := NewBus(8)
	broadcaster := &fakeBroadcaster{}
	fanout := NewFanout(bus, broadcaster, &fakeNotificationStore{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fanout.Start(ctx)

	bus.Publish(AuctionUpdated{Auction: types.Auction{ID: 1}})
	bus.Publish(NewListingCreated{Auction: types.Auction{ID: 2}})

	require.Eventually(t, func() bool {
		return len(broadcaster.snapshot()) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestPublishNeverBlocksWhenFull(t *testing.T) {
	bus := NewBus(1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Second and third publishes hit a full buffer and are dropped.
		for i := 0; i < 3; i++ {
			bus.Publish(AuctionUpdated{Auction: types.Auction{ID: uint(i)}})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full bus")
	}
	require.Len(t, bus.ch, 1)
}
