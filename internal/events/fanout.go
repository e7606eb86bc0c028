package events

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/finalcall/auction-api/internal/types"
)

// Broadcaster delivers a typed message to every subscriber of a topic.
type Broadcaster interface {
	Broadcast(topic, msgType string, payload interface{})
}

// NotificationStore persists a notification before it is broadcast.
type NotificationStore interface {
	CreateNotification(n *types.Notification) error
}

// Fanout routes domain events from the bus to the session registry. It
// performs no validation: the state behind each event is already committed,
// so delivery failures are logged and swallowed.
type Fanout struct {
	bus           *Bus
	registry      Broadcaster
	notifications NotificationStore
}

func NewFanout(bus *Bus, registry Broadcaster, notifications NotificationStore) *Fanout {
	return &Fanout{
		bus:           bus,
		registry:      registry,
		notifications: notifications,
	}
}

// Start consumes the bus until the context is cancelled. Run it in its own
// goroutine from the composition root.
func (f *Fanout) Start(ctx context.Context) {
	logger := log.With().Str("component", "event_fanout").Logger()
	logger.Info().Msg("starting event fan-out")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down event fan-out")
			return
		case ev := <-f.bus.Events():
			f.dispatch(ev)
		}
	}
}

func (f *Fanout) dispatch(ev Event) {
	logger := log.With().Str("component", "event_fanout").Str("event_type", ev.EventType()).Logger()

	switch e := ev.(type) {
	case AuctionUpdated:
		f.registry.Broadcast(AuctionTopic(e.Auction.ID), "AUCTION_UPDATE", e.Auction)

	case NewListingCreated:
		f.registry.Broadcast(TopicItems, "NEW_AUCTION", e.Auction)

	case NotificationCreated:
		n := e.Notification
		if err := f.notifications.CreateNotification(&n); err != nil {
			logger.Error().Err(err).Int64("user_id", n.UserID).Msg("failed to persist notification")
			return
		}
		f.registry.Broadcast(UserTopic(n.UserID), "NOTIFICATION", n)

	default:
		logger.Warn().Msg("unhandled event type")
	}
}

// Topic names shared by the fan-out and the websocket endpoints.
const TopicItems = "items"

func AuctionTopic(auctionID uint) string {
	return fmt.Sprintf("auction:%d", auctionID)
}

func UserTopic(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}
