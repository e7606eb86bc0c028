package events

import (
	"github.com/rs/zerolog/log"

	"github.com/finalcall/auction-api/internal/types"
)

// Event is a domain event emitted by the bidding engine or the scheduler.
type Event interface {
	EventType() string
}

// AuctionUpdated carries the full post-mutation auction snapshot.
type AuctionUpdated struct {
	Auction types.Auction
}

func (AuctionUpdated) EventType() string { return "AUCTION_UPDATE" }

// NewListingCreated announces a freshly created auction to the catalogue feed.
type NewListingCreated struct {
	Auction types.Auction
}

func (NewListingCreated) EventType() string { return "NEW_AUCTION" }

// NotificationCreated asks the fan-out to persist and deliver a user notification.
type NotificationCreated struct {
	Notification types.Notification
}

func (NotificationCreated) EventType() string { return "NOTIFICATION" }

// Bus is an in-process buffered event channel between the bidding engine and
// the fan-out. Publish never blocks the mutation path: if the buffer is full
// the event is dropped with a warning, since the authoritative state has
// already been persisted and delivery is best-effort.
type Bus struct {
	ch chan Event
}

func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 256
	}
	return &Bus{ch: make(chan Event, buffer)}
}

// Publish enqueues the event for the fan-out without blocking the caller.
func (b *Bus) Publish(ev Event) {
	select {
	case b.ch <- ev:
	default:
		log.Warn().
			Str("event_type", ev.EventType()).
			Msg("event bus full, dropping event")
	}
}

// Events exposes the receive side of the bus to the fan-out.
func (b *Bus) Events() <-chan Event {
	return b.ch
}
