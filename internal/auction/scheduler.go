package auction

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/finalcall/auction-api/internal/events"
	"github.com/finalcall/auction-api/internal/types"
)

// Scheduler is the periodic driver for time-based auction transitions: the
// dutch price decay and the forward deadline pass. A failure on one auction
// never stops the tick; the scheduler itself is never fatal.
type Scheduler struct {
	engine       *Engine
	tickInterval time.Duration
}

func NewScheduler(engine *Engine, tickInterval time.Duration) *Scheduler {
	if tickInterval <= 0 {
		tickInterval = time.Minute
	}
	return &Scheduler{
		engine:       engine,
		tickInterval: tickInterval,
	}
}

// Start runs the tick loop until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	logger := log.With().Str("component", "auction_scheduler").Logger()
	logger.Info().Dur("interval", s.tickInterval).Msg("starting auction scheduler")

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down auction scheduler")
			return
		case <-ticker.C:
			if err := s.engine.DecayDutchAuctions(); err != nil {
				logger.Error().Err(err).Msg("dutch price decay pass failed")
			}
			if err := s.engine.ExpireForwardAuctions(); err != nil {
				logger.Error().Err(err).Msg("forward status pass failed")
			}
		}
	}
}

// DecayDutchAuctions lowers the price of every ACTIVE dutch auction by its
// decrement. A price at or below the floor clamps to the floor and closes
// the auction unsold. Each auction mutates under its own lock so a tick
// never races a concurrent first bid.
func (e *Engine) DecayDutchAuctions() error {
	auctions, err := e.db.GetActiveAuctionsByType(types.AuctionTypeDutch)
	if err != nil {
		return fmt.Errorf("load active dutch auctions: %w", err)
	}

	logger := log.With().Str("component", "auction_scheduler").Logger()
	for i := range auctions {
		if err := e.decayAuction(auctions[i].ID); err != nil {
			logger.Error().Err(err).Uint("auction_id", auctions[i].ID).Msg("failed to decay auction")
		}
	}
	return nil
}

func (e *Engine) decayAuction(auctionID uint) error {
	mu := e.lock(auctionID)
	mu.Lock()
	defer mu.Unlock()

	// Reload under the lock: a bid may have closed the auction since listing.
	auction, err := e.db.GetAuction(auctionID)
	if err != nil {
		return fmt.Errorf("load auction: %w", err)
	}
	if auction == nil || auction.Status != types.StatusActive || auction.AuctionType != types.AuctionTypeDutch {
		return nil
	}
	if auction.PriceDecrement == nil || auction.MinimumPrice == nil {
		return fmt.Errorf("%w: dutch auction missing decrement or floor", ErrInvalidAuction)
	}

	newPrice := auction.CurrentBidPrice - *auction.PriceDecrement
	if newPrice <= *auction.MinimumPrice {
		auction.CurrentBidPrice = *auction.MinimumPrice
		auction.Status = types.StatusEnded
	} else {
		auction.CurrentBidPrice = newPrice
	}

	if err := e.db.SaveAuction(auction); err != nil {
		return fmt.Errorf("persist auction: %w", err)
	}
	e.bus.Publish(events.AuctionUpdated{Auction: *auction})

	log.Debug().
		Uint("auction_id", auction.ID).
		Float64("price", auction.CurrentBidPrice).
		Str("status", auction.Status).
		Msg("dutch price decayed")
	return nil
}

// ExpireForwardAuctions transitions every ACTIVE forward auction whose
// deadline has passed, mirroring the recomputation PlaceBid performs inline.
func (e *Engine) ExpireForwardAuctions() error {
	auctions, err := e.db.GetActiveAuctionsByType(types.AuctionTypeForward)
	if err != nil {
		return fmt.Errorf("load active forward auctions: %w", err)
	}

	logger := log.With().Str("component", "auction_scheduler").Logger()
	for i := range auctions {
		if err := e.expireAuction(auctions[i].ID); err != nil {
			logger.Error().Err(err).Uint("auction_id", auctions[i].ID).Msg("failed to expire auction")
		}
	}
	return nil
}

func (e *Engine) expireAuction(auctionID uint) error {
	mu := e.lock(auctionID)
	mu.Lock()
	defer mu.Unlock()

	auction, err := e.db.GetAuction(auctionID)
	if err != nil {
		return fmt.Errorf("load auction: %w", err)
	}
	if auction == nil {
		return nil
	}
	return e.refreshStatus(auction)
}
