package auction

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/finalcall/auction-api/internal/events"
	"github.com/finalcall/auction-api/internal/types"
)

// UserLookup resolves a user through the inter-service RPC channel. It is
// optional: when the link to the authentication service is down, bid history
// is served with the bidder name degraded rather than failing the request.
type UserLookup interface {
	GetUserByID(ctx context.Context, userID int64) (*types.UserDTO, error)
}

// ItemLookup resolves a catalogue item over the same channel, with the same
// degradation contract as UserLookup.
type ItemLookup interface {
	GetItemByID(ctx context.Context, itemID int64) (*types.ItemDTO, error)
}

// Engine is the single authority over auction state. Every mutation of an
// auction, whether from a bid or a scheduler tick, runs under that auction's
// lock; unrelated auctions never contend.
type Engine struct {
	db    *Database
	bus   *events.Bus
	users UserLookup
	items ItemLookup
	locks sync.Map // auction ID -> *sync.Mutex
}

func NewEngine(db *Database, bus *events.Bus, users UserLookup, items ItemLookup) *Engine {
	return &Engine{
		db:    db,
		bus:   bus,
		users: users,
		items: items,
	}
}

func (e *Engine) lock(auctionID uint) *sync.Mutex {
	mu, _ := e.locks.LoadOrStore(auctionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// CreateAuction validates the request and persists a new ACTIVE auction.
// Dutch auctions require a positive decrement and a floor below the starting
// price; forward auctions must not carry either.
func (e *Engine) CreateAuction(req *types.CreateAuctionRequest) (*types.Auction, error) {
	if err := validateCreateRequest(req); err != nil {
		return nil, err
	}

	existing, err := e.db.GetAuctionByItemID(req.ItemID)
	if err != nil {
		return nil, fmt.Errorf("check existing auction for item %d: %w", req.ItemID, err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: item %d", ErrDuplicateItem, req.ItemID)
	}

	auction := &types.Auction{
		ItemID:           req.ItemID,
		AuctionType:      req.AuctionType,
		Status:           types.StatusActive,
		StartingBidPrice: req.StartingBidPrice,
		CurrentBidPrice:  req.StartingBidPrice,
		SellerID:         req.SellerID,
		StartTime:        req.StartTime,
		AuctionEndTime:   req.AuctionEndTime,
		PriceDecrement:   req.PriceDecrement,
		MinimumPrice:     req.MinimumPrice,
	}
	if auction.StartTime.IsZero() {
		auction.StartTime = time.Now().UTC()
	}

	if err := e.db.CreateAuction(auction); err != nil {
		return nil, fmt.Errorf("persist auction: %w", err)
	}

	e.bus.Publish(events.NewListingCreated{Auction: *auction})
	return auction, nil
}

func validateCreateRequest(req *types.CreateAuctionRequest) error {
	if req.StartingBidPrice <= 0 {
		return fmt.Errorf("%w: starting bid price must be positive", ErrInvalidAuction)
	}

	switch req.AuctionType {
	case types.AuctionTypeForward:
		if req.PriceDecrement != nil || req.MinimumPrice != nil {
			return fmt.Errorf("%w: forward auctions must not carry dutch pricing fields", ErrInvalidAuction)
		}
	case types.AuctionTypeDutch:
		if req.PriceDecrement == nil || *req.PriceDecrement <= 0 {
			return fmt.Errorf("%w: dutch auctions require a positive price decrement", ErrInvalidAuction)
		}
		if req.MinimumPrice == nil || *req.MinimumPrice <= 0 {
			return fmt.Errorf("%w: dutch auctions require a positive minimum price", ErrInvalidAuction)
		}
		if *req.MinimumPrice >= req.StartingBidPrice {
			return fmt.Errorf("%w: minimum price must be below the starting price", ErrInvalidAuction)
		}
	default:
		return fmt.Errorf("%w: unsupported auction type %q", ErrInvalidAuction, req.AuctionType)
	}

	return nil
}

// PlaceBid validates and applies one bid. The load, status recomputation,
// pricing rule and persistence all run under the auction's lock, so two
// concurrent bids on the same auction serialize and the loser validates
// against the committed post-bid state.
func (e *Engine) PlaceBid(auctionID uint, bidderID int64, amount float64) (*types.BidResponse, error) {
	mu := e.lock(auctionID)
	mu.Lock()
	defer mu.Unlock()

	auction, err := e.db.GetAuction(auctionID)
	if err != nil {
		return nil, fmt.Errorf("load auction %d: %w", auctionID, err)
	}
	if auction == nil {
		return nil, fmt.Errorf("%w: id %d", ErrAuctionNotFound, auctionID)
	}

	if err := e.refreshStatus(auction); err != nil {
		return nil, err
	}
	if auction.Status != types.StatusActive {
		return nil, fmt.Errorf("%w: auction %d is %s", ErrAuctionNotActive, auction.ID, auction.Status)
	}

	switch auction.AuctionType {
	case types.AuctionTypeForward:
		return e.placeForwardBid(auction, bidderID, amount)
	case types.AuctionTypeDutch:
		return e.placeDutchBid(auction, bidderID)
	default:
		return nil, fmt.Errorf("%w: unsupported auction type %q", ErrInvalidAuction, auction.AuctionType)
	}
}

// refreshStatus recomputes a forward auction's status from wall-clock time.
// A past-deadline auction transitions out of ACTIVE as a side effect: to
// AWAITING_PAYMENT when it attracted bids, to EXPIRED when it did not.
func (e *Engine) refreshStatus(auction *types.Auction) error {
	if auction.AuctionType != types.AuctionTypeForward || auction.Status != types.StatusActive {
		return nil
	}
	if auction.AuctionEndTime.After(time.Now()) {
		return nil
	}

	hasBids, err := e.db.HasBids(auction.ID)
	if err != nil {
		return fmt.Errorf("check bids for auction %d: %w", auction.ID, err)
	}
	if hasBids {
		auction.Status = types.StatusAwaitingPayment
	} else {
		auction.Status = types.StatusExpired
	}

	if err := e.db.SaveAuction(auction); err != nil {
		return fmt.Errorf("persist auction %d status: %w", auction.ID, err)
	}
	e.bus.Publish(events.AuctionUpdated{Auction: *auction})
	return nil
}

func (e *Engine) placeForwardBid(auction *types.Auction, bidderID int64, amount float64) (*types.BidResponse, error) {
	if amount <= auction.CurrentBidPrice {
		return nil, fmt.Errorf("%w: bid must exceed the current price of %.2f", ErrInvalidBid, auction.CurrentBidPrice)
	}

	outbid := auction.CurrentBidderID
	auction.CurrentBidPrice = amount
	auction.CurrentBidderID = &bidderID

	bid := &types.Bid{
		BidID:     uuid.New().String(),
		AuctionID: auction.ID,
		BidderID:  bidderID,
		Amount:    amount,
		Timestamp: time.Now().UTC(),
	}
	if err := e.db.SaveAuctionWithBid(auction, bid); err != nil {
		return nil, fmt.Errorf("persist bid on auction %d: %w", auction.ID, err)
	}

	e.bus.Publish(events.AuctionUpdated{Auction: *auction})
	if outbid != nil && *outbid != bidderID {
		e.bus.Publish(events.NotificationCreated{Notification: types.Notification{
			UserID:    *outbid,
			Type:      types.NotificationOutbid,
			Message:   fmt.Sprintf("You have been outbid on auction %d. The price is now %.2f.", auction.ID, auction.CurrentBidPrice),
			Link:      fmt.Sprintf("/auctions/%d", auction.ID),
			Timestamp: time.Now().UTC(),
		}})
	}

	log.Info().
		Uint("auction_id", auction.ID).
		Int64("bidder_id", bidderID).
		Float64("amount", amount).
		Msg("forward bid accepted")

	return &types.BidResponse{
		Message:      "Bid placed successfully.",
		CurrentPrice: auction.CurrentBidPrice,
	}, nil
}

// placeDutchBid applies the first-bid-wins rule: the bid amount is ignored
// and the sale closes immediately at the auction's current displayed price.
func (e *Engine) placeDutchBid(auction *types.Auction, bidderID int64) (*types.BidResponse, error) {
	auction.Status = types.StatusEnded
	auction.CurrentBidderID = &bidderID

	bid := &types.Bid{
		BidID:     uuid.New().String(),
		AuctionID: auction.ID,
		BidderID:  bidderID,
		Amount:    auction.CurrentBidPrice,
		Timestamp: time.Now().UTC(),
	}
	if err := e.db.SaveAuctionWithBid(auction, bid); err != nil {
		return nil, fmt.Errorf("persist bid on auction %d: %w", auction.ID, err)
	}

	e.bus.Publish(events.AuctionUpdated{Auction: *auction})
	e.bus.Publish(events.NotificationCreated{Notification: types.Notification{
		UserID:    bidderID,
		Type:      types.NotificationAuctionWon,
		Message:   fmt.Sprintf("You won auction %d at %.2f.", auction.ID, auction.CurrentBidPrice),
		Link:      fmt.Sprintf("/auctions/%d", auction.ID),
		Timestamp: time.Now().UTC(),
	}})

	log.Info().
		Uint("auction_id", auction.ID).
		Int64("bidder_id", bidderID).
		Float64("price", auction.CurrentBidPrice).
		Msg("dutch auction won")

	return &types.BidResponse{
		Message:      fmt.Sprintf("Auction won at price: %.2f", auction.CurrentBidPrice),
		CurrentPrice: auction.CurrentBidPrice,
	}, nil
}

// AcceptHighestBid closes a forward auction early on the seller's authority.
// The current highest bidder wins and the auction moves to AWAITING_PAYMENT.
func (e *Engine) AcceptHighestBid(auctionID uint, sellerID int64) (*types.Auction, error) {
	mu := e.lock(auctionID)
	mu.Lock()
	defer mu.Unlock()

	auction, err := e.db.GetAuction(auctionID)
	if err != nil {
		return nil, fmt.Errorf("load auction %d: %w", auctionID, err)
	}
	if auction == nil {
		return nil, fmt.Errorf("%w: id %d", ErrAuctionNotFound, auctionID)
	}
	if auction.SellerID != sellerID {
		return nil, fmt.Errorf("%w: auction %d", ErrNotSeller, auctionID)
	}
	if auction.AuctionType != types.AuctionTypeForward {
		return nil, fmt.Errorf("%w: only forward auctions support accepting a bid", ErrInvalidAuction)
	}
	if auction.Status != types.StatusActive {
		return nil, fmt.Errorf("%w: auction %d is %s", ErrAuctionNotActive, auction.ID, auction.Status)
	}
	if auction.CurrentBidderID == nil {
		return nil, fmt.Errorf("%w: auction %d", ErrNoBids, auctionID)
	}

	auction.Status = types.StatusAwaitingPayment
	if err := e.db.SaveAuction(auction); err != nil {
		return nil, fmt.Errorf("persist auction %d: %w", auction.ID, err)
	}

	e.bus.Publish(events.AuctionUpdated{Auction: *auction})
	e.bus.Publish(events.NotificationCreated{Notification: types.Notification{
		UserID:    *auction.CurrentBidderID,
		Type:      types.NotificationAuctionWon,
		Message:   fmt.Sprintf("The seller accepted your bid of %.2f on auction %d.", auction.CurrentBidPrice, auction.ID),
		Link:      fmt.Sprintf("/auctions/%d", auction.ID),
		Timestamp: time.Now().UTC(),
	}})

	return auction, nil
}

// GetAuction returns the auction or ErrAuctionNotFound.
func (e *Engine) GetAuction(auctionID uint) (*types.Auction, error) {
	auction, err := e.db.GetAuction(auctionID)
	if err != nil {
		return nil, err
	}
	if auction == nil {
		return nil, fmt.Errorf("%w: id %d", ErrAuctionNotFound, auctionID)
	}
	return auction, nil
}

// GetAuctionByItemID returns the auction for an item or ErrAuctionNotFound.
func (e *Engine) GetAuctionByItemID(itemID int64) (*types.Auction, error) {
	auction, err := e.db.GetAuctionByItemID(itemID)
	if err != nil {
		return nil, err
	}
	if auction == nil {
		return nil, fmt.Errorf("%w: item %d", ErrAuctionNotFound, itemID)
	}
	return auction, nil
}

// ListAuctions returns every auction, newest status included.
func (e *Engine) ListAuctions() ([]types.Auction, error) {
	return e.db.ListAuctions()
}

// GetAuctionDetail returns the auction joined with its catalogue item. The
// item comes over the catalogue link and degrades to nil when that link is
// down; the auction state itself is always served.
func (e *Engine) GetAuctionDetail(ctx context.Context, auctionID uint) (*types.AuctionDetail, error) {
	auction, err := e.GetAuction(auctionID)
	if err != nil {
		return nil, err
	}

	detail := &types.AuctionDetail{Auction: *auction}
	if e.items != nil {
		if item, err := e.items.GetItemByID(ctx, auction.ItemID); err == nil {
			detail.Item = item
		} else {
			log.Debug().Err(err).Int64("item_id", auction.ItemID).Msg("catalogue lookup unavailable")
		}
	}
	return detail, nil
}

// GetBidsForAuction returns the bid ledger newest-first, with bidder names
// resolved through the authentication service when the link is up. A failed
// or unavailable lookup degrades the name to "Unknown" rather than failing.
func (e *Engine) GetBidsForAuction(ctx context.Context, auctionID uint) ([]types.BidDTO, error) {
	auction, err := e.db.GetAuction(auctionID)
	if err != nil {
		return nil, err
	}
	if auction == nil {
		return nil, fmt.Errorf("%w: id %d", ErrAuctionNotFound, auctionID)
	}

	bids, err := e.db.GetBidsForAuction(auctionID)
	if err != nil {
		return nil, fmt.Errorf("load bids for auction %d: %w", auctionID, err)
	}

	dtos := make([]types.BidDTO, 0, len(bids))
	for _, bid := range bids {
		dto := types.BidDTO{
			BidID:      bid.BidID,
			AuctionID:  bid.AuctionID,
			Amount:     bid.Amount,
			BidderID:   bid.BidderID,
			BidderName: "Unknown",
			Timestamp:  bid.Timestamp,
		}
		if e.users != nil {
			if user, err := e.users.GetUserByID(ctx, bid.BidderID); err == nil && user != nil {
				dto.BidderName = user.Username
			}
		}
		dtos = append(dtos, dto)
	}
	return dtos, nil
}
