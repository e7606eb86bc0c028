package types

import "time"

// BidResponse is the synchronous outcome of a bid attempt
type BidResponse struct {
	Message      string  `json:"message"`
	CurrentPrice float64 `json:"current_price"`
}

// BidDTO is a bid enriched with the bidder's display name
type BidDTO struct {
	BidID      string    `json:"bid_id"`
	AuctionID  uint      `json:"auction_id"`
	Amount     float64   `json:"amount"`
	BidderID   int64     `json:"bidder_id"`
	BidderName string    `json:"bidder_name"`
	Timestamp  time.Time `json:"timestamp"`
}

// BidRequest is the body of a place-bid call
type BidRequest struct {
	BidderID int64   `json:"bidder_id"`
	Amount   float64 `json:"amount"`
}

// CreateAuctionRequest is the body of an auction creation call
type CreateAuctionRequest struct {
	ItemID           int64     `json:"item_id"`
	AuctionType      string    `json:"auction_type"`
	StartingBidPrice float64   `json:"starting_bid_price"`
	SellerID         int64     `json:"seller_id"`
	StartTime        time.Time `json:"start_time"`
	AuctionEndTime   time.Time `json:"auction_end_time"`
	PriceDecrement   *float64  `json:"price_decrement,omitempty"`
	MinimumPrice     *float64  `json:"minimum_price,omitempty"`
}

// UserDTO is the shape returned by the authentication service over RPC
type UserDTO struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// AuctionDetail joins an auction with its catalogue item. Item is nil when
// the catalogue link is down.
type AuctionDetail struct {
	Auction Auction  `json:"auction"`
	Item    *ItemDTO `json:"item,omitempty"`
}

// ItemDTO is the shape returned by the catalogue service over RPC
type ItemDTO struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	SellerID    int64   `json:"seller_id"`
	StartingBid float64 `json:"starting_bid"`
}
