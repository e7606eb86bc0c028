package types

import (
	"time"

	"gorm.io/gorm"
)

// Auction types
const (
	AuctionTypeForward = "FORWARD"
	AuctionTypeDutch   = "DUTCH"
)

// Auction statuses. ACTIVE is the only non-terminal state.
const (
	StatusActive          = "ACTIVE"
	StatusEnded           = "ENDED"
	StatusExpired         = "EXPIRED"
	StatusAwaitingPayment = "AWAITING_PAYMENT"
)

type Auction struct {
	ID               uint           `gorm:"primarykey" json:"id"`
	CreatedAt        time.Time      `json:"-"`
	UpdatedAt        time.Time      `json:"-"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
	ItemID           int64          `gorm:"uniqueIndex" json:"item_id"`
	AuctionType      string         `json:"auction_type"` // FORWARD or DUTCH
	Status           string         `json:"status"`       // ACTIVE, ENDED, EXPIRED, AWAITING_PAYMENT
	StartingBidPrice float64        `json:"starting_bid_price"`
	CurrentBidPrice  float64        `json:"current_bid_price"`
	SellerID         int64          `json:"seller_id"`
	CurrentBidderID  *int64         `json:"current_bidder_id,omitempty"`
	StartTime        time.Time      `json:"start_time"`
	AuctionEndTime   time.Time      `json:"auction_end_time"`
	PriceDecrement   *float64       `json:"price_decrement,omitempty"` // DUTCH only
	MinimumPrice     *float64       `json:"minimum_price,omitempty"`   // DUTCH only
}

// IsTerminal reports whether the auction can no longer change price or winner.
func (a *Auction) IsTerminal() bool {
	return a.Status != StatusActive
}

type Bid struct {
	gorm.Model `json:"-"`
	BidID      string    `gorm:"uniqueIndex" json:"bid_id"`
	AuctionID  uint      `gorm:"index" json:"auction_id"`
	BidderID   int64     `json:"bidder_id"`
	Amount     float64   `json:"amount"`
	Timestamp  time.Time `json:"timestamp"`
}

// Notification categories
const (
	NotificationOutbid       = "OUTBID"
	NotificationAuctionWon   = "AUCTION_WON"
	NotificationAuctionEnded = "AUCTION_ENDED"
)

type Notification struct {
	gorm.Model     `json:"-"`
	NotificationID string    `gorm:"uniqueIndex" json:"notification_id"`
	UserID         int64     `gorm:"index" json:"user_id"`
	Message        string    `json:"message"`
	Type           string    `json:"type"` // OUTBID, AUCTION_WON, AUCTION_ENDED
	Link           string    `json:"link,omitempty"`
	Read           bool      `json:"read"`
	Timestamp      time.Time `json:"timestamp"`
}
