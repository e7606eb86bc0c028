package auction

import "errors"

var (
	ErrAuctionNotFound  = errors.New("auction not found")
	ErrAuctionNotActive = errors.New("auction is not active")
	ErrInvalidBid       = errors.New("invalid bid")
	ErrInvalidAuction   = errors.New("invalid auction parameters")
	ErrDuplicateItem    = errors.New("item already has an auction")
	ErrNotSeller        = errors.New("only the seller may accept a bid")
	ErrNoBids           = errors.New("auction has no bids")
)
