package auction

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/finalcall/auction-api/internal/types"
	"github.com/finalcall/auction-api/pkg/response"
)

// GinHandlers contains HTTP handlers for auction and bidding endpoints
type GinHandlers struct {
	engine *Engine
}

func NewGinHandlers(engine *Engine) *GinHandlers {
	return &GinHandlers{engine: engine}
}

// CreateAuctionHandler handles POST requests to open a new auction for an item
func (h *GinHandlers) CreateAuctionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.CreateAuctionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		auction, err := h.engine.CreateAuction(&req)
		if err != nil {
			respondError(c, err)
			return
		}
		response.Success(c, auction)
	}
}

// PlaceBidHandler handles POST requests to bid on an auction
// URL parameter: auction_id
func (h *GinHandlers) PlaceBidHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auctionID, ok := parseAuctionID(c)
		if !ok {
			return
		}

		var req types.BidRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.engine.PlaceBid(auctionID, req.BidderID, req.Amount)
		if err != nil {
			respondError(c, err)
			return
		}
		response.Success(c, result)
	}
}

// AcceptBidHandler handles POST requests from a seller closing a forward
// auction at the current highest bid
func (h *GinHandlers) AcceptBidHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auctionID, ok := parseAuctionID(c)
		if !ok {
			return
		}

		var req struct {
			SellerID int64 `json:"seller_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		auction, err := h.engine.AcceptHighestBid(auctionID, req.SellerID)
		if err != nil {
			respondError(c, err)
			return
		}
		response.Success(c, auction)
	}
}

// ListAuctionsHandler handles GET requests for the full auction list
func (h *GinHandlers) ListAuctionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auctions, err := h.engine.ListAuctions()
		if err != nil {
			respondError(c, err)
			return
		}
		response.Success(c, auctions)
	}
}

// GetAuctionHandler handles GET requests for a single auction
func (h *GinHandlers) GetAuctionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auctionID, ok := parseAuctionID(c)
		if !ok {
			return
		}

		auction, err := h.engine.GetAuction(auctionID)
		if err != nil {
			respondError(c, err)
			return
		}
		response.Success(c, auction)
	}
}

// GetAuctionByItemHandler handles GET requests resolving an auction by its item
func (h *GinHandlers) GetAuctionByItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		itemID, err := strconv.ParseInt(c.Param("item_id"), 10, 64)
		if err != nil {
			response.BadRequest(c, "Invalid item ID")
			return
		}

		auction, err := h.engine.GetAuctionByItemID(itemID)
		if err != nil {
			respondError(c, err)
			return
		}
		response.Success(c, auction)
	}
}

// GetAuctionDetailHandler handles GET requests for an auction joined with
// its catalogue item
func (h *GinHandlers) GetAuctionDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auctionID, ok := parseAuctionID(c)
		if !ok {
			return
		}

		detail, err := h.engine.GetAuctionDetail(c.Request.Context(), auctionID)
		if err != nil {
			respondError(c, err)
			return
		}
		response.Success(c, detail)
	}
}

// GetBidsHandler handles GET requests for an auction's bid ledger
func (h *GinHandlers) GetBidsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auctionID, ok := parseAuctionID(c)
		if !ok {
			return
		}

		bids, err := h.engine.GetBidsForAuction(c.Request.Context(), auctionID)
		if err != nil {
			respondError(c, err)
			return
		}
		response.Success(c, bids)
	}
}

func parseAuctionID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("auction_id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "Invalid auction ID")
		return 0, false
	}
	return uint(id), true
}

// respondError maps the engine's error taxonomy onto HTTP responses.
// A rejected bid carries its specific reason string to the client.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrAuctionNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrInvalidBid), errors.Is(err, ErrInvalidAuction):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrAuctionNotActive), errors.Is(err, ErrNoBids), errors.Is(err, ErrDuplicateItem):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrNotSeller):
		response.Forbidden(c, err.Error())
	default:
		response.InternalError(c, "An unexpected error occurred")
	}
}
