package auction

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/finalcall/auction-api/internal/types"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Engine) {
	t.Helper()

	engine, _ := newTestEngine(t)
	handlers := NewGinHandlers(engine)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/auctions", handlers.CreateAuctionHandler())
	router.GET("/auctions", handlers.ListAuctionsHandler())
	router.GET("/auctions/:auction_id", handlers.GetAuctionHandler())
	router.GET("/auctions/:auction_id/bids", handlers.GetBidsHandler())
	router.GET("/auctions/item/:item_id", handlers.GetAuctionByItemHandler())
	router.POST("/auctions/:auction_id/bid", handlers.PlaceBidHandler())
	router.POST("/auctions/:auction_id/accept", handlers.AcceptBidHandler())
	return router, engine
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAuctionEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/auctions", types.CreateAuctionRequest{
		ItemID:           1,
		AuctionType:      types.AuctionTypeForward,
		StartingBidPrice: 100,
		SellerID:         1,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Success bool          `json:"success"`
		Data    types.Auction `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NotZero(t, resp.Data.ID)
	require.Equal(t, types.StatusActive, resp.Data.Status)

	t.Run("duplicate_item_conflicts", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/auctions", types.CreateAuctionRequest{
			ItemID:           1,
			AuctionType:      types.AuctionTypeForward,
			StartingBidPrice: 100,
			SellerID:         1,
		})
		require.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("invalid_request", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/auctions", types.CreateAuctionRequest{
			ItemID:      2,
			AuctionType: "SEALED",
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPlaceBidEndpoint(t *testing.T) {
	router, engine := newTestRouter(t)
	auction := createForward(t, engine, 1, 100)

	t.Run("bid_too_low", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/auctions/1/bid", types.BidRequest{BidderID: 10, Amount: 90})
		require.Equal(t, http.StatusBadRequest, w.Code)

		var resp struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Contains(t, resp.Error.Message, "must exceed the current price")
	})

	t.Run("accepted", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/auctions/1/bid", types.BidRequest{BidderID: 10, Amount: 150})
		require.Equal(t, http.StatusCreated, w.Code)

		var resp struct {
			Data types.BidResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, 150.0, resp.Data.CurrentPrice)
	})

	t.Run("unknown_auction", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/auctions/999/bid", types.BidRequest{BidderID: 10, Amount: 150})
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid_id", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/auctions/abc/bid", types.BidRequest{BidderID: 10, Amount: 150})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("closed_auction_conflicts", func(t *testing.T) {
		_, err := engine.AcceptHighestBid(auction.ID, 1)
		require.NoError(t, err)

		w := doJSON(router, http.MethodPost, "/auctions/1/bid", types.BidRequest{BidderID: 11, Amount: 200})
		require.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestAcceptBidEndpoint(t *testing.T) {
	router, engine := newTestRouter(t)
	auction := createForward(t, engine, 1, 100)
	_, err := engine.PlaceBid(auction.ID, 10, 150)
	require.NoError(t, err)

	t.Run("wrong_seller_forbidden", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/auctions/1/accept", map[string]int64{"seller_id": 99})
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("seller_accepts", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/auctions/1/accept", map[string]int64{"seller_id": 1})
		require.Equal(t, http.StatusCreated, w.Code)

		var resp struct {
			Data types.Auction `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, types.StatusAwaitingPayment, resp.Data.Status)
	})
}

func TestAuctionReadEndpoints(t *testing.T) {
	router, engine := newTestRouter(t)
	createForward(t, engine, 7, 100)

	t.Run("list", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/auctions", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data []types.Auction `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 1)
	})

	t.Run("by_item", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/auctions/item/7", nil)
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("by_item_not_found", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/auctions/item/999", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bids_empty", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/auctions/1/bids", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data []types.BidDTO `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Empty(t, resp.Data)
	})
}
