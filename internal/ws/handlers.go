package ws

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/finalcall/auction-api/internal/events"
	"github.com/finalcall/auction-api/internal/types"
)

// InternalTokenHeader carries the shared secret for service-to-service
// connections, checked before the upgrade completes.
const InternalTokenHeader = "X-Internal-Token"

// AuctionSource provides the snapshot pushed to a subscriber right after it
// joins an auction topic.
type AuctionSource interface {
	GetAuction(auctionID uint) (*types.Auction, error)
}

// GinHandlers contains the websocket endpoints: three public subscriber
// feeds and the shared-secret internal RPC channel.
type GinHandlers struct {
	registry      *Registry
	auctions      AuctionSource
	rpcServer     *RPCServer
	internalToken string
	upgrader      websocket.Upgrader
}

func NewGinHandlers(registry *Registry, auctions AuctionSource, rpcServer *RPCServer, internalToken string) *GinHandlers {
	return &GinHandlers{
		registry:      registry,
		auctions:      auctions,
		rpcServer:     rpcServer,
		internalToken: internalToken,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser subscribers connect from the frontend origin; access
			// control happens at the HTTP layer, not the upgrade.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// AuctionFeedHandler upgrades GET /ws/auctions/:auction_id and streams every
// state change of that auction, starting with the current snapshot.
func (h *GinHandlers) AuctionFeedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		auctionID, err := strconv.ParseUint(c.Param("auction_id"), 10, 32)
		if err != nil {
			c.String(http.StatusBadRequest, "invalid auction ID")
			return
		}

		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		session := NewSession(conn, events.AuctionTopic(uint(auctionID)))
		go session.WritePump()
		h.registry.Subscribe(session)

		// Push the snapshot so the client need not wait for the next change.
		if auction, err := h.auctions.GetAuction(uint(auctionID)); err == nil && auction != nil {
			if err := h.registry.SendInitialState(session, "AUCTION_UPDATE", auction); err != nil {
				log.Warn().Err(err).Uint64("auction_id", auctionID).Msg("failed to push initial auction state")
			}
		}

		h.readUntilClosed(session)
	}
}

// NotificationFeedHandler upgrades GET /ws/notifications/:user_id and streams
// notifications addressed to that user.
func (h *GinHandlers) NotificationFeedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
		if err != nil {
			c.String(http.StatusBadRequest, "invalid user ID")
			return
		}

		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		session := NewSession(conn, events.UserTopic(userID))
		go session.WritePump()
		h.registry.Subscribe(session)
		h.readUntilClosed(session)
	}
}

// ItemFeedHandler upgrades GET /ws/items, the shared catalogue-wide feed for
// new listing broadcasts.
func (h *GinHandlers) ItemFeedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		session := NewSession(conn, events.TopicItems)
		go session.WritePump()
		h.registry.Subscribe(session)
		h.readUntilClosed(session)
	}
}

// readUntilClosed discards inbound frames until the peer disconnects, then
// removes the session. Subscriber feeds are one-way.
func (h *GinHandlers) readUntilClosed(session *Session) {
	defer func() {
		h.registry.Unsubscribe(session)
		session.Close()
	}()
	for {
		if _, _, err := session.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// InternalHandler upgrades GET /ws/internal for peer services. The shared
// secret is validated before the upgrade; a missing or mismatched token
// refuses the connection without any message exchange.
func (h *GinHandlers) InternalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader(InternalTokenHeader) != h.internalToken {
			log.Warn().Str("remote", c.ClientIP()).Msg("internal websocket upgrade refused: bad token")
			c.String(http.StatusUnauthorized, "invalid internal token")
			return
		}

		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		logger := log.With().Str("component", "internal_ws").Str("remote", c.ClientIP()).Logger()
		logger.Info().Msg("peer service connected")

		var writeMu sync.Mutex
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				logger.Info().Msg("peer service disconnected")
				return
			}

			var req types.Envelope
			if err := json.Unmarshal(msg, &req); err != nil {
				logger.Warn().Err(err).Msg("malformed request frame, dropping")
				continue
			}

			// Serve each request in its own goroutine so one slow handler
			// does not stall the channel.
			go func(req types.Envelope) {
				resp := h.rpcServer.Handle(req)
				frame, err := json.Marshal(resp)
				if err != nil {
					logger.Error().Err(err).Msg("failed to marshal response frame")
					return
				}
				writeMu.Lock()
				defer writeMu.Unlock()
				if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
					logger.Warn().Err(err).Msg("failed to write response frame")
				}
			}(req)
		}
	}
}
