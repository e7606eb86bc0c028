package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/finalcall/auction-api/internal/auction"
	"github.com/finalcall/auction-api/internal/auth"
	"github.com/finalcall/auction-api/internal/clients"
	"github.com/finalcall/auction-api/internal/config"
	"github.com/finalcall/auction-api/internal/database"
	"github.com/finalcall/auction-api/internal/events"
	"github.com/finalcall/auction-api/internal/notification"
	"github.com/finalcall/auction-api/internal/rpc"
	"github.com/finalcall/auction-api/internal/ws"
	"github.com/finalcall/auction-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the auction coordination server with graceful
// shutdown support: the HTTP/websocket surface, the bidding engine, the
// price-decay scheduler, the event fan-out and the peer-service links.
func main() {
	cfg := config.Load()

	db, err := database.NewDatabase(cfg.DBPath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Event pipeline: engine -> bus -> fan-out -> session registry
	bus := events.NewBus(cfg.EventBuffer)
	registry := ws.NewRegistry()

	// Peer-service links
	transport := rpc.NewTransport(cfg.RPCTimeout)
	defer transport.Close()
	userClient := clients.NewUserClient(transport)
	itemClient := clients.NewItemClient(transport)

	supervisor := rpc.NewSupervisor(transport, []rpc.Peer{
		{Name: clients.ServiceAuth, URL: cfg.AuthWSURL, Token: cfg.InternalWSToken},
		{Name: clients.ServiceCatalogue, URL: cfg.CatalogueWSURL, Token: cfg.InternalWSToken},
	}, cfg.ReconnectInterval)
	go supervisor.Start(ctx)

	// Domain services
	engine := auction.NewEngine(auction.NewDatabase(db), bus, userClient, itemClient)
	notificationService := notification.NewService(db)

	fanout := events.NewFanout(bus, registry, notificationService)
	go fanout.Start(ctx)

	scheduler := auction.NewScheduler(engine, cfg.DecayInterval)
	go scheduler.Start(ctx)

	// Inbound RPC channel for sibling services
	rpcServer := ws.NewRPCServer()
	registerRPCHandlers(rpcServer, engine)

	// HTTP surface
	authService := auth.NewService(cfg.JWTSecret)
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	router := gin.Default()
	router.Use(middleware.RateLimit())
	setupRoutes(
		router,
		cfg,
		auth.NewGinHandlers(authService),
		auction.NewGinHandlers(engine),
		notification.NewGinHandlers(notificationService),
		ws.NewGinHandlers(registry, engine, rpcServer, cfg.InternalWSToken),
	)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")
	cancel()

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// registerRPCHandlers exposes auction lookups to sibling services over the
// internal websocket channel.
func registerRPCHandlers(rpcServer *ws.RPCServer, engine *auction.Engine) {
	rpcServer.Register("auction.getById", func(data json.RawMessage) (interface{}, error) {
		var req struct {
			AuctionID uint `json:"auctionId"`
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, err
		}
		return engine.GetAuction(req.AuctionID)
	})

	rpcServer.Register("auction.getByItemId", func(data json.RawMessage) (interface{}, error) {
		var req struct {
			ItemID int64 `json:"itemId"`
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, err
		}
		return engine.GetAuctionByItemID(req.ItemID)
	})
}

// setupRoutes configures all API endpoints and their handlers:
// - Auth routes: public endpoint for token issuance
// - Auction routes: reads are public, mutations require a JWT
// - Notification routes: protected by JWT
// - Websocket routes: public subscriber feeds plus the internal channel
func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	authHandlers *auth.GinHandlers,
	auctionHandlers *auction.GinHandlers,
	notificationHandlers *notification.GinHandlers,
	wsHandlers *ws.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		auctions := v1.Group("/auctions")
		{
			auctions.GET("", auctionHandlers.ListAuctionsHandler())
			auctions.GET("/:auction_id", auctionHandlers.GetAuctionHandler())
			auctions.GET("/:auction_id/bids", auctionHandlers.GetBidsHandler())
			auctions.GET("/:auction_id/detail", auctionHandlers.GetAuctionDetailHandler())
			auctions.GET("/item/:item_id", auctionHandlers.GetAuctionByItemHandler())

			protected := auctions.Group("")
			protected.Use(middleware.JWTAuth(cfg.JWTSecret))
			{
				protected.POST("", auctionHandlers.CreateAuctionHandler())
				protected.POST("/:auction_id/bid", auctionHandlers.PlaceBidHandler())
				protected.POST("/:auction_id/accept", auctionHandlers.AcceptBidHandler())
			}
		}

		notifications := v1.Group("/notifications")
		notifications.Use(middleware.JWTAuth(cfg.JWTSecret))
		{
			notifications.GET("/:user_id", notificationHandlers.ListHandler())
			notifications.POST("/:notification_id/read", notificationHandlers.MarkReadHandler())
		}
	}

	wsGroup := router.Group("/ws")
	{
		wsGroup.GET("/auctions/:auction_id", wsHandlers.AuctionFeedHandler())
		wsGroup.GET("/notifications/:user_id", wsHandlers.NotificationFeedHandler())
		wsGroup.GET("/items", wsHandlers.ItemFeedHandler())
		wsGroup.GET("/internal", wsHandlers.InternalHandler())
	}
}

// compile-time check that the engine satisfies the websocket snapshot source
var _ ws.AuctionSource = (*auction.Engine)(nil)
