package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/finalcall/auction-api/internal/auction"
	"github.com/finalcall/auction-api/internal/auth"
	"github.com/finalcall/auction-api/internal/config"
	"github.com/finalcall/auction-api/internal/database"
	"github.com/finalcall/auction-api/internal/events"
	"github.com/finalcall/auction-api/internal/notification"
	"github.com/finalcall/auction-api/internal/types"
	"github.com/finalcall/auction-api/internal/ws"
	"github.com/finalcall/auction-api/pkg/middleware"
)

const (
	numForwardAuctions = 8
	numDutchAuctions   = 4
	numBidders         = 5
	bidsPerBidder      = 10
	serverAddress      = "http://localhost:8084"
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes min, max, mean and median durations
func (rs *routeStats) calculate() (min, max, mean, median time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]

	return
}

// simulationClient handles HTTP communication with the auction API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	mu        sync.Mutex
	stats     map[string]*routeStats
}

func newSimulationClient() (*simulationClient, error) {
	sc := &simulationClient{
		baseURL: serverAddress,
		client:  &http.Client{Timeout: 10 * time.Second},
		stats: map[string]*routeStats{
			"auth":   {name: "Authentication"},
			"create": {name: "Create Auction"},
			"bid":    {name: "Place Bid"},
			"get":    {name: "Get Auction"},
		},
	}

	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

func (sc *simulationClient) record(route string, start time.Time, failed bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.stats[route].addDuration(time.Since(start))
	if failed {
		sc.stats[route].failures++
	}
}

func (sc *simulationClient) authenticate() (string, error) {
	start := time.Now()

	credentials := map[string]string{
		"api_key":    auth.TestAPIKey,
		"api_secret": auth.TestAPISecret,
	}
	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		sc.record("auth", start, true)
		return "", err
	}
	defer resp.Body.Close()
	sc.record("auth", start, resp.StatusCode >= 400)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Data.Token, nil
}

func (sc *simulationClient) createAuction(req *types.CreateAuctionRequest) (uint, error) {
	start := time.Now()

	body, err := json.Marshal(req)
	if err != nil {
		return 0, err
	}

	httpReq, err := http.NewRequest("POST", fmt.Sprintf("%s/api/v1/auctions", sc.baseURL), bytes.NewBuffer(body))
	if err != nil {
		return 0, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+sc.authToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := sc.client.Do(httpReq)
	if err != nil {
		sc.record("create", start, true)
		return 0, err
	}
	defer resp.Body.Close()
	sc.record("create", start, resp.StatusCode >= 400)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return 0, fmt.Errorf("create auction failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Data struct {
			ID uint `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return result.Data.ID, nil
}

// placeBid submits one bid; a rejection (bid too low, auction closed) is an
// expected outcome, not a transport failure.
func (sc *simulationClient) placeBid(auctionID uint, bidderID int64, amount float64) (accepted bool, err error) {
	start := time.Now()

	body, _ := json.Marshal(types.BidRequest{BidderID: bidderID, Amount: amount})
	httpReq, err := http.NewRequest("POST",
		fmt.Sprintf("%s/api/v1/auctions/%d/bid", sc.baseURL, auctionID), bytes.NewBuffer(body))
	if err != nil {
		return false, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+sc.authToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := sc.client.Do(httpReq)
	if err != nil {
		sc.record("bid", start, true)
		return false, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	sc.record("bid", start, false)

	return resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated, nil
}

func (sc *simulationClient) getAuction(auctionID uint) (*types.Auction, error) {
	start := time.Now()

	resp, err := sc.client.Get(fmt.Sprintf("%s/api/v1/auctions/%d", sc.baseURL, auctionID))
	if err != nil {
		sc.record("get", start, true)
		return nil, err
	}
	defer resp.Body.Close()
	sc.record("get", start, resp.StatusCode >= 400)

	var result struct {
		Data types.Auction `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result.Data, nil
}

func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 80))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median")
	fmt.Println(strings.Repeat("-", 80))

	for _, stats := range sc.stats {
		min, max, mean, median := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 80))
}

// subscribeFeed opens a websocket subscriber and counts received frames
// until the connection closes or the simulation finishes.
func subscribeFeed(path string, counter *atomic.Int64, done <-chan struct{}) error {
	url := "ws" + strings.TrimPrefix(serverAddress, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return err
	}

	go func() {
		<-done
		conn.Close()
	}()
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			counter.Add(1)
		}
	}()
	return nil
}

// main runs the auction simulation: an in-process server, websocket
// subscribers on every feed, and concurrent bidders hammering the same
// auctions.
func main() {
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	// Create auctions
	var forwardIDs, dutchIDs []uint
	for i := 0; i < numForwardAuctions; i++ {
		id, err := simClient.createAuction(&types.CreateAuctionRequest{
			ItemID:           int64(1000 + i),
			AuctionType:      types.AuctionTypeForward,
			StartingBidPrice: float64(rand.Intn(400) + 100),
			SellerID:         1,
			AuctionEndTime:   time.Now().Add(time.Hour),
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to create forward auction")
			continue
		}
		forwardIDs = append(forwardIDs, id)
	}
	for i := 0; i < numDutchAuctions; i++ {
		decrement := 10.0
		minimum := 50.0
		id, err := simClient.createAuction(&types.CreateAuctionRequest{
			ItemID:           int64(2000 + i),
			AuctionType:      types.AuctionTypeDutch,
			StartingBidPrice: float64(rand.Intn(400) + 200),
			SellerID:         2,
			AuctionEndTime:   time.Now().Add(time.Hour),
			PriceDecrement:   &decrement,
			MinimumPrice:     &minimum,
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to create dutch auction")
			continue
		}
		dutchIDs = append(dutchIDs, id)
	}
	log.Info().
		Int("forward", len(forwardIDs)).
		Int("dutch", len(dutchIDs)).
		Msg("Auctions created")

	// Subscribe to the feeds before bidding starts
	done := make(chan struct{})
	var itemFrames, auctionFrames atomic.Int64
	if err := subscribeFeed("/ws/items", &itemFrames, done); err != nil {
		log.Error().Err(err).Msg("Failed to subscribe to item feed")
	}
	for _, id := range forwardIDs {
		if err := subscribeFeed(fmt.Sprintf("/ws/auctions/%d", id), &auctionFrames, done); err != nil {
			log.Error().Err(err).Uint("auction_id", id).Msg("Failed to subscribe to auction feed")
		}
	}

	// Concurrent bidders on the forward auctions, one buyer per dutch auction
	var accepted, rejected atomic.Int64
	var wg sync.WaitGroup
	for b := 0; b < numBidders; b++ {
		wg.Add(1)
		go func(bidderID int64) {
			defer wg.Done()
			for i := 0; i < bidsPerBidder; i++ {
				auctionID := forwardIDs[rand.Intn(len(forwardIDs))]
				current, err := simClient.getAuction(auctionID)
				if err != nil {
					continue
				}
				ok, err := simClient.placeBid(auctionID, bidderID, current.CurrentBidPrice+float64(rand.Intn(50)+1))
				if err != nil {
					log.Error().Err(err).Msg("Bid transport failure")
					continue
				}
				if ok {
					accepted.Add(1)
				} else {
					rejected.Add(1)
				}
				time.Sleep(time.Duration(rand.Intn(100)) * time.Millisecond)
			}
		}(int64(100 + b))
	}
	wg.Wait()

	for _, id := range dutchIDs {
		if ok, err := simClient.placeBid(id, 999, 0); err == nil && ok {
			accepted.Add(1)
		}
	}

	// Let broadcasts drain before sampling the counters
	time.Sleep(time.Second)
	close(done)

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("AUCTION SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf(`
Bids accepted:        %d
Bids rejected:        %d
Auction feed frames:  %d
Item feed frames:     %d
`, accepted.Load(), rejected.Load(), auctionFrames.Load(), itemFrames.Load())

	simClient.printPerformanceStats()
}

// startServer initializes and starts the auction API server in-process
func startServer() error {
	os.Setenv("DB_PATH", "simulation.db")
	cfg := config.Load()

	db, err := database.NewDatabase(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	ctx := context.Background()

	bus := events.NewBus(cfg.EventBuffer)
	registry := ws.NewRegistry()
	engine := auction.NewEngine(auction.NewDatabase(db), bus, nil, nil)
	notificationService := notification.NewService(db)

	fanout := events.NewFanout(bus, registry, notificationService)
	go fanout.Start(ctx)

	// Aggressive decay so dutch auctions move during the run
	scheduler := auction.NewScheduler(engine, 5*time.Second)
	go scheduler.Start(ctx)

	authService := auth.NewService(cfg.JWTSecret)
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/token", auth.NewGinHandlers(authService).GenerateTokenHandler())

		auctionHandlers := auction.NewGinHandlers(engine)
		auctions := v1.Group("/auctions")
		{
			auctions.GET("", auctionHandlers.ListAuctionsHandler())
			auctions.GET("/:auction_id", auctionHandlers.GetAuctionHandler())
			auctions.GET("/:auction_id/bids", auctionHandlers.GetBidsHandler())

			protected := auctions.Group("")
			protected.Use(middleware.JWTAuth(cfg.JWTSecret))
			{
				protected.POST("", auctionHandlers.CreateAuctionHandler())
				protected.POST("/:auction_id/bid", auctionHandlers.PlaceBidHandler())
			}
		}
	}

	wsHandlers := ws.NewGinHandlers(registry, engine, ws.NewRPCServer(), cfg.InternalWSToken)
	wsGroup := router.Group("/ws")
	{
		wsGroup.GET("/auctions/:auction_id", wsHandlers.AuctionFeedHandler())
		wsGroup.GET("/items", wsHandlers.ItemFeedHandler())
	}

	return router.Run(":" + cfg.Port)
}
