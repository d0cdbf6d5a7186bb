package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/ksred/order-api/internal/types"
)

const (
	minOrders  = 15
	maxOrders  = 150
	numWorkers = 5

	defaultServerAddress = "http://localhost:8080"
	defaultAPIKey        = "test-api-key"
	defaultAPISecret     = "test-api-secret"
	mockFeedAddress      = ":9090"
)

var (
	symbols = []string{"AAPL", "GOOGL", "MSFT", "AMZN", "META"}
	sides   = []string{types.SideBuy, types.SideSell}
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// startMockPriceFeed serves the bulk price endpoint the API polls, with a
// small random walk around each symbol's base price.
func startMockPriceFeed() {
	base := map[string]float64{
		"AAPL":  203.55,
		"GOOGL": 176.30,
		"MSFT":  428.90,
		"AMZN":  186.15,
		"META":  514.75,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/prices", func(w http.ResponseWriter, r *http.Request) {
		type priceItem struct {
			Symbol string          `json:"symbol"`
			Price  decimal.Decimal `json:"price"`
		}
		items := make([]priceItem, 0, len(base))
		for symbol, price := range base {
			drift := price * (rand.Float64()*0.02 - 0.01)
			items = append(items, priceItem{
				Symbol: symbol,
				Price:  decimal.NewFromFloat(price + drift).Round(2),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(items)
	})

	log.Info().Str("address", mockFeedAddress).Msg("Starting mock price feed")
	if err := http.ListenAndServe(mockFeedAddress, mux); err != nil {
		log.Fatal().Err(err).Msg("Mock price feed failed")
	}
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
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

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the order API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
	mu        sync.Mutex
}

// newSimulationClient creates and initializes a new simulation client
// It authenticates with the API and prepares performance tracking
func newSimulationClient(baseURL string) (*simulationClient, error) {
	sc := &simulationClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		stats: map[string]*routeStats{
			"auth":       {name: "Authentication"},
			"create":     {name: "Create Order"},
			"get":        {name: "Get Order"},
			"getAccount": {name: "Get Account Orders"},
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

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate() (string, error) {
	start := time.Now()
	failed := false
	defer func() { sc.record("auth", start, failed) }()

	credentials := map[string]string{
		"api_key":    defaultAPIKey,
		"api_secret": defaultAPISecret,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		failed = true
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		failed = true
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		failed = true
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		failed = true
		return "", err
	}

	return result.Data.Token, nil
}

// createOrder submits a new order with a fresh idempotency key
// Returns the order's internal id on success
func (sc *simulationClient) createOrder(request types.OrderRequest) (string, error) {
	start := time.Now()
	failed := false
	defer func() { sc.record("create", start, failed) }()

	body, err := json.Marshal(request)
	if err != nil {
		failed = true
		return "", err
	}

	req, err := http.NewRequest(
		http.MethodPost,
		fmt.Sprintf("%s/api/v1/orders", sc.baseURL),
		bytes.NewBuffer(body),
	)
	if err != nil {
		failed = true
		return "", err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	req.Header.Set("Content-Type", "application/json")
	// A UUID is 36 characters, inside the accepted key length range.
	req.Header.Set("X-Idempotency-Key", uuid.New().String())

	resp, err := sc.client.Do(req)
	if err != nil {
		failed = true
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		failed = true
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("response", string(respBody)).Msg("Create order response")

	if resp.StatusCode != http.StatusCreated {
		failed = true
		return "", fmt.Errorf("create order failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Success bool                `json:"success"`
		Data    types.OrderResponse `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		failed = true
		return "", fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	if result.Data.InternalID == "" {
		failed = true
		return "", fmt.Errorf("no order internal id in response: %s", string(respBody))
	}

	return result.Data.InternalID, nil
}

// getOrder retrieves an order by its internal id
func (sc *simulationClient) getOrder(internalID string) (*types.OrderResponse, error) {
	start := time.Now()
	failed := false
	defer func() { sc.record("get", start, failed) }()

	req, err := http.NewRequest(
		http.MethodGet,
		fmt.Sprintf("%s/api/v1/orders/%s", sc.baseURL, internalID),
		nil,
	)
	if err != nil {
		failed = true
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))

	resp, err := sc.client.Do(req)
	if err != nil {
		failed = true
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		failed = true
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("response", string(respBody)).Msg("Get order response")

	if resp.StatusCode != http.StatusOK {
		failed = true
		return nil, fmt.Errorf("get order failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Success bool                `json:"success"`
		Data    types.OrderResponse `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		failed = true
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	return &result.Data, nil
}

// getAccountOrders retrieves all orders for an account
func (sc *simulationClient) getAccountOrders(accountID string) ([]types.OrderResponse, error) {
	start := time.Now()
	failed := false
	defer func() { sc.record("getAccount", start, failed) }()

	req, err := http.NewRequest(
		http.MethodGet,
		fmt.Sprintf("%s/api/v1/orders?account_id=%s", sc.baseURL, accountID),
		nil,
	)
	if err != nil {
		failed = true
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))

	resp, err := sc.client.Do(req)
	if err != nil {
		failed = true
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		failed = true
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		failed = true
		return nil, fmt.Errorf("get account orders failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Success bool                  `json:"success"`
		Data    []types.OrderResponse `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		failed = true
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	return result.Data, nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\n📊 API Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// createOrders places count randomized orders and sends their internal ids to out
func createOrders(workerID, count int, sc *simulationClient, out chan<- string) {
	for i := 0; i < count; i++ {
		request := types.OrderRequest{
			AccountID: fmt.Sprintf("ACC-%03d", rand.Intn(10)),
			Symbol:    symbols[rand.Intn(len(symbols))],
			Side:      sides[rand.Intn(len(sides))],
			Quantity:  int64(rand.Intn(100) + 1),
		}

		internalID, err := sc.createOrder(request)
		if err != nil {
			log.Error().Err(err).Int("worker", workerID).Msg("Failed to create order")
			continue
		}
		out <- internalID
	}
}

// main runs the order placement simulation against a running API server.
// It serves a local mock price feed, places randomized orders from concurrent
// workers, reads them back, and reports latency statistics.
func main() {
	go startMockPriceFeed()
	time.Sleep(500 * time.Millisecond)

	serverAddress := os.Getenv("ORDER_API_URL")
	if serverAddress == "" {
		serverAddress = defaultServerAddress
	}

	simClient, err := newSimulationClient(serverAddress)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	targetOrders := rand.Intn(maxOrders-minOrders) + minOrders
	log.Info().Int("target_orders", targetOrders).Msg("Starting simulation")

	ordersChan := make(chan string, targetOrders)
	var wg sync.WaitGroup

	startTime := time.Now()
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			createOrders(workerID, targetOrders/numWorkers, simClient, ordersChan)
		}(i)
	}

	wg.Wait()
	close(ordersChan)

	var orderIDs []string
	for orderID := range ordersChan {
		orderIDs = append(orderIDs, orderID)
	}
	log.Info().Int("orders_created", len(orderIDs)).Msg("All orders created")

	symbolCounts := make(map[string]int)
	sideCounts := make(map[string]int)
	failedReads := 0

	for _, internalID := range orderIDs {
		order, err := simClient.getOrder(internalID)
		if err != nil {
			log.Error().Err(err).Str("internal_id", internalID).Msg("Failed to read order back")
			failedReads++
			continue
		}
		symbolCounts[order.Symbol]++
		sideCounts[order.Side]++

		if order.Execution == nil {
			log.Error().Str("internal_id", internalID).Msg("Processed order came back without execution")
		}
	}

	accountOrders, err := simClient.getAccountOrders("ACC-001")
	if err != nil {
		log.Error().Err(err).Msg("Failed to read account orders")
	} else {
		log.Info().Int("count", len(accountOrders)).Msg("Orders for ACC-001")
	}

	duration := time.Since(startTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("🚀 ORDER PLACEMENT SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf(`
📊 Order Statistics
------------------
Orders Created:   %d
Failed Reads:     %d
Duration:         %s
Orders/sec:       %.1f

`, len(orderIDs), failedReads, duration.Round(time.Millisecond), float64(len(orderIDs))/duration.Seconds())

	fmt.Println("Symbols:")
	for symbol, count := range symbolCounts {
		fmt.Printf("  %-8s %d\n", symbol, count)
	}
	fmt.Println("Sides:")
	for side, count := range sideCounts {
		fmt.Printf("  %-8s %d\n", side, count)
	}

	simClient.printPerformanceStats()
}
