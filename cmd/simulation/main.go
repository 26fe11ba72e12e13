package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tradefab/order-api/internal/auth"
	"github.com/tradefab/order-api/internal/orders"
)

const (
	numWorkers      = 5
	ordersPerWorker = 20
	serverAddress   = "http://localhost:8080"
)

var symbols = []string{"AAPL", "GOOGL", "MSFT", "AMZN", "META"}

// init configures the logger for the simulation with pretty printing
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

type apiEnvelope struct {
	Success bool                 `json:"success"`
	Data    orders.OrderResponse `json:"data"`
}

type sessionEnvelope struct {
	Success bool              `json:"success"`
	Data    auth.SessionToken `json:"data"`
}

type stats struct {
	mu        sync.Mutex
	placed    int
	rejected  int
	cancelled int
	failures  int
	durations []time.Duration
}

func (s *stats) record(d time.Duration, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.durations = append(s.durations, d)
	switch status {
	case orders.StatusAccepted:
		s.placed++
	case orders.StatusCancelRequested:
		s.cancelled++
	case orders.StatusRejected:
		s.rejected++
	default:
		s.failures++
	}
}

func main() {
	client := &http.Client{Timeout: 10 * time.Second}

	token, err := createSession(client)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create session")
	}
	log.Info().Int64("account_id", token.AccountID).Msg("session established")

	results := &stats{}
	start := time.Now()

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			runWorker(client, token.Token, worker, results)
		}(w)
	}
	wg.Wait()

	elapsed := time.Since(start)
	results.mu.Lock()
	defer results.mu.Unlock()
	log.Info().
		Int("placed", results.placed).
		Int("cancelled", results.cancelled).
		Int("rejected", results.rejected).
		Int("failures", results.failures).
		Dur("elapsed", elapsed).
		Msg("simulation complete")
}

func runWorker(client *http.Client, sessionToken string, worker int, results *stats) {
	for i := 0; i < ordersPerWorker; i++ {
		req := orders.PlaceOrderRequest{
			Symbol:         symbols[rand.Intn(len(symbols))],
			Side:           []string{orders.SideBuy, orders.SideSell}[rand.Intn(2)],
			OrderType:      "LIMIT",
			Quantity:       int64(rand.Intn(90) + 10),
			Price:          int64(rand.Intn(400) + 100),
			TimeInForce:    "DAY",
			IdempotencyKey: uuid.New().String(),
		}

		resp, dur, err := placeOrder(client, sessionToken, req)
		if err != nil {
			log.Warn().Err(err).Int("worker", worker).Msg("place failed")
			results.record(dur, "")
			continue
		}
		results.record(dur, resp.Status)

		// Exercise the idempotent replay path.
		if i%5 == 0 {
			replay, _, err := placeOrder(client, sessionToken, req)
			if err == nil && replay.OrderID != resp.OrderID {
				log.Error().
					Int64("first", resp.OrderID).
					Int64("replay", replay.OrderID).
					Msg("idempotent replay returned a different order id")
			}
		}

		// Cancel a slice of accepted orders.
		if resp.Status == orders.StatusAccepted && i%3 == 0 {
			cancelResp, dur, err := cancelOrder(client, sessionToken, resp.OrderID)
			if err != nil {
				log.Warn().Err(err).Int("worker", worker).Msg("cancel failed")
				continue
			}
			results.record(dur, cancelResp.Status)
		}
	}
}

func createSession(client *http.Client) (*auth.SessionToken, error) {
	body, _ := json.Marshal(auth.Credentials{
		APIKey:    auth.TestAPIKey,
		APISecret: auth.TestAPISecret,
	})

	resp, err := client.Post(serverAddress+"/api/v1/auth/session", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("session request failed: %s", resp.Status)
	}

	var envelope sessionEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, err
	}
	return &envelope.Data, nil
}

func placeOrder(client *http.Client, sessionToken string, order orders.PlaceOrderRequest) (*orders.OrderResponse, time.Duration, error) {
	body, _ := json.Marshal(order)

	req, err := http.NewRequest(http.MethodPost, serverAddress+"/api/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Session-Id", sessionToken)

	start := time.Now()
	resp, err := client.Do(req)
	dur := time.Since(start)
	if err != nil {
		return nil, dur, err
	}
	defer resp.Body.Close()

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, dur, err
	}
	return &envelope.Data, dur, nil
}

func cancelOrder(client *http.Client, sessionToken string, orderID int64) (*orders.OrderResponse, time.Duration, error) {
	body, _ := json.Marshal(orders.CancelOrderRequest{IdempotencyKey: uuid.New().String()})

	url := fmt.Sprintf("%s/api/v1/orders/%d/cancel", serverAddress, orderID)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Session-Id", sessionToken)

	start := time.Now()
	resp, err := client.Do(req)
	dur := time.Since(start)
	if err != nil {
		return nil, dur, err
	}
	defer resp.Body.Close()

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, dur, err
	}
	return &envelope.Data, dur, nil
}
