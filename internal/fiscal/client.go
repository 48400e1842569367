// Package fiscal calls the remote fiscal recalculation service for sales orders.
package fiscal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

var (
	// ErrUnavailable indicates the fiscal service could not be reached or is failing.
	ErrUnavailable = errors.New("fiscal service unavailable")
	// ErrRejected indicates the fiscal service refused the order.
	ErrRejected = errors.New("fiscal recalculation rejected")
)

// Totals are the authoritative amounts returned by the fiscal service.
type Totals struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	STAmount    decimal.Decimal `json:"st_amount"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// Config configures the client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout  time.Duration
	MinRequests  uint32
	FailureRatio float64
}

// StateObserver receives breaker state changes (0=closed, 1=half-open, 2=open).
type StateObserver interface {
	BreakerState(name string, state float64)
}

// Client recalculates fiscal totals through a circuit breaker.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[Totals]
	logger  *slog.Logger
}

const breakerName = "fiscal"

// NewClient builds a fiscal client. observer may be nil.
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger, observer StateObserver) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 5
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.5
	}
	settings := gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrRejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			if observer != nil {
				observer.BreakerState(name, stateValue(to))
			}
		},
	}
	if observer != nil {
		observer.BreakerState(breakerName, 0)
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		http:    httpClient,
		breaker: gobreaker.NewCircuitBreaker[Totals](settings),
		logger:  logger,
	}
}

// Recalculate asks the fiscal service to recompute taxes for an order and returns its totals.
func (c *Client) Recalculate(ctx context.Context, orderID int64) (Totals, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	totals, err := c.breaker.Execute(func() (Totals, error) {
		return c.post(ctx, orderID)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Totals{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return Totals{}, err
	}
	return totals, nil
}

// State exposes the breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

func (c *Client) post(ctx context.Context, orderID int64) (Totals, error) {
	url := fmt.Sprintf("%s/orders/%d/recalculate", c.baseURL, orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, http.NoBody)
	if err != nil {
		return Totals{}, fmt.Errorf("fiscal: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Totals{}, fmt.Errorf("%w: timed out after %s", ErrUnavailable, c.timeout)
		}
		return Totals{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Totals{}, fmt.Errorf("%w: read body: %w", ErrUnavailable, err)
	}
	switch {
	case resp.StatusCode >= 500:
		return Totals{}, fmt.Errorf("%w: server error %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return Totals{}, fmt.Errorf("%w: %s", ErrRejected, rejectionMessage(resp.StatusCode, body))
	}

	var totals Totals
	if err := json.Unmarshal(body, &totals); err != nil {
		return Totals{}, fmt.Errorf("%w: decode totals: %w", ErrUnavailable, err)
	}
	return totals, nil
}

func rejectionMessage(status int, body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Detail != "" {
			return payload.Detail
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return http.StatusText(status)
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
