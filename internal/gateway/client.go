// Package gateway is the Razorpay orders and payments client.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jinto-ag/emart/pkg/circuitbreaker"
	"github.com/rs/zerolog"
)

type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// Client is safe for concurrent use. Build one at startup and share it.
type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	timeout   time.Duration
	http      *http.Client
	breaker   *circuitbreaker.Breaker[[]byte]
	log       zerolog.Logger
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		timeout:   cfg.Timeout,
		http:      &http.Client{Timeout: cfg.Timeout},
		breaker: circuitbreaker.New[[]byte](circuitbreaker.Settings{
			Name:      "razorpay",
			Permanent: IsRejected,
		}, log),
		log: log,
	}
}

// KeyID is the public merchant key handed to the checkout widget.
func (c *Client) KeyID() string {
	return c.keyID
}

type OrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	// PaymentCapture 0 leaves payments authorized until Capture is called.
	PaymentCapture int `json:"payment_capture"`
}

type Order struct {
	ID       string `json:"id"`
	Entity   string `json:"entity"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type Payment struct {
	ID       string `json:"id"`
	Entity   string `json:"entity"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	OrderID  string `json:"order_id"`
	Method   string `json:"method"`
	Captured bool   `json:"captured"`
}

type captureRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type errorEnvelope struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	req.PaymentCapture = 0

	var order Order
	if err := c.do(ctx, http.MethodPost, "/v1/orders", req, &order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return &order, nil
}

// Capture settles an authorized payment for exactly amount. A payment the
// gateway reports as already captured is fetched and returned as success.
func (c *Client) Capture(ctx context.Context, paymentID string, amount int64, currency string) (*Payment, error) {
	path := "/v1/payments/" + url.PathEscape(paymentID) + "/capture"

	var payment Payment
	err := c.do(ctx, http.MethodPost, path, captureRequest{Amount: amount, Currency: currency}, &payment)
	var rejected *RejectedError
	if errors.As(err, &rejected) && rejected.alreadyCaptured() {
		c.log.Info().Str("payment_id", paymentID).Msg("payment already captured")
		return c.FetchPayment(ctx, paymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("capture payment %s: %w", paymentID, err)
	}
	return &payment, nil
}

func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var payment Payment
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, &payment); err != nil {
		return nil, fmt.Errorf("fetch payment %s: %w", paymentID, err)
	}
	return &payment, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, path, body)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrUnavailable, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrUnavailable, err)
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("gateway call")

	switch {
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		var env errorEnvelope
		_ = json.Unmarshal(data, &env)
		return nil, &RejectedError{
			Status:      resp.StatusCode,
			Code:        env.Error.Code,
			Description: env.Error.Description,
		}
	}
	return data, nil
}
