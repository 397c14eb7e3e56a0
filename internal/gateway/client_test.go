package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:   srv.URL,
		KeyID:     "rzp_test_key",
		KeySecret: "secret",
		Timeout:   time.Second,
	}, zerolog.Nop())
}

func writeError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "description": description},
	})
}

func TestCreateOrder_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "secret", pass)

		var req OrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(25000), req.Amount)
		assert.Equal(t, "INR", req.Currency)
		assert.Equal(t, "cart-1", req.Receipt)
		assert.Equal(t, 0, req.PaymentCapture)

		_ = json.NewEncoder(w).Encode(Order{ID: "order_abc", Entity: "order", Amount: req.Amount, Currency: req.Currency, Status: "created"})
	})

	order, err := client.CreateOrder(context.Background(), OrderRequest{Amount: 25000, Currency: "INR", Receipt: "cart-1", PaymentCapture: 1})

	require.NoError(t, err)
	assert.Equal(t, "order_abc", order.ID)
	assert.Equal(t, int64(25000), order.Amount)
}

func TestCreateOrder_Rejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST_ERROR", "The amount must be at least INR 1.00")
	})

	_, err := client.CreateOrder(context.Background(), OrderRequest{Amount: 0, Currency: "INR"})

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusBadRequest, rejected.Status)
	assert.Equal(t, "BAD_REQUEST_ERROR", rejected.Code)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestCreateOrder_ServerErrorIsUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.CreateOrder(context.Background(), OrderRequest{Amount: 100, Currency: "INR"})

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, IsRejected(err))
}

func TestCreateOrder_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()
	client := NewClient(Config{BaseURL: srv.URL, KeyID: "k", KeySecret: "s", Timeout: 20 * time.Millisecond}, zerolog.Nop())

	_, err := client.CreateOrder(context.Background(), OrderRequest{Amount: 100, Currency: "INR"})

	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestBreaker_OpensOnOutagesNotRejections(t *testing.T) {
	var calls atomic.Int32
	var failing atomic.Bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if failing.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeError(w, http.StatusBadRequest, "BAD_REQUEST_ERROR", "invalid currency")
	})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := client.CreateOrder(ctx, OrderRequest{Amount: 100, Currency: "XXX"})
		require.True(t, IsRejected(err))
	}
	assert.Equal(t, int32(10), calls.Load())

	failing.Store(true)
	for i := 0; i < 5; i++ {
		_, err := client.CreateOrder(ctx, OrderRequest{Amount: 100, Currency: "INR"})
		require.ErrorIs(t, err, ErrUnavailable)
	}

	_, err := client.CreateOrder(ctx, OrderRequest{Amount: 100, Currency: "INR"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(15), calls.Load(), "open breaker must not reach the gateway")
}

func TestCapture_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/pay_xyz/capture", r.URL.Path)
		var req captureRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(25000), req.Amount)
		assert.Equal(t, "INR", req.Currency)

		_ = json.NewEncoder(w).Encode(Payment{ID: "pay_xyz", OrderID: "order_abc", Amount: 25000, Currency: "INR", Status: "captured", Method: "card", Captured: true})
	})

	payment, err := client.Capture(context.Background(), "pay_xyz", 25000, "INR")

	require.NoError(t, err)
	assert.Equal(t, "captured", payment.Status)
	assert.Equal(t, "card", payment.Method)
}

func TestCapture_AlreadyCapturedFetchesPayment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "POST /v1/payments/pay_xyz/capture":
			writeError(w, http.StatusBadRequest, "BAD_REQUEST_ERROR", "This payment has already been captured")
		case "GET /v1/payments/pay_xyz":
			_ = json.NewEncoder(w).Encode(Payment{ID: "pay_xyz", OrderID: "order_abc", Status: "captured", Method: "upi", Captured: true})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})

	payment, err := client.Capture(context.Background(), "pay_xyz", 25000, "INR")

	require.NoError(t, err)
	assert.True(t, payment.Captured)
	assert.Equal(t, "upi", payment.Method)
}

func TestCapture_AmountMismatchRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST_ERROR", "Capture amount must be equal to the amount authorized")
	})

	_, err := client.Capture(context.Background(), "pay_xyz", 1, "INR")

	var rejected *RejectedError
	assert.True(t, errors.As(err, &rejected))
}

func TestVerifyPaymentSignature(t *testing.T) {
	client := NewClient(Config{KeyID: "k", KeySecret: "secret"}, zerolog.Nop())
	good := Sign("secret", "order_abc", "pay_xyz")

	tests := []struct {
		name      string
		orderID   string
		paymentID string
		signature string
		wantErr   bool
	}{
		{name: "valid", orderID: "order_abc", paymentID: "pay_xyz", signature: good},
		{name: "valid upper case hex", orderID: "order_abc", paymentID: "pay_xyz", signature: strings.ToUpper(good)},
		{name: "wrong payment", orderID: "order_abc", paymentID: "pay_other", signature: good, wantErr: true},
		{name: "wrong order", orderID: "order_other", paymentID: "pay_xyz", signature: good, wantErr: true},
		{name: "forged", orderID: "order_abc", paymentID: "pay_xyz", signature: "deadbeef", wantErr: true},
		{name: "empty", orderID: "order_abc", paymentID: "pay_xyz", signature: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.VerifyPaymentSignature(tt.orderID, tt.paymentID, tt.signature)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSignature)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSign_DependsOnSecret(t *testing.T) {
	sig := Sign("secret", "order_abc", "pay_xyz")
	assert.Len(t, sig, 64)
	assert.Equal(t, sig, Sign("secret", "order_abc", "pay_xyz"))
	assert.NotEqual(t, sig, Sign("other", "order_abc", "pay_xyz"))
}
