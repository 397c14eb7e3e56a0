package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jinto-ag/emart/internal/domain"
	"github.com/rs/zerolog"
)

type CheckoutService interface {
	Checkout(ctx context.Context, req *domain.CheckoutRequest) (*domain.CheckoutResponse, error)
	PaymentPage(ctx context.Context, userID int64) (*domain.GatewayCheckout, error)
}

type PaymentService interface {
	Confirm(ctx context.Context, req *domain.ConfirmRequest) (*domain.ConfirmResponse, error)
}

type CheckoutHandler struct {
	checkout CheckoutService
	payments PaymentService
	timeout  time.Duration
	log      zerolog.Logger
}

func NewCheckoutHandler(checkout CheckoutService, payments PaymentService, timeout time.Duration, log zerolog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		payments: payments,
		timeout:  timeout,
		log:      log,
	}
}

type AddressDTO struct {
	BuildingName string `json:"building_name"`
	Place        string `json:"place"`
	Street       string `json:"street"`
	City         string `json:"city"`
	District     string `json:"district"`
	State        string `json:"state"`
	Country      string `json:"country"`
	PostOffice   string `json:"post_office"`
	PostCode     string `json:"post_code"`
}

func (a AddressDTO) toDomain() domain.Address {
	return domain.Address{
		BuildingName: a.BuildingName,
		Place:        a.Place,
		Street:       a.Street,
		City:         a.City,
		District:     a.District,
		State:        a.State,
		Country:      a.Country,
		PostOffice:   a.PostOffice,
		PostCode:     a.PostCode,
	}
}

type CheckoutRequestDTO struct {
	Billing       AddressDTO  `json:"billing"`
	Shipping      *AddressDTO `json:"shipping,omitempty"`
	SameAsBilling bool        `json:"same_as_billing"`
	Currency      string      `json:"currency,omitempty"`
}

type CheckoutResponseDTO struct {
	OrderID        string                 `json:"order_id"`
	Amount         string                 `json:"amount"`
	DeliveryCharge string                 `json:"delivery_charge"`
	Currency       string                 `json:"currency"`
	Replayed       bool                   `json:"replayed"`
	Gateway        domain.GatewayCheckout `json:"gateway"`
}

type ConfirmResponseDTO struct {
	State            string `json:"state"`
	AlreadyConfirmed bool   `json:"already_confirmed"`
	PaymentID        string `json:"payment_id"`
	OrderID          string `json:"order_id"`
	Mode             string `json:"mode,omitempty"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	checkoutReq := &domain.CheckoutRequest{
		UserID:         userID,
		Billing:        req.Billing.toDomain(),
		SameAsBilling:  req.SameAsBilling,
		Currency:       req.Currency,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	}
	if req.Shipping != nil {
		shipping := req.Shipping.toDomain()
		checkoutReq.Shipping = &shipping
	}

	resp, err := h.checkout.Checkout(ctx, checkoutReq)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	respondJSON(w, status, CheckoutResponseDTO{
		OrderID:        resp.Order.ID,
		Amount:         resp.Order.Amount.StringFixed(2),
		DeliveryCharge: resp.Order.DeliveryCharge.StringFixed(2),
		Currency:       resp.Order.Currency.String(),
		Replayed:       resp.Replayed,
		Gateway:        resp.Gateway,
	})
}

// GET /api/v1/checkout/payment
func (h *CheckoutHandler) PaymentPage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	page, err := h.checkout.PaymentPage(ctx, userID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// POST /api/v1/payment/callback
//
// The gateway redirects the browser here with form encoded fields.
func (h *CheckoutHandler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid form body")
		return
	}

	resp, err := h.payments.Confirm(ctx, &domain.ConfirmRequest{
		UserID:    userID,
		PaymentID: r.PostForm.Get("razorpay_payment_id"),
		OrderID:   r.PostForm.Get("razorpay_order_id"),
		Signature: r.PostForm.Get("razorpay_signature"),
		RequestID: middleware.GetReqID(r.Context()),
	})
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, ConfirmResponseDTO{
		State:            resp.State.String(),
		AlreadyConfirmed: resp.AlreadyConfirmed,
		PaymentID:        resp.Payment.ID,
		OrderID:          resp.Payment.OrderID,
		Mode:             resp.Payment.Mode,
	})
}
