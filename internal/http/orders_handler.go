package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jinto-ag/emart/internal/domain"
	"github.com/rs/zerolog"
)

const timeFormat string = "2006-01-02T15:04:05Z07:00"

type OrderService interface {
	ListOrders(ctx context.Context, userID int64) ([]*domain.Order, error)
	GetOrder(ctx context.Context, userID int64, orderID string) (*domain.OrderDetail, error)
	ListPayments(ctx context.Context, userID int64) ([]*domain.Payment, error)
}

type OrdersHandler struct {
	orders  OrderService
	timeout time.Duration
	log     zerolog.Logger
}

func NewOrdersHandler(orders OrderService, timeout time.Duration, log zerolog.Logger) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
		log:     log,
	}
}

type OrderResponseDTO struct {
	ID             string `json:"id"`
	CartID         string `json:"cart_id"`
	Amount         string `json:"amount"`
	DeliveryCharge string `json:"delivery_charge"`
	Currency       string `json:"currency"`
	Completed      bool   `json:"completed"`
	CreatedAt      string `json:"created_at"`
}

type PaymentResponseDTO struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	Mode      string `json:"mode"`
	CreatedAt string `json:"created_at"`
}

type CallbackAttemptDTO struct {
	PaymentID        string `json:"payment_id"`
	State            string `json:"state"`
	ErrorKind        string `json:"error_kind,omitempty"`
	AlreadyConfirmed bool   `json:"already_confirmed"`
	ReceivedAt       string `json:"received_at"`
}

type OrderDetailResponseDTO struct {
	OrderResponseDTO
	BillingAddress   AddressDTO           `json:"billing_address"`
	ShippingAddress  AddressDTO           `json:"shipping_address"`
	Payments         []PaymentResponseDTO `json:"payments"`
	CallbackAttempts []CallbackAttemptDTO `json:"callback_attempts"`
}

func convertOrder(o *domain.Order) OrderResponseDTO {
	return OrderResponseDTO{
		ID:             o.ID,
		CartID:         o.CartID.String(),
		Amount:         o.Amount.StringFixed(2),
		DeliveryCharge: o.DeliveryCharge.StringFixed(2),
		Currency:       o.Currency.String(),
		Completed:      o.Completed,
		CreatedAt:      o.CreatedAt.Format(timeFormat),
	}
}

func convertPayments(payments []*domain.Payment) []PaymentResponseDTO {
	dtos := make([]PaymentResponseDTO, 0, len(payments))
	for _, p := range payments {
		dtos = append(dtos, PaymentResponseDTO{
			ID:        p.ID,
			OrderID:   p.OrderID,
			Status:    string(p.Status),
			Mode:      p.Mode,
			CreatedAt: p.CreatedAt.Format(timeFormat),
		})
	}
	return dtos
}

func convertAttempts(attempts []domain.CallbackAttempt) []CallbackAttemptDTO {
	dtos := make([]CallbackAttemptDTO, 0, len(attempts))
	for _, a := range attempts {
		dtos = append(dtos, CallbackAttemptDTO{
			PaymentID:        a.PaymentID,
			State:            a.State,
			ErrorKind:        a.ErrorKind,
			AlreadyConfirmed: a.AlreadyConfirmed,
			ReceivedAt:       a.ReceivedAt.Format(timeFormat),
		})
	}
	return dtos
}

func convertAddress(a *domain.Address) AddressDTO {
	if a == nil {
		return AddressDTO{}
	}
	return AddressDTO{
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

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orders, err := h.orders.ListOrders(ctx, userID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	dtos := make([]OrderResponseDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, convertOrder(o))
	}
	respondJSON(w, http.StatusOK, dtos)
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id is required")
		return
	}

	detail, err := h.orders.GetOrder(ctx, userID, orderID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, OrderDetailResponseDTO{
		OrderResponseDTO: convertOrder(detail.Order),
		BillingAddress:   convertAddress(detail.Billing),
		ShippingAddress:  convertAddress(detail.Shipping),
		Payments:         convertPayments(detail.Payments),
		CallbackAttempts: convertAttempts(detail.Attempts),
	})
}

// GET /api/v1/payments
func (h *OrdersHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	payments, err := h.orders.ListPayments(ctx, userID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, convertPayments(payments))
}
