package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jinto-ag/emart/internal/domain"
	"github.com/rs/zerolog"
)

const maxQuantity = domain.MaxLineQuantity

type CartService interface {
	GetCart(ctx context.Context, userID int64) (*domain.PricedCart, error)
	AddItem(ctx context.Context, userID, productID int64, quantity int) error
	UpdateQuantity(ctx context.Context, userID, productID int64, quantity int) error
	RemoveItem(ctx context.Context, userID, productID int64) error
	SetCurrency(ctx context.Context, userID int64, currency string) (domain.Currency, error)
	Currency(ctx context.Context, userID int64) domain.Currency
}

type CartHandler struct {
	carts   CartService
	timeout time.Duration
	log     zerolog.Logger
}

func NewCartHandler(carts CartService, timeout time.Duration, log zerolog.Logger) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
		log:     log,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type SetCurrencyRequestDTO struct {
	Currency string `json:"currency"`
}

type CartItemDTO struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Subtotal    string `json:"subtotal"`
}

type CartResponseDTO struct {
	ID       string        `json:"id"`
	UserID   int64         `json:"user_id"`
	Items    []CartItemDTO `json:"items"`
	Total    string        `json:"total"`
	Currency string        `json:"currency"`
	Empty    bool          `json:"empty"`
}

func convertCart(priced *domain.PricedCart, currency domain.Currency) CartResponseDTO {
	dto := CartResponseDTO{
		ID:       priced.Cart.ID.String(),
		UserID:   priced.Cart.UserID,
		Items:    make([]CartItemDTO, 0, len(priced.Lines)),
		Total:    priced.Total.StringFixed(2),
		Currency: currency.String(),
		Empty:    priced.IsEmpty(),
	}
	for _, line := range priced.Lines {
		dto.Items = append(dto.Items, CartItemDTO{
			ProductID:   line.Item.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Item.Quantity,
			UnitPrice:   line.UnitPrice.StringFixed(2),
			Subtotal:    line.Subtotal.StringFixed(2),
		})
	}
	return dto
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}
	h.respondCart(ctx, w, r, userID, http.StatusOK)
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity <= 0 || req.Quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	if err := h.carts.AddItem(ctx, userID, req.ProductID, req.Quantity); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	h.respondCart(ctx, w, r, userID, http.StatusCreated)
}

// PUT /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	// zero keeps the line in the cart but leaves it out of the total
	if req.Quantity < 0 || req.Quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 0 and 99")
		return
	}

	if err := h.carts.UpdateQuantity(ctx, userID, productID, req.Quantity); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	h.respondCart(ctx, w, r, userID, http.StatusOK)
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	if err := h.carts.RemoveItem(ctx, userID, productID); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	h.respondCart(ctx, w, r, userID, http.StatusOK)
}

// PUT /api/v1/cart/currency
func (h *CartHandler) SetCurrency(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req SetCurrencyRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	currency, err := h.carts.SetCurrency(ctx, userID, req.Currency)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"currency": currency.String()})
}

func (h *CartHandler) respondCart(ctx context.Context, w http.ResponseWriter, r *http.Request, userID int64, status int) {
	priced, err := h.carts.GetCart(ctx, userID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, status, convertCart(priced, h.carts.Currency(ctx, userID)))
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}
