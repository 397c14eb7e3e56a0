package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jinto-ag/emart/internal/domain"
	"github.com/jinto-ag/emart/internal/gateway"
	"github.com/jinto-ag/emart/internal/service"
	"github.com/jinto-ag/emart/pkg/logger"
	"github.com/rs/zerolog"
)

type ErrorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code,omitempty"`
	Details   string            `json:"details,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	Retryable bool              `json:"retryable,omitempty"`
	// Submitted echoes the checkout form back so it can be shown again.
	Submitted any `json:"submitted,omitempty"`
}

type submittedForm struct {
	Billing  domain.Address  `json:"billing"`
	Shipping *domain.Address `json:"shipping,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError maps an error from the service layer to a response.
// Unexpected errors are logged and reported without internals.
func handleServiceError(w http.ResponseWriter, r *http.Request, base zerolog.Logger, err error) {
	var (
		formErr  *domain.CheckoutFormError
		verr     *domain.ValidationError
		rejected *gateway.RejectedError
	)

	switch {
	case errors.As(err, &formErr):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:     "please correct the highlighted fields",
			Code:      "invalid_form",
			Fields:    formErr.Fields,
			Submitted: submittedForm{Billing: formErr.Billing, Shipping: formErr.Shipping},
		})
	case errors.As(err, &verr):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "invalid request",
			Code:   "invalid_request",
			Fields: verr.Fields,
		})
	case errors.Is(err, service.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, service.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", err.Error())
	case errors.Is(err, service.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", "product not found")
	case errors.Is(err, service.ErrItemNotFound):
		respondError(w, http.StatusNotFound, "item_not_found", "item not found in cart")
	case errors.Is(err, service.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order_not_found", "order not found")
	case errors.Is(err, service.ErrCartClosed), errors.Is(err, service.ErrCartChanged):
		respondError(w, http.StatusConflict, "cart_conflict", err.Error())
	case errors.Is(err, service.ErrPaymentConflict), errors.Is(err, service.ErrOrderAlreadyPaid):
		respondError(w, http.StatusConflict, "payment_conflict", err.Error())
	case errors.Is(err, gateway.ErrInvalidSignature):
		respondError(w, http.StatusPaymentRequired, "payment_failed", "payment could not be verified")
	case errors.As(err, &rejected):
		respondJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   "payment gateway rejected the request",
			Code:    "gateway_rejected",
			Details: rejected.Description,
		})
	case errors.Is(err, gateway.ErrUnavailable):
		respondJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error:     "payment gateway is unavailable, please retry",
			Code:      "gateway_unavailable",
			Retryable: true,
		})
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		log := logger.FromContext(r.Context(), base)
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
