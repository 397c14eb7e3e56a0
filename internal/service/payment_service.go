package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jinto-ag/emart/internal/audit"
	"github.com/jinto-ag/emart/internal/domain"
	"github.com/jinto-ag/emart/internal/gateway"
	"github.com/jinto-ag/emart/internal/repository"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type PaymentService struct {
	orders   OrderRepository
	payments PaymentRepository
	gateway  Gateway
	journal  CallbackJournal
	log      zerolog.Logger
}

func NewPaymentService(orders OrderRepository, payments PaymentRepository, gw Gateway, journal CallbackJournal, log zerolog.Logger) *PaymentService {
	return &PaymentService{
		orders:   orders,
		payments: payments,
		gateway:  gw,
		journal:  journal,
		log:      log,
	}
}

type paymentCompletedEvent struct {
	PaymentID   string          `json:"payment_id"`
	OrderID     string          `json:"order_id"`
	UserID      int64           `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    domain.Currency `json:"currency"`
	Mode        string          `json:"mode"`
	CompletedAt time.Time       `json:"completed_at"`
}

// confirmation walks one callback through created -> verifying ->
// completed or failed.
type confirmation struct {
	state domain.ConfirmationState
}

func (c *confirmation) advance(to domain.ConfirmationState) error {
	if !domain.CanTransitionTo(c.state, to) {
		return fmt.Errorf("%w: %s -> %s", IllegalTransitionError, c.state, to)
	}
	c.state = to
	return nil
}

// fail moves to failed unless the state is already terminal.
func (c *confirmation) fail() {
	if !c.state.IsTerminal() {
		c.state = domain.ConfirmationFailed
	}
}

// Confirm handles the gateway's payment callback. A Payment row is written
// only after the signature verified and the capture succeeded.
func (s *PaymentService) Confirm(ctx context.Context, req *domain.ConfirmRequest) (resp *domain.ConfirmResponse, err error) {
	c := &confirmation{state: domain.ConfirmationCreated}
	defer func() {
		if err != nil {
			c.fail()
		}
		s.record(ctx, req, c.state, resp, err)
	}()

	if verr := validateConfirm(req); verr != nil {
		return nil, verr
	}

	order, err := s.orders.GetOrderForUser(ctx, req.UserID, req.OrderID)
	if err != nil {
		return nil, err
	}

	if err := c.advance(domain.ConfirmationVerifying); err != nil {
		return nil, err
	}
	if err := s.gateway.VerifyPaymentSignature(order.ID, req.PaymentID, req.Signature); err != nil {
		s.log.Warn().
			Str("order_id", order.ID).
			Str("payment_id", req.PaymentID).
			Int64("user_id", req.UserID).
			Msg("payment signature mismatch")
		return nil, err
	}

	existing, err := s.payments.GetPayment(ctx, req.PaymentID)
	switch {
	case err == nil:
		return s.replayed(c, order, existing)
	case !errors.Is(err, repository.ErrPaymentNotFound):
		return nil, fmt.Errorf("failed to look up payment: %w", err)
	}

	if order.Completed {
		return nil, ErrOrderAlreadyPaid
	}

	captured, err := s.gateway.Capture(ctx, req.PaymentID, order.AmountMinor(), order.Currency.String())
	if err != nil {
		return nil, err
	}
	if captured.OrderID != "" && captured.OrderID != order.ID {
		return nil, ErrPaymentConflict
	}

	payment := &domain.Payment{
		ID:      req.PaymentID,
		OrderID: order.ID,
		Status:  domain.PaymentStatusCompleted,
		Mode:    captured.Method,
	}
	payload, err := json.Marshal(paymentCompletedEvent{
		PaymentID:   payment.ID,
		OrderID:     order.ID,
		UserID:      order.UserID,
		Amount:      order.Amount,
		Currency:    order.Currency,
		Mode:        payment.Mode,
		CompletedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment payload: %w", err)
	}

	if err := s.payments.CompletePayment(ctx, payment, payload); err != nil {
		if errors.Is(err, repository.ErrDuplicatePayment) {
			// a concurrent delivery of the same callback won the insert
			existing, errGet := s.payments.GetPayment(ctx, req.PaymentID)
			if errGet == nil {
				return s.replayed(c, order, existing)
			}
		}
		return nil, err
	}

	if err := c.advance(domain.ConfirmationCompleted); err != nil {
		return nil, err
	}
	s.log.Info().
		Str("order_id", order.ID).
		Str("payment_id", payment.ID).
		Int64("user_id", order.UserID).
		Msg("payment completed")

	return &domain.ConfirmResponse{Payment: payment, State: c.state}, nil
}

func (s *PaymentService) replayed(c *confirmation, order *domain.Order, existing *domain.Payment) (*domain.ConfirmResponse, error) {
	if existing.OrderID != order.ID {
		return nil, ErrPaymentConflict
	}
	if err := c.advance(domain.ConfirmationCompleted); err != nil {
		return nil, err
	}
	return &domain.ConfirmResponse{Payment: existing, State: c.state, AlreadyConfirmed: true}, nil
}

func validateConfirm(req *domain.ConfirmRequest) *domain.ValidationError {
	verr := domain.NewValidationError()
	if strings.TrimSpace(req.PaymentID) == "" {
		verr.Add("razorpay_payment_id", "this field is required")
	}
	if strings.TrimSpace(req.OrderID) == "" {
		verr.Add("razorpay_order_id", "this field is required")
	}
	if strings.TrimSpace(req.Signature) == "" {
		verr.Add("razorpay_signature", "this field is required")
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

func (s *PaymentService) record(ctx context.Context, req *domain.ConfirmRequest, state domain.ConfirmationState, resp *domain.ConfirmResponse, err error) {
	entry := audit.Entry{
		UserID:     req.UserID,
		OrderID:    req.OrderID,
		PaymentID:  req.PaymentID,
		State:      state.String(),
		RequestID:  req.RequestID,
		ReceivedAt: time.Now().UTC(),
	}
	if resp != nil {
		entry.AlreadyConfirmed = resp.AlreadyConfirmed
	}
	if err != nil {
		entry.ErrorKind = errorKind(err)
		entry.Error = err.Error()
	}

	// journal even if the client went away
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if errRecord := s.journal.Record(rctx, entry); errRecord != nil {
		s.log.Error().Err(errRecord).Str("order_id", req.OrderID).Msg("failed to journal payment callback")
	}
}

func errorKind(err error) string {
	var verr *domain.ValidationError
	var rejected *gateway.RejectedError
	switch {
	case errors.As(err, &verr):
		return audit.KindValidation
	case errors.Is(err, repository.ErrOrderNotFound):
		return audit.KindOrderNotFound
	case errors.Is(err, gateway.ErrInvalidSignature):
		return audit.KindInvalidSignature
	case errors.Is(err, ErrPaymentConflict), errors.Is(err, ErrOrderAlreadyPaid):
		return audit.KindConflict
	case errors.As(err, &rejected):
		return audit.KindGatewayRejected
	case errors.Is(err, gateway.ErrUnavailable):
		return audit.KindGatewayDown
	default:
		return audit.KindInternal
	}
}
