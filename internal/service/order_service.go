package service

import (
	"context"
	"fmt"

	"github.com/jinto-ag/emart/internal/audit"
	"github.com/jinto-ag/emart/internal/domain"
	"github.com/rs/zerolog"
)

// OrderService serves the read only order and payment history.
type OrderService struct {
	orders   OrderRepository
	payments PaymentRepository
	history  CallbackHistory
	log      zerolog.Logger
}

func NewOrderService(orders OrderRepository, payments PaymentRepository, history CallbackHistory, log zerolog.Logger) *OrderService {
	return &OrderService{orders: orders, payments: payments, history: history, log: log}
}

// ListOrders returns the user's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID int64) ([]*domain.Order, error) {
	return s.orders.ListOrders(ctx, userID)
}

// GetOrder returns an order of the user with its addresses, payments and
// callback attempts. Orders of other users are reported as not found.
func (s *OrderService) GetOrder(ctx context.Context, userID int64, orderID string) (*domain.OrderDetail, error) {
	order, err := s.orders.GetOrderForUser(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	billing, err := s.orders.GetAddress(ctx, order.BillingAddressID)
	if err != nil {
		return nil, fmt.Errorf("billing address: %w", err)
	}
	shipping, err := s.orders.GetAddress(ctx, order.ShippingAddressID)
	if err != nil {
		return nil, fmt.Errorf("shipping address: %w", err)
	}
	payments, err := s.payments.ListOrderPayments(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	return &domain.OrderDetail{
		Order:    order,
		Billing:  billing,
		Shipping: shipping,
		Payments: payments,
		Attempts: s.callbackAttempts(ctx, order.ID),
	}, nil
}

// callbackAttempts is best effort; the journal is not the source of truth
// for an order, so a failed read only leaves the list empty.
func (s *OrderService) callbackAttempts(ctx context.Context, orderID string) []domain.CallbackAttempt {
	attempts := make([]domain.CallbackAttempt, 0)
	if s.history == nil {
		return attempts
	}

	entries, err := s.history.ListByOrder(ctx, orderID)
	if err != nil {
		s.log.Warn().Err(err).Str("order_id", orderID).Msg("failed to read callback journal")
		return attempts
	}
	for _, e := range entries {
		attempts = append(attempts, toCallbackAttempt(e))
	}
	return attempts
}

func toCallbackAttempt(e audit.Entry) domain.CallbackAttempt {
	return domain.CallbackAttempt{
		PaymentID:        e.PaymentID,
		State:            e.State,
		ErrorKind:        e.ErrorKind,
		AlreadyConfirmed: e.AlreadyConfirmed,
		ReceivedAt:       e.ReceivedAt,
	}
}

func (s *OrderService) ListPayments(ctx context.Context, userID int64) ([]*domain.Payment, error) {
	return s.payments.ListPayments(ctx, userID)
}
