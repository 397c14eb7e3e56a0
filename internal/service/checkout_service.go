package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jinto-ag/emart/internal/domain"
	"github.com/jinto-ag/emart/internal/gateway"
	"github.com/jinto-ag/emart/internal/repository"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type CheckoutConfig struct {
	Delivery    DeliveryCharger
	Adjust      ChargeAdjuster
	CallbackURL string
}

type CheckoutService struct {
	carts       *CartService
	orders      OrderRepository
	gateway     Gateway
	delivery    DeliveryCharger
	adjust      ChargeAdjuster
	callbackURL string
	log         zerolog.Logger
}

func NewCheckoutService(carts *CartService, orders OrderRepository, gw Gateway, cfg CheckoutConfig, log zerolog.Logger) *CheckoutService {
	if cfg.Delivery == nil {
		cfg.Delivery = FlatDeliveryCharge(decimal.Zero)
	}
	if cfg.Adjust == nil {
		cfg.Adjust = NoAdjustment
	}
	return &CheckoutService{
		carts:       carts,
		orders:      orders,
		gateway:     gw,
		delivery:    cfg.Delivery,
		adjust:      cfg.Adjust,
		callbackURL: cfg.CallbackURL,
		log:         log,
	}
}

type orderCreatedItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type orderCreatedEvent struct {
	OrderID        string             `json:"order_id"`
	UserID         int64              `json:"user_id"`
	CartID         string             `json:"cart_id"`
	Amount         decimal.Decimal    `json:"amount"`
	DeliveryCharge decimal.Decimal    `json:"delivery_charge"`
	Currency       domain.Currency    `json:"currency"`
	Items          []orderCreatedItem `json:"items"`
	CreatedAt      time.Time          `json:"created_at"`
}

// Checkout turns the user's open cart into an order with a gateway order
// id. Nothing is persisted unless the gateway accepted the order.
func (s *CheckoutService) Checkout(ctx context.Context, req *domain.CheckoutRequest) (*domain.CheckoutResponse, error) {
	shipping, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	currency := s.carts.Currency(ctx, req.UserID)
	if req.Currency != "" {
		if currency, err = domain.ParseCurrency(req.Currency); err != nil {
			verr := domain.NewValidationError()
			verr.Add("currency", err.Error())
			return nil, verr
		}
	}

	if existing, err := s.findReplay(ctx, req); err != nil {
		return nil, err
	} else if existing != nil {
		return s.response(existing, true), nil
	}

	priced, err := s.carts.pricedCartFromStore(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if priced.IsEmpty() {
		// a concurrent submission with the same key may have just closed the cart
		if existing, errFind := s.findReplay(ctx, req); errFind == nil && existing != nil {
			return s.response(existing, true), nil
		}
		return nil, ErrEmptyCart
	}

	delivery, err := s.delivery.DeliveryCharge(ctx, shipping, priced)
	if err != nil {
		return nil, fmt.Errorf("delivery charge: %w", err)
	}
	delivery = delivery.Round(2)
	amount := s.adjust(priced.Total.Add(delivery)).Round(2)

	gwOrder, err := s.gateway.CreateOrder(ctx, gateway.OrderRequest{
		Amount:   domain.ToMinorUnits(amount),
		Currency: currency.String(),
		Receipt:  priced.Cart.ID.String(),
	})
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:             gwOrder.ID,
		CartID:         priced.Cart.ID,
		UserID:         req.UserID,
		Amount:         amount,
		Currency:       currency,
		DeliveryCharge: delivery,
		IdempotencyKey: req.IdempotencyKey,
	}
	payload, err := json.Marshal(newOrderCreatedEvent(order, priced))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order payload: %w", err)
	}

	err = s.orders.CreateOrder(ctx, &repository.PlaceOrder{
		Order:      order,
		Billing:    req.Billing.Snapshot(),
		Shipping:   shipping.Snapshot(),
		Quantities: priced.Quantities(),
		Payload:    payload,
	})
	if err != nil {
		// the gateway order is left unpaid and expires on the gateway side
		s.log.Warn().Err(err).Str("gateway_order_id", gwOrder.ID).Int64("user_id", req.UserID).Msg("order not persisted")
		if lostRace(err) {
			if existing, errFind := s.findReplay(ctx, req); errFind == nil && existing != nil {
				return s.response(existing, true), nil
			}
		}
		return nil, err
	}

	s.carts.invalidateCache(req.UserID)
	s.log.Info().
		Str("order_id", order.ID).
		Int64("user_id", order.UserID).
		Str("amount", order.Amount.StringFixed(2)).
		Str("currency", order.Currency.String()).
		Msg("order created")

	return s.response(order, false), nil
}

// findReplay returns the order already placed under the request's
// idempotency key, or nil when there is none.
func (s *CheckoutService) findReplay(ctx context.Context, req *domain.CheckoutRequest) (*domain.Order, error) {
	if req.IdempotencyKey == "" {
		return nil, nil
	}
	existing, err := s.orders.GetOrderByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	s.log.Info().
		Str("idempotency_key", req.IdempotencyKey).
		Str("order_id", existing.ID).
		Msg("duplicate checkout request detected")
	return existing, nil
}

// lostRace reports errors a submission gets when another one checked the
// same cart out first.
func lostRace(err error) bool {
	return errors.Is(err, repository.ErrCartClosed) ||
		errors.Is(err, repository.ErrCartChanged) ||
		errors.Is(err, repository.ErrDuplicateOrder)
}

// validate checks the address form and returns the shipping address to use.
func (s *CheckoutService) validate(req *domain.CheckoutRequest) (domain.Address, error) {
	verr := domain.NewValidationError()
	verr.Merge(req.Billing.Validate("billing"))

	var shipping domain.Address
	switch {
	case req.SameAsBilling:
		shipping = req.Billing
	case req.Shipping == nil:
		verr.Add("shipping", "this field is required")
	default:
		shipping = *req.Shipping
		verr.Merge(shipping.Validate("shipping"))
	}

	if !verr.Empty() {
		return domain.Address{}, &domain.CheckoutFormError{
			ValidationError: verr,
			Billing:         req.Billing,
			Shipping:        req.Shipping,
		}
	}
	return shipping, nil
}

// PaymentPage returns the gateway parameters for the user's newest unpaid
// order.
func (s *CheckoutService) PaymentPage(ctx context.Context, userID int64) (*domain.GatewayCheckout, error) {
	order, err := s.orders.LatestPendingOrder(ctx, userID)
	if err != nil {
		return nil, err
	}
	gw := s.gatewayCheckout(order)
	return &gw, nil
}

func (s *CheckoutService) response(order *domain.Order, replayed bool) *domain.CheckoutResponse {
	return &domain.CheckoutResponse{
		Order:    order,
		Gateway:  s.gatewayCheckout(order),
		Replayed: replayed,
	}
}

func (s *CheckoutService) gatewayCheckout(order *domain.Order) domain.GatewayCheckout {
	return domain.GatewayCheckout{
		OrderID:     order.ID,
		MerchantKey: s.gateway.KeyID(),
		Amount:      order.AmountMinor(),
		Currency:    order.Currency,
		CallbackURL: s.callbackURL,
	}
}

func newOrderCreatedEvent(order *domain.Order, priced *domain.PricedCart) orderCreatedEvent {
	items := make([]orderCreatedItem, 0, len(priced.Lines))
	for _, line := range priced.Lines {
		if line.Item.Quantity == 0 {
			continue
		}
		items = append(items, orderCreatedItem{
			ProductID: line.Item.ProductID,
			Name:      line.ProductName,
			Quantity:  line.Item.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	return orderCreatedEvent{
		OrderID:        order.ID,
		UserID:         order.UserID,
		CartID:         order.CartID.String(),
		Amount:         order.Amount,
		DeliveryCharge: order.DeliveryCharge,
		Currency:       order.Currency,
		Items:          items,
		CreatedAt:      time.Now().UTC(),
	}
}
