package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jinto-ag/emart/internal/audit"
	"github.com/jinto-ag/emart/internal/domain"
	"github.com/jinto-ag/emart/internal/gateway"
	"github.com/jinto-ag/emart/internal/repository"
	"github.com/shopspring/decimal"
)

// Consumers define these interfaces; the postgres, sqlite, mongo and
// razorpay implementations live in their own packages.

type CartRepository interface {
	GetOpenCart(ctx context.Context, userID int64) (*domain.Cart, error)
	AddItem(ctx context.Context, cartID uuid.UUID, productID int64, quantity int) error
	UpdateQuantity(ctx context.Context, cartID uuid.UUID, productID int64, quantity int) error
	RemoveItem(ctx context.Context, cartID uuid.UUID, productID int64) error
}

type ProductCatalog interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	GetProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error)
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, p *repository.PlaceOrder) error
	GetOrderByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Order, error)
	GetOrderForUser(ctx context.Context, userID int64, orderID string) (*domain.Order, error)
	LatestPendingOrder(ctx context.Context, userID int64) (*domain.Order, error)
	ListOrders(ctx context.Context, userID int64) ([]*domain.Order, error)
	GetAddress(ctx context.Context, id uuid.UUID) (*domain.Address, error)
}

type PaymentRepository interface {
	CompletePayment(ctx context.Context, payment *domain.Payment, payload []byte) error
	GetPayment(ctx context.Context, id string) (*domain.Payment, error)
	ListPayments(ctx context.Context, userID int64) ([]*domain.Payment, error)
	ListOrderPayments(ctx context.Context, orderID string) ([]*domain.Payment, error)
}

type Gateway interface {
	KeyID() string
	CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error)
	Capture(ctx context.Context, paymentID string, amount int64, currency string) (*gateway.Payment, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) error
}

type CallbackJournal interface {
	Record(ctx context.Context, entry audit.Entry) error
}

type CallbackHistory interface {
	ListByOrder(ctx context.Context, orderID string) ([]audit.Entry, error)
}

// DeliveryCharger prices delivery to the shipping address.
type DeliveryCharger interface {
	DeliveryCharge(ctx context.Context, shipping domain.Address, cart *domain.PricedCart) (decimal.Decimal, error)
}

// FlatDeliveryCharge charges the same amount for every order.
type FlatDeliveryCharge decimal.Decimal

func (f FlatDeliveryCharge) DeliveryCharge(context.Context, domain.Address, *domain.PricedCart) (decimal.Decimal, error) {
	return decimal.Decimal(f), nil
}

// ChargeAdjuster turns cart total plus delivery into the amount charged,
// e.g. to apply gateway fees or discounts.
type ChargeAdjuster func(amount decimal.Decimal) decimal.Decimal

func NoAdjustment(amount decimal.Decimal) decimal.Decimal {
	return amount
}
