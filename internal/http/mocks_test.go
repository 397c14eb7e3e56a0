package http

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/jinto-ag/emart/internal/domain"
	"github.com/shopspring/decimal"
)

var testSecret = []byte("test-secret")

func signToken(userID int64, secret []byte, ttl time.Duration) string {
	claims := &Claims{
		UserID: userID,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(ttl).Unix(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		panic(err)
	}
	return token
}

func withUser(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

type mockCartService struct {
	cart        *domain.PricedCart
	err         error
	getErr      error
	currency    domain.Currency
	added       []int64
	lastQty     int
	setCurrency string
}

func newPricedCart(userID int64) *domain.PricedCart {
	item := domain.CartItem{ProductID: 1, Quantity: 2, Active: true}
	return &domain.PricedCart{
		Cart: &domain.Cart{ID: uuid.New(), UserID: userID, Items: []domain.CartItem{item}},
		Lines: []domain.PricedLine{{
			Item:        item,
			ProductName: "Cotton Kurta",
			UnitPrice:   decimal.NewFromInt(100),
			Subtotal:    decimal.NewFromInt(200),
		}},
		Total: decimal.NewFromInt(200),
	}
}

func (m *mockCartService) GetCart(_ context.Context, userID int64) (*domain.PricedCart, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.cart == nil {
		return newPricedCart(userID), nil
	}
	return m.cart, nil
}

func (m *mockCartService) AddItem(_ context.Context, _, productID int64, quantity int) error {
	m.added = append(m.added, productID)
	m.lastQty = quantity
	return m.err
}

func (m *mockCartService) UpdateQuantity(_ context.Context, _, _ int64, quantity int) error {
	m.lastQty = quantity
	return m.err
}

func (m *mockCartService) RemoveItem(context.Context, int64, int64) error {
	return m.err
}

func (m *mockCartService) SetCurrency(_ context.Context, _ int64, currency string) (domain.Currency, error) {
	m.setCurrency = currency
	if m.err != nil {
		return "", m.err
	}
	return domain.ParseCurrency(currency)
}

func (m *mockCartService) Currency(context.Context, int64) domain.Currency {
	if m.currency == "" {
		return domain.CurrencyINR
	}
	return m.currency
}

type mockCheckoutService struct {
	resp *domain.CheckoutResponse
	page *domain.GatewayCheckout
	err  error
	req  *domain.CheckoutRequest
}

func (m *mockCheckoutService) Checkout(_ context.Context, req *domain.CheckoutRequest) (*domain.CheckoutResponse, error) {
	m.req = req
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func (m *mockCheckoutService) PaymentPage(context.Context, int64) (*domain.GatewayCheckout, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.page, nil
}

type mockPaymentService struct {
	resp *domain.ConfirmResponse
	err  error
	req  *domain.ConfirmRequest
}

func (m *mockPaymentService) Confirm(_ context.Context, req *domain.ConfirmRequest) (*domain.ConfirmResponse, error) {
	m.req = req
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

type mockOrderService struct {
	orders   []*domain.Order
	detail   *domain.OrderDetail
	payments []*domain.Payment
	err      error
}

func (m *mockOrderService) ListOrders(context.Context, int64) ([]*domain.Order, error) {
	return m.orders, m.err
}

func (m *mockOrderService) GetOrder(context.Context, int64, string) (*domain.OrderDetail, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.detail, nil
}

func (m *mockOrderService) ListPayments(context.Context, int64) ([]*domain.Payment, error) {
	return m.payments, m.err
}

type mockProducts struct {
	products []*domain.Product
	err      error
}

func (m *mockProducts) ListProducts(context.Context) ([]*domain.Product, error) {
	return m.products, m.err
}

func product(id int64, price string) *domain.Product {
	return &domain.Product{ID: id, Name: "product", Price: decimal.RequireFromString(price), Active: true}
}
