package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinto-ag/emart/internal/audit"
	"github.com/jinto-ag/emart/internal/cache"
	"github.com/jinto-ag/emart/internal/catalog"
	"github.com/jinto-ag/emart/internal/domain"
	"github.com/jinto-ag/emart/internal/gateway"
	"github.com/jinto-ag/emart/internal/repository"
	"github.com/shopspring/decimal"
)

// mockCartRepository keeps one open cart per user in memory.
type mockCartRepository struct {
	m      sync.Mutex
	carts  map[int64]*domain.Cart
	err    error
	addErr error
	calls  int
	// onGet runs after an open cart was read, before it is returned.
	onGet func()
}

func newMockCartRepository() *mockCartRepository {
	return &mockCartRepository{carts: make(map[int64]*domain.Cart)}
}

func (m *mockCartRepository) GetOpenCart(_ context.Context, userID int64) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	cart, ok := m.carts[userID]
	if !ok {
		cart = &domain.Cart{ID: uuid.New(), UserID: userID, Items: []domain.CartItem{}, CreatedAt: time.Now()}
		m.carts[userID] = cart
	}
	copied := *cart
	copied.Items = append([]domain.CartItem(nil), cart.Items...)
	if m.onGet != nil {
		m.onGet()
	}
	return &copied, nil
}

func (m *mockCartRepository) cartByID(id uuid.UUID) *domain.Cart {
	for _, c := range m.carts {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (m *mockCartRepository) AddItem(_ context.Context, cartID uuid.UUID, productID int64, quantity int) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.addErr != nil {
		return m.addErr
	}
	cart := m.cartByID(cartID)
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID && cart.Items[i].Active {
			cart.Items[i].Quantity += quantity
			return nil
		}
	}
	cart.Items = append(cart.Items, domain.CartItem{
		ID: uuid.New(), CartID: cartID, ProductID: productID, Quantity: quantity, Active: true, AddedAt: time.Now(),
	})
	return nil
}

func (m *mockCartRepository) UpdateQuantity(_ context.Context, cartID uuid.UUID, productID int64, quantity int) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	cart := m.cartByID(cartID)
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID && cart.Items[i].Active {
			cart.Items[i].Quantity = quantity
			return nil
		}
	}
	return repository.ErrItemNotFound
}

func (m *mockCartRepository) RemoveItem(_ context.Context, cartID uuid.UUID, productID int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	cart := m.cartByID(cartID)
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID && cart.Items[i].Active {
			cart.Items[i].Active = false
			return nil
		}
	}
	return repository.ErrItemNotFound
}

// closeCart mimics checkout closing the cart; the next access opens a new one.
func (m *mockCartRepository) closeCart(userID int64) {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.carts, userID)
}

type mockCatalog struct {
	products map[int64]*domain.Product
	err      error
}

func newMockCatalog(products ...*domain.Product) *mockCatalog {
	m := &mockCatalog{products: make(map[int64]*domain.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *mockCatalog) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return p, nil
}

func (m *mockCatalog) GetProducts(_ context.Context, ids []int64) (map[int64]*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[int64]*domain.Product)
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func product(id int64, price string) *domain.Product {
	return &domain.Product{ID: id, Name: "product", Price: decimal.RequireFromString(price), Active: true}
}

type mockCache struct {
	m           sync.RWMutex
	carts       map[int64]*domain.Cart
	generations map[int64]int64
	currency    map[int64]domain.Currency
	err         error
}

func newMockCache() *mockCache {
	return &mockCache{
		carts:       make(map[int64]*domain.Cart),
		generations: make(map[int64]int64),
		currency:    make(map[int64]domain.Currency),
	}
}

func (m *mockCache) Get(_ context.Context, userID int64) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	cart, ok := m.carts[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return cart, nil
}

func (m *mockCache) Generation(_ context.Context, userID int64) (int64, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return 0, m.err
	}
	return m.generations[userID], nil
}

func (m *mockCache) Set(_ context.Context, userID int64, cart *domain.Cart, generation int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.generations[userID] == generation {
		m.carts[userID] = cart
	}
	return m.err
}

func (m *mockCache) Delete(_ context.Context, userID int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.carts, userID)
	m.generations[userID]++
	return m.err
}

func (m *mockCache) cached(userID int64) *domain.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.carts[userID]
}

func (m *mockCache) Currency(_ context.Context, userID int64) (domain.Currency, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return "", m.err
	}
	c, ok := m.currency[userID]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return c, nil
}

func (m *mockCache) SetCurrency(_ context.Context, userID int64, currency domain.Currency) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.currency[userID] = currency
	return m.err
}

// mockOrderRepository implements OrderRepository and PaymentRepository.
type mockOrderRepository struct {
	m         sync.Mutex
	orders    map[string]*domain.Order
	addresses map[uuid.UUID]*domain.Address
	payments  map[string]*domain.Payment
	placed    []*repository.PlaceOrder
	completed [][]byte
	createErr error
	getErr    error
	onCreate  func(p *repository.PlaceOrder)
	// keyMisses makes that many idempotency lookups miss, as they do for a
	// submission that races another one.
	keyMisses int
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{
		orders:    make(map[string]*domain.Order),
		addresses: make(map[uuid.UUID]*domain.Address),
		payments:  make(map[string]*domain.Payment),
	}
}

func (m *mockOrderRepository) CreateOrder(_ context.Context, p *repository.PlaceOrder) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	p.Order.BillingAddressID = p.Billing.ID
	p.Order.ShippingAddressID = p.Shipping.ID
	p.Order.CreatedAt = time.Now()
	billing, shipping := p.Billing, p.Shipping
	m.addresses[billing.ID] = &billing
	m.addresses[shipping.ID] = &shipping
	m.orders[p.Order.ID] = p.Order
	m.placed = append(m.placed, p)
	if m.onCreate != nil {
		m.onCreate(p)
	}
	return nil
}

func (m *mockOrderRepository) GetOrderByIdempotencyKey(_ context.Context, userID int64, key string) (*domain.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.keyMisses > 0 {
		m.keyMisses--
		return nil, repository.ErrOrderNotFound
	}
	for _, o := range m.orders {
		if o.UserID == userID && o.IdempotencyKey == key {
			return o, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *mockOrderRepository) GetOrderForUser(_ context.Context, userID int64, orderID string) (*domain.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	o, ok := m.orders[orderID]
	if !ok || o.UserID != userID {
		return nil, repository.ErrOrderNotFound
	}
	copied := *o
	return &copied, nil
}

func (m *mockOrderRepository) LatestPendingOrder(_ context.Context, userID int64) (*domain.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	var latest *domain.Order
	for _, o := range m.orders {
		if o.UserID == userID && !o.Completed && (latest == nil || o.CreatedAt.After(latest.CreatedAt)) {
			latest = o
		}
	}
	if latest == nil {
		return nil, repository.ErrOrderNotFound
	}
	return latest, nil
}

func (m *mockOrderRepository) ListOrders(_ context.Context, userID int64) ([]*domain.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	out := make([]*domain.Order, 0)
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrderRepository) GetAddress(_ context.Context, id uuid.UUID) (*domain.Address, error) {
	m.m.Lock()
	defer m.m.Unlock()
	a, ok := m.addresses[id]
	if !ok {
		return nil, repository.ErrAddressNotFound
	}
	return a, nil
}

func (m *mockOrderRepository) CompletePayment(_ context.Context, payment *domain.Payment, payload []byte) error {
	m.m.Lock()
	defer m.m.Unlock()
	if _, ok := m.payments[payment.ID]; ok {
		return repository.ErrDuplicatePayment
	}
	order, ok := m.orders[payment.OrderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	payment.CreatedAt = time.Now()
	m.payments[payment.ID] = payment
	order.Completed = true
	m.completed = append(m.completed, payload)
	return nil
}

func (m *mockOrderRepository) GetPayment(_ context.Context, id string) (*domain.Payment, error) {
	m.m.Lock()
	defer m.m.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}
	return p, nil
}

func (m *mockOrderRepository) ListPayments(_ context.Context, userID int64) ([]*domain.Payment, error) {
	m.m.Lock()
	defer m.m.Unlock()
	out := make([]*domain.Payment, 0)
	for _, p := range m.payments {
		if o, ok := m.orders[p.OrderID]; ok && o.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockOrderRepository) ListOrderPayments(_ context.Context, orderID string) ([]*domain.Payment, error) {
	m.m.Lock()
	defer m.m.Unlock()
	out := make([]*domain.Payment, 0)
	for _, p := range m.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockGateway struct {
	secret       string
	orderID      string
	createErr    error
	captureErr   error
	captureOrder string
	method       string
	createCalls  []gateway.OrderRequest
	captureCalls []captureCall
}

type captureCall struct {
	paymentID string
	amount    int64
	currency  string
}

func newMockGateway() *mockGateway {
	return &mockGateway{secret: "secret", orderID: "order_abc", method: "card"}
}

func (m *mockGateway) KeyID() string {
	return "rzp_test_key"
}

func (m *mockGateway) CreateOrder(_ context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	m.createCalls = append(m.createCalls, req)
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &gateway.Order{ID: m.orderID, Amount: req.Amount, Currency: req.Currency, Receipt: req.Receipt, Status: "created"}, nil
}

func (m *mockGateway) Capture(_ context.Context, paymentID string, amount int64, currency string) (*gateway.Payment, error) {
	m.captureCalls = append(m.captureCalls, captureCall{paymentID, amount, currency})
	if m.captureErr != nil {
		return nil, m.captureErr
	}
	return &gateway.Payment{ID: paymentID, OrderID: m.captureOrder, Amount: amount, Currency: currency, Status: "captured", Method: m.method, Captured: true}, nil
}

func (m *mockGateway) VerifyPaymentSignature(orderID, paymentID, signature string) error {
	if gateway.Sign(m.secret, orderID, paymentID) != signature {
		return gateway.ErrInvalidSignature
	}
	return nil
}

type mockJournal struct {
	m       sync.Mutex
	entries []audit.Entry
	err     error
}

func (m *mockJournal) Record(_ context.Context, entry audit.Entry) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.entries = append(m.entries, entry)
	return m.err
}

func (m *mockJournal) last() audit.Entry {
	m.m.Lock()
	defer m.m.Unlock()
	return m.entries[len(m.entries)-1]
}

type mockHistory struct {
	entries map[string][]audit.Entry
	err     error
}

func (m *mockHistory) ListByOrder(_ context.Context, orderID string) ([]audit.Entry, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.entries[orderID], nil
}
