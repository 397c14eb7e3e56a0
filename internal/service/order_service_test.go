package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jinto-ag/emart/internal/audit"
	"github.com/jinto-ag/emart/internal/domain"
	"github.com/jinto-ag/emart/internal/gateway"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderService_History(t *testing.T) {
	f := newCheckoutFixture(CheckoutConfig{})
	f.fillCart(t, 7)
	ctx := context.Background()
	_, err := f.sut.Checkout(ctx, &domain.CheckoutRequest{UserID: 7, Billing: validAddress(), SameAsBilling: true})
	require.NoError(t, err)

	journal := &mockJournal{}
	payments := NewPaymentService(f.orders, f.orders, f.gateway, journal, zerolog.Nop())
	forged := signedRequest("order_abc", "pay_xyz")
	forged.Signature = "forged"
	_, err = payments.Confirm(ctx, forged)
	require.ErrorIs(t, err, gateway.ErrInvalidSignature)
	_, err = payments.Confirm(ctx, signedRequest("order_abc", "pay_xyz"))
	require.NoError(t, err)

	history := &mockHistory{entries: map[string][]audit.Entry{"order_abc": journal.entries}}
	sut := NewOrderService(f.orders, f.orders, history, zerolog.Nop())

	orders, err := sut.ListOrders(ctx, 7)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.True(t, orders[0].Completed)

	detail, err := sut.GetOrder(ctx, 7, "order_abc")
	require.NoError(t, err)
	assert.Equal(t, "Kochi", detail.Billing.City)
	assert.Equal(t, "Kochi", detail.Shipping.City)
	require.Len(t, detail.Payments, 1)
	assert.Equal(t, "pay_xyz", detail.Payments[0].ID)
	require.Len(t, detail.Attempts, 2)
	assert.Equal(t, audit.KindInvalidSignature, detail.Attempts[0].ErrorKind)
	assert.Empty(t, detail.Attempts[1].ErrorKind)

	list, err := sut.ListPayments(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	empty, err := sut.ListPayments(ctx, 8)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestOrderService_GetOrderOfOtherUser(t *testing.T) {
	orders := newMockOrderRepository()
	orders.orders["order_abc"] = &domain.Order{ID: "order_abc", UserID: 7}
	sut := NewOrderService(orders, orders, nil, zerolog.Nop())

	_, err := sut.GetOrder(context.Background(), 8, "order_abc")

	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderService_JournalErrorLeavesAttemptsEmpty(t *testing.T) {
	orders := newMockOrderRepository()
	billing := validAddress().Snapshot()
	orders.addresses[billing.ID] = &billing
	orders.orders["order_abc"] = &domain.Order{
		ID: "order_abc", UserID: 7, BillingAddressID: billing.ID, ShippingAddressID: billing.ID, CreatedAt: time.Now(),
	}
	sut := NewOrderService(orders, orders, &mockHistory{err: errors.New("mongo down")}, zerolog.Nop())

	detail, err := sut.GetOrder(context.Background(), 7, "order_abc")

	require.NoError(t, err)
	assert.NotNil(t, detail.Attempts)
	assert.Empty(t, detail.Attempts)
}
