package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is the immutable priced snapshot created at checkout. Its ID is the
// identifier issued by the payment gateway.
type Order struct {
	ID                string          `json:"id"`
	CartID            uuid.UUID       `json:"cart_id"`
	UserID            int64           `json:"user_id"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          Currency        `json:"currency"`
	DeliveryCharge    decimal.Decimal `json:"delivery_charge"`
	BillingAddressID  uuid.UUID       `json:"billing_address_id"`
	ShippingAddressID uuid.UUID       `json:"shipping_address_id"`
	Completed         bool            `json:"completed"`
	IdempotencyKey    string          `json:"idempotency_key,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// AmountMinor is the frozen amount in the unit the gateway charges in.
func (o *Order) AmountMinor() int64 {
	return ToMinorUnits(o.Amount)
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment records a captured fund transfer. Its ID is the gateway payment id.
type Payment struct {
	ID        string        `json:"id"`
	OrderID   string        `json:"order_id"`
	Status    PaymentStatus `json:"status"`
	Mode      string        `json:"mode"`
	CreatedAt time.Time     `json:"created_at"`
}

// CallbackAttempt is one payment callback received for an order.
// ErrorKind is empty when the attempt succeeded.
type CallbackAttempt struct {
	PaymentID        string    `json:"payment_id"`
	State            string    `json:"state"`
	ErrorKind        string    `json:"error_kind,omitempty"`
	AlreadyConfirmed bool      `json:"already_confirmed"`
	ReceivedAt       time.Time `json:"received_at"`
}

// OrderDetail is an order with its address snapshots, payments and
// callback attempts.
type OrderDetail struct {
	*Order
	Billing  *Address          `json:"billing_address"`
	Shipping *Address          `json:"shipping_address"`
	Payments []*Payment        `json:"payments"`
	Attempts []CallbackAttempt `json:"callback_attempts"`
}
