package domain

type CheckoutRequest struct {
	UserID         int64
	Billing        Address
	Shipping       *Address
	SameAsBilling  bool
	Currency       string
	IdempotencyKey string
}

// GatewayCheckout carries what the client needs to open the gateway's
// payment widget for an order.
type GatewayCheckout struct {
	OrderID     string   `json:"razorpay_order_id"`
	MerchantKey string   `json:"razorpay_merchant_key"`
	Amount      int64    `json:"razorpay_amount"`
	Currency    Currency `json:"razorpay_currency"`
	CallbackURL string   `json:"razorpay_callback_url"`
}

type CheckoutResponse struct {
	Order    *Order          `json:"order"`
	Gateway  GatewayCheckout `json:"gateway"`
	Replayed bool            `json:"replayed"`
}

type ConfirmRequest struct {
	UserID    int64
	PaymentID string
	OrderID   string
	Signature string
	RequestID string
}

type ConfirmResponse struct {
	Payment          *Payment          `json:"payment,omitempty"`
	State            ConfirmationState `json:"state"`
	AlreadyConfirmed bool              `json:"already_confirmed"`
}

// CheckoutFormError is returned when the address form is invalid. It keeps
// the submitted addresses so the form can be shown again as entered.
type CheckoutFormError struct {
	*ValidationError
	Billing  Address  `json:"billing"`
	Shipping *Address `json:"shipping,omitempty"`
}

func (e *CheckoutFormError) Unwrap() error {
	return e.ValidationError
}
