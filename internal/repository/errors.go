package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrCartNotFound     = errors.New("cart not found")
	ErrCartClosed       = errors.New("cart is already checked out")
	ErrCartChanged      = errors.New("cart changed during checkout")
	ErrItemNotFound     = errors.New("cart item not found")
	ErrQuantityLimit    = errors.New("line quantity limit exceeded")
	ErrOrderNotFound    = errors.New("order not found")
	ErrDuplicateOrder   = errors.New("order already exists")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrAddressNotFound  = errors.New("address not found")
	ErrDuplicatePayment = errors.New("payment already recorded")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
