package service

import (
	"errors"

	"github.com/jinto-ag/emart/internal/catalog"
	"github.com/jinto-ag/emart/internal/repository"
)

var (
	ErrEmptyCart           = errors.New("cart is empty, nothing to checkout")
	ErrInvalidQuantity     = errors.New("invalid quantity")
	ErrPaymentConflict     = errors.New("payment belongs to another order")
	ErrOrderAlreadyPaid    = errors.New("order is already paid")
	IllegalTransitionError = errors.New("illegal transition of confirmation state")

	ErrProductNotFound = catalog.ErrProductNotFound
	ErrItemNotFound    = repository.ErrItemNotFound
	ErrOrderNotFound   = repository.ErrOrderNotFound
	ErrCartChanged     = repository.ErrCartChanged
	ErrCartClosed      = repository.ErrCartClosed
)
