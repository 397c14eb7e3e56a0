package cache

import (
	"context"
	"errors"

	"github.com/jinto-ag/emart/internal/domain"
)

// CartCache holds the unpriced cart structure. Prices are never cached.
//
// Every Delete moves the user's generation forward. Set only stores a cart
// while the generation still equals the one read before the cart was
// loaded, so a read racing a write cannot cache the old cart.
type CartCache interface {
	Get(ctx context.Context, userID int64) (*domain.Cart, error)
	Generation(ctx context.Context, userID int64) (int64, error)
	Set(ctx context.Context, userID int64, cart *domain.Cart, generation int64) error
	Delete(ctx context.Context, userID int64) error
}

// SessionStore keeps per user checkout session state.
type SessionStore interface {
	Currency(ctx context.Context, userID int64) (domain.Currency, error)
	SetCurrency(ctx context.Context, userID int64, currency domain.Currency) error
}

var ErrCacheMiss = errors.New("cache miss")
