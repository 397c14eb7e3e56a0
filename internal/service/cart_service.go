package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jinto-ag/emart/internal/cache"
	"github.com/jinto-ag/emart/internal/domain"
	"github.com/jinto-ag/emart/internal/repository"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

type CartService struct {
	repo            CartRepository
	catalog         ProductCatalog
	cache           cache.CartCache
	sessions        cache.SessionStore
	defaultCurrency domain.Currency
	sfg             singleflight.Group // Prevents cache stampede
	log             zerolog.Logger
}

func NewCartService(
	repo CartRepository,
	catalog ProductCatalog,
	cartCache cache.CartCache,
	sessions cache.SessionStore,
	defaultCurrency domain.Currency,
	log zerolog.Logger,
) *CartService {
	return &CartService{
		repo:            repo,
		catalog:         catalog,
		cache:           cartCache,
		sessions:        sessions,
		defaultCurrency: defaultCurrency,
		log:             log,
	}
}

// GetCart returns the user's open cart priced at current catalog prices.
func (s *CartService) GetCart(ctx context.Context, userID int64) (*domain.PricedCart, error) {
	key := strconv.FormatInt(userID, 10)
	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn().Err(err).Int64("user_id", userID).Msg("cache get error") // log cache error but continue
		}

		// read before the store so a write committed meanwhile is detected
		gen, errGen := s.cache.Generation(ctx, userID)

		cart, err = s.repo.GetOpenCart(ctx, userID)
		if err != nil {
			return nil, err
		}

		if errGen != nil {
			return cart, nil
		}
		if errSet := s.cache.Set(ctx, userID, cart, gen); errSet != nil {
			s.log.Warn().Err(errSet).Int64("user_id", userID).Msg("cache set error")
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return s.price(ctx, v.(*domain.Cart))
}

// pricedCartFromStore bypasses the cache. Checkout must see what is stored.
func (s *CartService) pricedCartFromStore(ctx context.Context, userID int64) (*domain.PricedCart, error) {
	cart, err := s.repo.GetOpenCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.price(ctx, cart)
}

func (s *CartService) price(ctx context.Context, cart *domain.Cart) (*domain.PricedCart, error) {
	products, err := s.catalog.GetProducts(ctx, cart.ProductIDs())
	if err != nil {
		return nil, fmt.Errorf("load cart products: %w", err)
	}
	return domain.PriceCart(cart, products)
}

func (s *CartService) AddItem(ctx context.Context, userID, productID int64, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("%w: must be at least 1", ErrInvalidQuantity)
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if !product.Active {
		return ErrProductNotFound
	}

	cart, err := s.repo.GetOpenCart(ctx, userID)
	if err != nil {
		return err
	}
	if lineQuantity(cart, productID)+quantity > domain.MaxLineQuantity {
		return fmt.Errorf("%w: at most %d per item", ErrInvalidQuantity, domain.MaxLineQuantity)
	}

	if errAdd := s.repo.AddItem(ctx, cart.ID, productID, quantity); errAdd != nil {
		if errors.Is(errAdd, repository.ErrQuantityLimit) {
			return fmt.Errorf("%w: at most %d per item", ErrInvalidQuantity, domain.MaxLineQuantity)
		}
		s.log.Error().Err(errAdd).Int64("user_id", userID).Int64("product_id", productID).Msg("repo add item error")
		return errAdd
	}

	s.invalidateCache(userID)
	return nil
}

// UpdateQuantity sets a line's quantity. Zero keeps the line in the cart.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID int64, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("%w: must not be negative", ErrInvalidQuantity)
	}
	if quantity > domain.MaxLineQuantity {
		return fmt.Errorf("%w: at most %d per item", ErrInvalidQuantity, domain.MaxLineQuantity)
	}

	cart, err := s.repo.GetOpenCart(ctx, userID)
	if err != nil {
		return err
	}

	if errUpdate := s.repo.UpdateQuantity(ctx, cart.ID, productID, quantity); errUpdate != nil {
		s.log.Error().Err(errUpdate).Int64("user_id", userID).Int64("product_id", productID).Msg("repo update item quantity error")
		return errUpdate
	}

	s.invalidateCache(userID)
	return nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID int64) error {
	cart, err := s.repo.GetOpenCart(ctx, userID)
	if err != nil {
		return err
	}

	if errRemove := s.repo.RemoveItem(ctx, cart.ID, productID); errRemove != nil {
		s.log.Error().Err(errRemove).Int64("user_id", userID).Int64("product_id", productID).Msg("repo remove item error")
		return errRemove
	}

	s.invalidateCache(userID)
	return nil
}

// SetCurrency stores the currency for the user's checkout session.
func (s *CartService) SetCurrency(ctx context.Context, userID int64, raw string) (domain.Currency, error) {
	currency, err := domain.ParseCurrency(raw)
	if err != nil {
		verr := domain.NewValidationError()
		verr.Add("currency", err.Error())
		return "", verr
	}
	if err := s.sessions.SetCurrency(ctx, userID, currency); err != nil {
		return "", err
	}
	return currency, nil
}

// Currency returns the session currency, falling back to the configured
// default when none was chosen or the session store is unreachable.
func (s *CartService) Currency(ctx context.Context, userID int64) domain.Currency {
	currency, err := s.sessions.Currency(ctx, userID)
	if err == nil {
		return currency
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("session currency lookup failed")
	}
	return s.defaultCurrency
}

func (s *CartService) invalidateCache(userID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if errInvalidate := s.cache.Delete(ctx, userID); errInvalidate != nil {
		s.log.Warn().Err(errInvalidate).Int64("user_id", userID).Msg("cache invalidate error")
	}
}

// lineQuantity is the quantity of the product's active line, 0 if none.
func lineQuantity(cart *domain.Cart, productID int64) int {
	for _, item := range cart.Items {
		if item.ProductID == productID && item.Active {
			return item.Quantity
		}
	}
	return 0
}
