package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jinto-ag/emart/internal/domain"
)

// PlaceOrder is everything written atomically when a cart is checked out.
type PlaceOrder struct {
	Order    *domain.Order
	Billing  domain.Address
	Shipping domain.Address
	// Quantities are the cart lines the order was priced from. The cart
	// must still hold exactly these lines.
	Quantities map[int64]int
	// Payload is the order.created event body.
	Payload []byte
}

const orderColumns = `id, cart_id, user_id, amount, currency, delivery_charge,
	billing_address_id, shipping_address_id, completed, COALESCE(idempotency_key, ''),
	created_at, updated_at`

// CreateOrder persists the addresses and the order, closes the cart and
// enqueues the order.created event in one transaction.
func (r *Repository) CreateOrder(ctx context.Context, p *PlaceOrder) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := lockOpenCart(ctx, tx, p.Order.CartID); err != nil {
			return err
		}

		items, err := queryItems(ctx, tx, p.Order.CartID)
		if err != nil {
			return err
		}
		if !sameQuantities(items, p.Quantities) {
			return ErrCartChanged
		}

		if err := insertAddress(ctx, tx, &p.Billing); err != nil {
			return err
		}
		if err := insertAddress(ctx, tx, &p.Shipping); err != nil {
			return err
		}
		p.Order.BillingAddressID = p.Billing.ID
		p.Order.ShippingAddressID = p.Shipping.ID

		query := `INSERT INTO orders (id, cart_id, user_id, amount, currency, delivery_charge,
		          billing_address_id, shipping_address_id, completed, idempotency_key, created_at, updated_at)
		          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9, NOW(), NOW())
		          RETURNING created_at, updated_at`
		err = tx.QueryRowContext(ctx, query,
			p.Order.ID,
			p.Order.CartID,
			p.Order.UserID,
			p.Order.Amount,
			string(p.Order.Currency),
			p.Order.DeliveryCharge,
			p.Order.BillingAddressID,
			p.Order.ShippingAddressID,
			nullString(p.Order.IdempotencyKey),
		).Scan(&p.Order.CreatedAt, &p.Order.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateOrder
			}
			return fmt.Errorf("insert order: %w", err)
		}
		p.Order.Completed = false

		if _, err := tx.ExecContext(ctx,
			`UPDATE carts SET checked_out = TRUE, updated_at = NOW() WHERE id = $1`, p.Order.CartID,
		); err != nil {
			return fmt.Errorf("close cart: %w", err)
		}

		return insertOutboxEvent(ctx, tx, p.Order.ID, domain.EventOrderCreated, p.Payload)
	})
}

func sameQuantities(items []domain.CartItem, want map[int64]int) bool {
	got := make(map[int64]int, len(items))
	for _, item := range items {
		got[item.ProductID] += item.Quantity
	}
	if len(got) != len(want) {
		return false
	}
	for id, qty := range want {
		if got[id] != qty {
			return false
		}
	}
	return true
}

func insertAddress(ctx context.Context, tx *sql.Tx, a *domain.Address) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	query := `INSERT INTO addresses (id, building_name, place, street, city, district, state,
	          country, post_office, post_code, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	          RETURNING created_at`
	err := tx.QueryRowContext(ctx, query,
		a.ID,
		a.BuildingName,
		a.Place,
		a.Street,
		a.City,
		a.District,
		a.State,
		a.Country,
		a.PostOffice,
		a.PostCode,
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert address: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var currency string
	if err := row.Scan(
		&order.ID,
		&order.CartID,
		&order.UserID,
		&order.Amount,
		&currency,
		&order.DeliveryCharge,
		&order.BillingAddressID,
		&order.ShippingAddressID,
		&order.Completed,
		&order.IdempotencyKey,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		return nil, err
	}
	order.Currency = domain.Currency(currency)
	return &order, nil
}

func (r *Repository) queryOrder(ctx context.Context, where string, args ...any) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + where
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return order, nil
}

// GetOrderForUser returns the order only if it belongs to userID.
func (r *Repository) GetOrderForUser(ctx context.Context, userID int64, orderID string) (*domain.Order, error) {
	return r.queryOrder(ctx, `id = $1 AND user_id = $2`, orderID, userID)
}

func (r *Repository) GetOrderByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Order, error) {
	return r.queryOrder(ctx, `user_id = $1 AND idempotency_key = $2`, userID, key)
}

// LatestPendingOrder is the user's newest order still waiting for payment.
func (r *Repository) LatestPendingOrder(ctx context.Context, userID int64) (*domain.Order, error) {
	return r.queryOrder(ctx, `user_id = $1 AND NOT completed ORDER BY created_at DESC LIMIT 1`, userID)
}

func (r *Repository) ListOrders(ctx context.Context, userID int64) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, nil
}

func (r *Repository) GetAddress(ctx context.Context, id uuid.UUID) (*domain.Address, error) {
	query := `SELECT id, building_name, place, street, city, district, state, country,
	          post_office, post_code, created_at FROM addresses WHERE id = $1`
	var a domain.Address
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID,
		&a.BuildingName,
		&a.Place,
		&a.Street,
		&a.City,
		&a.District,
		&a.State,
		&a.Country,
		&a.PostOffice,
		&a.PostCode,
		&a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAddressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query address: %w", err)
	}
	return &a, nil
}
