package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jinto-ag/emart/internal/domain"
)

// GetOpenCart returns the user's open cart with all of its items, creating
// the cart on first use.
func (r *Repository) GetOpenCart(ctx context.Context, userID int64) (*domain.Cart, error) {
	insert := `INSERT INTO carts (id, user_id, checked_out, created_at, updated_at)
	           VALUES ($1, $2, FALSE, NOW(), NOW())
	           ON CONFLICT (user_id) WHERE NOT checked_out DO NOTHING`
	if _, err := r.db.ExecContext(ctx, insert, uuid.New(), userID); err != nil {
		return nil, fmt.Errorf("ensure open cart: %w", err)
	}

	query := `SELECT id, user_id, checked_out, created_at, updated_at
	          FROM carts WHERE user_id = $1 AND NOT checked_out`
	var cart domain.Cart
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&cart.ID,
		&cart.UserID,
		&cart.CheckedOut,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		// lost a race with a checkout between the two statements
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query open cart: %w", err)
	}

	items, err := queryItems(ctx, r.db, cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Items = items
	return &cart, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryItems(ctx context.Context, q querier, cartID uuid.UUID) ([]domain.CartItem, error) {
	query := `SELECT id, cart_id, product_id, quantity, active, added_at
	          FROM cart_items WHERE cart_id = $1 AND active ORDER BY added_at, id`

	rows, err := q.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.CartItem, 0)
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(
			&item.ID,
			&item.CartID,
			&item.ProductID,
			&item.Quantity,
			&item.Active,
			&item.AddedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cart item row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

// AddItem increments the active line for the product, or creates it.
// ErrQuantityLimit is returned when the line would exceed
// domain.MaxLineQuantity; the line is left unchanged.
func (r *Repository) AddItem(ctx context.Context, cartID uuid.UUID, productID int64, quantity int) error {
	if quantity > domain.MaxLineQuantity {
		return ErrQuantityLimit
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := lockOpenCart(ctx, tx, cartID); err != nil {
			return err
		}

		upsert := `INSERT INTO cart_items (id, cart_id, product_id, quantity, active, added_at)
		           VALUES ($1, $2, $3, $4, TRUE, NOW())
		           ON CONFLICT (cart_id, product_id) WHERE active
		           DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		           WHERE cart_items.quantity + EXCLUDED.quantity <= $5`
		if err := execOne(ctx, tx, upsert, ErrQuantityLimit, uuid.New(), cartID, productID, quantity, domain.MaxLineQuantity); err != nil {
			return err
		}
		return touchCart(ctx, tx, cartID)
	})
}

// UpdateQuantity sets the quantity of an active line. Zero keeps the line.
func (r *Repository) UpdateQuantity(ctx context.Context, cartID uuid.UUID, productID int64, quantity int) error {
	if quantity > domain.MaxLineQuantity {
		return ErrQuantityLimit
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := lockOpenCart(ctx, tx, cartID); err != nil {
			return err
		}

		query := `UPDATE cart_items SET quantity = $3
		          WHERE cart_id = $1 AND product_id = $2 AND active`
		if err := execOne(ctx, tx, query, ErrItemNotFound, cartID, productID, quantity); err != nil {
			return err
		}
		return touchCart(ctx, tx, cartID)
	})
}

// RemoveItem deactivates the line. The row is kept for history.
func (r *Repository) RemoveItem(ctx context.Context, cartID uuid.UUID, productID int64) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := lockOpenCart(ctx, tx, cartID); err != nil {
			return err
		}

		query := `UPDATE cart_items SET active = FALSE
		          WHERE cart_id = $1 AND product_id = $2 AND active`
		if err := execOne(ctx, tx, query, ErrItemNotFound, cartID, productID); err != nil {
			return err
		}
		return touchCart(ctx, tx, cartID)
	})
}

// lockOpenCart takes the cart row lock shared with checkout so a cart
// cannot change while it is being ordered.
func lockOpenCart(ctx context.Context, tx *sql.Tx, cartID uuid.UUID) error {
	var checkedOut bool
	err := tx.QueryRowContext(ctx,
		`SELECT checked_out FROM carts WHERE id = $1 FOR UPDATE`, cartID,
	).Scan(&checkedOut)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrCartNotFound
	}
	if err != nil {
		return fmt.Errorf("lock cart: %w", err)
	}
	if checkedOut {
		return ErrCartClosed
	}
	return nil
}

func touchCart(ctx context.Context, tx *sql.Tx, cartID uuid.UUID) error {
	if _, err := tx.ExecContext(ctx, `UPDATE carts SET updated_at = NOW() WHERE id = $1`, cartID); err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}

// execOne runs an update that must affect exactly one row, returning
// notFound otherwise.
func execOne(ctx context.Context, tx *sql.Tx, query string, notFound error, args ...any) error {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
