package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jinto-ag/emart/internal/domain"
)

// CompletePayment records a captured payment, marks its order completed and
// enqueues payment.completed, all or nothing.
func (r *Repository) CompletePayment(ctx context.Context, payment *domain.Payment, payload []byte) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		query := `INSERT INTO payments (id, order_id, status, mode, created_at)
		          VALUES ($1, $2, $3, $4, NOW())
		          RETURNING created_at`
		err := tx.QueryRowContext(ctx, query,
			payment.ID,
			payment.OrderID,
			string(payment.Status),
			payment.Mode,
		).Scan(&payment.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicatePayment
			}
			return fmt.Errorf("insert payment: %w", err)
		}

		update := `UPDATE orders SET completed = TRUE, updated_at = NOW() WHERE id = $1`
		if err := execOne(ctx, tx, update, ErrOrderNotFound, payment.OrderID); err != nil {
			return err
		}

		return insertOutboxEvent(ctx, tx, payment.OrderID, domain.EventPaymentCompleted, payload)
	})
}

func (r *Repository) GetPayment(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT id, order_id, status, mode, created_at FROM payments WHERE id = $1`
	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query payment: %w", err)
	}
	return payment, nil
}

// ListPayments returns the payments of every order the user placed, newest
// first.
func (r *Repository) ListPayments(ctx context.Context, userID int64) ([]*domain.Payment, error) {
	query := `SELECT p.id, p.order_id, p.status, p.mode, p.created_at
	          FROM payments p JOIN orders o ON o.id = p.order_id
	          WHERE o.user_id = $1 ORDER BY p.created_at DESC`

	return r.queryPayments(ctx, query, userID)
}

func (r *Repository) ListOrderPayments(ctx context.Context, orderID string) ([]*domain.Payment, error) {
	query := `SELECT id, order_id, status, mode, created_at
	          FROM payments WHERE order_id = $1 ORDER BY created_at`
	return r.queryPayments(ctx, query, orderID)
}

func (r *Repository) queryPayments(ctx context.Context, query string, args ...any) ([]*domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	payments := make([]*domain.Payment, 0)
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return payments, nil
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var p domain.Payment
	var status string
	if err := row.Scan(&p.ID, &p.OrderID, &status, &p.Mode, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Status = domain.PaymentStatus(status)
	return &p, nil
}
