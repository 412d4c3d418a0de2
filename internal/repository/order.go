package repository

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/promo-engine/internal/domain/discount"
	"github.com/xenking/promo-engine/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, items, customer_email, subtotal, discount, total, discount_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	// redeemDiscountSQL increments the counter only while the cap allows it,
	// so concurrent checkouts cannot over-redeem.
	redeemDiscountSQL = `UPDATE discounts SET used_count = used_count + 1
		WHERE UPPER(code) = UPPER($1) AND (max_usage IS NULL OR used_count < max_usage)`

	hasOrdersSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE LOWER(customer_email) = LOWER($1))`
)

var (
	_ order.Repository      = (*OrderRepository)(nil)
	_ discount.OrderHistory = (*OrderRepository)(nil)
)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order and redeems its discount code in one
// transaction. The order items are serialized to JSON for the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshal order items")
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if o.DiscountCode != "" {
			tag, err := tx.Exec(ctx, redeemDiscountSQL, o.DiscountCode)
			if err != nil {
				return errors.Wrapf(err, "redeem discount %q", o.DiscountCode)
			}
			if tag.RowsAffected() == 0 {
				return discount.ErrUsageExhausted
			}
		}

		_, err := tx.Exec(ctx, createOrderSQL,
			o.ID, itemsJSON, o.CustomerEmail, o.Subtotal, o.Discount, o.Total, o.DiscountCode, o.CreatedAt,
		)
		if err != nil {
			return errors.Wrapf(err, "create order %q", o.ID)
		}
		return nil
	})
}

// HasOrders reports whether any order was placed with email.
func (r *OrderRepository) HasOrders(ctx context.Context, email string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, hasOrdersSQL, email).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "check order history")
	}
	return exists, nil
}
