package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order is a placed customer order with its pricing breakdown.
type Order struct {
	ID            string
	Items         []Item
	CustomerEmail string
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	Total         decimal.Decimal
	DiscountCode  string
	CreatedAt     time.Time
}

// Item is a single priced line of an order. Prices are captured at checkout.
type Item struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create persists o. When o.DiscountCode is set the discount is redeemed
	// in the same transaction; discount.ErrUsageExhausted is returned if its
	// usage cap was reached in the meantime.
	Create(ctx context.Context, o *Order) error
	// HasOrders reports whether any order exists for email, compared
	// case-insensitively.
	HasOrders(ctx context.Context, email string) (bool, error)
}
