// Package product holds the catalog view the promo engine needs: prices for
// checkout and category ids for category-scoped discounts.
package product

import (
	"context"

	"github.com/shopspring/decimal"
)

// Product is a catalog item. CategoryID may be empty for uncategorised
// products.
type Product struct {
	ID         string
	Name       string
	Price      decimal.Decimal
	CategoryID string
}

// Repository defines read operations for the product catalog.
type Repository interface {
	// GetByIDs returns the products matching ids. Unknown ids are skipped.
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
