package discount

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported discount strategies.
type Type string

const (
	// TypePercentage takes a percentage of the applicable subtotal.
	TypePercentage Type = "percentage"
	// TypeFixed takes a fixed amount, capped at the applicable subtotal.
	TypeFixed Type = "fixed"
)

// Status is the cached lifecycle state of a discount. It is advisory: the
// evaluator always re-derives validity from timestamps and counters.
type Status string

const (
	StatusActive    Status = "active"
	StatusDisabled  Status = "disabled"
	StatusScheduled Status = "scheduled"
)

var (
	// ErrNotFound is returned by a Repository when no discount matches a code.
	ErrNotFound = errors.New("discount not found")
	// ErrUsageExhausted is returned when redeeming a discount whose usage cap
	// was reached concurrently.
	ErrUsageExhausted = errors.New("discount usage limit reached")
)

// Discount is a promo definition as stored by the discount store.
type Discount struct {
	Code           string
	Type           Type
	Value          decimal.Decimal
	Description    string
	AllowAutoApply bool
	ProductIDs     []string
	CategoryIDs    []string
	MinOrderAmount *decimal.Decimal
	MaxUsage       *int
	UsedCount      int
	StartsAt       *time.Time
	ExpiresAt      *time.Time
	Status         Status
	FirstOrderOnly bool
	ReferralCode   string
	CreatedAt      time.Time
}

// Scoped reports whether the discount is limited to specific products or
// categories rather than the whole order.
func (d *Discount) Scoped() bool {
	return len(d.ProductIDs) > 0 || len(d.CategoryIDs) > 0
}

// NeedsCategories reports whether applying the discount needs the category
// of each cart product.
func (d *Discount) NeedsCategories() bool {
	return len(d.CategoryIDs) > 0
}

// UsesLeft returns the remaining redemptions, or nil when uncapped.
func (d *Discount) UsesLeft() *int {
	if d.MaxUsage == nil {
		return nil
	}
	left := *d.MaxUsage - d.UsedCount
	return &left
}

// CartLine is a single priced line of the cart being evaluated.
type CartLine struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Total returns quantity × unit price.
func (l CartLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// OrderContext is everything the evaluator knows about the order.
type OrderContext struct {
	Subtotal             decimal.Decimal
	Lines                []CartLine
	CustomerEmail        string
	CustomerReferralCode string
	// Categories maps product id to category id. Only populated when a
	// category-scoped discount is being evaluated.
	Categories map[string]string
}

// CategoryOf resolves the category of a product, or "" when unknown.
func (oc *OrderContext) CategoryOf(productID string) string {
	return oc.Categories[productID]
}

// ProductIDs returns the distinct product ids referenced by the cart lines.
func (oc *OrderContext) ProductIDs() []string {
	seen := make(map[string]struct{}, len(oc.Lines))
	ids := make([]string, 0, len(oc.Lines))
	for _, l := range oc.Lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	return ids
}

// NormalizeCode uppercases and trims a promo code for comparison.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Repository is the read side of the discount store.
type Repository interface {
	// FindByCode looks a discount up by code, case-insensitively. Returns
	// ErrNotFound when no discount matches.
	FindByCode(ctx context.Context, code string) (*Discount, error)
	// ListLive returns discounts whose status is active or scheduled and whose
	// window contains now, in catalog order.
	ListLive(ctx context.Context, now time.Time) ([]Discount, error)
}

// StatusStore applies the bulk status transitions of the synchronizer.
type StatusStore interface {
	DisableExpired(ctx context.Context, now time.Time) (int64, error)
	ActivateScheduled(ctx context.Context, now time.Time) (int64, error)
}

// OrderHistory answers whether a customer has ordered before.
type OrderHistory interface {
	HasOrders(ctx context.Context, email string) (bool, error)
}

// CategoryResolver maps product ids to category ids. Unknown products are
// omitted from the result.
type CategoryResolver interface {
	Categories(ctx context.Context, productIDs []string) (map[string]string, error)
}
