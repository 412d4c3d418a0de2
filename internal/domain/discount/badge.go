package discount

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxBadgeProducts bounds the product ids accepted by one badge lookup.
const MaxBadgeProducts = 100

// Badge is the discount shown next to a product in a listing.
type Badge struct {
	Code        string
	Value       decimal.Decimal
	Type        Type
	Description string
}

// SelectBadges picks at most one discount per product. Candidates are
// scanned in catalog order; see outranks for the tie-break policy. Products
// matching no discount are absent from the result.
func SelectBadges(candidates []Discount, productIDs []string, categories map[string]string, now time.Time) map[string]Badge {
	best := make(map[string]*Discount, len(productIDs))
	for i := range candidates {
		d := &candidates[i]
		if !offerable(d, now) {
			continue
		}
		for _, id := range productIDs {
			if !appliesToProduct(d, id, categories[id]) {
				continue
			}
			if cur, ok := best[id]; !ok || outranks(d, cur) {
				best[id] = d
			}
		}
	}

	out := make(map[string]Badge, len(best))
	for id, d := range best {
		out[id] = Badge{
			Code:        d.Code,
			Value:       d.Value,
			Type:        d.Type,
			Description: Describe(d),
		}
	}
	return out
}

// appliesToProduct matches by product id, or by category when the discount
// names no products.
func appliesToProduct(d *Discount, productID, categoryID string) bool {
	if len(d.ProductIDs) > 0 {
		for _, id := range d.ProductIDs {
			if id == productID {
				return true
			}
		}
		return false
	}
	if categoryID == "" {
		return false
	}
	for _, id := range d.CategoryIDs {
		if id == categoryID {
			return true
		}
	}
	return false
}

// outranks reports whether candidate replaces the current best:
//   - percentage vs percentage: strictly higher value wins, ties keep best;
//   - percentage vs fixed: percentage always wins;
//   - fixed never replaces anything, so the first fixed discount seen stays.
func outranks(candidate, best *Discount) bool {
	if candidate.Type != TypePercentage {
		return false
	}
	if best.Type != TypePercentage {
		return true
	}
	return candidate.Value.GreaterThan(best.Value)
}
