package discount

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Availability derives whether the discount can be used at now from its
// status, window and usage counter. It returns "" when usable.
//
// Validation derives validity through this method and the offer and badge
// paths through Listed; neither trusts Status alone. The synchronizer's
// transitions follow SyncedStatus.
func (d *Discount) Availability(now time.Time) Reason {
	switch {
	case d.Status == StatusDisabled:
		return ReasonDisabled
	case d.StartsAt != nil && d.StartsAt.After(now):
		return ReasonNotYetActive
	case d.ExpiresAt != nil && d.ExpiresAt.Before(now):
		return ReasonExpired
	case d.MaxUsage != nil && d.UsedCount >= *d.MaxUsage:
		return ReasonUsageExhausted
	}
	return ""
}

// Listed reports whether the discount passes the catalog filter: status
// active or scheduled, started, and not expiring at or before now.
func (d *Discount) Listed(now time.Time) bool {
	if d.Status != StatusActive && d.Status != StatusScheduled {
		return false
	}
	if d.StartsAt != nil && d.StartsAt.After(now) {
		return false
	}
	return d.ExpiresAt == nil || d.ExpiresAt.After(now)
}

// SyncedStatus returns the status the synchronizer assigns at now.
func (d *Discount) SyncedStatus(now time.Time) Status {
	switch d.Status {
	case StatusActive:
		if d.ExpiresAt != nil && d.ExpiresAt.Before(now) {
			return StatusDisabled
		}
	case StatusScheduled:
		if d.StartsAt == nil || !d.StartsAt.After(now) {
			return StatusActive
		}
	}
	return d.Status
}

// offerable is the pre-filter shared by the offer ranker and the badge
// selector. It is the catalog filter only: exhausted discounts stay listed
// and report their remaining uses.
func offerable(d *Discount, now time.Time) bool {
	return d.Listed(now)
}

// Evaluator decides whether a discount applies to an order.
type Evaluator struct {
	orders OrderHistory
}

// NewEvaluator creates an Evaluator that consults orders for first-order
// gating.
func NewEvaluator(orders OrderHistory) *Evaluator {
	return &Evaluator{orders: orders}
}

// Evaluate runs the full check sequence for d against oc at now. Business
// ineligibility is reported through the Decision; the error is only set when
// the order history lookup fails.
func (e *Evaluator) Evaluate(ctx context.Context, d *Discount, oc *OrderContext, now time.Time) (Decision, error) {
	if r := d.Availability(now); r != "" {
		return reject(r), nil
	}
	return e.evaluateCart(ctx, d, oc, false)
}

// evaluateCart runs the gating, threshold, scope and amount checks. With
// upsell set, a minimum order shortfall yields a locked decision instead of
// a rejection.
func (e *Evaluator) evaluateCart(ctx context.Context, d *Discount, oc *OrderContext, upsell bool) (Decision, error) {
	r, err := e.gate(ctx, d, oc)
	if err != nil {
		return Decision{}, err
	}
	if r != "" {
		return reject(r), nil
	}
	return Price(d, oc, upsell), nil
}

func (e *Evaluator) gate(ctx context.Context, d *Discount, oc *OrderContext) (Reason, error) {
	if d.FirstOrderOnly {
		email := strings.TrimSpace(oc.CustomerEmail)
		if email == "" {
			return ReasonNotFirstOrder, nil
		}
		ordered, err := e.orders.HasOrders(ctx, email)
		if err != nil {
			return "", errors.Wrap(err, "lookup order history")
		}
		if ordered {
			return ReasonNotFirstOrder, nil
		}
	}

	if ref := strings.TrimSpace(d.ReferralCode); ref != "" {
		if !strings.EqualFold(ref, strings.TrimSpace(oc.CustomerReferralCode)) {
			return ReasonReferralRequired, nil
		}
	}

	return "", nil
}

// Price applies the minimum order threshold, resolves the applicable
// subtotal and computes the discount amount.
func Price(d *Discount, oc *OrderContext, upsell bool) Decision {
	base := oc.Subtotal

	var (
		locked bool
		gap    decimal.Decimal
	)
	if d.MinOrderAmount != nil && oc.Subtotal.LessThan(*d.MinOrderAmount) {
		gap = d.MinOrderAmount.Sub(oc.Subtotal)
		if !upsell {
			dec := reject(ReasonBelowMinimum)
			dec.Gap = gap.Ceil()
			dec.Message = belowMinimumMessage(dec.Gap)
			return dec
		}
		// Preview the saving as if the cart had reached the threshold.
		locked = true
		base = *d.MinOrderAmount
	}

	applicable := ApplicableSubtotal(d, oc, base)
	if !applicable.IsPositive() {
		return reject(ReasonNotApplicable)
	}

	return Decision{
		Eligible:   true,
		Amount:     Amount(d, applicable),
		Applicable: applicable,
		Locked:     locked,
		Gap:        gap,
	}
}

// ApplicableSubtotal returns base for whole-order discounts, otherwise the
// sum of the cart lines matching the product or category scope.
func ApplicableSubtotal(d *Discount, oc *OrderContext, base decimal.Decimal) decimal.Decimal {
	if !d.Scoped() {
		return base
	}

	products := toSet(d.ProductIDs)
	categories := toSet(d.CategoryIDs)

	sum := decimal.Zero
	for _, l := range oc.Lines {
		if _, ok := products[l.ProductID]; ok {
			sum = sum.Add(l.Total())
			continue
		}
		if cat := oc.CategoryOf(l.ProductID); cat != "" {
			if _, ok := categories[cat]; ok {
				sum = sum.Add(l.Total())
			}
		}
	}
	return sum
}

// Amount computes the discount for a positive applicable subtotal, rounded
// half-up to 2 decimal places and never exceeding the applicable subtotal.
func Amount(d *Discount, applicable decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch d.Type {
	case TypePercentage:
		amount = applicable.Mul(d.Value).Shift(-2).Round(2)
	default:
		amount = decimal.Min(d.Value, applicable).Round(2)
	}
	if amount.GreaterThan(applicable) {
		amount = applicable
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// memoHistory caches order history answers for the duration of one request
// so that several first-order discounts cost a single lookup.
type memoHistory struct {
	next OrderHistory
	seen map[string]bool
}

func newMemoHistory(next OrderHistory) *memoHistory {
	return &memoHistory{next: next, seen: make(map[string]bool)}
}

func (m *memoHistory) HasOrders(ctx context.Context, email string) (bool, error) {
	key := strings.ToLower(email)
	if v, ok := m.seen[key]; ok {
		return v, nil
	}
	v, err := m.next.HasOrders(ctx, email)
	if err != nil {
		return false, err
	}
	m.seen[key] = v
	return v, nil
}
