package discount

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Offer is a discount the cart can use without typing a code, or could use
// once the minimum order amount is reached (Locked).
type Offer struct {
	Code           string
	Type           Type
	Value          decimal.Decimal
	MinOrderAmount *decimal.Decimal
	DiscountAmount decimal.Decimal
	Description    string
	AllowAutoApply bool
	Locked         bool
	GapAmount      decimal.Decimal
	ExpiresAt      *time.Time
	UsesLeft       *int
}

// RankOffers evaluates each catalog candidate against the cart. Offers are
// returned in candidate order; presentation order is left to the caller.
func (e *Evaluator) RankOffers(ctx context.Context, candidates []Discount, oc *OrderContext, now time.Time) ([]Offer, error) {
	offers := make([]Offer, 0, len(candidates))
	for i := range candidates {
		d := &candidates[i]
		if !offerable(d, now) {
			continue
		}

		dec, err := e.evaluateCart(ctx, d, oc, true)
		if err != nil {
			return nil, errors.Wrapf(err, "evaluate offer %s", d.Code)
		}
		if !dec.Eligible {
			continue
		}

		offers = append(offers, Offer{
			Code:           d.Code,
			Type:           d.Type,
			Value:          d.Value,
			MinOrderAmount: d.MinOrderAmount,
			DiscountAmount: dec.Amount,
			Description:    Describe(d),
			AllowAutoApply: d.AllowAutoApply,
			Locked:         dec.Locked,
			GapAmount:      dec.Gap,
			ExpiresAt:      d.ExpiresAt,
			UsesLeft:       d.UsesLeft(),
		})
	}
	return offers, nil
}

// Describe returns the custom description of d, or a generated one such as
// "10% off on orders over 50".
func Describe(d *Discount) string {
	if s := strings.TrimSpace(d.Description); s != "" {
		return s
	}

	var b strings.Builder
	b.WriteString(d.Value.String())
	if d.Type == TypePercentage {
		b.WriteString("%")
	}
	b.WriteString(" off")
	if d.MinOrderAmount != nil && d.MinOrderAmount.IsPositive() {
		b.WriteString(" on orders over ")
		b.WriteString(d.MinOrderAmount.String())
	}
	return b.String()
}
