package discount

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Reason identifies why a discount cannot be used.
type Reason string

const (
	ReasonNotFound         Reason = "not_found"
	ReasonDisabled         Reason = "disabled"
	ReasonNotYetActive     Reason = "not_yet_active"
	ReasonExpired          Reason = "expired"
	ReasonUsageExhausted   Reason = "usage_exhausted"
	ReasonNotFirstOrder    Reason = "not_first_order"
	ReasonReferralRequired Reason = "referral_required"
	ReasonBelowMinimum     Reason = "below_minimum"
	ReasonNotApplicable    Reason = "not_applicable"
)

var reasonMessages = map[Reason]string{
	ReasonNotFound:         "Invalid discount code",
	ReasonDisabled:         "This discount is no longer available",
	ReasonNotYetActive:     "This discount is not active yet",
	ReasonExpired:          "This discount has expired",
	ReasonUsageExhausted:   "This discount has reached its usage limit",
	ReasonNotFirstOrder:    "This discount is only valid on your first order",
	ReasonReferralRequired: "This discount requires a valid referral code",
	ReasonNotApplicable:    "This discount does not apply to any item in your cart",
}

// Message returns the display message for the reason.
func (r Reason) Message() string {
	if m, ok := reasonMessages[r]; ok {
		return m
	}
	return "This discount cannot be applied"
}

// belowMinimumMessage embeds the rounded-up amount still missing.
func belowMinimumMessage(gap decimal.Decimal) string {
	return fmt.Sprintf("Add %s more to your order to use this discount", gap.String())
}

// Decision is the outcome of evaluating one discount against one order.
type Decision struct {
	Eligible bool
	// Amount is the discount amount, rounded to 2 decimal places.
	Amount decimal.Decimal
	// Applicable is the part of the subtotal the discount applies to.
	Applicable decimal.Decimal
	// Locked is set by the offer ranker when only the minimum order amount
	// is missing. Gap then holds minOrderAmount − subtotal.
	Locked bool
	Gap    decimal.Decimal

	Reason  Reason
	Message string
}

func reject(r Reason) Decision {
	return Decision{Reason: r, Message: r.Message()}
}
