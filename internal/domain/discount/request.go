package discount

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// InputError reports a malformed request. It is distinct from business
// ineligibility, which is reported through Decision.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Cart is the cart-side input shared by validation and offer listing.
type Cart struct {
	Subtotal             decimal.Decimal
	Lines                []CartLine
	CustomerEmail        string
	CustomerReferralCode string
}

// Validate checks the shape of the cart.
func (c Cart) Validate() error {
	if c.Subtotal.IsNegative() {
		return &InputError{Field: "subtotal", Message: "must not be negative"}
	}
	for i, l := range c.Lines {
		switch {
		case strings.TrimSpace(l.ProductID) == "":
			return &InputError{Field: fmt.Sprintf("lines[%d].productId", i), Message: "is required"}
		case l.Quantity < 1:
			return &InputError{Field: fmt.Sprintf("lines[%d].quantity", i), Message: "must be at least 1"}
		case l.UnitPrice.IsNegative():
			return &InputError{Field: fmt.Sprintf("lines[%d].unitPrice", i), Message: "must not be negative"}
		}
	}
	return nil
}

func (c Cart) orderContext() *OrderContext {
	return &OrderContext{
		Subtotal:             c.Subtotal,
		Lines:                c.Lines,
		CustomerEmail:        strings.TrimSpace(c.CustomerEmail),
		CustomerReferralCode: strings.TrimSpace(c.CustomerReferralCode),
	}
}

// ValidateRequest asks whether Code can be used on Cart.
type ValidateRequest struct {
	Code string
	Cart
}

// Validate checks the shape of the request.
func (r ValidateRequest) Validate() error {
	if NormalizeCode(r.Code) == "" {
		return &InputError{Field: "code", Message: "is required"}
	}
	return r.Cart.Validate()
}

func validateProductIDs(ids []string) error {
	if len(ids) == 0 {
		return &InputError{Field: "productIds", Message: "at least one product id is required"}
	}
	if len(ids) > MaxBadgeProducts {
		return &InputError{Field: "productIds", Message: fmt.Sprintf("at most %d product ids are allowed", MaxBadgeProducts)}
	}
	for i, id := range ids {
		if strings.TrimSpace(id) == "" {
			return &InputError{Field: fmt.Sprintf("productIds[%d]", i), Message: "must not be empty"}
		}
	}
	return nil
}
