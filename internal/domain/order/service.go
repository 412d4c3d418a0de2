package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/promo-engine/internal/domain/discount"
	"github.com/xenking/promo-engine/internal/domain/product"
)

// Sentinel errors for order validation.
var (
	ErrEmptyItems = errors.New("items required")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// DiscountRejectedError is returned when the requested discount code cannot
// be applied to the order.
type DiscountRejectedError struct {
	Code    string
	Reason  discount.Reason
	Message string
}

func (e *DiscountRejectedError) Error() string {
	return fmt.Sprintf("discount %s rejected: %s", e.Code, e.Reason)
}

// DiscountValidator decides whether a code applies to a cart.
type DiscountValidator interface {
	Validate(ctx context.Context, req discount.ValidateRequest) (discount.Decision, error)
}

// LineRequest is one requested product and quantity.
type LineRequest struct {
	ProductID string
	Quantity  int
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	Items                []LineRequest
	DiscountCode         string
	CustomerEmail        string
	CustomerReferralCode string
}

// PlaceOrderResult holds the output of a successfully placed order.
type PlaceOrderResult struct {
	Order    *Order
	Products []product.Product
}

// Service prices carts from the catalog, applies a discount code through the
// discount engine and commits the order.
type Service struct {
	products  product.Repository
	discounts DiscountValidator
	orders    Repository
	now       func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	discounts DiscountValidator,
	orders Repository,
) *Service {
	return &Service{
		products:  products,
		discounts: discounts,
		orders:    orders,
		now:       time.Now,
	}
}

// PlaceOrder prices the requested items from the catalog, validates the
// discount code against the priced cart and persists the order. The order
// total is subtotal minus discount, never negative.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	products := make([]product.Product, 0, len(req.Items))
	items := make([]Item, 0, len(req.Items))
	lines := make([]discount.CartLine, 0, len(req.Items))
	subtotal := decimal.Zero
	for _, it := range req.Items {
		p, ok := byID[it.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: it.ProductID}
		}
		products = append(products, p)
		items = append(items, Item{ProductID: p.ID, Quantity: it.Quantity, UnitPrice: p.Price})

		line := discount.CartLine{ProductID: p.ID, Quantity: it.Quantity, UnitPrice: p.Price}
		lines = append(lines, line)
		subtotal = subtotal.Add(line.Total())
	}

	o := &Order{
		ID:            uuid.New().String(),
		Items:         items,
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		Subtotal:      subtotal.Round(2),
		Discount:      decimal.Zero,
		CreatedAt:     s.now(),
	}

	if code := discount.NormalizeCode(req.DiscountCode); code != "" {
		dec, err := s.discounts.Validate(ctx, discount.ValidateRequest{
			Code: code,
			Cart: discount.Cart{
				Subtotal:             subtotal,
				Lines:                lines,
				CustomerEmail:        req.CustomerEmail,
				CustomerReferralCode: req.CustomerReferralCode,
			},
		})
		if err != nil {
			return nil, errors.Wrap(err, "validate discount")
		}
		if !dec.Eligible {
			return nil, &DiscountRejectedError{Code: code, Reason: dec.Reason, Message: dec.Message}
		}
		o.Discount = dec.Amount
		o.DiscountCode = code
	}

	total := subtotal.Sub(o.Discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	o.Total = total.Round(2)

	if err := s.orders.Create(ctx, o); err != nil {
		if errors.Is(err, discount.ErrUsageExhausted) {
			return nil, &DiscountRejectedError{
				Code:    o.DiscountCode,
				Reason:  discount.ReasonUsageExhausted,
				Message: discount.ReasonUsageExhausted.Message(),
			}
		}
		return nil, errors.Wrap(err, "create order")
	}

	return &PlaceOrderResult{
		Order:    o,
		Products: products,
	}, nil
}
