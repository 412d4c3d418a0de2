package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/promo-engine/internal/domain/order"
)

// PlaceOrder handles POST /api/order.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req order.PlaceOrderRequest
	err := h.decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				var item order.LineRequest
				if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
					var err error
					switch string(key) {
					case "productId":
						item.ProductID, err = d.Str()
					case "quantity":
						item.Quantity, err = d.Int()
					default:
						err = d.Skip()
					}
					return err
				}); err != nil {
					return err
				}
				req.Items = append(req.Items, item)
				return nil
			})
		case "discountCode":
			req.DiscountCode, err = decodeOptStr(d)
		case "customerEmail":
			req.CustomerEmail, err = decodeOptStr(d)
		case "customerReferralCode":
			req.CustomerReferralCode, err = decodeOptStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	result, err := h.orders.PlaceOrder(ctx, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	o := result.Order
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
						e.Field("unitPrice", func(e *jx.Encoder) { money(e, it.UnitPrice) })
					})
				}
			})
		})
		e.Field("subtotal", func(e *jx.Encoder) { money(e, o.Subtotal) })
		e.Field("discount", func(e *jx.Encoder) { money(e, o.Discount) })
		e.Field("total", func(e *jx.Encoder) { money(e, o.Total) })
		e.Field("discountCode", func(e *jx.Encoder) {
			if o.DiscountCode == "" {
				e.Null()
				return
			}
			e.Str(o.DiscountCode)
		})
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(o.CreatedAt.UTC().Format(time.RFC3339)) })
		e.Field("products", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, p := range result.Products {
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
						e.Field("price", func(e *jx.Encoder) { money(e, p.Price) })
						e.Field("categoryId", func(e *jx.Encoder) { e.Str(p.CategoryID) })
					})
				}
			})
		})
	})
}
