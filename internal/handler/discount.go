package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/jx"

	"github.com/xenking/promo-engine/internal/domain/discount"
)

// ValidateDiscount handles POST /api/discounts/validate. Ineligibility is a
// normal 200 response with valid=false.
func (h *Handler) ValidateDiscount(w http.ResponseWriter, r *http.Request) {
	var req discount.ValidateRequest
	cd := cartDecoder{cart: &req.Cart}
	err := h.decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key == "code" {
			var err error
			req.Code, err = d.Str()
			return err
		}
		if ok, err := cd.field(d, key); ok {
			return err
		}
		return d.Skip()
	})
	if err == nil {
		err = cd.done()
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	dec, err := h.discounts.Validate(ctx, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Field("valid", func(e *jx.Encoder) { e.Bool(dec.Eligible) })
		if dec.Eligible {
			e.Field("code", func(e *jx.Encoder) { e.Str(discount.NormalizeCode(req.Code)) })
			e.Field("discountAmount", func(e *jx.Encoder) { money(e, dec.Amount) })
			e.Field("applicableSubtotal", func(e *jx.Encoder) { money(e, dec.Applicable) })
			return
		}
		e.Field("reason", func(e *jx.Encoder) { e.Str(string(dec.Reason)) })
		e.Field("message", func(e *jx.Encoder) { e.Str(dec.Message) })
		if dec.Reason == discount.ReasonBelowMinimum {
			e.Field("gapAmount", func(e *jx.Encoder) { money(e, dec.Gap) })
		}
	})
}

// ListOffers handles POST /api/offers.
func (h *Handler) ListOffers(w http.ResponseWriter, r *http.Request) {
	var cart discount.Cart
	cd := cartDecoder{cart: &cart}
	err := h.decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if ok, err := cd.field(d, key); ok {
			return err
		}
		return d.Skip()
	})
	if err == nil {
		err = cd.done()
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	offers, err := h.discounts.ListAvailableOffers(ctx, cart)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Field("offers", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range offers {
					encodeOffer(e, &offers[i])
				}
			})
		})
	})
}

func encodeOffer(e *jx.Encoder, o *discount.Offer) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Str(o.Code) })
		e.Field("type", func(e *jx.Encoder) { e.Str(string(o.Type)) })
		e.Field("value", func(e *jx.Encoder) { e.RawStr(o.Value.String()) })
		e.Field("minOrderAmount", func(e *jx.Encoder) { optMoney(e, o.MinOrderAmount) })
		e.Field("discountAmount", func(e *jx.Encoder) { money(e, o.DiscountAmount) })
		e.Field("description", func(e *jx.Encoder) { e.Str(o.Description) })
		e.Field("allowAutoApply", func(e *jx.Encoder) { e.Bool(o.AllowAutoApply) })
		e.Field("locked", func(e *jx.Encoder) { e.Bool(o.Locked) })
		e.Field("gapAmount", func(e *jx.Encoder) {
			if !o.Locked {
				e.Null()
				return
			}
			money(e, o.GapAmount)
		})
		e.Field("expiresAt", func(e *jx.Encoder) { optTime(e, o.ExpiresAt) })
		e.Field("usesLeft", func(e *jx.Encoder) { optInt(e, o.UsesLeft) })
	})
}

// BestOffers handles GET /api/offers/best?productIds=a,b,c. The parameter may
// also be repeated.
func (h *Handler) BestOffers(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, v := range r.URL.Query()["productIds"] {
		for _, id := range strings.Split(v, ",") {
			ids = append(ids, strings.TrimSpace(id))
		}
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	badges, err := h.discounts.BestOfferPerProduct(ctx, ids)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Field("offers", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				written := make(map[string]bool, len(badges))
				for _, id := range ids {
					b, ok := badges[id]
					if !ok || written[id] {
						continue
					}
					written[id] = true
					e.Field(id, func(e *jx.Encoder) {
						e.Obj(func(e *jx.Encoder) {
							e.Field("code", func(e *jx.Encoder) { e.Str(b.Code) })
							e.Field("value", func(e *jx.Encoder) { e.RawStr(b.Value.String()) })
							e.Field("type", func(e *jx.Encoder) { e.Str(string(b.Type)) })
							e.Field("description", func(e *jx.Encoder) { e.Str(b.Description) })
						})
					})
				}
			})
		})
	})
}
