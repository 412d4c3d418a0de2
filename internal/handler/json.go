package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/promo-engine/internal/domain/discount"
)

// decodeBody parses the request body as one JSON object, calling field for
// every key. Malformed bodies are reported as *discount.InputError.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, field func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		return &discount.InputError{Field: "body", Message: "too large or unreadable"}
	}
	if len(body) == 0 {
		return &discount.InputError{Field: "body", Message: "is required"}
	}

	d := jx.DecodeBytes(body)
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		return field(d, string(key))
	}); err != nil {
		var inputErr *discount.InputError
		if errors.As(err, &inputErr) {
			return inputErr
		}
		return &discount.InputError{Field: "body", Message: err.Error()}
	}
	return nil
}

// decodeMoney accepts a JSON number or a numeric string.
func decodeMoney(d *jx.Decoder, field string) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = string(n)
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	default:
		return decimal.Zero, &discount.InputError{Field: field, Message: "must be a number"}
	}

	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &discount.InputError{Field: field, Message: "must be a number"}
	}
	return v, nil
}

// decodeOptStr reads a string that may be null.
func decodeOptStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

// cartDecoder handles the cart keys shared by validate and offers.
type cartDecoder struct {
	cart        *discount.Cart
	hasSubtotal bool
}

// field decodes key into the cart. It reports false for keys it does not own.
func (c *cartDecoder) field(d *jx.Decoder, key string) (bool, error) {
	var err error
	switch key {
	case "subtotal":
		c.cart.Subtotal, err = decodeMoney(d, "subtotal")
		c.hasSubtotal = true
	case "lines":
		c.cart.Lines, err = decodeLines(d)
	case "customerEmail":
		c.cart.CustomerEmail, err = decodeOptStr(d)
	case "customerReferralCode":
		c.cart.CustomerReferralCode, err = decodeOptStr(d)
	default:
		return false, nil
	}
	return true, err
}

// done checks the required cart keys once the body is consumed.
func (c *cartDecoder) done() error {
	if !c.hasSubtotal {
		return &discount.InputError{Field: "subtotal", Message: "is required"}
	}
	return nil
}

func decodeLines(d *jx.Decoder) ([]discount.CartLine, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	var lines []discount.CartLine
	err := d.Arr(func(d *jx.Decoder) error {
		var l discount.CartLine
		if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			var err error
			switch string(key) {
			case "productId":
				l.ProductID, err = d.Str()
			case "quantity":
				l.Quantity, err = d.Int()
			case "unitPrice":
				l.UnitPrice, err = decodeMoney(d, "unitPrice")
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		lines = append(lines, l)
		return nil
	})
	return lines, err
}

// writeJSON renders the object built by fn with status.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	e.Obj(fn)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})
}

func money(e *jx.Encoder, v decimal.Decimal) {
	e.RawStr(v.StringFixed(2))
}

func optMoney(e *jx.Encoder, v *decimal.Decimal) {
	if v == nil {
		e.Null()
		return
	}
	money(e, *v)
}

func optTime(e *jx.Encoder, t *time.Time) {
	if t == nil {
		e.Null()
		return
	}
	e.Str(t.UTC().Format(time.RFC3339))
}

func optInt(e *jx.Encoder, v *int) {
	if v == nil {
		e.Null()
		return
	}
	e.Int(*v)
}
