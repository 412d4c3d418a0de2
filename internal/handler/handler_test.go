package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/promo-engine/internal/domain/discount"
	"github.com/xenking/promo-engine/internal/domain/order"
	"github.com/xenking/promo-engine/internal/domain/product"
)

// --- Mock implementations ---

type mockDiscounts struct {
	decision discount.Decision
	offers   []discount.Offer
	badges   map[string]discount.Badge
	err      error

	lastValidate discount.ValidateRequest
	lastCart     discount.Cart
	lastIDs      []string
	calls        int
}

func (m *mockDiscounts) Validate(_ context.Context, req discount.ValidateRequest) (discount.Decision, error) {
	m.calls++
	m.lastValidate = req
	return m.decision, m.err
}

func (m *mockDiscounts) ListAvailableOffers(_ context.Context, cart discount.Cart) ([]discount.Offer, error) {
	m.calls++
	m.lastCart = cart
	return m.offers, m.err
}

func (m *mockDiscounts) BestOfferPerProduct(_ context.Context, ids []string) (map[string]discount.Badge, error) {
	m.lastIDs = ids
	return m.badges, m.err
}

type mockOrders struct {
	result *order.PlaceOrderResult
	err    error
	last   order.PlaceOrderRequest
}

func (m *mockOrders) PlaceOrder(_ context.Context, req order.PlaceOrderRequest) (*order.PlaceOrderResult, error) {
	m.last = req
	return m.result, m.err
}

// --- Helpers ---

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func serve(t *testing.T, h *Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	h.Register(r)

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// field returns the raw JSON of a top-level key.
func field(t *testing.T, body []byte, key string) string {
	t.Helper()
	var raw string
	require.NoError(t, jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, k []byte) error {
		if string(k) != key {
			return d.Skip()
		}
		v, err := d.Raw()
		if err != nil {
			return err
		}
		raw = v.String()
		return nil
	}))
	return raw
}

// --- Tests ---

func TestValidateDiscount(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		decision   discount.Decision
		err        error
		wantStatus int
		wantFields map[string]string
	}{
		{
			name:       "eligible",
			body:       `{"code":" save10 ","subtotal":180,"lines":[{"productId":"P1","quantity":2,"unitPrice":"40"}]}`,
			decision:   discount.Decision{Eligible: true, Amount: d("50"), Applicable: d("80")},
			wantStatus: http.StatusOK,
			wantFields: map[string]string{
				"valid":              "true",
				"code":               `"SAVE10"`,
				"discountAmount":     "50.00",
				"applicableSubtotal": "80.00",
			},
		},
		{
			name: "below minimum carries gap",
			body: `{"code":"BIG","subtotal":"500"}`,
			decision: discount.Decision{
				Reason:  discount.ReasonBelowMinimum,
				Gap:     d("500"),
				Message: "Add 500 more to your order to use this discount",
			},
			wantStatus: http.StatusOK,
			wantFields: map[string]string{
				"valid":     "false",
				"reason":    `"below_minimum"`,
				"gapAmount": "500.00",
				"message":   `"Add 500 more to your order to use this discount"`,
			},
		},
		{
			name:       "expired has no gap",
			body:       `{"code":"OLD","subtotal":10}`,
			decision:   discount.Decision{Reason: discount.ReasonExpired, Message: "This discount has expired"},
			wantStatus: http.StatusOK,
			wantFields: map[string]string{"valid": "false", "reason": `"expired"`, "gapAmount": ""},
		},
		{
			name:       "input error",
			body:       `{"code":"","subtotal":10}`,
			err:        &discount.InputError{Field: "code", Message: "is required"},
			wantStatus: http.StatusBadRequest,
			wantFields: map[string]string{"field": `"code"`},
		},
		{
			name:       "store failure",
			body:       `{"code":"X","subtotal":10}`,
			err:        errors.New("connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantFields: map[string]string{"message": `"internal server error"`},
		},
		{
			name:       "timeout",
			body:       `{"code":"X","subtotal":10}`,
			err:        errors.Wrap(context.DeadlineExceeded, "list live discounts"),
			wantStatus: http.StatusGatewayTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockDiscounts{decision: tt.decision, err: tt.err}
			h := NewHandler(HandlerConfig{EvalTimeout: time.Second}, svc, &mockOrders{})

			rec := serve(t, h, http.MethodPost, "/api/discounts/validate", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			for k, want := range tt.wantFields {
				assert.Equal(t, want, field(t, rec.Body.Bytes(), k), "field %s", k)
			}
		})
	}
}

func TestValidateDiscount_DecodesCart(t *testing.T) {
	svc := &mockDiscounts{decision: discount.Decision{Eligible: true}}
	h := NewHandler(HandlerConfig{}, svc, &mockOrders{})

	rec := serve(t, h, http.MethodPost, "/api/discounts/validate", `{
		"code": "WELCOME",
		"subtotal": "29.97",
		"lines": [{"productId": "P1", "quantity": 3, "unitPrice": 9.99}],
		"customerEmail": "jane@example.com",
		"customerReferralCode": null,
		"unknown": {"nested": [1, 2]}
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req := svc.lastValidate
	assert.Equal(t, "WELCOME", req.Code)
	assert.True(t, d("29.97").Equal(req.Cart.Subtotal))
	require.Len(t, req.Cart.Lines, 1)
	assert.Equal(t, "P1", req.Cart.Lines[0].ProductID)
	assert.Equal(t, 3, req.Cart.Lines[0].Quantity)
	assert.True(t, d("9.99").Equal(req.Cart.Lines[0].UnitPrice))
	assert.Equal(t, "jane@example.com", req.Cart.CustomerEmail)
	assert.Empty(t, req.Cart.CustomerReferralCode)
}

func TestValidateDiscount_MalformedBody(t *testing.T) {
	for name, body := range map[string]string{
		"empty":          "",
		"not json":       "{code",
		"array":          `[1,2]`,
		"subtotal bool":  `{"code":"X","subtotal":true}`,
		"subtotal words": `{"code":"X","subtotal":"ten"}`,
		"quantity str":   `{"code":"X","subtotal":1,"lines":[{"productId":"P","quantity":"1"}]}`,
		"no subtotal":    `{"code":"X","lines":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			svc := &mockDiscounts{}
			h := NewHandler(HandlerConfig{}, svc, &mockOrders{})

			rec := serve(t, h, http.MethodPost, "/api/discounts/validate", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Empty(t, svc.lastValidate.Code)
		})
	}
}

func TestValidateDiscount_BodyTooLarge(t *testing.T) {
	h := NewHandler(HandlerConfig{MaxBodyBytes: 16}, &mockDiscounts{}, &mockOrders{})

	rec := serve(t, h, http.MethodPost, "/api/discounts/validate", `{"code":"SAVE10","subtotal":100}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListOffers(t *testing.T) {
	uses := 7
	expires := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	svc := &mockDiscounts{offers: []discount.Offer{
		{
			Code: "BIGSPENDER", Type: discount.TypePercentage, Value: d("10"),
			MinOrderAmount: func() *decimal.Decimal { v := d("1000"); return &v }(),
			DiscountAmount: d("100"), Description: "10% off on orders over 1000",
			Locked: true, GapAmount: d("500"),
		},
		{
			Code: "FIVE", Type: discount.TypeFixed, Value: d("5"),
			DiscountAmount: d("5"), Description: "5 off", AllowAutoApply: true,
			ExpiresAt: &expires, UsesLeft: &uses,
		},
	}}
	h := NewHandler(HandlerConfig{}, svc, &mockOrders{})

	rec := serve(t, h, http.MethodPost, "/api/offers", `{"subtotal":500,"lines":[{"productId":"P1","quantity":5,"unitPrice":100}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, d("500").Equal(svc.lastCart.Subtotal))

	want := `{"offers":[` +
		`{"code":"BIGSPENDER","type":"percentage","value":10,"minOrderAmount":1000.00,"discountAmount":100.00,` +
		`"description":"10% off on orders over 1000","allowAutoApply":false,"locked":true,"gapAmount":500.00,` +
		`"expiresAt":null,"usesLeft":null},` +
		`{"code":"FIVE","type":"fixed","value":5,"minOrderAmount":null,"discountAmount":5.00,` +
		`"description":"5 off","allowAutoApply":true,"locked":false,"gapAmount":null,` +
		`"expiresAt":"2026-12-31T00:00:00Z","usesLeft":7}]}`
	assert.JSONEq(t, want, rec.Body.String())
}

func TestListOffers_Empty(t *testing.T) {
	h := NewHandler(HandlerConfig{}, &mockDiscounts{}, &mockOrders{})

	rec := serve(t, h, http.MethodPost, "/api/offers", `{"subtotal":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"offers":[]}`, rec.Body.String())
}

func TestCartEndpoints_SubtotalRequired(t *testing.T) {
	for _, tt := range []struct {
		path string
		body string
	}{
		{"/api/discounts/validate", `{"code":"SAVE10"}`},
		{"/api/offers", `{}`},
		{"/api/offers", `{"subtotal":null}`},
	} {
		t.Run(tt.path+" "+tt.body, func(t *testing.T) {
			svc := &mockDiscounts{}
			h := NewHandler(HandlerConfig{}, svc, &mockOrders{})

			rec := serve(t, h, http.MethodPost, tt.path, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, `"subtotal"`, field(t, rec.Body.Bytes(), "field"))
			assert.Zero(t, svc.calls)
		})
	}
}

func TestBestOffers(t *testing.T) {
	svc := &mockDiscounts{badges: map[string]discount.Badge{
		"X": {Code: "CAT10", Value: d("10"), Type: discount.TypePercentage, Description: "10% off"},
	}}
	h := NewHandler(HandlerConfig{}, svc, &mockOrders{})

	rec := serve(t, h, http.MethodGet, "/api/offers/best?productIds=X,%20Y&productIds=Z", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"X", "Y", "Z"}, svc.lastIDs)
	assert.JSONEq(t, `{"offers":{"X":{"code":"CAT10","value":10,"type":"percentage","description":"10% off"}}}`,
		rec.Body.String())
}

func TestBestOffers_InvalidInput(t *testing.T) {
	svc := &mockDiscounts{err: &discount.InputError{Field: "productIds", Message: "at least one product id is required"}}
	h := NewHandler(HandlerConfig{}, svc, &mockOrders{})

	rec := serve(t, h, http.MethodGet, "/api/offers/best", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.lastIDs)
}

func TestPlaceOrder(t *testing.T) {
	createdAt := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	orders := &mockOrders{result: &order.PlaceOrderResult{
		Order: &order.Order{
			ID:           "ord-1",
			Items:        []order.Item{{ProductID: "P1", Quantity: 2, UnitPrice: d("40")}},
			Subtotal:     d("80"),
			Discount:     d("8"),
			Total:        d("72"),
			DiscountCode: "SAVE10",
			CreatedAt:    createdAt,
		},
		Products: []product.Product{{ID: "P1", Name: "Waffle", Price: d("40"), CategoryID: "Waffle"}},
	}}
	h := NewHandler(HandlerConfig{}, &mockDiscounts{}, orders)

	rec := serve(t, h, http.MethodPost, "/api/order",
		`{"items":[{"productId":"P1","quantity":2}],"discountCode":"save10","customerEmail":"a@b.c"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, order.PlaceOrderRequest{
		Items:         []order.LineRequest{{ProductID: "P1", Quantity: 2}},
		DiscountCode:  "save10",
		CustomerEmail: "a@b.c",
	}, orders.last)

	want := `{"id":"ord-1","items":[{"productId":"P1","quantity":2,"unitPrice":40.00}],` +
		`"subtotal":80.00,"discount":8.00,"total":72.00,"discountCode":"SAVE10",` +
		`"createdAt":"2026-10-01T12:00:00Z",` +
		`"products":[{"id":"P1","name":"Waffle","price":40.00,"categoryId":"Waffle"}]}`
	assert.JSONEq(t, want, rec.Body.String())
}

func TestPlaceOrder_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantReason string
	}{
		{"empty items", order.ErrEmptyItems, http.StatusBadRequest, ""},
		{"invalid quantity", &order.InvalidQuantityError{ProductID: "P1"}, http.StatusUnprocessableEntity, ""},
		{"unknown product", &order.ProductNotFoundError{ProductID: "P9"}, http.StatusUnprocessableEntity, ""},
		{
			"discount rejected",
			&order.DiscountRejectedError{Code: "GONE", Reason: discount.ReasonUsageExhausted, Message: "no uses left"},
			http.StatusUnprocessableEntity,
			`"usage_exhausted"`,
		},
		{"store failure", errors.New("tx aborted"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(HandlerConfig{}, &mockDiscounts{}, &mockOrders{err: tt.err})

			rec := serve(t, h, http.MethodPost, "/api/order", `{"items":[{"productId":"P1","quantity":1}]}`)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, field(t, rec.Body.Bytes(), "reason"))
			}
		})
	}
}

func TestRegister_NotFoundAndMethod(t *testing.T) {
	h := NewHandler(HandlerConfig{}, &mockDiscounts{}, &mockOrders{})

	rec := serve(t, h, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"code":404,"message":"not found"}`, rec.Body.String())

	rec = serve(t, h, http.MethodGet, "/api/order", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
