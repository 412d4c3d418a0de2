package discount

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	discounts map[string]Discount
	live      []Discount
	err       error
	lastNow   time.Time
}

func (m *mockRepository) FindByCode(_ context.Context, code string) (*Discount, error) {
	if m.err != nil {
		return nil, m.err
	}
	disc, ok := m.discounts[code]
	if !ok {
		return nil, ErrNotFound
	}
	return &disc, nil
}

func (m *mockRepository) ListLive(_ context.Context, now time.Time) ([]Discount, error) {
	m.lastNow = now
	if m.err != nil {
		return nil, m.err
	}
	out := make([]Discount, len(m.live))
	copy(out, m.live)
	return out, nil
}

type mockCategories struct {
	categories map[string]string
	err        error
	calls      int
}

func (m *mockCategories) Categories(_ context.Context, ids []string) (map[string]string, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if c, ok := m.categories[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func newTestService(repo *mockRepository, history *mockOrderHistory, cats *mockCategories) *Service {
	return NewService(repo, history, cats, WithClock(func() time.Time { return fixedNow }))
}

func TestService_Validate(t *testing.T) {
	repo := &mockRepository{discounts: map[string]Discount{
		"SAVE10": {Code: "SAVE10", Type: TypeFixed, Value: d("50"), Status: StatusActive, ProductIDs: []string{"P1"}},
		"SNACK":  {Code: "SNACK", Type: TypePercentage, Value: d("10"), Status: StatusActive, CategoryIDs: []string{"snacks"}},
		"MIN":    {Code: "MIN", Type: TypePercentage, Value: d("10"), Status: StatusActive, MinOrderAmount: dp("1000")},
	}}

	tests := []struct {
		name        string
		req         ValidateRequest
		wantReason  Reason
		wantAmount  string
		wantCatCall bool
		wantInput   bool
	}{
		{
			name: "product scoped fixed",
			req: ValidateRequest{Code: " save10 ", Cart: Cart{
				Subtotal: d("180"),
				Lines:    []CartLine{line("P1", 2, "40"), line("P2", 1, "100")},
			}},
			wantAmount: "50",
		},
		{
			name: "category scoped resolves categories",
			req: ValidateRequest{Code: "snack", Cart: Cart{
				Subtotal: d("30"),
				Lines:    []CartLine{line("P1", 1, "10"), line("P2", 1, "20")},
			}},
			wantAmount:  "1",
			wantCatCall: true,
		},
		{
			name:       "unknown code",
			req:        ValidateRequest{Code: "NOPE", Cart: Cart{Subtotal: d("10")}},
			wantReason: ReasonNotFound,
		},
		{
			name:       "below minimum",
			req:        ValidateRequest{Code: "MIN", Cart: Cart{Subtotal: d("500")}},
			wantReason: ReasonBelowMinimum,
		},
		{
			name:      "empty code",
			req:       ValidateRequest{Code: "  ", Cart: Cart{Subtotal: d("10")}},
			wantInput: true,
		},
		{
			name:      "negative subtotal",
			req:       ValidateRequest{Code: "SAVE10", Cart: Cart{Subtotal: d("-1")}},
			wantInput: true,
		},
		{
			name: "zero quantity",
			req: ValidateRequest{Code: "SAVE10", Cart: Cart{
				Subtotal: d("10"),
				Lines:    []CartLine{line("P1", 0, "10")},
			}},
			wantInput: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cats := &mockCategories{categories: map[string]string{"P1": "snacks"}}
			s := newTestService(repo, &mockOrderHistory{}, cats)

			got, err := s.Validate(context.Background(), tt.req)
			if tt.wantInput {
				var inputErr *InputError
				require.ErrorAs(t, err, &inputErr)
				return
			}
			require.NoError(t, err)

			if tt.wantReason != "" {
				assert.False(t, got.Eligible)
				assert.Equal(t, tt.wantReason, got.Reason)
			} else {
				require.True(t, got.Eligible, "rejected: %s", got.Reason)
				assert.True(t, d(tt.wantAmount).Equal(got.Amount), "amount %s", got.Amount)
			}
			assert.Equal(t, tt.wantCatCall, cats.calls > 0)
		})
	}
}

func TestService_Validate_StoreError(t *testing.T) {
	s := newTestService(&mockRepository{err: errors.New("connection reset")}, &mockOrderHistory{}, &mockCategories{})

	_, err := s.Validate(context.Background(), ValidateRequest{Code: "X", Cart: Cart{Subtotal: d("1")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "find discount")
}

func TestService_ListAvailableOffers(t *testing.T) {
	repo := &mockRepository{live: []Discount{
		{Code: "BIG", Type: TypePercentage, Value: d("10"), Status: StatusActive, MinOrderAmount: dp("1000")},
		{Code: "CAT", Type: TypeFixed, Value: d("3"), Status: StatusActive, CategoryIDs: []string{"snacks"}},
	}}
	cats := &mockCategories{categories: map[string]string{"P1": "snacks"}}
	s := newTestService(repo, &mockOrderHistory{}, cats)

	offers, err := s.ListAvailableOffers(context.Background(), Cart{
		Subtotal: d("500"),
		Lines:    []CartLine{line("P1", 1, "500")},
	})
	require.NoError(t, err)
	require.Len(t, offers, 2)
	assert.Equal(t, "BIG", offers[0].Code)
	assert.True(t, offers[0].Locked)
	assert.Equal(t, "CAT", offers[1].Code)
	assert.Equal(t, 1, cats.calls)
	assert.Equal(t, fixedNow, repo.lastNow)
}

func TestService_ListAvailableOffers_EmptyCartSkipsCategories(t *testing.T) {
	repo := &mockRepository{live: []Discount{
		{Code: "CAT", Type: TypeFixed, Value: d("3"), Status: StatusActive, CategoryIDs: []string{"snacks"}},
	}}
	cats := &mockCategories{}
	s := newTestService(repo, &mockOrderHistory{}, cats)

	offers, err := s.ListAvailableOffers(context.Background(), Cart{Subtotal: d("0")})
	require.NoError(t, err)
	assert.Empty(t, offers)
	assert.Zero(t, cats.calls)
}

func TestService_BestOfferPerProduct(t *testing.T) {
	repo := &mockRepository{live: []Discount{
		{Code: "FIVEX", Type: TypeFixed, Value: d("5"), Status: StatusActive, ProductIDs: []string{"X"}},
		{Code: "CAT10", Type: TypePercentage, Value: d("10"), Status: StatusActive, CategoryIDs: []string{"A"}},
	}}
	cats := &mockCategories{categories: map[string]string{"X": "A"}}
	s := newTestService(repo, &mockOrderHistory{}, cats)

	got, err := s.BestOfferPerProduct(context.Background(), []string{"X", "Q"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "CAT10", got["X"].Code)
}

func TestService_BestOfferPerProduct_InvalidInput(t *testing.T) {
	s := newTestService(&mockRepository{}, &mockOrderHistory{}, &mockCategories{})

	ids := make([]string, MaxBadgeProducts+1)
	for i := range ids {
		ids[i] = "P"
	}

	for name, input := range map[string][]string{
		"empty":    nil,
		"too many": ids,
		"blank id": {"P1", " "},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := s.BestOfferPerProduct(context.Background(), input)
			var inputErr *InputError
			require.ErrorAs(t, err, &inputErr)
			assert.Contains(t, inputErr.Field, "productIds")
		})
	}
}

func TestService_CategoryError(t *testing.T) {
	repo := &mockRepository{live: []Discount{
		{Code: "CAT10", Type: TypePercentage, Value: d("10"), Status: StatusActive, CategoryIDs: []string{"A"}},
	}}
	s := newTestService(repo, &mockOrderHistory{}, &mockCategories{err: errors.New("cache miss storm")})

	_, err := s.BestOfferPerProduct(context.Background(), []string{"X"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolve categories")
}
