// Package handler exposes the promo engine over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/promo-engine/internal/domain/discount"
	"github.com/xenking/promo-engine/internal/domain/order"
)

// DiscountService is the engine surface used by the handlers.
type DiscountService interface {
	Validate(ctx context.Context, req discount.ValidateRequest) (discount.Decision, error)
	ListAvailableOffers(ctx context.Context, cart discount.Cart) ([]discount.Offer, error)
	BestOfferPerProduct(ctx context.Context, productIDs []string) (map[string]discount.Badge, error)
}

// OrderService commits checkouts.
type OrderService interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.PlaceOrderResult, error)
}

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// EvalTimeout bounds each request's store reads. Zero disables the bound.
	EvalTimeout time.Duration
	// MaxBodyBytes limits request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64
}

// Handler serves the discount and order endpoints.
type Handler struct {
	discounts    DiscountService
	orders       OrderService
	evalTimeout  time.Duration
	maxBodyBytes int64
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg HandlerConfig, discounts DiscountService, orders OrderService) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Handler{
		discounts:    discounts,
		orders:       orders,
		evalTimeout:  cfg.EvalTimeout,
		maxBodyBytes: cfg.MaxBodyBytes,
	}
}

// Register mounts the API routes on r.
func (h *Handler) Register(r chi.Router) {
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/discounts/validate", h.ValidateDiscount)
		r.Post("/offers", h.ListOffers)
		r.Get("/offers/best", h.BestOffers)
		r.Post("/order", h.PlaceOrder)
	})
}

func (h *Handler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if h.evalTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.evalTimeout)
}
