package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/xenking/promo-engine/internal/domain/discount"

// Service exposes the three engine operations. Each call reads the discount
// store afresh; Service holds no mutable state.
type Service struct {
	store      Repository
	orders     OrderHistory
	categories CategoryResolver
	now        func() time.Time

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer
	decisions      metric.Int64Counter
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTracerProvider sets the tracer provider used for operation spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider used for decision counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meterProvider = mp }
}

// NewService creates a Service reading discounts from store, order history
// from orders and product categories from categories.
func NewService(store Repository, orders OrderHistory, categories CategoryResolver, opts ...Option) *Service {
	s := &Service{
		store:          store,
		orders:         orders,
		categories:     categories,
		now:            time.Now,
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
	for _, o := range opts {
		o(s)
	}

	s.tracer = s.tracerProvider.Tracer(instrumentationName)

	decisions, err := s.meterProvider.Meter(instrumentationName).Int64Counter("promo.decisions",
		metric.WithDescription("Discount code validations by outcome"),
	)
	if err != nil {
		decisions = metricnoop.Int64Counter{}
	}
	s.decisions = decisions

	return s
}

// Validate decides whether req.Code can be applied to req.Cart and how much
// it saves.
func (s *Service) Validate(ctx context.Context, req ValidateRequest) (Decision, error) {
	if err := req.Validate(); err != nil {
		return Decision{}, err
	}

	ctx, span := s.tracer.Start(ctx, "discount.Validate")
	defer span.End()

	d, err := s.store.FindByCode(ctx, NormalizeCode(req.Code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return s.record(ctx, reject(ReasonNotFound)), nil
		}
		return Decision{}, errors.Wrap(err, "find discount")
	}

	oc := req.Cart.orderContext()
	if d.NeedsCategories() {
		if oc.Categories, err = s.resolveCategories(ctx, oc.ProductIDs()); err != nil {
			return Decision{}, err
		}
	}

	dec, err := NewEvaluator(newMemoHistory(s.orders)).Evaluate(ctx, d, oc, s.now())
	if err != nil {
		return Decision{}, errors.Wrapf(err, "evaluate %s", d.Code)
	}
	return s.record(ctx, dec), nil
}

// ListAvailableOffers returns the discounts the cart can use without a code,
// including locked offers that only miss the minimum order amount.
func (s *Service) ListAvailableOffers(ctx context.Context, cart Cart) ([]Offer, error) {
	if err := cart.Validate(); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "discount.ListAvailableOffers")
	defer span.End()

	now := s.now()
	candidates, err := s.store.ListLive(ctx, now)
	if err != nil {
		return nil, errors.Wrap(err, "list live discounts")
	}
	span.SetAttributes(attribute.Int("promo.candidates", len(candidates)))

	oc := cart.orderContext()
	if anyNeedsCategories(candidates) && len(oc.Lines) > 0 {
		if oc.Categories, err = s.resolveCategories(ctx, oc.ProductIDs()); err != nil {
			return nil, err
		}
	}

	return NewEvaluator(newMemoHistory(s.orders)).RankOffers(ctx, candidates, oc, now)
}

// BestOfferPerProduct returns the badge discount for each product id that
// matches at least one discount.
func (s *Service) BestOfferPerProduct(ctx context.Context, productIDs []string) (map[string]Badge, error) {
	if err := validateProductIDs(productIDs); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "discount.BestOfferPerProduct")
	defer span.End()

	now := s.now()
	candidates, err := s.store.ListLive(ctx, now)
	if err != nil {
		return nil, errors.Wrap(err, "list live discounts")
	}

	var categories map[string]string
	if anyNeedsCategories(candidates) {
		if categories, err = s.resolveCategories(ctx, productIDs); err != nil {
			return nil, err
		}
	}

	return SelectBadges(candidates, productIDs, categories, now), nil
}

func (s *Service) resolveCategories(ctx context.Context, productIDs []string) (map[string]string, error) {
	categories, err := s.categories.Categories(ctx, productIDs)
	if err != nil {
		return nil, errors.Wrap(err, "resolve categories")
	}
	return categories, nil
}

func (s *Service) record(ctx context.Context, dec Decision) Decision {
	outcome := "eligible"
	if !dec.Eligible {
		outcome = string(dec.Reason)
	}
	s.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	return dec
}

func anyNeedsCategories(ds []Discount) bool {
	for i := range ds {
		if ds[i].NeedsCategories() {
			return true
		}
	}
	return false
}
