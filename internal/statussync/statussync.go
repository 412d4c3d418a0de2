// Package statussync periodically advances the cached status of discounts.
//
// The status column is advisory. Evaluation always re-derives validity from
// timestamps and counters, so a late or skipped sweep only leaves a stale
// display value behind.
package statussync

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/promo-engine/internal/domain/discount"
)

const instrumentationName = "github.com/xenking/promo-engine/internal/statussync"

// Result counts the rows moved by one sweep.
type Result struct {
	Disabled  int64
	Activated int64
}

// Synchronizer applies the two bulk status transitions on a timer.
type Synchronizer struct {
	store       discount.StatusStore
	interval    time.Duration
	now         func() time.Time
	transitions metric.Int64Counter
}

// New creates a Synchronizer sweeping store every interval.
func New(store discount.StatusStore, interval time.Duration, mp metric.MeterProvider) *Synchronizer {
	if mp == nil {
		mp = metricnoop.NewMeterProvider()
	}
	transitions, err := mp.Meter(instrumentationName).Int64Counter("promo.status_sync.transitions",
		metric.WithDescription("Discount status transitions applied by the synchronizer"),
	)
	if err != nil {
		transitions = metricnoop.Int64Counter{}
	}
	return &Synchronizer{
		store:       store,
		interval:    interval,
		now:         time.Now,
		transitions: transitions,
	}
}

// SyncOnce runs both transitions against the same instant.
func (s *Synchronizer) SyncOnce(ctx context.Context) (Result, error) {
	now := s.now()

	var (
		res Result
		err error
	)
	if res.Disabled, err = s.store.DisableExpired(ctx, now); err != nil {
		return res, errors.Wrap(err, "disable expired")
	}
	if res.Activated, err = s.store.ActivateScheduled(ctx, now); err != nil {
		return res, errors.Wrap(err, "activate scheduled")
	}

	s.transitions.Add(ctx, res.Disabled, metric.WithAttributes(attribute.String("to", string(discount.StatusDisabled))))
	s.transitions.Add(ctx, res.Activated, metric.WithAttributes(attribute.String("to", string(discount.StatusActive))))
	return res, nil
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
// Failed sweeps are logged and retried on the next tick.
func (s *Synchronizer) Run(ctx context.Context) error {
	lg := zctx.From(ctx).Named("statussync")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		res, err := s.SyncOnce(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			lg.Error("Status sweep failed", zap.Error(err))
		case err != nil:
			// Cancelled mid-sweep.
		case res.Disabled > 0 || res.Activated > 0:
			lg.Info("Status sweep applied",
				zap.Int64("disabled", res.Disabled),
				zap.Int64("activated", res.Activated),
			)
		default:
			lg.Debug("Status sweep applied",
				zap.Int64("disabled", res.Disabled),
				zap.Int64("activated", res.Activated),
			)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
