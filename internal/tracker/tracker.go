package tracker

import (
	"context"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/progress"
	"github.com/fjod/go_cart/storefront/internal/push"
	"go.uber.org/zap"
)

const DefaultInterval = time.Second

type Tracker struct {
	estimator progress.Estimator
	interval  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*Tracker)

func WithInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

func New(estimator progress.Estimator, opts ...Option) *Tracker {
	t := &Tracker{
		estimator: estimator,
		interval:  DefaultInterval,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track emits a view of the order immediately, then after every tick and
// every pushed update, until the order reaches a terminal status, ctx is
// done or emit fails. The subscription on ch is released on return.
func (t *Tracker) Track(ctx context.Context, ch push.Channel, order domain.Order, emit func(progress.View) error) error {
	updates := make(chan domain.Order, 1)
	ch.Subscribe(order.ID, func(o domain.Order) { offerLatest(updates, o) })
	defer ch.Unsubscribe(order.ID)

	if err := emit(t.estimator.View(order, t.now())); err != nil {
		return err
	}
	if order.Status.Terminal() {
		return nil
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case u := <-updates:
			if stale(order, u) {
				t.logger.Debug("dropping stale order update", zap.String("order_id", order.ID.String()))
				continue
			}
			order = merge(order, u)
		}

		if err := emit(t.estimator.View(order, t.now())); err != nil {
			return err
		}
		if order.Status.Terminal() {
			return nil
		}
	}
}

// offerLatest keeps only the newest pending update in a one-slot channel.
func offerLatest(ch chan domain.Order, o domain.Order) {
	for {
		select {
		case ch <- o:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func stale(current, update domain.Order) bool {
	return !current.UpdatedAt.IsZero() && !update.UpdatedAt.IsZero() &&
		update.UpdatedAt.Before(current.UpdatedAt)
}

// merge applies a pushed update. Fields the update leaves blank keep their
// current values, except the remaining-time override which is cleared.
func merge(current, update domain.Order) domain.Order {
	next := update
	if next.Status == "" {
		next.Status = current.Status
	}
	if next.CreatedAt.IsZero() {
		next.CreatedAt = current.CreatedAt
	}
	if next.EstimatedPreparationMinutes <= 0 {
		next.EstimatedPreparationMinutes = current.EstimatedPreparationMinutes
	}
	if next.Items == nil {
		next.Items = current.Items
		next.Subtotal = current.Subtotal
		next.Tax = current.Tax
		next.Total = current.Total
	}
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = current.UpdatedAt
	}
	return next
}
