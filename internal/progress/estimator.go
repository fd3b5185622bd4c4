// Package progress derives the customer-facing countdown and completion
// percentage of an order. Every function here is pure in (order, now); the
// caller owns the clock and re-evaluates on its own cadence.
package progress

import (
	"fmt"
	"math"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
)

const (
	ReadyLabel = "Ready now"

	DefaultPreparationMinutes = 15

	confirmedPercent  = 10
	cookingSpan       = 80
	cookingMaxPercent = confirmedPercent + cookingSpan

	// maxMinutes caps both the server override and the preparation estimate.
	maxMinutes = 24 * 60
)

type Estimator struct {
	// DefaultPreparationMinutes is used when an order carries no estimate.
	DefaultPreparationMinutes int
}

func New(defaultPreparationMinutes int) Estimator {
	if defaultPreparationMinutes <= 0 {
		defaultPreparationMinutes = DefaultPreparationMinutes
	}
	return Estimator{DefaultPreparationMinutes: defaultPreparationMinutes}
}

type View struct {
	OrderID   uuid.UUID          `json:"order_id"`
	Status    domain.OrderStatus `json:"status"`
	Remaining string             `json:"remaining"`
	Percent   int                `json:"percent"`
	Ready     bool               `json:"ready"`
	At        time.Time          `json:"at"`
}

func (e Estimator) View(o domain.Order, now time.Time) View {
	return View{
		OrderID:   o.ID,
		Status:    o.Status,
		Remaining: e.RemainingLabel(o, now),
		Percent:   e.ProgressPercent(o, now),
		Ready:     o.Status == domain.OrderStatusReady || o.Status == domain.OrderStatusCompleted,
		At:        now,
	}
}

// RemainingLabel formats the time left as M:SS. A positive server override
// always wins; otherwise the label follows the order status.
func (e Estimator) RemainingLabel(o domain.Order, now time.Time) string {
	if o.ServerTimeRemainingMinutes != nil {
		m := *o.ServerTimeRemainingMinutes
		if m > 0 {
			m = math.Min(m, maxMinutes)
			return formatClock(time.Duration(m * float64(time.Minute)))
		}
	}

	estimate := e.estimate(o)
	switch o.Status {
	case domain.OrderStatusConfirmed:
		return formatClock(estimate)
	case domain.OrderStatusCooking:
		elapsed, ok := elapsedSince(o.CreatedAt, now)
		if !ok {
			return formatClock(estimate)
		}
		remaining := estimate - elapsed
		if remaining <= 0 {
			return ReadyLabel
		}
		return formatClock(remaining)
	case domain.OrderStatusReady, domain.OrderStatusCompleted:
		return ReadyLabel
	default:
		return fmt.Sprintf("%d min", int(estimate/time.Minute))
	}
}

// ProgressPercent is 0 before confirmation, 10 once confirmed, climbs
// linearly from 10 to 90 while cooking and is 100 when ready.
func (e Estimator) ProgressPercent(o domain.Order, now time.Time) int {
	switch o.Status {
	case domain.OrderStatusConfirmed:
		return confirmedPercent
	case domain.OrderStatusCooking:
		elapsed, ok := elapsedSince(o.CreatedAt, now)
		if !ok {
			return confirmedPercent
		}
		ratio := elapsed.Seconds() / e.estimate(o).Seconds()
		p := confirmedPercent + math.Min(cookingSpan, math.Max(0, ratio*cookingSpan))
		return clamp(int(math.Round(p)), confirmedPercent, cookingMaxPercent)
	case domain.OrderStatusReady, domain.OrderStatusCompleted:
		return 100
	default:
		return 0
	}
}

// estimate treats values outside 1..maxMinutes as missing.
func (e Estimator) estimate(o domain.Order) time.Duration {
	minutes := o.EstimatedPreparationMinutes
	if minutes <= 0 || minutes > maxMinutes {
		minutes = e.DefaultPreparationMinutes
	}
	if minutes <= 0 || minutes > maxMinutes {
		minutes = DefaultPreparationMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// elapsedSince reports false for a missing timestamp. A timestamp in the
// future counts as no time elapsed.
func elapsedSince(createdAt, now time.Time) (time.Duration, bool) {
	if createdAt.IsZero() || now.IsZero() {
		return 0, false
	}
	elapsed := now.Sub(createdAt)
	if elapsed < 0 {
		return 0, true
	}
	return elapsed, true
}

func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
