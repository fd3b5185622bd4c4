package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/progress"
	"github.com/fjod/go_cart/storefront/internal/push"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var created = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type views struct {
	mu  sync.Mutex
	all []progress.View
}

func (v *views) emit(pv progress.View) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.all = append(v.all, pv)
	return nil
}

func (v *views) len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.all)
}

func (v *views) last() progress.View {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.all[len(v.all)-1]
}

func cookingOrder() domain.Order {
	return domain.Order{
		ID:                          uuid.New(),
		Status:                      domain.OrderStatusCooking,
		CreatedAt:                   created,
		EstimatedPreparationMinutes: 20,
	}
}

func TestTrack_EmitsOnTicksWithoutPush(t *testing.T) {
	clock := &fakeClock{now: created.Add(5 * time.Minute)}
	tr := New(progress.New(15), WithInterval(5*time.Millisecond), WithClock(clock.Now))
	hub := push.NewHub()
	out := &views{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Track(ctx, hub.NewClient(), cookingOrder(), out.emit) }()

	require.Eventually(t, func() bool { return out.len() >= 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "15:00", out.last().Remaining)

	clock.Advance(5 * time.Minute)
	require.Eventually(t, func() bool { return out.last().Remaining == "10:00" }, time.Second, time.Millisecond)
	assert.Equal(t, 50, out.last().Percent)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestTrack_PushUpdatesAndStopsWhenTerminal(t *testing.T) {
	clock := &fakeClock{now: created.Add(5 * time.Minute)}
	tr := New(progress.New(15), WithInterval(time.Hour), WithClock(clock.Now))
	hub := push.NewHub()
	order := cookingOrder()
	out := &views{}

	done := make(chan error, 1)
	go func() { done <- tr.Track(context.Background(), hub.NewClient(), order, out.emit) }()

	require.Eventually(t, func() bool { return hub.Subscribers(order.ID) == 1 && out.len() == 1 },
		time.Second, time.Millisecond)

	remaining := 3.0
	hub.Publish(domain.Order{ID: order.ID, Status: domain.OrderStatusCooking, ServerTimeRemainingMinutes: &remaining})
	require.Eventually(t, func() bool { return out.len() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, "3:00", out.last().Remaining)
	assert.Equal(t, 30, out.last().Percent)

	hub.Publish(domain.Order{ID: order.ID, Status: domain.OrderStatusCompleted})

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("tracker did not stop at terminal status")
	}
	assert.Equal(t, progress.ReadyLabel, out.last().Remaining)
	assert.Equal(t, 0, hub.Subscribers(order.ID))
}

func TestTrack_TerminalOrderEmitsOnce(t *testing.T) {
	tr := New(progress.New(15))
	hub := push.NewHub()
	order := cookingOrder()
	order.Status = domain.OrderStatusCanceled
	out := &views{}

	require.NoError(t, tr.Track(context.Background(), hub.NewClient(), order, out.emit))
	assert.Equal(t, 1, out.len())
	assert.Equal(t, 0, hub.Subscribers(order.ID))
}

func TestTrack_EmitErrorStops(t *testing.T) {
	tr := New(progress.New(15))
	hub := push.NewHub()
	boom := errors.New("client went away")

	err := tr.Track(context.Background(), hub.NewClient(), cookingOrder(), func(progress.View) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestOfferLatest_KeepsNewest(t *testing.T) {
	ch := make(chan domain.Order, 1)
	offerLatest(ch, domain.Order{Status: domain.OrderStatusConfirmed})
	offerLatest(ch, domain.Order{Status: domain.OrderStatusCooking})
	offerLatest(ch, domain.Order{Status: domain.OrderStatusReady})

	assert.Equal(t, domain.OrderStatusReady, (<-ch).Status)
	assert.Len(t, ch, 0)
}

func TestMerge_KeepsMissingFields(t *testing.T) {
	current := cookingOrder()
	current.Items = []domain.OrderItem{{ProductID: "horchata", Quantity: 1}}

	next := merge(current, domain.Order{ID: current.ID, Status: domain.OrderStatusReady})
	assert.Equal(t, domain.OrderStatusReady, next.Status)
	assert.Equal(t, created, next.CreatedAt)
	assert.Equal(t, 20, next.EstimatedPreparationMinutes)
	assert.Len(t, next.Items, 1)

	next = merge(current, domain.Order{ID: current.ID})
	assert.Equal(t, domain.OrderStatusCooking, next.Status)
}

func TestStale(t *testing.T) {
	current := cookingOrder()
	current.UpdatedAt = created.Add(time.Minute)

	assert.True(t, stale(current, domain.Order{UpdatedAt: created}))
	assert.False(t, stale(current, domain.Order{UpdatedAt: created.Add(2 * time.Minute)}))
	assert.False(t, stale(current, domain.Order{}))
}
