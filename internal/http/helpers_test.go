package http

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/fjod/go_cart/storefront/internal/progress"
	"github.com/fjod/go_cart/storefront/internal/push"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/internal/tracker"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type menuMock struct {
	mu    sync.Mutex
	snap  *catalog.Snapshot
	err   error
	calls int
}

func (m *menuMock) Snapshot(context.Context) (*catalog.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.snap, nil
}

type ordersMock struct {
	orders map[uuid.UUID]domain.Order
	err    error
}

func (o ordersMock) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	if o.err != nil {
		return nil, o.err
	}
	order, ok := o.orders[id]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	return &order, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testMenu() *catalog.Snapshot {
	return catalog.NewSnapshot([]*domain.Product{
		{
			ID:        "smash-burger",
			Price:     dec("10"),
			Available: true,
			Presentation: domain.Presentation{
				Name:  "Smash Burger",
				Emoji: "🍔",
			},
			Options: []domain.OptionGroup{
				{ID: "extras", MultiSelect: true, Choices: []domain.Choice{
					{ID: "bacon", PriceModifier: dec("2")},
					{ID: "egg", PriceModifier: dec("1")},
				}},
				{ID: "doneness", Required: true, Choices: []domain.Choice{
					{ID: "medium"}, {ID: "well"},
				}},
			},
		},
		{ID: "horchata", Price: dec("3.50"), Available: true, Presentation: domain.Presentation{Name: "Horchata"}},
		{ID: "sold-out-pie", Price: dec("4"), Available: false},
	}, time.Now())
}

type testServer struct {
	handler  http.Handler
	sessions *Sessions
	store    *storage.MemoryStore
	menu     *menuMock
	hub      *push.Hub
}

func newTestServer(t *testing.T, repo OrderReader) *testServer {
	return newTestServerWithStore(t, repo, storage.NewMemoryStore(0))
}

func newTestServerWithStore(t *testing.T, repo OrderReader, store *storage.MemoryStore) *testServer {
	menu := &menuMock{snap: testMenu()}
	sessions := NewSessions(store, menu, dec("0.0875"), time.Hour, zap.NewNop())
	t.Cleanup(sessions.Close)

	hub := push.NewHub()
	estimator := progress.New(15)
	tr := tracker.New(estimator, tracker.WithInterval(20*time.Millisecond))

	h := NewRouter(
		RouterConfig{RequestTimeout: 5 * time.Second, MaxRequestBodySize: 1 << 20},
		zap.NewNop(),
		NewMenuHandler(menu, 5*time.Second),
		NewCartHandler(sessions, menu, 5*time.Second),
		NewOrdersHandler(repo, estimator, tr, hub, 5*time.Second, zap.NewNop()),
	)
	return &testServer{handler: h, sessions: sessions, store: store, menu: menu, hub: hub}
}
