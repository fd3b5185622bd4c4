package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type Source interface {
	GetAllProducts(ctx context.Context) ([]*domain.Product, error)
}

// Snapshot is an immutable view of the menu taken at one point in time.
type Snapshot struct {
	products  map[string]domain.Product
	order     []string
	FetchedAt time.Time
}

func NewSnapshot(products []*domain.Product, fetchedAt time.Time) *Snapshot {
	s := &Snapshot{
		products:  make(map[string]domain.Product, len(products)),
		order:     make([]string, 0, len(products)),
		FetchedAt: fetchedAt,
	}
	for _, p := range products {
		if p == nil {
			continue
		}
		if _, dup := s.products[p.ID]; !dup {
			s.order = append(s.order, p.ID)
		}
		s.products[p.ID] = *p
	}
	return s
}

func (s *Snapshot) GetByID(productID string) (domain.Product, bool) {
	p, ok := s.products[productID]
	return p, ok
}

// Products returns the menu in display order.
func (s *Snapshot) Products() []domain.Product {
	out := make([]domain.Product, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.products[id])
	}
	return out
}

// Catalog serves menu snapshots, refetching from the source once the
// current one is older than ttl. Concurrent refreshes share one fetch.
type Catalog struct {
	source Source
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu      sync.RWMutex
	current *Snapshot
	sfg     singleflight.Group // Prevents refresh stampede
}

func New(source Source, ttl time.Duration, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		source: source,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Snapshot returns the cached snapshot while fresh. If a refresh fails and an
// older snapshot exists, the older one is returned and the error is logged.
func (c *Catalog) Snapshot(ctx context.Context) (*Snapshot, error) {
	c.mu.RLock()
	cur := c.current
	c.mu.RUnlock()

	if cur != nil && c.now().Sub(cur.FetchedAt) < c.ttl {
		return cur, nil
	}

	snap, err := c.Refresh(ctx)
	if err != nil {
		if cur != nil {
			c.logger.Warn("catalog refresh failed, serving stale menu",
				zap.Time("fetched_at", cur.FetchedAt), zap.Error(err))
			return cur, nil
		}
		return nil, err
	}
	return snap, nil
}

func (c *Catalog) Refresh(ctx context.Context) (*Snapshot, error) {
	v, err, _ := c.sfg.Do("catalog", func() (interface{}, error) {
		products, err := c.source.GetAllProducts(ctx)
		if err != nil {
			return nil, err
		}
		snap := NewSnapshot(products, c.now())

		c.mu.Lock()
		c.current = snap
		c.mu.Unlock()

		c.logger.Debug("catalog refreshed", zap.Int("products", len(products)))
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}
