package http

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	sessionKeyPrefix = "cart:"

	// DefaultIdleTimeout is how long an untouched session engine stays cached.
	DefaultIdleTimeout = 30 * time.Minute
)

type MenuSource interface {
	Snapshot(ctx context.Context) (*catalog.Snapshot, error)
}

type session struct {
	engine   *cart.Engine
	lastSeen time.Time
}

// Sessions maps session ids to cart engines backed by one shared store.
// Engines are restored lazily on first use and dropped after idling.
type Sessions struct {
	store   storage.Store
	menu    MenuSource
	taxRate decimal.Decimal
	idle    time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*session
	sfg     singleflight.Group

	stopCleanup chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func NewSessions(store storage.Store, menu MenuSource, taxRate decimal.Decimal, idle time.Duration, logger *zap.Logger) *Sessions {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sessions{
		store:       store,
		menu:        menu,
		taxRate:     taxRate,
		idle:        idle,
		logger:      logger,
		now:         time.Now,
		entries:     make(map[string]*session),
		stopCleanup: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupLoop()

	return s
}

// Engine returns the session's cart engine, restoring it from storage if it
// has not been loaded yet. A restore failure is returned alongside a usable
// engine; the engine keeps persistence off until a later restore succeeds.
func (s *Sessions) Engine(ctx context.Context, sessionID string) (*cart.Engine, error) {
	s.mu.Lock()
	entry, ok := s.entries[sessionID]
	if !ok {
		entry = &session{engine: cart.NewEngine(s.store,
			cart.WithKey(sessionKeyPrefix+sessionID),
			cart.WithTaxRate(s.taxRate),
			cart.WithLogger(s.logger.With(zap.String("session_id", sessionID))),
		)}
		s.entries[sessionID] = entry
	}
	entry.lastSeen = s.now()
	s.mu.Unlock()

	if entry.engine.Loaded() {
		return entry.engine, nil
	}

	_, err, _ := s.sfg.Do(sessionID, func() (interface{}, error) {
		if entry.engine.Loaded() {
			return nil, nil
		}
		snap, err := s.menu.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		return nil, entry.engine.Restore(ctx, snap)
	})
	if err != nil {
		s.logger.Warn("cart restore failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	return entry.engine, err
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Sessions) Close() {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
	s.wg.Wait()
}

func (s *Sessions) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.idle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictIdle()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *Sessions) evictIdle() {
	cutoff := s.now().Add(-s.idle)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(s.entries, id)
		}
	}
}
