package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultKey = "cart"

// ErrDurabilityLost is returned when neither the full nor the minimal snapshot
// could be written. The in-memory cart is unaffected.
var ErrDurabilityLost = errors.New("cart could not be persisted")

// Lookup resolves a product id against the live catalog.
// Consumers define this interface, not the catalog implementation.
type Lookup interface {
	GetByID(productID string) (domain.Product, bool)
}

type PersistOutcome int

const (
	PersistSkipped PersistOutcome = iota
	PersistFull
	PersistMinimal
	PersistCleared
	PersistFailed
)

func (o PersistOutcome) String() string {
	switch o {
	case PersistSkipped:
		return "skipped"
	case PersistFull:
		return "full"
	case PersistMinimal:
		return "minimal"
	case PersistCleared:
		return "cleared"
	case PersistFailed:
		return "failed"
	}
	return fmt.Sprintf("PersistOutcome(%d)", int(o))
}

// Engine owns one shopper's cart and keeps a snapshot of it in a Store.
//
// Nothing is written before Restore completes, so an empty cart that exists
// only because loading has not happened yet can never overwrite a saved one.
// Mutations always apply in memory; the error they return is a durability
// warning only.
type Engine struct {
	mu      sync.Mutex
	store   storage.Store
	key     string
	taxRate decimal.Decimal
	logger  *zap.Logger

	lines       []domain.CartLine
	loaded      bool
	clearOnLoad bool
}

type Option func(*Engine)

func WithKey(key string) Option {
	return func(e *Engine) { e.key = key }
}

func WithTaxRate(rate decimal.Decimal) Option {
	return func(e *Engine) { e.taxRate = rate }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func NewEngine(store storage.Store, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		key:     DefaultKey,
		taxRate: DefaultTaxRate,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

// Lines returns a copy of the current cart lines in insertion order.
func (e *Engine) Lines() []domain.CartLine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.linesLocked()
}

func (e *Engine) Totals() Totals {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ComputeTotals(e.lines, e.taxRate)
}

// Snapshot returns the lines and their totals from the same cart state.
func (e *Engine) Snapshot() ([]domain.CartLine, Totals) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.linesLocked(), ComputeTotals(e.lines, e.taxRate)
}

func (e *Engine) linesLocked() []domain.CartLine {
	out := make([]domain.CartLine, len(e.lines))
	for i, l := range e.lines {
		l.SelectedOptions = l.SelectedOptions.Clone()
		l.CatalogOptions = append([]domain.OptionGroup(nil), l.CatalogOptions...)
		out[i] = l
	}
	return out
}

func (e *Engine) AddItem(ctx context.Context, product domain.Product, sel domain.Selection) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	norm := NormalizeSelection(sel)
	if i := e.indexOf(LineKey(product.ID, norm)); i >= 0 {
		e.lines[i].Quantity++
	} else {
		e.lines = append(e.lines, domain.CartLine{
			ProductID:       product.ID,
			UnitBasePrice:   product.Price,
			Quantity:        1,
			SelectedOptions: norm,
			CatalogOptions:  append([]domain.OptionGroup(nil), product.Options...),
			Presentation:    product.Presentation,
		})
	}

	_, err := e.persistLocked(ctx)
	return err
}

// RemoveItem deletes the matching line. A missing line is not an error.
func (e *Engine) RemoveItem(ctx context.Context, productID string, sel domain.Selection) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexOf(LineKey(productID, sel))
	if i < 0 {
		return nil
	}
	e.lines = append(e.lines[:i], e.lines[i+1:]...)

	_, err := e.persistLocked(ctx)
	return err
}

// SetQuantity replaces the matching line's quantity; below 1 it removes the line.
func (e *Engine) SetQuantity(ctx context.Context, productID string, sel domain.Selection, quantity int) error {
	if quantity < 1 {
		return e.RemoveItem(ctx, productID, sel)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexOf(LineKey(productID, sel))
	if i < 0 {
		return nil
	}
	e.lines[i].Quantity = quantity

	_, err := e.persistLocked(ctx)
	return err
}

func (e *Engine) Clear(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lines = nil
	if !e.loaded {
		e.clearOnLoad = true
	}

	_, err := e.persistLocked(ctx)
	return err
}

func (e *Engine) Persist(ctx context.Context) (PersistOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.persistLocked(ctx)
}

// persistLocked writes the full snapshot, falls back once to the minimal
// projection on a quota error, and removes the key if that also fails.
func (e *Engine) persistLocked(ctx context.Context) (PersistOutcome, error) {
	if !e.loaded {
		return PersistSkipped, nil
	}

	full, err := encodeFull(e.lines)
	if err != nil {
		return PersistFailed, err
	}
	err = e.store.Set(ctx, e.key, full)
	if err == nil {
		return PersistFull, nil
	}
	if !errors.Is(err, storage.ErrQuotaExceeded) {
		e.logger.Warn("cart persist failed", zap.String("key", e.key), zap.Error(err))
		return PersistFailed, fmt.Errorf("persist cart: %w", err)
	}

	e.logger.Warn("cart snapshot over quota, retrying with minimal projection",
		zap.String("key", e.key),
		zap.Int("bytes", len(full)),
		zap.Int("lines", len(e.lines)))

	minimal, err := encodeMinimal(e.lines)
	if err != nil {
		return PersistFailed, err
	}
	errMinimal := e.store.Set(ctx, e.key, minimal)
	if errMinimal == nil {
		return PersistMinimal, nil
	}

	if errRemove := e.store.Remove(ctx, e.key); errRemove != nil {
		e.logger.Error("failed to clear cart key after persist failure",
			zap.String("key", e.key), zap.Error(errRemove))
	}
	e.logger.Warn("cart durability lost", zap.String("key", e.key), zap.Error(errMinimal))
	return PersistCleared, fmt.Errorf("%w: %v", ErrDurabilityLost, errMinimal)
}

// Restore loads the stored snapshot and re-joins it against the catalog.
// Lines added before Restore are kept and merged on top. Calling Restore on
// an already loaded engine does nothing.
func (e *Engine) Restore(ctx context.Context, lookup Lookup) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.loaded {
		return nil
	}

	var restored []domain.CartLine
	if !e.clearOnLoad {
		raw, err := e.store.Get(ctx, e.key)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			return fmt.Errorf("read cart snapshot: %w", err)
		default:
			snap, errDecode := decodeSnapshot(raw)
			if errDecode != nil {
				e.logger.Warn("discarding unreadable cart snapshot", zap.String("key", e.key), zap.Error(errDecode))
			} else {
				restored = e.reconcile(snap, lookup)
			}
		}
	}

	pending := e.lines
	e.lines = restored
	for _, l := range pending {
		if i := e.indexOf(lineKey(l)); i >= 0 {
			e.lines[i].Quantity += l.Quantity
		} else {
			e.lines = append(e.lines, l)
		}
	}
	e.loaded = true

	if len(pending) == 0 && !e.clearOnLoad {
		return nil
	}
	e.clearOnLoad = false
	_, err := e.persistLocked(ctx)
	return err
}

func (e *Engine) reconcile(snap snapshot, lookup Lookup) []domain.CartLine {
	out := make([]domain.CartLine, 0, len(snap.Lines))
	index := make(map[string]int, len(snap.Lines))

	for _, l := range snap.Lines {
		if l.ProductID == "" || l.Quantity < 1 {
			e.logger.Warn("dropping invalid cart line",
				zap.String("product_id", l.ProductID), zap.Int("quantity", l.Quantity))
			continue
		}
		l.SelectedOptions = NormalizeSelection(l.SelectedOptions)

		key := lineKey(l)
		if i, ok := index[key]; ok {
			out[i].Quantity += l.Quantity
			continue
		}

		if lookup != nil {
			if p, ok := lookup.GetByID(l.ProductID); ok {
				l.Presentation = p.Presentation
				if snap.Minimal || len(l.CatalogOptions) == 0 {
					l.CatalogOptions = append([]domain.OptionGroup(nil), p.Options...)
				}
				if snap.Minimal {
					l.UnitBasePrice = p.Price
				}
			} else {
				l.Presentation = domain.Presentation{}
				e.logger.Info("cart line references unknown product", zap.String("product_id", l.ProductID))
			}
		}

		index[key] = len(out)
		out = append(out, l)
	}
	return out
}

func (e *Engine) indexOf(key string) int {
	for i, l := range e.lines {
		if lineKey(l) == key {
			return i
		}
	}
	return -1
}
