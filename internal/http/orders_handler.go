package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/fjod/go_cart/storefront/internal/progress"
	"github.com/fjod/go_cart/storefront/internal/push"
	"github.com/fjod/go_cart/storefront/internal/tracker"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OrderReader interface {
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
}

type OrdersHandler struct {
	repo      OrderReader
	estimator progress.Estimator
	tracker   *tracker.Tracker
	hub       *push.Hub
	timeout   time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewOrdersHandler(repo OrderReader, estimator progress.Estimator, tr *tracker.Tracker, hub *push.Hub, timeout time.Duration, logger *zap.Logger) *OrdersHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrdersHandler{
		repo:      repo,
		estimator: estimator,
		tracker:   tr,
		hub:       hub,
		timeout:   timeout,
		logger:    logger,
		now:       time.Now,
	}
}

func (h *OrdersHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, ok := h.loadOrder(ctx, w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, h.estimator.View(*order, h.now()))
}

// StreamProgress sends a "progress" server-sent event on every tick and every
// pushed update until the order is finished or the client disconnects.
func (h *OrdersHandler) StreamProgress(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming is not supported")
		return
	}

	lookupCtx, cancel := context.WithTimeout(r.Context(), h.timeout)
	order, ok := h.loadOrder(lookupCtx, w, r)
	cancel()
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := h.hub.NewClient()
	defer client.Close()

	err := h.tracker.Track(r.Context(), client, *order, func(v progress.View) error {
		payload, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: progress\ndata: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Debug("progress stream ended", zap.String("order_id", order.ID.String()), zap.Error(err))
	}
}

func (h *OrdersHandler) loadOrder(ctx context.Context, w http.ResponseWriter, r *http.Request) (*domain.Order, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order id must be a UUID")
		return nil, false
	}

	order, err := h.repo.GetOrderByID(ctx, id)
	switch {
	case errors.Is(err, orders.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order_not_found", "order not found")
		return nil, false
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "order lookup timed out")
		return nil, false
	case err != nil:
		h.logger.Error("order lookup failed", zap.String("order_id", id.String()), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return nil, false
	}
	return order, true
}
