package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

type MenuHandler struct {
	menu    MenuSource
	timeout time.Duration
}

func NewMenuHandler(menu MenuSource, timeout time.Duration) *MenuHandler {
	return &MenuHandler{menu: menu, timeout: timeout}
}

type MenuResponseDTO struct {
	Products []domain.Product `json:"products"`
}

func (h *MenuHandler) GetMenu(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	snap, err := h.menu.Snapshot(ctx)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "menu_unavailable", "menu is temporarily unavailable")
		return
	}
	respondJSON(w, http.StatusOK, MenuResponseDTO{Products: snap.Products()})
}

func (h *MenuHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	snap, err := h.menu.Snapshot(ctx)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "menu_unavailable", "menu is temporarily unavailable")
		return
	}
	product, ok := snap.GetByID(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, "product_not_found", "product not found")
		return
	}
	respondJSON(w, http.StatusOK, product)
}
