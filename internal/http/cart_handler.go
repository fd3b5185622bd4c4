package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

const maxLineQuantity = 99

type CartHandler struct {
	sessions *Sessions
	menu     MenuSource
	timeout  time.Duration
}

func NewCartHandler(sessions *Sessions, menu MenuSource, timeout time.Duration) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		menu:     menu,
		timeout:  timeout,
	}
}

type LineRequestDTO struct {
	ProductID       string           `json:"product_id"`
	SelectedOptions domain.Selection `json:"selected_options,omitempty"`
}

type UpdateQuantityRequestDTO struct {
	LineRequestDTO
	Quantity int `json:"quantity"`
}

type CartLineDTO struct {
	Key             string              `json:"key"`
	ProductID       string              `json:"product_id"`
	Presentation    domain.Presentation `json:"presentation"`
	Quantity        int                 `json:"quantity"`
	UnitPrice       decimal.Decimal     `json:"unit_price"`
	LineTotal       decimal.Decimal     `json:"line_total"`
	SelectedOptions domain.Selection    `json:"selected_options,omitempty"`
}

type CartResponseDTO struct {
	SessionID string        `json:"session_id"`
	Lines     []CartLineDTO `json:"lines"`
	cart.Totals
	Warning string `json:"warning,omitempty"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	engine, err := h.sessions.Engine(ctx, getSessionID(r.Context()))
	respondJSON(w, http.StatusOK, cartResponse(r.Context(), engine, restoreWarning(err)))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req LineRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	snap, err := h.menu.Snapshot(ctx)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "menu_unavailable", "menu is temporarily unavailable")
		return
	}
	product, ok := snap.GetByID(req.ProductID)
	if !ok {
		respondError(w, http.StatusNotFound, "product_not_found", "product not found")
		return
	}
	if !product.Available {
		respondError(w, http.StatusConflict, "product_unavailable", "product is not available right now")
		return
	}
	if err := validateSelection(product, req.SelectedOptions); err != nil {
		respondErrorDetails(w, http.StatusBadRequest, "invalid_options", "invalid option selection", err.Error())
		return
	}

	engine, restoreErr := h.sessions.Engine(ctx, getSessionID(r.Context()))
	err = engine.AddItem(ctx, product, req.SelectedOptions)
	respondJSON(w, http.StatusCreated, cartResponse(r.Context(), engine, firstWarning(persistWarning(err), restoreWarning(restoreErr))))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Quantity < 0 || req.Quantity > maxLineQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", fmt.Sprintf("quantity must be between 0 and %d", maxLineQuantity))
		return
	}

	engine, restoreErr := h.sessions.Engine(ctx, getSessionID(r.Context()))
	err := engine.SetQuantity(ctx, req.ProductID, req.SelectedOptions, req.Quantity)
	respondJSON(w, http.StatusOK, cartResponse(r.Context(), engine, firstWarning(persistWarning(err), restoreWarning(restoreErr))))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req LineRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	engine, restoreErr := h.sessions.Engine(ctx, getSessionID(r.Context()))
	err := engine.RemoveItem(ctx, req.ProductID, req.SelectedOptions)
	respondJSON(w, http.StatusOK, cartResponse(r.Context(), engine, firstWarning(persistWarning(err), restoreWarning(restoreErr))))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	engine, _ := h.sessions.Engine(ctx, getSessionID(r.Context()))
	err := engine.Clear(ctx)
	respondJSON(w, http.StatusOK, cartResponse(r.Context(), engine, persistWarning(err)))
}

func cartResponse(ctx context.Context, engine *cart.Engine, warning string) CartResponseDTO {
	lines, totals := engine.Snapshot()
	out := CartResponseDTO{
		SessionID: getSessionID(ctx),
		Lines:     make([]CartLineDTO, 0, len(lines)),
		Totals:    totals,
		Warning:   warning,
	}
	for _, l := range lines {
		out.Lines = append(out.Lines, CartLineDTO{
			Key:             cart.LineKey(l.ProductID, l.SelectedOptions),
			ProductID:       l.ProductID,
			Presentation:    l.Presentation,
			Quantity:        l.Quantity,
			UnitPrice:       cart.UnitPrice(l),
			LineTotal:       cart.ComputeLineTotal(l),
			SelectedOptions: l.SelectedOptions,
		})
	}
	return out
}

func persistWarning(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, cart.ErrDurabilityLost):
		return "cart is too large to be saved; it will be lost when this session ends"
	default:
		return "cart changes could not be saved"
	}
}

func restoreWarning(err error) string {
	if err == nil {
		return ""
	}
	return "saved cart could not be loaded yet"
}

func firstWarning(warnings ...string) string {
	for _, w := range warnings {
		if w != "" {
			return w
		}
	}
	return ""
}

// validateSelection checks a selection against the product's option groups:
// every group and choice must exist, single-select groups take at most one
// choice and required groups need one.
func validateSelection(product domain.Product, sel domain.Selection) error {
	for groupID, choices := range sel {
		if len(choices) == 0 {
			continue
		}
		var group *domain.OptionGroup
		for i := range product.Options {
			if product.Options[i].ID == groupID {
				group = &product.Options[i]
				break
			}
		}
		if group == nil {
			return fmt.Errorf("unknown option group %q", groupID)
		}
		if !group.MultiSelect && len(choices) > 1 {
			return fmt.Errorf("option group %q allows a single choice", groupID)
		}
		for _, id := range choices {
			if _, ok := group.Choice(id); !ok {
				return fmt.Errorf("unknown choice %q in option group %q", id, groupID)
			}
		}
	}
	for _, g := range product.Options {
		if g.Required && len(sel[g.ID]) == 0 {
			return fmt.Errorf("option group %q is required", g.ID)
		}
	}
	return nil
}
