package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/maison-panier/api/internal/platform/auth"
	"github.com/maison-panier/api/internal/platform/httpx"
	"github.com/maison-panier/api/internal/services"
)

const maxBasketBodySize = 32 * 1024

// BasketHandlers exposes the custom basket builder for the current user.
// Items selected before a basket colour is chosen are queued and flushed
// into the selection once the colour is set.
type BasketHandlers struct {
	authn   *auth.Authenticator
	baskets services.BasketService
}

// NewBasketHandlers constructs handlers enforcing authentication before
// invoking the basket service.
func NewBasketHandlers(authn *auth.Authenticator, baskets services.BasketService) *BasketHandlers {
	return &BasketHandlers{
		authn:   authn,
		baskets: baskets,
	}
}

// Routes wires the /basket endpoints onto the provided router.
func (h *BasketHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.getBasket)
	r.Delete("/", h.clearBasket)
	r.Put("/type", h.setType)
	r.Post("/items", h.addItem)
	r.Delete("/items/{itemId}", h.removeItem)
	r.Post("/convert", h.convertToCart)
}

func (h *BasketHandlers) getBasket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.baskets == nil {
		httpx.WriteError(ctx, w, httpx.NewError("basket_service_unavailable", "basket service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := currentIdentity(ctx, w)
	if !ok {
		return
	}

	basket, err := h.baskets.GetBasket(ctx, identity.UID)
	if err != nil {
		writeBasketError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, basketResponse{Basket: buildBasketPayload(basket)})
}

func (h *BasketHandlers) clearBasket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.baskets == nil {
		httpx.WriteError(ctx, w, httpx.NewError("basket_service_unavailable", "basket service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := currentIdentity(ctx, w)
	if !ok {
		return
	}

	if err := h.baskets.ClearBasket(ctx, identity.UID); err != nil {
		writeBasketError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BasketHandlers) setType(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.baskets == nil {
		httpx.WriteError(ctx, w, httpx.NewError("basket_service_unavailable", "basket service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := currentIdentity(ctx, w)
	if !ok {
		return
	}

	var req struct {
		Type string `json:"type"`
	}
	if err := decodeJSONBody(r, maxBasketBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	result, err := h.baskets.SetBasketType(ctx, services.SetBasketTypeCommand{
		UserID: identity.UID,
		Type:   services.BasketType(strings.ToLower(strings.TrimSpace(req.Type))),
	})
	if err != nil {
		writeBasketError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, basketTypeResponse{
		Basket:  buildBasketPayload(result.Basket),
		Flushed: result.Flushed,
	})
}

func (h *BasketHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.baskets == nil {
		httpx.WriteError(ctx, w, httpx.NewError("basket_service_unavailable", "basket service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := currentIdentity(ctx, w)
	if !ok {
		return
	}

	var req struct {
		Item basketSelectionInput `json:"item"`
	}
	if err := decodeJSONBody(r, maxBasketBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	basket, err := h.baskets.QueueItem(ctx, services.BasketItemCommand{
		UserID: identity.UID,
		Item:   req.Item.toDomain(),
	})
	if err != nil {
		writeBasketError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, basketResponse{Basket: buildBasketPayload(basket)})
}

func (h *BasketHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.baskets == nil {
		httpx.WriteError(ctx, w, httpx.NewError("basket_service_unavailable", "basket service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := currentIdentity(ctx, w)
	if !ok {
		return
	}

	basket, err := h.baskets.RemoveItem(ctx, identity.UID, strings.TrimSpace(chi.URLParam(r, "itemId")))
	if err != nil {
		writeBasketError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, basketResponse{Basket: buildBasketPayload(basket)})
}

func (h *BasketHandlers) convertToCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.baskets == nil {
		httpx.WriteError(ctx, w, httpx.NewError("basket_service_unavailable", "basket service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := currentIdentity(ctx, w)
	if !ok {
		return
	}

	cart, err := h.baskets.ConvertToCartLine(ctx, identity.UID)
	if err != nil {
		writeBasketError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func writeBasketError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrBasketInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrBasketNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("basket_item_not_found", "basket item not found", http.StatusNotFound))
	case errors.Is(err, services.ErrBasketTypeRequired):
		httpx.WriteError(ctx, w, httpx.NewError("basket_type_required", "choose a basket colour first", http.StatusConflict))
	case errors.Is(err, services.ErrBasketDuplicateItem):
		httpx.WriteError(ctx, w, httpx.NewError("basket_duplicate_item", "item is already in the basket", http.StatusConflict))
	case errors.Is(err, services.ErrBasketFull):
		httpx.WriteError(ctx, w, httpx.NewError("basket_full", "basket selection is full", http.StatusConflict))
	case errors.Is(err, services.ErrBasketTooSmall):
		httpx.WriteError(ctx, w, httpx.NewError("basket_too_small", "basket needs more items before checkout", http.StatusConflict))
	case errors.Is(err, services.ErrBasketUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("basket_service_unavailable", "basket service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("basket_error", "failed to serve basket request", http.StatusInternalServerError))
	}
}

func buildBasketPayload(basket services.CustomBasket) basketPayload {
	payload := basketPayload{
		UserID:        basket.UserID,
		Type:          string(basket.Type),
		SelectedItems: buildSelectionPayloads(basket.SelectedItems),
		PendingItems:  buildSelectionPayloads(basket.PendingItems),
		TotalPrice:    basket.TotalPrice,
	}
	if payload.SelectedItems == nil {
		payload.SelectedItems = []basketSelectionPayload{}
	}
	if payload.PendingItems == nil {
		payload.PendingItems = []basketSelectionPayload{}
	}
	if !basket.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(basket.UpdatedAt)
	}
	return payload
}

type basketResponse struct {
	Basket basketPayload `json:"basket"`
}

type basketTypeResponse struct {
	Basket  basketPayload `json:"basket"`
	Flushed int           `json:"flushed"`
}

type basketPayload struct {
	UserID        string                   `json:"userId"`
	Type          string                   `json:"type,omitempty"`
	SelectedItems []basketSelectionPayload `json:"selectedItems"`
	PendingItems  []basketSelectionPayload `json:"pendingItems"`
	TotalPrice    int64                    `json:"totalPrice"`
	UpdatedAt     string                   `json:"updatedAt,omitempty"`
}
