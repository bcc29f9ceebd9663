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

// CartHandlers exposes the authoritative server-side cart for the current
// user. Every route requires Firebase authentication.
type CartHandlers struct {
	authn *auth.Authenticator
	carts services.CartService
}

const maxCartBodySize = 64 * 1024

// NewCartHandlers constructs handlers enforcing authentication before
// invoking the cart service.
func NewCartHandlers(authn *auth.Authenticator, carts services.CartService) *CartHandlers {
	return &CartHandlers{
		authn: authn,
		carts: carts,
	}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Patch("/items/{itemId}", h.updateQuantity)
	r.Delete("/items/{itemId}", h.removeItem)
	r.Post("/sync", h.syncCart)
	r.Post("/merge", h.mergeCart)
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := currentIdentity(ctx, w)
	if !ok {
		return
	}

	cart, err := h.carts.GetCart(ctx, identity.UID)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := currentIdentity(ctx, w)
	if !ok {
		return
	}

	cart, err := h.carts.ClearCart(ctx, identity.UID)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := currentIdentity(ctx, w)
	if !ok {
		return
	}

	var req struct {
		Item           cartItemInput `json:"item"`
		TargetQuantity int           `json:"targetQuantity"`
	}
	if err := decodeJSONBody(r, maxCartBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cart, err := h.carts.AddItem(ctx, services.AddCartItemCommand{
		UserID:         identity.UID,
		Item:           req.Item.toDomain(),
		TargetQuantity: req.TargetQuantity,
	})
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) updateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := currentIdentity(ctx, w)
	if !ok {
		return
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := decodeJSONBody(r, maxCartBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cart, err := h.carts.UpdateQuantity(ctx, services.UpdateQuantityCommand{
		UserID:   identity.UID,
		ItemID:   strings.TrimSpace(chi.URLParam(r, "itemId")),
		Quantity: req.Quantity,
	})
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := currentIdentity(ctx, w)
	if !ok {
		return
	}

	cart, err := h.carts.RemoveItem(ctx, identity.UID, strings.TrimSpace(chi.URLParam(r, "itemId")))
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) syncCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := currentIdentity(ctx, w)
	if !ok {
		return
	}

	var req struct {
		Items        []cartItemInput `json:"items"`
		LastSyncedAt string          `json:"lastSyncedAt"`
	}
	if err := decodeJSONBody(r, maxCartBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cmd := services.SyncCartCommand{UserID: identity.UID}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, item.toDomain())
	}
	if raw := strings.TrimSpace(req.LastSyncedAt); raw != "" {
		parsed, err := parseRFC3339(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "lastSyncedAt must be an RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		cmd.LastSyncedAt = &parsed
	}

	cart, err := h.carts.Sync(ctx, cmd)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func (h *CartHandlers) mergeCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := currentIdentity(ctx, w)
	if !ok {
		return
	}

	var req struct {
		Items []cartItemInput `json:"items"`
	}
	if err := decodeJSONBody(r, maxCartBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cmd := services.MergeCartCommand{UserID: identity.UID}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, item.toDomain())
	}

	cart, err := h.carts.MergeGuestCart(ctx, cmd)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_item_not_found", "cart line not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartConflict):
		httpx.WriteError(ctx, w, httpx.NewError("cart_conflict", "cart has been modified; refresh and retry", http.StatusConflict))
	case errors.Is(err, services.ErrCartUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "failed to serve cart request", http.StatusInternalServerError))
	}
}

func buildCartPayload(cart services.Cart) cartPayload {
	payload := cartPayload{
		ID:         strings.TrimSpace(cart.ID),
		UserID:     strings.TrimSpace(cart.UserID),
		Currency:   strings.ToUpper(strings.TrimSpace(cart.Currency)),
		Items:      buildCartItems(cart.Items),
		TotalItems: cart.TotalItems(),
		TotalPrice: cart.TotalPrice(),
	}
	if cart.LastSyncedAt != nil && !cart.LastSyncedAt.IsZero() {
		payload.LastSyncedAt = formatTime(*cart.LastSyncedAt)
	}
	if !cart.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(cart.UpdatedAt)
	}
	return payload
}

func buildCartItems(items []services.CartItem) []cartItemPayload {
	payload := make([]cartItemPayload, 0, len(items))
	for _, item := range items {
		entry := cartItemPayload{
			ID:          item.ID,
			ProductID:   item.ProductID,
			Name:        item.Name,
			Price:       item.Price,
			Image:       item.Image,
			Category:    item.Category,
			Description: item.Description,
			Quantity:    item.Quantity,
			VariantName: item.VariantName,
			CustomItems: buildSelectionPayloads(item.CustomItems),
			BasketItems: buildSelectionPayloads(item.BasketItems),
		}
		if !item.AddedAt.IsZero() {
			entry.AddedAt = formatTime(item.AddedAt)
		}
		if item.UpdatedAt != nil && !item.UpdatedAt.IsZero() {
			entry.UpdatedAt = formatTime(*item.UpdatedAt)
		}
		payload = append(payload, entry)
	}
	return payload
}

func buildSelectionPayloads(selections []services.BasketSelection) []basketSelectionPayload {
	if len(selections) == 0 {
		return nil
	}
	out := make([]basketSelectionPayload, 0, len(selections))
	for _, sel := range selections {
		out = append(out, basketSelectionPayload{
			ID:          sel.ID,
			ProductID:   sel.ProductID,
			Name:        sel.Name,
			Price:       sel.Price,
			Image:       sel.Image,
			Category:    sel.Category,
			VariantName: sel.VariantName,
			Details:     cloneMap(sel.Details),
		})
	}
	return out
}

type cartResponse struct {
	Cart cartPayload `json:"cart"`
}

type cartPayload struct {
	ID           string            `json:"id,omitempty"`
	UserID       string            `json:"userId"`
	Currency     string            `json:"currency"`
	Items        []cartItemPayload `json:"items"`
	TotalItems   int               `json:"totalItems"`
	TotalPrice   int64             `json:"totalPrice"`
	LastSyncedAt string            `json:"lastSyncedAt,omitempty"`
	UpdatedAt    string            `json:"updatedAt,omitempty"`
}

type cartItemPayload struct {
	ID          string                   `json:"id"`
	ProductID   string                   `json:"productId"`
	Name        string                   `json:"name"`
	Price       int64                    `json:"price"`
	Image       string                   `json:"image,omitempty"`
	Category    string                   `json:"category,omitempty"`
	Description string                   `json:"description,omitempty"`
	Quantity    int                      `json:"quantity"`
	VariantName string                   `json:"variantName,omitempty"`
	CustomItems []basketSelectionPayload `json:"customItems,omitempty"`
	BasketItems []basketSelectionPayload `json:"basketItems,omitempty"`
	AddedAt     string                   `json:"addedAt,omitempty"`
	UpdatedAt   string                   `json:"updatedAt,omitempty"`
}

type basketSelectionPayload struct {
	ID          string         `json:"id"`
	ProductID   string         `json:"productId"`
	Name        string         `json:"name"`
	Price       int64          `json:"price"`
	Image       string         `json:"image,omitempty"`
	Category    string         `json:"category,omitempty"`
	VariantName string         `json:"variantName,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// cartItemInput is the wire form of a cart line supplied by the client.
type cartItemInput struct {
	ID          string                 `json:"id"`
	ProductID   string                 `json:"productId"`
	Name        string                 `json:"name"`
	Price       int64                  `json:"price"`
	Image       string                 `json:"image"`
	Category    string                 `json:"category"`
	Description string                 `json:"description"`
	Quantity    int                    `json:"quantity"`
	VariantName string                 `json:"variantName"`
	CustomItems []basketSelectionInput `json:"customItems"`
	BasketItems []basketSelectionInput `json:"basketItems"`
	AddedAt     string                 `json:"addedAt"`
}

type basketSelectionInput struct {
	ID          string         `json:"id"`
	ProductID   string         `json:"productId"`
	Name        string         `json:"name"`
	Price       int64          `json:"price"`
	Image       string         `json:"image"`
	Category    string         `json:"category"`
	VariantName string         `json:"variantName"`
	Details     map[string]any `json:"details"`
}

func (in cartItemInput) toDomain() services.CartItem {
	item := services.CartItem{
		ID:          strings.TrimSpace(in.ID),
		ProductID:   strings.TrimSpace(in.ProductID),
		Name:        strings.TrimSpace(in.Name),
		Price:       in.Price,
		Image:       strings.TrimSpace(in.Image),
		Category:    strings.TrimSpace(in.Category),
		Description: in.Description,
		Quantity:    in.Quantity,
		VariantName: strings.TrimSpace(in.VariantName),
	}
	for _, sel := range in.CustomItems {
		item.CustomItems = append(item.CustomItems, sel.toDomain())
	}
	for _, sel := range in.BasketItems {
		item.BasketItems = append(item.BasketItems, sel.toDomain())
	}
	if raw := strings.TrimSpace(in.AddedAt); raw != "" {
		if parsed, err := parseRFC3339(raw); err == nil {
			item.AddedAt = parsed
		}
	}
	return item
}

func (in basketSelectionInput) toDomain() services.BasketSelection {
	return services.BasketSelection{
		ID:          strings.TrimSpace(in.ID),
		ProductID:   strings.TrimSpace(in.ProductID),
		Name:        strings.TrimSpace(in.Name),
		Price:       in.Price,
		Image:       strings.TrimSpace(in.Image),
		Category:    strings.TrimSpace(in.Category),
		VariantName: strings.TrimSpace(in.VariantName),
		Details:     in.Details,
	}
}
