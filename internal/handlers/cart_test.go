package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/maison-panier/api/internal/platform/auth"
	"github.com/maison-panier/api/internal/services"
)

type stubCartService struct {
	getFunc    func(ctx context.Context, userID string) (services.Cart, error)
	addFunc    func(ctx context.Context, cmd services.AddCartItemCommand) (services.Cart, error)
	removeFunc func(ctx context.Context, userID string, itemID string) (services.Cart, error)
	updateFunc func(ctx context.Context, cmd services.UpdateQuantityCommand) (services.Cart, error)
	clearFunc  func(ctx context.Context, userID string) (services.Cart, error)
	syncFunc   func(ctx context.Context, cmd services.SyncCartCommand) (services.Cart, error)
	mergeFunc  func(ctx context.Context, cmd services.MergeCartCommand) (services.Cart, error)
}

func (s *stubCartService) GetCart(ctx context.Context, userID string) (services.Cart, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, userID)
	}
	return services.Cart{UserID: userID, Currency: "EUR"}, nil
}

func (s *stubCartService) AddItem(ctx context.Context, cmd services.AddCartItemCommand) (services.Cart, error) {
	if s.addFunc != nil {
		return s.addFunc(ctx, cmd)
	}
	return services.Cart{UserID: cmd.UserID}, nil
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID string, itemID string) (services.Cart, error) {
	if s.removeFunc != nil {
		return s.removeFunc(ctx, userID, itemID)
	}
	return services.Cart{UserID: userID}, nil
}

func (s *stubCartService) UpdateQuantity(ctx context.Context, cmd services.UpdateQuantityCommand) (services.Cart, error) {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, cmd)
	}
	return services.Cart{UserID: cmd.UserID}, nil
}

func (s *stubCartService) ClearCart(ctx context.Context, userID string) (services.Cart, error) {
	if s.clearFunc != nil {
		return s.clearFunc(ctx, userID)
	}
	return services.Cart{UserID: userID}, nil
}

func (s *stubCartService) Sync(ctx context.Context, cmd services.SyncCartCommand) (services.Cart, error) {
	if s.syncFunc != nil {
		return s.syncFunc(ctx, cmd)
	}
	return services.Cart{UserID: cmd.UserID}, nil
}

func (s *stubCartService) MergeGuestCart(ctx context.Context, cmd services.MergeCartCommand) (services.Cart, error) {
	if s.mergeFunc != nil {
		return s.mergeFunc(ctx, cmd)
	}
	return services.Cart{UserID: cmd.UserID}, nil
}

var _ services.CartService = (*stubCartService)(nil)

func authedRequest(req *http.Request, uid string) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: uid}))
}

func TestCartHandlersGetCart(t *testing.T) {
	router := chi.NewRouter()
	service := &stubCartService{
		getFunc: func(ctx context.Context, userID string) (services.Cart, error) {
			return services.Cart{
				UserID:   userID,
				Currency: "EUR",
				Items: []services.CartItem{
					{ID: "prod-1-large", ProductID: "prod-1", Name: "Grand Hamper", Price: 4500, Quantity: 2},
				},
				UpdatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	NewCartHandlers(nil, service).Routes(router)

	req := authedRequest(httptest.NewRequest(http.MethodGet, "/", nil), "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp cartResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Cart.UserID != "user-1" {
		t.Fatalf("expected userId user-1, got %s", resp.Cart.UserID)
	}
	if resp.Cart.TotalPrice != 9000 {
		t.Fatalf("expected total 9000, got %d", resp.Cart.TotalPrice)
	}
	if resp.Cart.TotalItems != 2 {
		t.Fatalf("expected 2 items, got %d", resp.Cart.TotalItems)
	}
}

func TestCartHandlersGetCartUnauthenticated(t *testing.T) {
	router := chi.NewRouter()
	NewCartHandlers(nil, &stubCartService{}).Routes(router)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestCartHandlersAddItem(t *testing.T) {
	router := chi.NewRouter()
	var captured services.AddCartItemCommand
	service := &stubCartService{
		addFunc: func(ctx context.Context, cmd services.AddCartItemCommand) (services.Cart, error) {
			captured = cmd
			return services.Cart{UserID: cmd.UserID, Items: []services.CartItem{cmd.Item}}, nil
		},
	}
	NewCartHandlers(nil, service).Routes(router)

	payload := `{"item":{"productId":"prod-1","name":"Grand Hamper","price":4500,"quantity":1,"variantName":"Large"},"targetQuantity":3}`
	req := authedRequest(httptest.NewRequest(http.MethodPost, "/items", bytes.NewBufferString(payload)), "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.UserID != "user-1" {
		t.Fatalf("expected user-1, got %s", captured.UserID)
	}
	if captured.Item.ProductID != "prod-1" || captured.Item.VariantName != "Large" {
		t.Fatalf("unexpected item %+v", captured.Item)
	}
	if captured.TargetQuantity != 3 {
		t.Fatalf("expected target quantity 3, got %d", captured.TargetQuantity)
	}
}

func TestCartHandlersUpdateQuantityMapsNotFound(t *testing.T) {
	router := chi.NewRouter()
	service := &stubCartService{
		updateFunc: func(ctx context.Context, cmd services.UpdateQuantityCommand) (services.Cart, error) {
			return services.Cart{}, services.ErrCartNotFound
		},
	}
	NewCartHandlers(nil, service).Routes(router)

	req := authedRequest(httptest.NewRequest(http.MethodPatch, "/items/missing-line", bytes.NewBufferString(`{"quantity":2}`)), "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["error"] != "cart_item_not_found" {
		t.Fatalf("expected cart_item_not_found, got %v", resp["error"])
	}
}

func TestCartHandlersSyncParsesTimestamp(t *testing.T) {
	router := chi.NewRouter()
	var captured services.SyncCartCommand
	service := &stubCartService{
		syncFunc: func(ctx context.Context, cmd services.SyncCartCommand) (services.Cart, error) {
			captured = cmd
			return services.Cart{UserID: cmd.UserID}, nil
		},
	}
	NewCartHandlers(nil, service).Routes(router)

	payload := `{"items":[{"productId":"prod-1","name":"Hamper","price":100,"quantity":1}],"lastSyncedAt":"2026-08-01T10:00:00Z"}`
	req := authedRequest(httptest.NewRequest(http.MethodPost, "/sync", bytes.NewBufferString(payload)), "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if len(captured.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(captured.Items))
	}
	if captured.LastSyncedAt == nil || !captured.LastSyncedAt.Equal(time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected parsed sync timestamp, got %v", captured.LastSyncedAt)
	}
}

func TestCartHandlersClearCart(t *testing.T) {
	router := chi.NewRouter()
	cleared := ""
	service := &stubCartService{
		clearFunc: func(ctx context.Context, userID string) (services.Cart, error) {
			cleared = userID
			return services.Cart{UserID: userID, Currency: "EUR"}, nil
		},
	}
	NewCartHandlers(nil, service).Routes(router)

	req := authedRequest(httptest.NewRequest(http.MethodDelete, "/", nil), "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if cleared != "user-1" {
		t.Fatalf("expected clear for user-1, got %q", cleared)
	}
}
