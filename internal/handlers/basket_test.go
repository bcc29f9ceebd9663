package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/maison-panier/api/internal/services"
)

type stubBasketService struct {
	getFunc     func(ctx context.Context, userID string) (services.CustomBasket, error)
	setTypeFunc func(ctx context.Context, cmd services.SetBasketTypeCommand) (services.BasketTypeResult, error)
	queueFunc   func(ctx context.Context, cmd services.BasketItemCommand) (services.CustomBasket, error)
	addFunc     func(ctx context.Context, cmd services.BasketItemCommand) (services.CustomBasket, error)
	removeFunc  func(ctx context.Context, userID string, itemID string) (services.CustomBasket, error)
	clearFunc   func(ctx context.Context, userID string) error
	convertFunc func(ctx context.Context, userID string) (services.Cart, error)
}

func (s *stubBasketService) GetBasket(ctx context.Context, userID string) (services.CustomBasket, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, userID)
	}
	return services.CustomBasket{UserID: userID}, nil
}

func (s *stubBasketService) SetBasketType(ctx context.Context, cmd services.SetBasketTypeCommand) (services.BasketTypeResult, error) {
	if s.setTypeFunc != nil {
		return s.setTypeFunc(ctx, cmd)
	}
	return services.BasketTypeResult{Basket: services.CustomBasket{UserID: cmd.UserID, Type: cmd.Type}}, nil
}

func (s *stubBasketService) QueueItem(ctx context.Context, cmd services.BasketItemCommand) (services.CustomBasket, error) {
	if s.queueFunc != nil {
		return s.queueFunc(ctx, cmd)
	}
	return services.CustomBasket{UserID: cmd.UserID}, nil
}

func (s *stubBasketService) AddItem(ctx context.Context, cmd services.BasketItemCommand) (services.CustomBasket, error) {
	if s.addFunc != nil {
		return s.addFunc(ctx, cmd)
	}
	return services.CustomBasket{UserID: cmd.UserID}, nil
}

func (s *stubBasketService) RemoveItem(ctx context.Context, userID string, itemID string) (services.CustomBasket, error) {
	if s.removeFunc != nil {
		return s.removeFunc(ctx, userID, itemID)
	}
	return services.CustomBasket{UserID: userID}, nil
}

func (s *stubBasketService) ClearBasket(ctx context.Context, userID string) error {
	if s.clearFunc != nil {
		return s.clearFunc(ctx, userID)
	}
	return nil
}

func (s *stubBasketService) ConvertToCartLine(ctx context.Context, userID string) (services.Cart, error) {
	if s.convertFunc != nil {
		return s.convertFunc(ctx, userID)
	}
	return services.Cart{UserID: userID}, nil
}

var _ services.BasketService = (*stubBasketService)(nil)

func TestBasketHandlersSetTypeReportsFlushed(t *testing.T) {
	router := chi.NewRouter()
	service := &stubBasketService{
		setTypeFunc: func(ctx context.Context, cmd services.SetBasketTypeCommand) (services.BasketTypeResult, error) {
			if cmd.Type != services.BasketType("natural") {
				t.Fatalf("expected natural, got %s", cmd.Type)
			}
			return services.BasketTypeResult{
				Basket: services.CustomBasket{
					UserID: cmd.UserID,
					Type:   cmd.Type,
					SelectedItems: []services.BasketSelection{
						{ID: "prod-1", Name: "Candle", Price: 1500},
						{ID: "prod-2", Name: "Tea", Price: 900},
					},
					TotalPrice: 2400,
				},
				Flushed: 2,
			}, nil
		},
	}
	NewBasketHandlers(nil, service).Routes(router)

	req := authedRequest(httptest.NewRequest(http.MethodPut, "/type", bytes.NewBufferString(`{"type":"Natural"}`)), "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp basketTypeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Flushed != 2 {
		t.Fatalf("expected 2 flushed items, got %d", resp.Flushed)
	}
	if len(resp.Basket.SelectedItems) != 2 {
		t.Fatalf("expected 2 selected items, got %d", len(resp.Basket.SelectedItems))
	}
	if resp.Basket.TotalPrice != 2400 {
		t.Fatalf("expected total 2400, got %d", resp.Basket.TotalPrice)
	}
}

func TestBasketHandlersAddItemDuplicate(t *testing.T) {
	router := chi.NewRouter()
	service := &stubBasketService{
		queueFunc: func(ctx context.Context, cmd services.BasketItemCommand) (services.CustomBasket, error) {
			return services.CustomBasket{}, services.ErrBasketDuplicateItem
		},
	}
	NewBasketHandlers(nil, service).Routes(router)

	payload := `{"item":{"id":"prod-1","productId":"prod-1","name":"Candle","price":1500}}`
	req := authedRequest(httptest.NewRequest(http.MethodPost, "/items", bytes.NewBufferString(payload)), "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["error"] != "basket_duplicate_item" {
		t.Fatalf("expected basket_duplicate_item, got %v", resp["error"])
	}
}

func TestBasketHandlersConvertTooSmall(t *testing.T) {
	router := chi.NewRouter()
	service := &stubBasketService{
		convertFunc: func(ctx context.Context, userID string) (services.Cart, error) {
			return services.Cart{}, services.ErrBasketTooSmall
		},
	}
	NewBasketHandlers(nil, service).Routes(router)

	req := authedRequest(httptest.NewRequest(http.MethodPost, "/convert", nil), "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestBasketHandlersConvertReturnsCart(t *testing.T) {
	router := chi.NewRouter()
	service := &stubBasketService{
		convertFunc: func(ctx context.Context, userID string) (services.Cart, error) {
			return services.Cart{
				UserID:   userID,
				Currency: "EUR",
				Items: []services.CartItem{
					{ID: "basket-1", Name: "Custom Basket (natural)", Price: 4200, Quantity: 1},
				},
			}, nil
		},
	}
	NewBasketHandlers(nil, service).Routes(router)

	req := authedRequest(httptest.NewRequest(http.MethodPost, "/convert", nil), "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp cartResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Cart.Items) != 1 || resp.Cart.Items[0].Name != "Custom Basket (natural)" {
		t.Fatalf("unexpected cart items %+v", resp.Cart.Items)
	}
}

func TestBasketHandlersClear(t *testing.T) {
	router := chi.NewRouter()
	cleared := ""
	service := &stubBasketService{
		clearFunc: func(ctx context.Context, userID string) error {
			cleared = userID
			return nil
		},
	}
	NewBasketHandlers(nil, service).Routes(router)

	req := authedRequest(httptest.NewRequest(http.MethodDelete, "/", nil), "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if cleared != "user-1" {
		t.Fatalf("expected clear for user-1, got %q", cleared)
	}
}
