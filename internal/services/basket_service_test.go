package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/maison-panier/api/internal/domain"
)

type stubBasketRepository struct {
	getFunc    func(ctx context.Context, userID string) (domain.CustomBasket, error)
	saveFunc   func(ctx context.Context, basket domain.CustomBasket) (domain.CustomBasket, error)
	deleteFunc func(ctx context.Context, userID string) error
}

func (s *stubBasketRepository) Get(ctx context.Context, userID string) (domain.CustomBasket, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, userID)
	}
	return domain.CustomBasket{}, &repositoryErrorStub{notFound: true}
}

func (s *stubBasketRepository) Save(ctx context.Context, basket domain.CustomBasket) (domain.CustomBasket, error) {
	if s.saveFunc != nil {
		return s.saveFunc(ctx, basket)
	}
	return basket, nil
}

func (s *stubBasketRepository) Delete(ctx context.Context, userID string) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, userID)
	}
	return nil
}

type stubCartService struct {
	getFunc   func(ctx context.Context, userID string) (Cart, error)
	addFunc   func(ctx context.Context, cmd AddCartItemCommand) (Cart, error)
	clearFunc func(ctx context.Context, userID string) (Cart, error)
}

func (s *stubCartService) GetCart(ctx context.Context, userID string) (Cart, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, userID)
	}
	return Cart{UserID: userID}, nil
}

func (s *stubCartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error) {
	if s.addFunc != nil {
		return s.addFunc(ctx, cmd)
	}
	return Cart{}, errors.New("not implemented")
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID string, itemID string) (Cart, error) {
	return Cart{}, errors.New("not implemented")
}

func (s *stubCartService) UpdateQuantity(ctx context.Context, cmd UpdateQuantityCommand) (Cart, error) {
	return Cart{}, errors.New("not implemented")
}

func (s *stubCartService) ClearCart(ctx context.Context, userID string) (Cart, error) {
	if s.clearFunc != nil {
		return s.clearFunc(ctx, userID)
	}
	return Cart{UserID: userID}, nil
}

func (s *stubCartService) Sync(ctx context.Context, cmd SyncCartCommand) (Cart, error) {
	return Cart{}, errors.New("not implemented")
}

func (s *stubCartService) MergeGuestCart(ctx context.Context, cmd MergeCartCommand) (Cart, error) {
	return Cart{}, errors.New("not implemented")
}

func newTestBasketService(t *testing.T, repo *stubBasketRepository, cart CartService, now time.Time) BasketService {
	t.Helper()
	if cart == nil {
		cart = &stubCartService{}
	}
	service, err := NewBasketService(BasketServiceDeps{
		Repository:  repo,
		Cart:        cart,
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "GENERATED" },
	})
	if err != nil {
		t.Fatalf("unexpected error constructing basket service: %v", err)
	}
	return service
}

func selections(n int) []domain.BasketSelection {
	out := make([]domain.BasketSelection, 0, n)
	names := []string{"Honey", "Candle", "Chocolates", "Tea", "Jam", "Biscuits"}
	for i := 0; i < n; i++ {
		out = append(out, domain.BasketSelection{
			ID:        names[i],
			ProductID: names[i],
			Name:      names[i],
			Price:     int64(1000 * (i + 1)),
		})
	}
	return out
}

func TestBasketServiceSetBasketTypeFlushesPending(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	pending := selections(2)
	repo := &stubBasketRepository{
		getFunc: func(ctx context.Context, userID string) (domain.CustomBasket, error) {
			return domain.CustomBasket{UserID: userID, PendingItems: pending}, nil
		},
	}

	service := newTestBasketService(t, repo, nil, now)
	result, err := service.SetBasketType(context.Background(), SetBasketTypeCommand{
		UserID: "user-1",
		Type:   domain.BasketTypeNatural,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Flushed != 2 {
		t.Fatalf("expected 2 flushed items, got %d", result.Flushed)
	}
	if len(result.Basket.SelectedItems) != 2 {
		t.Fatalf("expected 2 selected items, got %d", len(result.Basket.SelectedItems))
	}
	if len(result.Basket.PendingItems) != 0 {
		t.Fatalf("expected pending cleared, got %d", len(result.Basket.PendingItems))
	}
	if result.Basket.TotalPrice != 3000 {
		t.Fatalf("expected total 3000, got %d", result.Basket.TotalPrice)
	}
}

func TestBasketServiceSetBasketTypeRejectsUnknownColour(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 5, 0, 0, time.UTC)
	service := newTestBasketService(t, &stubBasketRepository{}, nil, now)

	if _, err := service.SetBasketType(context.Background(), SetBasketTypeCommand{
		UserID: "user-1",
		Type:   "mauve",
	}); !errors.Is(err, ErrBasketInvalidInput) {
		t.Fatalf("expected ErrBasketInvalidInput, got %v", err)
	}
}

func TestBasketServiceQueueItemBeforeTypeChosen(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	var saved domain.CustomBasket
	repo := &stubBasketRepository{
		saveFunc: func(ctx context.Context, basket domain.CustomBasket) (domain.CustomBasket, error) {
			saved = basket
			return basket, nil
		},
	}

	service := newTestBasketService(t, repo, nil, now)
	basket, err := service.QueueItem(context.Background(), BasketItemCommand{
		UserID: "user-1",
		Item:   domain.BasketSelection{ProductID: "prod-1", Name: "Honey", Price: 1200},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(saved.PendingItems) != 1 {
		t.Fatalf("expected item queued, got %d pending", len(saved.PendingItems))
	}
	if len(basket.SelectedItems) != 0 {
		t.Fatalf("expected selection untouched, got %d", len(basket.SelectedItems))
	}
	if basket.PendingItems[0].ID != "prod-1" {
		t.Fatalf("expected composed id prod-1, got %q", basket.PendingItems[0].ID)
	}
}

func TestBasketServiceAddItemRequiresType(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 30, 0, 0, time.UTC)
	repo := &stubBasketRepository{
		getFunc: func(ctx context.Context, userID string) (domain.CustomBasket, error) {
			return domain.CustomBasket{UserID: userID}, nil
		},
	}

	service := newTestBasketService(t, repo, nil, now)
	if _, err := service.AddItem(context.Background(), BasketItemCommand{
		UserID: "user-1",
		Item:   domain.BasketSelection{ProductID: "prod-1", Name: "Honey", Price: 1200},
	}); !errors.Is(err, ErrBasketTypeRequired) {
		t.Fatalf("expected ErrBasketTypeRequired, got %v", err)
	}
}

func TestBasketServiceAddItemRejectsDuplicate(t *testing.T) {
	now := time.Date(2026, 4, 1, 11, 0, 0, 0, time.UTC)
	repo := &stubBasketRepository{
		getFunc: func(ctx context.Context, userID string) (domain.CustomBasket, error) {
			return domain.CustomBasket{
				UserID:        userID,
				Type:          domain.BasketTypeNatural,
				SelectedItems: selections(1),
			}, nil
		},
	}

	service := newTestBasketService(t, repo, nil, now)
	if _, err := service.AddItem(context.Background(), BasketItemCommand{
		UserID: "user-1",
		Item:   domain.BasketSelection{ID: "Honey", Name: "Honey", Price: 1000},
	}); !errors.Is(err, ErrBasketDuplicateItem) {
		t.Fatalf("expected ErrBasketDuplicateItem, got %v", err)
	}
}

func TestBasketServiceAddItemRejectsSixthItem(t *testing.T) {
	now := time.Date(2026, 4, 1, 11, 30, 0, 0, time.UTC)
	repo := &stubBasketRepository{
		getFunc: func(ctx context.Context, userID string) (domain.CustomBasket, error) {
			return domain.CustomBasket{
				UserID:        userID,
				Type:          domain.BasketTypeBlack,
				SelectedItems: selections(domain.MaxBasketSelection),
			}, nil
		},
		saveFunc: func(ctx context.Context, basket domain.CustomBasket) (domain.CustomBasket, error) {
			t.Fatal("save should not run when the selection is full")
			return basket, nil
		},
	}

	service := newTestBasketService(t, repo, nil, now)
	if _, err := service.AddItem(context.Background(), BasketItemCommand{
		UserID: "user-1",
		Item:   domain.BasketSelection{ID: "Extra", Name: "Extra", Price: 900},
	}); !errors.Is(err, ErrBasketFull) {
		t.Fatalf("expected ErrBasketFull, got %v", err)
	}
}

func TestBasketServiceRemoveItemRecomputesTotal(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	repo := &stubBasketRepository{
		getFunc: func(ctx context.Context, userID string) (domain.CustomBasket, error) {
			return domain.CustomBasket{
				UserID:        userID,
				Type:          domain.BasketTypeNatural,
				SelectedItems: selections(3),
			}, nil
		},
	}

	service := newTestBasketService(t, repo, nil, now)
	basket, err := service.RemoveItem(context.Background(), "user-1", "Candle")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(basket.SelectedItems) != 2 {
		t.Fatalf("expected 2 items after removal, got %d", len(basket.SelectedItems))
	}
	if basket.TotalPrice != 4000 {
		t.Fatalf("expected recomputed total 4000, got %d", basket.TotalPrice)
	}
}

func TestBasketServiceConvertBelowMinimum(t *testing.T) {
	now := time.Date(2026, 4, 1, 13, 0, 0, 0, time.UTC)
	repo := &stubBasketRepository{
		getFunc: func(ctx context.Context, userID string) (domain.CustomBasket, error) {
			return domain.CustomBasket{
				UserID:        userID,
				Type:          domain.BasketTypeNatural,
				SelectedItems: selections(domain.MinBasketSelection - 1),
			}, nil
		},
	}

	service := newTestBasketService(t, repo, nil, now)
	if _, err := service.ConvertToCartLine(context.Background(), "user-1"); !errors.Is(err, ErrBasketTooSmall) {
		t.Fatalf("expected ErrBasketTooSmall, got %v", err)
	}
}

func TestBasketServiceConvertBuildsSyntheticLineAndClears(t *testing.T) {
	now := time.Date(2026, 4, 1, 14, 0, 0, 0, time.UTC)
	deleted := false
	repo := &stubBasketRepository{
		getFunc: func(ctx context.Context, userID string) (domain.CustomBasket, error) {
			return domain.CustomBasket{
				UserID:        userID,
				Type:          domain.BasketTypeBlack,
				SelectedItems: selections(3),
			}, nil
		},
		deleteFunc: func(ctx context.Context, userID string) error {
			deleted = true
			return nil
		},
	}

	var added AddCartItemCommand
	cart := &stubCartService{
		addFunc: func(ctx context.Context, cmd AddCartItemCommand) (Cart, error) {
			added = cmd
			return Cart{UserID: cmd.UserID, Items: []CartItem{cmd.Item}}, nil
		},
	}

	service := newTestBasketService(t, repo, cart, now)
	result, err := service.ConvertToCartLine(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if added.Item.Name != "Custom Black Basket" {
		t.Fatalf("expected synthetic name Custom Black Basket, got %q", added.Item.Name)
	}
	if added.Item.Price != 6000 {
		t.Fatalf("expected snapshot price 6000, got %d", added.Item.Price)
	}
	if added.Item.Quantity != 1 {
		t.Fatalf("expected quantity 1, got %d", added.Item.Quantity)
	}
	if len(added.Item.CustomItems) != 3 {
		t.Fatalf("expected 3 snapshot items, got %d", len(added.Item.CustomItems))
	}
	if !deleted {
		t.Fatal("expected basket cleared after successful cart write")
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected converted cart returned, got %d lines", len(result.Items))
	}
}

func TestBasketServiceConvertKeepsBasketWhenCartWriteFails(t *testing.T) {
	now := time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC)
	repo := &stubBasketRepository{
		getFunc: func(ctx context.Context, userID string) (domain.CustomBasket, error) {
			return domain.CustomBasket{
				UserID:        userID,
				Type:          domain.BasketTypeNatural,
				SelectedItems: selections(4),
			}, nil
		},
		deleteFunc: func(ctx context.Context, userID string) error {
			t.Fatal("basket must not be cleared when the cart write fails")
			return nil
		},
	}

	cart := &stubCartService{
		addFunc: func(ctx context.Context, cmd AddCartItemCommand) (Cart, error) {
			return Cart{}, ErrCartUnavailable
		},
	}

	service := newTestBasketService(t, repo, cart, now)
	if _, err := service.ConvertToCartLine(context.Background(), "user-1"); !errors.Is(err, ErrCartUnavailable) {
		t.Fatalf("expected cart error surfaced, got %v", err)
	}
}
