package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/maison-panier/api/internal/domain"
)

type stubCartRepository struct {
	getFunc     func(ctx context.Context, userID string) (domain.Cart, error)
	upsertFunc  func(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	replaceFunc func(ctx context.Context, userID string, items []domain.CartItem, syncedAt *time.Time) (domain.Cart, error)
}

func (s *stubCartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, userID)
	}
	return domain.Cart{}, errors.New("not implemented")
}

func (s *stubCartRepository) UpsertCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if s.upsertFunc != nil {
		return s.upsertFunc(ctx, cart)
	}
	return cart, nil
}

func (s *stubCartRepository) ReplaceItems(ctx context.Context, userID string, items []domain.CartItem, syncedAt *time.Time) (domain.Cart, error) {
	if s.replaceFunc != nil {
		return s.replaceFunc(ctx, userID, items, syncedAt)
	}
	return domain.Cart{}, errors.New("not implemented")
}

type repositoryErrorStub struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *repositoryErrorStub) Error() string { return "repository error" }

func (e *repositoryErrorStub) IsNotFound() bool { return e.notFound }

func (e *repositoryErrorStub) IsConflict() bool { return e.conflict }

func (e *repositoryErrorStub) IsUnavailable() bool { return e.unavailable }

func newTestCartService(t *testing.T, repo *stubCartRepository, now time.Time) CartService {
	t.Helper()
	service, err := NewCartService(CartServiceDeps{
		Repository:      repo,
		Clock:           func() time.Time { return now },
		DefaultCurrency: "EUR",
	})
	if err != nil {
		t.Fatalf("unexpected error constructing cart service: %v", err)
	}
	return service
}

func TestCartServiceGetCartLazyCreates(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	var upserted domain.Cart

	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, userID string) (domain.Cart, error) {
			return domain.Cart{}, &repositoryErrorStub{notFound: true}
		},
		upsertFunc: func(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
			upserted = cart
			return cart, nil
		},
	}

	service := newTestCartService(t, repo, now)
	cart, err := service.GetCart(context.Background(), " user-1 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if upserted.UserID != "user-1" {
		t.Fatalf("expected cart persisted for user-1, got %q", upserted.UserID)
	}
	if cart.Currency != "EUR" {
		t.Fatalf("expected default currency EUR, got %q", cart.Currency)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("expected empty cart, got %d items", len(cart.Items))
	}
}

func TestCartServiceAddItemIncrementsExistingLine(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	existing := domain.Cart{
		ID:       "user-1",
		UserID:   "user-1",
		Currency: "EUR",
		Items: []domain.CartItem{
			{ID: "prod-1-large", ProductID: "prod-1", Name: "Hamper", Price: 4500, Quantity: 1},
		},
	}

	var replaced []domain.CartItem
	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, userID string) (domain.Cart, error) {
			return existing, nil
		},
		replaceFunc: func(ctx context.Context, userID string, items []domain.CartItem, syncedAt *time.Time) (domain.Cart, error) {
			replaced = items
			out := existing
			out.Items = items
			return out, nil
		},
	}

	service := newTestCartService(t, repo, now)
	cart, err := service.AddItem(context.Background(), AddCartItemCommand{
		UserID: "user-1",
		Item:   domain.CartItem{ProductID: "prod-1", VariantName: "Large", Name: "Hamper", Price: 4500, Quantity: 2},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(replaced) != 1 {
		t.Fatalf("expected single line, got %d", len(replaced))
	}
	if replaced[0].Quantity != 3 {
		t.Fatalf("expected incremented quantity 3, got %d", replaced[0].Quantity)
	}
	if cart.TotalItems() != 3 {
		t.Fatalf("expected total items 3, got %d", cart.TotalItems())
	}
	if cart.TotalPrice() != 13500 {
		t.Fatalf("expected total 13500, got %d", cart.TotalPrice())
	}
}

func TestCartServiceAddItemTargetQuantitySetsLine(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 5, 0, 0, time.UTC)
	existing := domain.Cart{
		UserID:   "user-1",
		Currency: "EUR",
		Items: []domain.CartItem{
			{ID: "prod-1", Name: "Hamper", Price: 4500, Quantity: 2},
		},
	}

	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, userID string) (domain.Cart, error) {
			return existing, nil
		},
		replaceFunc: func(ctx context.Context, userID string, items []domain.CartItem, syncedAt *time.Time) (domain.Cart, error) {
			out := existing
			out.Items = items
			return out, nil
		},
	}

	service := newTestCartService(t, repo, now)
	cart, err := service.AddItem(context.Background(), AddCartItemCommand{
		UserID:         "user-1",
		Item:           domain.CartItem{ID: "prod-1", Name: "Hamper", Price: 4500, Quantity: 1},
		TargetQuantity: 5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.Items[0].Quantity != 5 {
		t.Fatalf("expected replayed target quantity 5, got %d", cart.Items[0].Quantity)
	}
}

func TestCartServiceAddItemDistinctVariantsMakeDistinctLines(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 10, 0, 0, time.UTC)
	existing := domain.Cart{
		UserID:   "user-1",
		Currency: "EUR",
		Items: []domain.CartItem{
			{ID: "prod-1-large", ProductID: "prod-1", Name: "Hamper", Price: 4500, Quantity: 1},
		},
	}

	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, userID string) (domain.Cart, error) {
			return existing, nil
		},
		replaceFunc: func(ctx context.Context, userID string, items []domain.CartItem, syncedAt *time.Time) (domain.Cart, error) {
			out := existing
			out.Items = items
			return out, nil
		},
	}

	service := newTestCartService(t, repo, now)
	cart, err := service.AddItem(context.Background(), AddCartItemCommand{
		UserID: "user-1",
		Item:   domain.CartItem{ProductID: "prod-1", VariantName: "Small", Name: "Hamper", Price: 3000, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cart.Items) != 2 {
		t.Fatalf("expected two lines for two variants, got %d", len(cart.Items))
	}
	if cart.Items[1].ID != "prod-1-small" {
		t.Fatalf("expected composed line id prod-1-small, got %q", cart.Items[1].ID)
	}
}

func TestCartServiceUpdateQuantityZeroRemovesLine(t *testing.T) {
	now := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	existing := domain.Cart{
		UserID:   "user-1",
		Currency: "EUR",
		Items: []domain.CartItem{
			{ID: "prod-1", Name: "Hamper", Price: 4500, Quantity: 2},
			{ID: "prod-2", Name: "Candle", Price: 1500, Quantity: 1},
		},
	}

	var replaced []domain.CartItem
	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, userID string) (domain.Cart, error) {
			return existing, nil
		},
		replaceFunc: func(ctx context.Context, userID string, items []domain.CartItem, syncedAt *time.Time) (domain.Cart, error) {
			replaced = items
			out := existing
			out.Items = items
			return out, nil
		},
	}

	service := newTestCartService(t, repo, now)
	cart, err := service.UpdateQuantity(context.Background(), UpdateQuantityCommand{
		UserID:   "user-1",
		ItemID:   "prod-1",
		Quantity: 0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(replaced) != 1 || replaced[0].ID != "prod-2" {
		t.Fatalf("expected prod-1 removed, got %+v", replaced)
	}
	if cart.TotalPrice() != 1500 {
		t.Fatalf("expected total 1500, got %d", cart.TotalPrice())
	}
}

func TestCartServiceUpdateQuantityUnknownLine(t *testing.T) {
	now := time.Date(2026, 3, 2, 11, 5, 0, 0, time.UTC)
	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, userID string) (domain.Cart, error) {
			return domain.Cart{UserID: "user-1", Items: []domain.CartItem{}}, nil
		},
	}

	service := newTestCartService(t, repo, now)
	if _, err := service.UpdateQuantity(context.Background(), UpdateQuantityCommand{
		UserID:   "user-1",
		ItemID:   "missing",
		Quantity: 2,
	}); !errors.Is(err, ErrCartNotFound) {
		t.Fatalf("expected ErrCartNotFound, got %v", err)
	}
}

func TestCartServiceSyncMergesLargerQuantity(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	server := domain.Cart{
		UserID:   "user-1",
		Currency: "EUR",
		Items: []domain.CartItem{
			{ID: "prod-1", Name: "Hamper", Price: 4500, Quantity: 3},
			{ID: "prod-2", Name: "Candle", Price: 1500, Quantity: 1},
		},
	}

	var syncedAt *time.Time
	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, userID string) (domain.Cart, error) {
			return server, nil
		},
		replaceFunc: func(ctx context.Context, userID string, items []domain.CartItem, ts *time.Time) (domain.Cart, error) {
			syncedAt = ts
			out := server
			out.Items = items
			out.LastSyncedAt = ts
			return out, nil
		},
	}

	service := newTestCartService(t, repo, now)
	cart, err := service.Sync(context.Background(), SyncCartCommand{
		UserID: "user-1",
		Items: []domain.CartItem{
			{ID: "prod-1", Name: "Hamper", Price: 4500, Quantity: 1},
			{ID: "prod-3", Name: "Chocolates", Price: 2200, Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cart.Items) != 3 {
		t.Fatalf("expected union of 3 lines, got %d", len(cart.Items))
	}
	if cart.Items[0].Quantity != 3 {
		t.Fatalf("expected server's larger quantity 3 kept, got %d", cart.Items[0].Quantity)
	}
	if syncedAt == nil || !syncedAt.Equal(now) {
		t.Fatalf("expected sync timestamp %v, got %v", now, syncedAt)
	}
}

func TestCartServiceMergeGuestCartEmptyDegradesToFetch(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC)
	fetched := false
	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, userID string) (domain.Cart, error) {
			fetched = true
			return domain.Cart{UserID: "user-1", Currency: "EUR", Items: []domain.CartItem{}}, nil
		},
		replaceFunc: func(ctx context.Context, userID string, items []domain.CartItem, ts *time.Time) (domain.Cart, error) {
			t.Fatal("replace should not run for an empty merge")
			return domain.Cart{}, nil
		},
	}

	service := newTestCartService(t, repo, now)
	if _, err := service.MergeGuestCart(context.Background(), MergeCartCommand{UserID: "user-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fetched {
		t.Fatal("expected plain fetch")
	}
}

func TestCartServiceClearCartReplacesWithEmpty(t *testing.T) {
	now := time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)
	var replaced []domain.CartItem
	repo := &stubCartRepository{
		replaceFunc: func(ctx context.Context, userID string, items []domain.CartItem, ts *time.Time) (domain.Cart, error) {
			replaced = items
			return domain.Cart{UserID: userID, Items: items}, nil
		},
	}

	service := newTestCartService(t, repo, now)
	cart, err := service.ClearCart(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if replaced == nil || len(replaced) != 0 {
		t.Fatalf("expected empty replacement, got %+v", replaced)
	}
	if cart.TotalItems() != 0 {
		t.Fatalf("expected empty cart, got %d items", cart.TotalItems())
	}
}

func TestCartServiceTranslatesRepositoryErrors(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	repo := &stubCartRepository{
		getFunc: func(ctx context.Context, userID string) (domain.Cart, error) {
			return domain.Cart{}, &repositoryErrorStub{unavailable: true}
		},
	}

	service := newTestCartService(t, repo, now)
	if _, err := service.GetCart(context.Background(), "user-1"); !errors.Is(err, ErrCartUnavailable) {
		t.Fatalf("expected ErrCartUnavailable, got %v", err)
	}

	if _, err := service.GetCart(context.Background(), "   "); !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected ErrCartInvalidInput for blank user, got %v", err)
	}
}
