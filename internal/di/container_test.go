package di

import (
	"context"
	"strings"
	"testing"
	"time"

	domain "github.com/maison-panier/api/internal/domain"
	"github.com/maison-panier/api/internal/platform/config"
	"github.com/maison-panier/api/internal/repositories"
)

type stubProductRepository struct{}

func (stubProductRepository) Upsert(ctx context.Context, product domain.Product) (domain.Product, error) {
	return product, nil
}

func (stubProductRepository) Delete(ctx context.Context, productID string) error { return nil }

func (stubProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	return domain.Product{}, nil
}

func (stubProductRepository) FindBySlug(ctx context.Context, slug string) (domain.Product, error) {
	return domain.Product{}, nil
}

func (stubProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	return domain.CursorPage[domain.Product]{}, nil
}

func (stubProductRepository) ListCategories(ctx context.Context) ([]string, error) {
	return nil, nil
}

type stubCartRepository struct{}

func (stubCartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	return domain.Cart{UserID: userID}, nil
}

func (stubCartRepository) UpsertCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	return cart, nil
}

func (stubCartRepository) ReplaceItems(ctx context.Context, userID string, items []domain.CartItem, syncedAt *time.Time) (domain.Cart, error) {
	return domain.Cart{UserID: userID, Items: items}, nil
}

type stubNewsletterRepository struct{}

func (stubNewsletterRepository) FindByEmail(ctx context.Context, email string) (domain.NewsletterSubscription, error) {
	return domain.NewsletterSubscription{}, nil
}

func (stubNewsletterRepository) Insert(ctx context.Context, sub domain.NewsletterSubscription) (domain.NewsletterSubscription, error) {
	return sub, nil
}

func testConfig() config.Config {
	return config.Config{
		Currency: config.CurrencyConfig{
			Base:  "EUR",
			Rates: map[string]string{"USD": "1.08"},
		},
		Storage: config.StorageConfig{SignedURLTTL: 15 * time.Minute},
	}
}

func TestNewContainerRequiresProductRepository(t *testing.T) {
	_, err := NewContainer(testConfig(), Repositories{Carts: stubCartRepository{}}, Infrastructure{})
	if err == nil || !strings.Contains(err.Error(), "product repository") {
		t.Fatalf("expected product repository error, got %v", err)
	}
}

func TestNewContainerRequiresCartRepository(t *testing.T) {
	_, err := NewContainer(testConfig(), Repositories{Products: stubProductRepository{}}, Infrastructure{})
	if err == nil || !strings.Contains(err.Error(), "cart repository") {
		t.Fatalf("expected cart repository error, got %v", err)
	}
}

func TestNewContainerBuildsCoreServices(t *testing.T) {
	container, err := NewContainer(testConfig(), Repositories{
		Products:   stubProductRepository{},
		Carts:      stubCartRepository{},
		Newsletter: stubNewsletterRepository{},
	}, Infrastructure{})
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}

	if container.Services.Catalog == nil {
		t.Error("expected catalog service")
	}
	if container.Services.Cart == nil {
		t.Error("expected cart service")
	}
	if container.Services.Currency == nil {
		t.Error("expected currency service")
	}
	if container.Services.Newsletter == nil {
		t.Error("expected newsletter service")
	}
	if container.Services.Checkout != nil {
		t.Error("checkout must stay nil without payments and shipping")
	}
	if container.Services.Assets != nil {
		t.Error("assets must stay nil without a repository")
	}
}
