package repositories

import (
	"context"
	"time"

	domain "github.com/maison-panier/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// ProductListFilter narrows catalog listings.
type ProductListFilter struct {
	Category   string
	Query      string
	ActiveOnly bool
	Pagination domain.Pagination
}

// ProductRepository persists catalog products.
type ProductRepository interface {
	Upsert(ctx context.Context, product domain.Product) (domain.Product, error)
	Delete(ctx context.Context, productID string) error
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	FindBySlug(ctx context.Context, slug string) (domain.Product, error)
	List(ctx context.Context, filter ProductListFilter) (domain.CursorPage[domain.Product], error)
	ListCategories(ctx context.Context) ([]string, error)
}

// CartRepository owns cart persistence keyed by user ID. ReplaceItems swaps
// the full line set in one write so concurrent mutations never interleave at
// the item level.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	UpsertCart(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	ReplaceItems(ctx context.Context, userID string, items []domain.CartItem, syncedAt *time.Time) (domain.Cart, error)
}

// BasketRepository stores the transient custom-basket builder state per user.
type BasketRepository interface {
	Get(ctx context.Context, userID string) (domain.CustomBasket, error)
	Save(ctx context.Context, basket domain.CustomBasket) (domain.CustomBasket, error)
	Delete(ctx context.Context, userID string) error
}

// ContentRepository stores CMS pages keyed by page key.
type ContentRepository interface {
	GetPage(ctx context.Context, key string) (domain.ContentPage, error)
	UpsertPage(ctx context.Context, page domain.ContentPage) (domain.ContentPage, error)
	ListPages(ctx context.Context) ([]domain.ContentPage, error)
}

// UserListFilter narrows back-office user listings.
type UserListFilter struct {
	Role       string
	Query      string
	Pagination domain.Pagination
}

// UserRepository persists back-office user profiles mirrored from Firebase.
type UserRepository interface {
	FindByUID(ctx context.Context, uid string) (domain.UserProfile, error)
	Upsert(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error)
	List(ctx context.Context, filter UserListFilter) (domain.CursorPage[domain.UserProfile], error)
	Delete(ctx context.Context, uid string) error
}

// ActivityFilter narrows activity log listings.
type ActivityFilter struct {
	Action     string
	Actor      string
	ActorType  string
	TargetRef  string
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

// ActivityRepository appends and lists immutable activity log entries.
type ActivityRepository interface {
	Append(ctx context.Context, entry domain.ActivityEntry) error
	List(ctx context.Context, filter ActivityFilter) (domain.CursorPage[domain.ActivityEntry], error)
}

// NewsletterRepository stores newsletter opt-ins, unique per normalised email.
type NewsletterRepository interface {
	FindByEmail(ctx context.Context, email string) (domain.NewsletterSubscription, error)
	Insert(ctx context.Context, sub domain.NewsletterSubscription) (domain.NewsletterSubscription, error)
}

// ConfirmationRepository tracks per-payment-intent confirmation email flags.
// MarkSent must be create-if-absent: it returns false without error when the
// flag already existed, which is how duplicate sends are suppressed.
type ConfirmationRepository interface {
	MarkSent(ctx context.Context, conf domain.OrderConfirmation) (bool, error)
	Get(ctx context.Context, paymentIntentID string) (domain.OrderConfirmation, error)
}

// ShippingRateRepository lists delivery options per destination country.
type ShippingRateRepository interface {
	ListByCountry(ctx context.Context, country string) ([]domain.ShippingRate, error)
}

// AssetRepository records upload metadata and issues signed URLs against the
// backing object store.
type AssetRepository interface {
	IssueUpload(ctx context.Context, asset domain.MediaAsset, expiresAt time.Time) (domain.SignedAssetResponse, error)
	IssueDownload(ctx context.Context, assetID string, expiresAt time.Time) (domain.SignedAssetResponse, error)
}

// HealthRepository aggregates dependency probes for readiness reporting.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
