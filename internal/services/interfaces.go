package services

import (
	"context"
	"time"

	domain "github.com/maison-panier/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination             = domain.Pagination
	SortOrder              = domain.SortOrder
	Product                = domain.Product
	Variant                = domain.Variant
	SubProduct             = domain.SubProduct
	BasketType             = domain.BasketType
	BasketSelection        = domain.BasketSelection
	CustomBasket           = domain.CustomBasket
	Cart                   = domain.Cart
	CartItem               = domain.CartItem
	ShippingRate           = domain.ShippingRate
	PaymentIntent          = domain.PaymentIntent
	OrderConfirmation      = domain.OrderConfirmation
	UserProfile            = domain.UserProfile
	UserRole               = domain.UserRole
	ContentPage            = domain.ContentPage
	ContentPageKind        = domain.ContentPageKind
	ActivityEntry          = domain.ActivityEntry
	NewsletterSubscription = domain.NewsletterSubscription
	MediaAsset             = domain.MediaAsset
	SignedAssetResponse    = domain.SignedAssetResponse
	SystemHealthReport     = domain.SystemHealthReport
)

// CatalogService serves the immutable product catalog and its admin mutations.
type CatalogService interface {
	GetProduct(ctx context.Context, idOrSlug string) (Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) (domain.CursorPage[Product], error)
	ListCategories(ctx context.Context) ([]string, error)
	UpsertProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
	DeleteProduct(ctx context.Context, cmd DeleteProductCommand) error
}

// BasketService manages the per-user custom basket builder state.
type BasketService interface {
	GetBasket(ctx context.Context, userID string) (CustomBasket, error)
	SetBasketType(ctx context.Context, cmd SetBasketTypeCommand) (BasketTypeResult, error)
	QueueItem(ctx context.Context, cmd BasketItemCommand) (CustomBasket, error)
	AddItem(ctx context.Context, cmd BasketItemCommand) (CustomBasket, error)
	RemoveItem(ctx context.Context, userID string, itemID string) (CustomBasket, error)
	ClearBasket(ctx context.Context, userID string) error
	ConvertToCartLine(ctx context.Context, userID string) (Cart, error)
}

// CartService is the authoritative server-side cart for authenticated users.
type CartService interface {
	GetCart(ctx context.Context, userID string) (Cart, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error)
	RemoveItem(ctx context.Context, userID string, itemID string) (Cart, error)
	UpdateQuantity(ctx context.Context, cmd UpdateQuantityCommand) (Cart, error)
	ClearCart(ctx context.Context, userID string) (Cart, error)
	Sync(ctx context.Context, cmd SyncCartCommand) (Cart, error)
	MergeGuestCart(ctx context.Context, cmd MergeCartCommand) (Cart, error)
}

// CheckoutService coordinates payment-intent creation and order confirmation.
type CheckoutService interface {
	CreatePaymentIntent(ctx context.Context, cmd CreatePaymentIntentCommand) (PaymentIntent, error)
	ConfirmOrder(ctx context.Context, cmd ConfirmOrderCommand) (ConfirmOrderResult, error)
}

// ShippingService resolves delivery rates with currency-converted prices.
type ShippingService interface {
	RatesForCountry(ctx context.Context, country string, currency string) ([]ShippingRate, error)
}

// CurrencyService converts minor-unit amounts between supported currencies.
type CurrencyService interface {
	Convert(amount int64, from string, to string) (int64, error)
	Supported(code string) bool
}

// ContentService provides read/write access to CMS pages.
type ContentService interface {
	GetPage(ctx context.Context, key string) (ContentPage, error)
	ListPages(ctx context.Context) ([]ContentPage, error)
	UpsertPage(ctx context.Context, cmd UpsertContentPageCommand) (ContentPage, error)
}

// UserService manages back-office user administration.
type UserService interface {
	GetProfile(ctx context.Context, uid string) (UserProfile, error)
	EnsureProfile(ctx context.Context, cmd EnsureProfileCommand) (UserProfile, error)
	ListUsers(ctx context.Context, filter UserFilter) (domain.CursorPage[UserProfile], error)
	UpdateUser(ctx context.Context, cmd UpdateUserCommand) (UserProfile, error)
	DeleteUser(ctx context.Context, cmd DeleteUserCommand) error
}

// ActivityService centralizes immutable activity log persistence and retrieval.
type ActivityService interface {
	Record(ctx context.Context, record ActivityRecord)
	List(ctx context.Context, filter ActivityListFilter) (domain.CursorPage[ActivityEntry], error)
}

// NewsletterService records newsletter opt-ins and schedules welcome mail.
type NewsletterService interface {
	Subscribe(ctx context.Context, cmd SubscribeCommand) (NewsletterSubscription, error)
}

// AssetService issues signed URLs for media-library and product-image uploads.
type AssetService interface {
	IssueSignedUpload(ctx context.Context, cmd SignedUploadCommand) (SignedAssetResponse, error)
	IssueSignedDownload(ctx context.Context, cmd SignedDownloadCommand) (SignedAssetResponse, error)
}

// SystemService aggregates utility endpoints (health checks, build info).
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// Mailer delivers transactional mail. Implementations must be safe for
// concurrent use.
type Mailer interface {
	SendOrderConfirmation(ctx context.Context, msg OrderConfirmationMail) error
	SendNewsletterWelcome(ctx context.Context, to string) error
}

// EventPublisher fans out storefront events (order confirmed, newsletter
// signup) for asynchronous processing.
type EventPublisher interface {
	Publish(ctx context.Context, event StoreEvent) (string, error)
}

// DomainError represents a structured error with stable codes for transport across layers.
type DomainError interface {
	error
	Code() string
	SafeMessage() string
}

// Command and DTO definitions ------------------------------------------------

type ProductFilter struct {
	Category   string
	Query      string
	ActiveOnly bool
	Pagination Pagination
}

type UpsertProductCommand struct {
	Product Product
	ActorID string
}

type DeleteProductCommand struct {
	ProductID string
	ActorID   string
}

type SetBasketTypeCommand struct {
	UserID string
	Type   BasketType
}

// BasketTypeResult reports the new basket plus how many queued items were
// flushed into it, so callers can word the notice correctly.
type BasketTypeResult struct {
	Basket  CustomBasket
	Flushed int
}

type BasketItemCommand struct {
	UserID string
	Item   BasketSelection
}

type AddCartItemCommand struct {
	UserID string
	Item   CartItem
	// TargetQuantity, when positive, sets the resulting line quantity
	// instead of incrementing. Mirrors a client replaying a mutation with
	// the post-increment value.
	TargetQuantity int
}

type UpdateQuantityCommand struct {
	UserID   string
	ItemID   string
	Quantity int
}

type SyncCartCommand struct {
	UserID       string
	Items        []CartItem
	LastSyncedAt *time.Time
}

type MergeCartCommand struct {
	UserID string
	Items  []CartItem
}

type ShippingSelection struct {
	Country string
	Method  string
	Amount  int64
}

type CheckoutContact struct {
	Email string
	Name  string
}

type CreatePaymentIntentCommand struct {
	UserID         string
	Currency       string
	Shipping       ShippingSelection
	Contact        CheckoutContact
	Address        map[string]string
	IdempotencyKey string
}

type ConfirmOrderCommand struct {
	UserID          string
	PaymentIntentID string
	Contact         CheckoutContact
}

// ConfirmOrderResult reports what the confirmation pass actually did.
type ConfirmOrderResult struct {
	PaymentIntentID string
	EmailSent       bool
	EmailSkipped    bool
	CartCleared     bool
}

type UpsertContentPageCommand struct {
	Page    ContentPage
	ActorID string
}

type EnsureProfileCommand struct {
	UID         string
	Email       string
	DisplayName string
	Verified    bool
}

type UserFilter struct {
	Role       string
	Query      string
	Pagination Pagination
}

type UpdateUserCommand struct {
	UID         string
	ActorID     string
	Role        *UserRole
	DisplayName *string
	Verified    *bool
	Disabled    *bool
}

type DeleteUserCommand struct {
	UID     string
	ActorID string
}

// ActivityRecord defines the payload accepted by the activity writer service.
type ActivityRecord struct {
	Actor      string
	ActorType  string
	Action     string
	TargetRef  string
	Severity   string
	RequestID  string
	OccurredAt time.Time
	Metadata   map[string]any
	IPAddress  string
	UserAgent  string
}

type ActivityListFilter struct {
	Action     string
	Actor      string
	ActorType  string
	TargetRef  string
	DateRange  domain.RangeQuery[time.Time]
	Pagination Pagination
}

type SubscribeCommand struct {
	Email  string
	Source string
}

type SignedUploadCommand struct {
	ActorID     string
	Kind        string
	FileName    string
	ContentType string
	SizeBytes   int64
}

type SignedDownloadCommand struct {
	ActorID string
	AssetID string
}

// OrderConfirmationMail is the payload rendered into the confirmation email.
type OrderConfirmationMail struct {
	To              string
	Name            string
	PaymentIntentID string
	Items           []CartItem
	Total           int64
	Currency        string
	ShippingMethod  string
}

// StoreEvent is the generic message published to the events topic.
type StoreEvent struct {
	Kind       string         `json:"kind"`
	Subject    string         `json:"subject"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}
