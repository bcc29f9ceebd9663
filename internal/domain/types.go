package domain

import (
	"strings"
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// Variant is a named price/image combination of a single product, such as a
// size or scent option. A selected variant replaces the product base price.
type Variant struct {
	Name  string
	Image string
	Price int64
}

// SubProduct describes one component of a fixed (pre-assembled) basket
// product, stored denormalized on the parent.
type SubProduct struct {
	ID          string
	Name        string
	Price       int64
	Image       string
	Category    string
	Description string
}

// Product is an immutable catalog record. Details is an open bag of
// descriptive fields (ingredients, dimensions, fragrance notes) whose
// schema varies per category.
type Product struct {
	ID          string
	Slug        string
	Name        string
	Description string
	Category    string
	Price       int64
	Currency    string
	Image       string
	Images      []string
	Variants    []Variant
	Items       []SubProduct
	Details     map[string]any
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DefaultVariant returns the first variant when the product has any.
func (p Product) DefaultVariant() *Variant {
	if len(p.Variants) == 0 {
		return nil
	}
	v := p.Variants[0]
	return &v
}

// VariantByName locates a variant by case-insensitive name match.
func (p Product) VariantByName(name string) *Variant {
	target := strings.TrimSpace(name)
	if target == "" {
		return nil
	}
	for _, v := range p.Variants {
		if strings.EqualFold(strings.TrimSpace(v.Name), target) {
			dup := v
			return &dup
		}
	}
	return nil
}

// UnitPrice resolves the effective unit price for an optional variant name.
func (p Product) UnitPrice(variantName string) int64 {
	if v := p.VariantByName(variantName); v != nil {
		return v.Price
	}
	return p.Price
}

// BasketType enumerates the wicker basket colours offered by the builder.
type BasketType string

const (
	// BasketTypeNatural is the light wicker basket.
	BasketTypeNatural BasketType = "natural"
	// BasketTypeBlack is the dark stained wicker basket.
	BasketTypeBlack BasketType = "black"
)

// Valid reports whether the basket type is one of the offered colours.
func (t BasketType) Valid() bool {
	return t == BasketTypeNatural || t == BasketTypeBlack
}

const (
	// MinBasketSelection is the smallest selection a basket converts with.
	MinBasketSelection = 3
	// MaxBasketSelection is the largest selection a basket can hold.
	MaxBasketSelection = 5
)

// BasketSelection is a catalog item captured into a custom or fixed basket.
// Price and image are variant-resolved at selection time; the snapshot is
// never re-derived from the catalog afterwards.
type BasketSelection struct {
	ID          string
	ProductID   string
	Name        string
	Price       int64
	Image       string
	Category    string
	VariantName string
	Details     map[string]any
}

// CustomBasket is the per-user builder state. PendingItems holds selections
// queued before a basket colour was chosen; choosing a colour flushes them
// into SelectedItems.
type CustomBasket struct {
	UserID        string
	Type          BasketType
	SelectedItems []BasketSelection
	PendingItems  []BasketSelection
	TotalPrice    int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasType reports whether a basket colour has been chosen yet.
func (b CustomBasket) HasType() bool {
	return b.Type.Valid()
}

// CartItem is one line of a cart. Identity is by ID, not ProductID: the same
// product bought in two variants yields two lines. CustomItems and
// BasketItems carry add-time snapshots of basket contents for display.
type CartItem struct {
	ID          string
	ProductID   string
	Name        string
	Price       int64
	Image       string
	Category    string
	Description string
	Quantity    int
	VariantName string
	CustomItems []BasketSelection
	BasketItems []BasketSelection
	AddedAt     time.Time
	UpdatedAt   *time.Time
}

// LineTotal returns price multiplied by quantity, clamping negatives to zero.
func (i CartItem) LineTotal() int64 {
	if i.Quantity <= 0 || i.Price <= 0 {
		return 0
	}
	return i.Price * int64(i.Quantity)
}

// Cart aggregates the mutable shopping cart state for a user.
type Cart struct {
	ID           string
	UserID       string
	Currency     string
	Items        []CartItem
	LastSyncedAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TotalPrice sums price*quantity across all lines.
func (c Cart) TotalPrice() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.LineTotal()
	}
	return total
}

// TotalItems sums quantities across all lines.
func (c Cart) TotalItems() int {
	total := 0
	for _, item := range c.Items {
		if item.Quantity > 0 {
			total += item.Quantity
		}
	}
	return total
}

// ShippingRate is one delivery option for a destination country.
type ShippingRate struct {
	ID           string
	Country      string
	Method       string
	Label        string
	Amount       int64
	Currency     string
	DeliveryDays string
}

// PaymentIntent captures the provider-hosted payment session handed to the
// client for confirmation.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
	Status       string
	CreatedAt    time.Time
}

// OrderConfirmation records that the confirmation email for a payment intent
// has been dispatched. Deduplicates sends across client retries and the
// webhook/return-page race.
type OrderConfirmation struct {
	PaymentIntentID string
	UserID          string
	Email           string
	SentAt          time.Time
}

// UserRole enumerates back-office access levels.
type UserRole string

const (
	// RoleAdmin may manage everything including destructive operations.
	RoleAdmin UserRole = "admin"
	// RoleModerator may create and update catalog records but not delete them.
	RoleModerator UserRole = "moderator"
	// RoleCustomer is the default storefront role.
	RoleCustomer UserRole = "customer"
)

// Valid reports whether the role is one of the recognised access levels.
func (r UserRole) Valid() bool {
	return r == RoleAdmin || r == RoleModerator || r == RoleCustomer
}

// UserProfile mirrors the Firebase user plus back-office fields.
type UserProfile struct {
	UID         string
	Email       string
	DisplayName string
	Role        UserRole
	Verified    bool
	Disabled    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ContentPageKind distinguishes structured JSON pages from rich HTML pages.
type ContentPageKind string

const (
	// ContentKindStructured stores an arbitrary JSON section map (the About page).
	ContentKindStructured ContentPageKind = "structured"
	// ContentKindHTML stores sanitized rich HTML (legal/policy pages).
	ContentKindHTML ContentPageKind = "html"
)

// ContentPage is a CMS document addressed by its page key.
type ContentPage struct {
	Key       string
	Kind      ContentPageKind
	Title     string
	HTML      string
	Sections  map[string]any
	UpdatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ActivityEntry is one immutable row of the admin activity log.
type ActivityEntry struct {
	ID        string
	Actor     string
	ActorType string
	Action    string
	TargetRef string
	Severity  string
	RequestID string
	Metadata  map[string]any
	IPHash    string
	UserAgent string
	CreatedAt time.Time
}

// NewsletterSubscription records an opted-in email address.
type NewsletterSubscription struct {
	ID        string
	Email     string
	Source    string
	CreatedAt time.Time
}

// MediaAsset tracks an uploaded media-library or product image object.
type MediaAsset struct {
	ID          string
	Kind        string
	StoragePath string
	ContentType string
	SizeBytes   int64
	UploadedBy  string
	CreatedAt   time.Time
}

// SignedAssetResponse returns signed URL payloads for upload/download flows.
type SignedAssetResponse struct {
	AssetID   string
	URL       string
	ExpiresAt time.Time
	Method    string
	Headers   map[string]string
}

const (
	// HealthStatusOK marks a dependency responding within tolerances.
	HealthStatusOK = "ok"
	// HealthStatusDegraded marks a dependency that responds with elevated latency or partial failure.
	HealthStatusDegraded = "degraded"
	// HealthStatusError marks a dependency that failed its probe.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
